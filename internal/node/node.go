package node

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/fedchain/internal/config"
	"github.com/tcfw/fedchain/pkg/chain"
	"github.com/tcfw/fedchain/pkg/signature"
	"github.com/tcfw/fedchain/pkg/storage"
)

// Node owns a chain, its store and the registry its metrics are exported
// through.
type Node struct {
	cfg      *config.Config
	chain    *chain.Chain
	store    storage.Store
	registry *prometheus.Registry
	body     chain.BodyValidator

	logger *logrus.Logger
}

func (n *Node) Chain() *chain.Chain {
	return n.chain
}

func (n *Node) Registry() *prometheus.Registry {
	return n.registry
}

func (n *Node) Config() *config.Config {
	return n.cfg
}

func NewNode(ctx context.Context, opts ...NodeOption) (n *Node, err error) {
	n = &Node{
		logger:   logrus.StandardLogger(),
		registry: prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}

	if n.cfg == nil {
		cfg, err := config.GetConfig()
		if err != nil {
			return nil, err
		}
		n.cfg = cfg
	}

	if n.store == nil {
		s, oerr := openStore(n.cfg.Storage)
		if oerr != nil {
			return nil, errors.Wrap(oerr, "opening storage")
		}
		n.store = s

		l := n.logger
		defer func() {
			if err != nil {
				if serr := s.Stop(); serr != nil {
					l.WithError(serr).Warn("closing storage")
				}
			}
		}()
	}

	params, err := n.cfg.Chain.Params()
	if err != nil {
		return nil, err
	}

	verifier, err := signature.NewVerifier(n.cfg.Chain.SignatureConfig())
	if err != nil {
		return nil, errors.Wrap(err, "signature config")
	}

	if err := n.registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}

	chainOpts := []chain.Option{
		chain.WithStore(n.store),
		chain.WithLogger(logrus.NewEntry(n.logger).WithField("chain", params.ChainID)),
		chain.WithVerifier(verifier),
		chain.WithRegisterer(n.registry),
	}
	if n.body != nil {
		chainOpts = append(chainOpts, chain.WithBodyValidator(n.body))
	}

	n.chain, err = chain.New(params, chainOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "initing chain")
	}

	if err := n.chain.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "loading chain")
	}

	return n, nil
}

func openStore(cfg *config.Storage) (storage.Store, error) {
	switch cfg.Engine {
	case config.EngineMemory:
		return storage.NewMemStore(), nil
	case config.EnginePebble:
		return storage.NewPebbleStore(filepath.Join(cfg.DataDir, "chain"), nil)
	default:
		return nil, errors.Errorf("unknown storage engine %q", cfg.Engine)
	}
}

func (n *Node) Stop() error {
	n.logger.Warn("Shutting down")

	return n.chain.Stop()
}
