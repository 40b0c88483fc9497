package node

import (
	"github.com/sirupsen/logrus"
	"github.com/tcfw/fedchain/internal/config"
	"github.com/tcfw/fedchain/pkg/chain"
	"github.com/tcfw/fedchain/pkg/storage"
)

type NodeOption func(*Node) error

func WithStorage(s storage.Store) NodeOption {
	return func(n *Node) error {
		n.store = s
		return nil
	}
}

func WithLogger(l *logrus.Logger) NodeOption {
	return func(n *Node) error {
		n.logger = l
		return nil
	}
}

func WithConfig(c *config.Config) NodeOption {
	return func(n *Node) error {
		n.cfg = c
		return nil
	}
}

// WithBodyValidator replaces the structural body checks with a full
// transaction validator.
func WithBodyValidator(v chain.BodyValidator) NodeOption {
	return func(n *Node) error {
		n.body = v
		return nil
	}
}

func WithDefaultOptions() NodeOption {
	return func(n *Node) error {
		n.logger = logrus.StandardLogger()

		cfg, err := config.GetConfig()
		if err != nil {
			return err
		}
		n.cfg = cfg

		return nil
	}
}
