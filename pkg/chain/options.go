package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/fedchain/pkg/signature"
	"github.com/tcfw/fedchain/pkg/storage"
)

type Option func(*Chain) error

func WithStore(s storage.Store) Option {
	return func(c *Chain) error {
		c.store = s
		return nil
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Chain) error {
		c.logger = l
		return nil
	}
}

func WithBodyValidator(v BodyValidator) Option {
	return func(c *Chain) error {
		c.body = v
		return nil
	}
}

func WithVerifier(v *signature.Verifier) Option {
	return func(c *Chain) error {
		c.verifier = v
		return nil
	}
}

// WithRegisterer registers the chain's metrics with reg instead of a
// private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Chain) error {
		c.registerer = reg
		return nil
	}
}

func WithDropFilter(f *storage.HashFilter) Option {
	return func(c *Chain) error {
		c.dropped = f
		return nil
	}
}
