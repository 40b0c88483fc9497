package cli

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tcfw/fedchain/internal/api"
	"github.com/tcfw/fedchain/internal/node"
	"github.com/tcfw/fedchain/internal/utils/logging"
)

var (
	daemonCmd = &cobra.Command{
		Use:   "daemon",
		RunE:  runDaemon,
		Short: "run the daemon",
	}
)

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	node, err := node.NewNode(ctx,
		node.WithDefaultOptions(),
	)
	if err != nil {
		return errors.Wrap(err, "initing node")
	}

	addr, err := net.ResolveTCPAddr("tcp", node.Config().API.Listen)
	if err != nil {
		node.Stop()
		return errors.Wrap(err, "resolving api address")
	}

	errCh := make(chan error)

	api, err := api.NewAPI(node)
	if err != nil {
		node.Stop()
		return err
	}

	go func() {
		logging.Entry().WithField("addr", addr.String()).Info("Starting API")
		if err := api.ListenAndServe(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		node.Stop()
		return err
	case <-waitExit(ctx):
		sctx, scancel := context.WithTimeout(ctx, 10*time.Second)
		defer scancel()

		if err := api.Shutdown(sctx); err != nil {
			logging.WithError(err).Warn("shutting down api")
		}
		return node.Stop()
	}
}

func waitExit(ctx context.Context) <-chan os.Signal {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	return sigs
}
