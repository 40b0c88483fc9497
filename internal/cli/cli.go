package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcfw/fedchain/internal/config"
	"github.com/tcfw/fedchain/internal/utils/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:               "fedchain",
		Short:             "federation-signed chain node",
		RunE:              runDaemon,
		PersistentPreRunE: setup,
	}
)

func Execute() error {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase verbosity")
	viper.BindPFlag(config.Cfg_verbose, rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.PersistentFlags().String("api", "", "api listen address, also used by client commands")
	viper.BindPFlag(config.Cfg_api_listen, rootCmd.PersistentFlags().Lookup("api"))

	regCommands()

	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, args []string) error {
	if viper.GetBool(config.Cfg_verbose) {
		logging.SetLevel(logrus.DebugLevel)
		logging.Entry().WithField("level", "debug").Debug("setting log level")
	}
	return nil
}
