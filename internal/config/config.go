package config

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	Cfg_verbose = "verbose"
	Cfg_dataDir = "datadir"
)

var (
	defaults = map[string]interface{}{
		Cfg_verbose: false,
		Cfg_dataDir: "$HOME/.fedchain/data",
	}
)

func init() {
	SetDefaults()
}

// SetDefaults (re)applies every default value to viper.
func SetDefaults() {
	for _, d := range []map[string]interface{}{defaults, storageDefaults, apiDefaults, chainDefaults} {
		for k, v := range d {
			viper.SetDefault(k, v)
		}
	}
}

func GetConfig() (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetConfigName("fedchain")
	viper.AddConfigPath("/etc/fedchain/")
	viper.AddConfigPath("$HOME/.fedchain")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("FEDCHAIN")
	viper.AutomaticEnv()
	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error
			logrus.New().Warnf("no config found")
		} else {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	if viper.GetBool(Cfg_verbose) {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.WithField("level", "debug").Debug("setting log level")
	}

	return Build()
}

// Build assembles a Config from the values currently held by viper.
func Build() (*Config, error) {
	var err error

	c := &Config{}

	c.Chain, err = buildChainConfig()
	if err != nil {
		return nil, errors.Wrap(err, "chain config")
	}

	c.Storage, err = buildStorageConfig()
	if err != nil {
		return nil, errors.Wrap(err, "storage config")
	}

	c.API = buildAPIConfig()

	return c, nil
}

type Config struct {
	Chain   *Chain
	Storage *Storage
	API     *API
}
