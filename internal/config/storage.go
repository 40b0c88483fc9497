package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnginePebble = "pebble"
	EngineMemory = "memory"
)

type Storage struct {
	Engine  string
	DataDir string
}

const (
	Cfg_storage_engine = "storage.engine"
)

var (
	storageDefaults = map[string]interface{}{
		Cfg_storage_engine: EnginePebble,
	}
)

func buildStorageConfig() (*Storage, error) {
	c := &Storage{
		Engine:  viper.GetString(Cfg_storage_engine),
		DataDir: os.ExpandEnv(viper.GetString(Cfg_dataDir)),
	}

	switch c.Engine {
	case EnginePebble:
		if c.DataDir == "" {
			return nil, errors.New("pebble storage needs a data directory")
		}
	case EngineMemory:
	default:
		return nil, errors.Errorf("unknown storage engine %q", c.Engine)
	}

	return c, nil
}
