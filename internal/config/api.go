package config

import "github.com/spf13/viper"

type API struct {
	Listen string
}

const (
	Cfg_api_listen = "api.listen"
)

var (
	apiDefaults = map[string]interface{}{
		Cfg_api_listen: "127.0.0.1:8712",
	}
)

func buildAPIConfig() *API {
	return &API{Listen: viper.GetString(Cfg_api_listen)}
}
