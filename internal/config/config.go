package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix marks a value that is read from the named environment variable,
// e.g. `password: $env:PG_PASSWORD`.
const EnvPrefix = "$env:"

// Load reads configFile over defaults into out.
func Load(configFile string, defaults map[string]interface{}, out interface{}) error {
	v := viper.New()
	v.SetConfigFile(configFile)
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	err := v.ReadInConfig()
	if err != nil {
		return fmt.Errorf("failed to read config %q: %w", configFile, err)
	}
	for _, key := range v.AllKeys() {
		env := v.GetString(key)
		if strings.HasPrefix(env, EnvPrefix) {
			err := v.BindEnv(key, env[len(EnvPrefix):])
			if err != nil {
				return fmt.Errorf("failed to prepare config: %w", err)
			}
		}
	}

	err = v.Unmarshal(out)
	if err != nil {
		return fmt.Errorf("unable to decode into config struct: %w", err)
	}
	return nil
}
