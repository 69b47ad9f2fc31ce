package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. ENROLL_SERVER_PORT or ENROLL_AUTH_JWT_SECRET.
const EnvPrefix = "ENROLL"

// defaults lists every known key. Viper only maps environment variables onto
// keys it already knows about, so each key needs an entry here.
var defaults = map[string]any{
	"server.port":                       8080,
	"server.log_level":                  "info",
	"server.log_format":                 "json",
	"server.shutdown_timeout":           "10s",
	"database.driver":                   "memory",
	"database.url":                      "",
	"database.max_open_conns":           10,
	"redis.url":                         "",
	"redis.pool_size":                   10,
	"kafka.brokers":                     []string{},
	"kafka.topic":                       "account-lifecycle",
	"kafka.queue_size":                  1024,
	"kafka.workers":                     2,
	"auth.jwt_secret":                   "",
	"auth.token_lifetime_minutes":       60,
	"auth.bcrypt_cost":                  10,
	"auth.strong_passwords":             false,
	"verification.code_ttl":             "0s",
	"verification.reveal_codes_in_logs": false,
	"telemetry.otlp_endpoint":           "",
	"telemetry.service_name":            "enroll-api",
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file path. An empty path searches
// for config.yaml in the working directory and ./config; a missing file is not
// an error.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
