// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environment variables.
type Config struct {
	StoreDriver       string        `mapstructure:"STORE_DRIVER"`
	DataFile          string        `mapstructure:"DATA_FILE"`
	DBSource          string        `mapstructure:"DB_SOURCE"`
	PersistTimeout    time.Duration `mapstructure:"PERSIST_TIMEOUT"`
	TokenType         string        `mapstructure:"TOKEN_TYPE"`
	TokenSymmetricKey string        `mapstructure:"TOKEN_SYMMETRIC_KEY"`
	SessionDuration   time.Duration `mapstructure:"SESSION_DURATION"`
	BcryptCost        int           `mapstructure:"BCRYPT_COST"`
	AdminEmails       []string      `mapstructure:"ADMIN_EMAILS"`
	KafkaBrokers      []string      `mapstructure:"KAFKA_BROKERS"`
	MetricsFile       string        `mapstructure:"METRICS_FILE"`
	Environment       string        `mapstructure:"GO_ENV"`
}

var defaults = map[string]any{
	"STORE_DRIVER":        "file",
	"DATA_FILE":           "users.json",
	"DB_SOURCE":           "",
	"PERSIST_TIMEOUT":     5 * time.Second,
	"TOKEN_TYPE":          "paseto",
	"TOKEN_SYMMETRIC_KEY": "",
	"SESSION_DURATION":    time.Hour,
	"BCRYPT_COST":         0,
	"ADMIN_EMAILS":        "",
	"KAFKA_BROKERS":       "",
	"METRICS_FILE":        "",
	"GO_ENV":              "production",
}

// Load reads configuration from path/app.env and environment variables.
// Environment variables take precedence over the file.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = v.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}
