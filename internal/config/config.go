// Package config provides Viper-based hierarchical configuration management
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "NUMERICABLE"
	ConfigName = "config"
)

// ErrMissingCredentials is returned by ValidateForSync when login or
// password is empty.
var ErrMissingCredentials = errors.New("account.login and account.password are required")

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Account struct {
		Login    string `mapstructure:"login" yaml:"login"`
		Password string `mapstructure:"password" yaml:"-"` // Never serialize the password
	} `mapstructure:"account" yaml:"account"`

	Portal struct {
		AccountURL    string `mapstructure:"account_url" yaml:"account_url"`
		ConnectionURL string `mapstructure:"connection_url" yaml:"connection_url"`
	} `mapstructure:"portal" yaml:"portal"`

	HTTP struct {
		TimeoutSeconds   int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
		UserAgent        string `mapstructure:"user_agent" yaml:"user_agent"`
		CloudflareBypass bool   `mapstructure:"cloudflare_bypass" yaml:"cloudflare_bypass"`
	} `mapstructure:"http" yaml:"http"`

	Bills struct {
		Folder string `mapstructure:"folder" yaml:"folder"`
	} `mapstructure:"bills" yaml:"bills"`

	Reconcile struct {
		OperationsFile string `mapstructure:"operations_file" yaml:"operations_file"`
		LinksFile      string `mapstructure:"links_file" yaml:"links_file"`
	} `mapstructure:"reconcile" yaml:"reconcile"`
}

// Timeout returns the HTTP timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Load initializes configuration with hierarchical loading: defaults, then
// config file, then .env, then environment. An explicit configFile replaces
// the search path lookup.
func Load(configFile string) (*Config, error) {
	loadEnvFile()

	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.numericable")
		v.AddConfigPath(".numericable")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory if present. Variables
// already set in the environment win.
func loadEnvFile() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load(".env")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Account defaults
	v.SetDefault("account.login", "")
	v.SetDefault("account.password", "")

	// Portal defaults
	v.SetDefault("portal.account_url", "https://moncompte.numericable.fr")
	v.SetDefault("portal.connection_url", "https://connexion.numericable.fr")

	// HTTP defaults
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.cloudflare_bypass", false)

	// Storage defaults
	v.SetDefault("bills.folder", "bills")
	v.SetDefault("reconcile.operations_file", "")
	v.SetDefault("reconcile.links_file", "")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	// Validate log level
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	// Validate log format
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.HTTP.TimeoutSeconds < 1 || config.HTTP.TimeoutSeconds > 600 {
		return fmt.Errorf("http.timeout_seconds must be between 1 and 600, got: %d", config.HTTP.TimeoutSeconds)
	}

	for key, raw := range map[string]string{
		"portal.account_url":    config.Portal.AccountURL,
		"portal.connection_url": config.Portal.ConnectionURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got: %q", key, raw)
		}
	}

	if config.Bills.Folder == "" {
		return fmt.Errorf("bills.folder must not be empty")
	}

	return nil
}

// ValidateForSync checks what a synchronization run needs beyond Load.
func (c *Config) ValidateForSync() error {
	if c.Account.Login == "" || c.Account.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}
