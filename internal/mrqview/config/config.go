// Package config provides configuration management for the Marquee viewer agent
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the viewer agent configuration
type Config struct {
	// Server is the authority API base URL
	Server string `mapstructure:"server"`
	// SignalURL is the push-channel endpoint; derived from Server when empty
	SignalURL string `mapstructure:"signal-url"`
	// Token is the authentication token
	Token string `mapstructure:"token"`
	// Identity describes this viewer to the authority
	Identity IdentityConfig `mapstructure:"identity"`
	// PollInterval is the fallback poll period
	PollInterval time.Duration `mapstructure:"poll-interval"`
	// RequestTimeout bounds a correlated push-channel request
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	// ReconnectAttempts bounds consecutive failed connects
	ReconnectAttempts int `mapstructure:"reconnect-attempts"`
	// ReconnectDelay seeds the reconnect backoff
	ReconnectDelay time.Duration `mapstructure:"reconnect-delay"`
	// InsecureSkipVerify disables TLS verification
	InsecureSkipVerify bool `mapstructure:"insecure-skip-verify"`
}

// IdentityConfig is the identity presented when joining the broadcast group
type IdentityConfig struct {
	UserID string `mapstructure:"user-id"`
	Role   string `mapstructure:"role"`
	Name   string `mapstructure:"name"`
}

// defaultConfigPath returns the default config file path
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mrqview/config.yaml"
	}
	return filepath.Join(home, ".mrqview/config.yaml")
}

// Load reads configuration from the given file (or the default path),
// overlaying MRQVIEW_* environment variables.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MRQVIEW_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath()
	}

	v := viper.New()
	v.SetDefault("server", "http://localhost:8080")
	// Every key needs a default so AutomaticEnv can bind it
	v.SetDefault("signal-url", "")
	v.SetDefault("token", "")
	v.SetDefault("identity.user-id", "")
	v.SetDefault("identity.name", "")
	v.SetDefault("identity.role", "viewer")
	v.SetDefault("insecure-skip-verify", false)
	v.SetDefault("poll-interval", 30*time.Second)
	v.SetDefault("request-timeout", 2*time.Second)
	v.SetDefault("reconnect-attempts", 5)
	v.SetDefault("reconnect-delay", time.Second)

	v.SetEnvPrefix("MRQVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// A missing file falls back to defaults and environment
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.SignalURL == "" {
		derived, err := deriveSignalURL(cfg.Server)
		if err != nil {
			return nil, err
		}
		cfg.SignalURL = derived
	}

	return &cfg, nil
}

// deriveSignalURL maps the REST base URL onto the websocket endpoint
func deriveSignalURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/v1alpha1/signal/ws"
	return u.String(), nil
}

// Validate checks the fields the session cannot run without
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.Identity.UserID == "" {
		return fmt.Errorf("identity.user-id is required")
	}
	return nil
}
