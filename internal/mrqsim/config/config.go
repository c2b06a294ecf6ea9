// Package config provides configuration management for the Marquee
// authority simulator
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the simulator
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// DatabaseConfig holds postgres settings. An empty host selects the
// in-memory store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds rate limit store settings. An empty address disables
// rate limiting.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "disable",
		},
	}
}

// Load builds configuration from defaults, an optional YAML file, and
// environment variable overlays, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	cfg.overlayEnv()
	return cfg, nil
}

// ConnString renders the lib/pq connection string
func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// overlayEnv overlays environment variables on top of file-based config
func (c *Config) overlayEnv() {
	if host := getEnv("MRQSIM_SERVER_HOST", ""); host != "" {
		c.Server.Host = host
	}
	if port := getEnvAsInt("MRQSIM_SERVER_PORT", 0); port != 0 {
		c.Server.Port = port
	}

	if host := getEnv("MRQSIM_DB_HOST", ""); host != "" {
		c.Database.Host = host
	}
	if port := getEnvAsInt("MRQSIM_DB_PORT", 0); port != 0 {
		c.Database.Port = port
	}
	if name := getEnv("MRQSIM_DB_NAME", ""); name != "" {
		c.Database.Name = name
	}
	if user := getEnv("MRQSIM_DB_USER", ""); user != "" {
		c.Database.User = user
	}
	if password := getEnv("MRQSIM_DB_PASSWORD", ""); password != "" {
		c.Database.Password = password
	}
	if sslmode := getEnv("MRQSIM_DB_SSLMODE", ""); sslmode != "" {
		c.Database.SSLMode = sslmode
	}

	if addr := getEnv("MRQSIM_REDIS_ADDR", ""); addr != "" {
		c.Redis.Addr = addr
	}
	if password := getEnv("MRQSIM_REDIS_PASSWORD", ""); password != "" {
		c.Redis.Password = password
	}
	if db := getEnvAsInt("MRQSIM_REDIS_DB", 0); db != 0 {
		c.Redis.DB = db
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
