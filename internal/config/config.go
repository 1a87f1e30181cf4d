// Package config loads CLI configuration for ferry.
//
// Values are resolved with the following precedence:
//  1. Command-line flags (highest)
//  2. Environment variables (FERRY_* prefix)
//  3. Configuration file (ferry.yaml)
//  4. Defaults (lowest)
package config

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Config holds all configuration for the ferry CLI.
type Config struct {
	// MaxSimultaneousTransfers caps concurrently active copy tasks
	MaxSimultaneousTransfers int `mapstructure:"max_simultaneous_transfers"`

	// PartSize is the multipart split threshold, accepting humanized
	// values such as "128MiB"
	PartSize string `mapstructure:"part_size"`

	// BillingProject is the requester-pays project identifier
	BillingProject string `mapstructure:"billing_project"`

	// LogLevel is the zerolog level name
	LogLevel string `mapstructure:"log_level"`

	// S3 configures the s3:// backend
	S3 S3Config `mapstructure:"s3"`

	// Minio configures the minio:// backend
	Minio MinioConfig `mapstructure:"minio"`

	// OBS configures the obs:// backend
	OBS OBSConfig `mapstructure:"obs"`

	partSizeBytes int64
}

// S3Config holds s3:// backend settings. Zero values defer to the default
// AWS resolution chain.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// MinioConfig holds minio:// backend settings.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// OBSConfig holds obs:// backend settings.
type OBSConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Load reads configuration from the given file, or from the standard
// locations when configPath is empty, then applies environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ferry")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ferry")
		// A missing config file is fine; defaults and env apply.
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix("FERRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_simultaneous_transfers", 75)
	v.SetDefault("part_size", "128MiB")
	v.SetDefault("log_level", "warn")
	v.SetDefault("minio.use_ssl", true)
}

func (c *Config) validate() error {
	if c.MaxSimultaneousTransfers <= 0 {
		return fmt.Errorf("max_simultaneous_transfers must be positive, got %d", c.MaxSimultaneousTransfers)
	}
	size, err := humanize.ParseBytes(c.PartSize)
	if err != nil {
		return fmt.Errorf("invalid part_size %q: %w", c.PartSize, err)
	}
	if size == 0 {
		return fmt.Errorf("part_size must be positive, got %q", c.PartSize)
	}
	c.partSizeBytes = int64(size)
	return nil
}

// PartSizeBytes returns the parsed part-size threshold in bytes.
func (c *Config) PartSizeBytes() int64 {
	return c.partSizeBytes
}
