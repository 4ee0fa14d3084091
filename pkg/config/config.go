// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads server configuration from file and environment.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/quarrylabs/quarry/pkg/s3api/s3consts"
)

// Config is the full server configuration. Every field can be overridden
// through QUARRY_* environment variables.
type Config struct {
	// ListenAddr is the S3 API listen address.
	ListenAddr string `mapstructure:"listen_addr"`
	// MetricsAddr serves prometheus scrapes; empty disables it.
	MetricsAddr string `mapstructure:"metrics_addr"`
	// DataDir roots the registry, per-bucket stores and blob directories.
	DataDir string `mapstructure:"data_dir"`
	// TempDir stages upload bodies; empty uses the system default.
	TempDir string `mapstructure:"temp_dir"`
	Region  string `mapstructure:"region"`

	LogLevel string `mapstructure:"log_level"`

	// Root identity bootstrapped at startup when all three are set.
	RootUserEmail string `mapstructure:"root_user_email"`
	RootAccessKey string `mapstructure:"root_access_key"`
	RootSecretKey string `mapstructure:"root_secret_key"`

	// AdminKey gates the admin surface. The admin API itself lives in an
	// external collaborator; the key is threaded through for it.
	AdminKey string `mapstructure:"admin_key"`
}

// Load reads configuration from the given file (optional) plus QUARRY_*
// environment variables, applying defaults for anything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":8333")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("region", s3consts.DefaultRegion)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("QUARRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("quarry")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/quarry")
		if err := v.ReadInConfig(); err != nil {
			// Running on defaults plus env is fine.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
