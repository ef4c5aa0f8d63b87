// Package config provides Viper-based configuration for previewgen.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "PREVIEWGEN"

// Config is the complete previewgen configuration.
type Config struct {
	Policy     PolicyConfig     `mapstructure:"policy"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Provenance ProvenanceConfig `mapstructure:"provenance"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type PolicyConfig struct {
	MaxInputPixels  int           `mapstructure:"max_input_pixels"`
	MaxPreviewWidth int           `mapstructure:"max_preview_width"`
	WatermarkText   string        `mapstructure:"watermark_text"`
	Quality         int           `mapstructure:"quality"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type BatchConfig struct {
	Workers    int           `mapstructure:"workers"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// CatalogConfig points at the SQLite catalog. An empty path disables it.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type ProvenanceConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the listen address of /metrics. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads .env files, the config file and PREVIEWGEN_* environment
// variables, in increasing order of precedence over the defaults.
func Load(cfgFile string) (*Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".previewgen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/previewgen")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("policy.max_input_pixels", 50_000_000)
	v.SetDefault("policy.max_preview_width", 600)
	v.SetDefault("policy.watermark_text", "lumastock")
	v.SetDefault("policy.quality", 75)
	v.SetDefault("policy.timeout", 30*time.Second)

	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.job_timeout", time.Minute)

	v.SetDefault("storage.dir", "previews-out")
	v.SetDefault("catalog.path", "")
	v.SetDefault("provenance.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.addr", "")
}

func validate(cfg *Config) error {
	if cfg.Policy.MaxInputPixels < 1 {
		return fmt.Errorf("policy.max_input_pixels must be positive: %d", cfg.Policy.MaxInputPixels)
	}
	if cfg.Policy.MaxPreviewWidth < 1 {
		return fmt.Errorf("policy.max_preview_width must be positive: %d", cfg.Policy.MaxPreviewWidth)
	}
	if cfg.Policy.Quality < 1 || cfg.Policy.Quality > 100 {
		return fmt.Errorf("policy.quality must be in 1..100: %d", cfg.Policy.Quality)
	}
	if cfg.Policy.Timeout <= 0 {
		return fmt.Errorf("policy.timeout must be positive: %s", cfg.Policy.Timeout)
	}
	if cfg.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be positive: %d", cfg.Batch.Workers)
	}
	if strings.TrimSpace(cfg.Storage.Dir) == "" {
		return errors.New("storage.dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be console or json)", cfg.Logging.Format)
	}
	return nil
}
