// Package config loads service settings from an optional config.yaml, a
// .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Spotify SpotifyConfig `mapstructure:"spotify"`
	Storage StorageConfig `mapstructure:"storage"`
	Dataset DatasetConfig `mapstructure:"dataset"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type SpotifyConfig struct {
	ClientID           string        `mapstructure:"client_id"`
	ClientSecret       string        `mapstructure:"client_secret"`
	TokenURL           string        `mapstructure:"token_url"`
	BaseURL            string        `mapstructure:"base_url"`
	ProbePlaylistID    string        `mapstructure:"probe_playlist_id"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBackoffMs     int           `mapstructure:"retry_backoff_ms"`
	RetryMaxBackoff    time.Duration `mapstructure:"retry_max_backoff"`
	RateLimit          float64       `mapstructure:"rate_limit"`
	RateBurst          int           `mapstructure:"rate_burst"`
	FeatureBatchSize   int           `mapstructure:"feature_batch_size"`
	FeatureConcurrency int           `mapstructure:"feature_concurrency"`
}

// RetryBackoff returns the base backoff as a duration.
func (s SpotifyConfig) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffMs) * time.Millisecond
}

type StorageConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type DatasetConfig struct {
	TargetSize          int `mapstructure:"target_size"`
	MainSeeds           int `mapstructure:"main_seeds"`
	AdditionalSeeds     int `mapstructure:"additional_seeds"`
	RecommendationCount int `mapstructure:"recommendation_count"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. configPath may be empty, in which case
// config.yaml is looked up in ./config and the working directory; a
// missing file is not an error.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// spotify.client_id <- SPOTIFY_CLIENT_ID
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_secret", "")
	v.SetDefault("spotify.token_url", "https://accounts.spotify.com/api/token")
	v.SetDefault("spotify.base_url", "https://api.spotify.com/v1")
	v.SetDefault("spotify.probe_playlist_id", "37i9dQZF1DXcBWIGoYBM5M")
	v.SetDefault("spotify.timeout", 15*time.Second)
	v.SetDefault("spotify.max_retries", 3)
	v.SetDefault("spotify.retry_backoff_ms", 500)
	v.SetDefault("spotify.retry_max_backoff", 30*time.Second)
	v.SetDefault("spotify.rate_limit", 8.0)
	v.SetDefault("spotify.rate_burst", 4)
	v.SetDefault("spotify.feature_batch_size", 100)
	v.SetDefault("spotify.feature_concurrency", 1)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "seedset.db")

	v.SetDefault("dataset.target_size", 200)
	v.SetDefault("dataset.main_seeds", 3)
	v.SetDefault("dataset.additional_seeds", 2)
	v.SetDefault("dataset.recommendation_count", 50)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate fails on missing credentials or out-of-range limits.
func (c *Config) Validate() error {
	var errs []error
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		errs = append(errs, errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required"))
	}
	if c.Spotify.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("spotify.max_retries %d must be at least 1", c.Spotify.MaxRetries))
	}
	if c.Spotify.RetryBackoffMs < 0 {
		errs = append(errs, fmt.Errorf("spotify.retry_backoff_ms %d must not be negative", c.Spotify.RetryBackoffMs))
	}
	if c.Spotify.FeatureBatchSize < 1 || c.Spotify.FeatureBatchSize > 100 {
		errs = append(errs, fmt.Errorf("spotify.feature_batch_size %d must be 1-100", c.Spotify.FeatureBatchSize))
	}
	if c.Spotify.FeatureConcurrency < 1 {
		errs = append(errs, fmt.Errorf("spotify.feature_concurrency %d must be at least 1", c.Spotify.FeatureConcurrency))
	}
	if c.Dataset.TargetSize < 1 {
		errs = append(errs, fmt.Errorf("dataset.target_size %d must be positive", c.Dataset.TargetSize))
	}
	if c.Dataset.RecommendationCount < 1 || c.Dataset.RecommendationCount > 50 {
		errs = append(errs, fmt.Errorf("dataset.recommendation_count %d must be 1-50", c.Dataset.RecommendationCount))
	}
	if c.Dataset.MainSeeds < 1 || c.Dataset.AdditionalSeeds < 0 || c.Dataset.MainSeeds+c.Dataset.AdditionalSeeds > 5 {
		errs = append(errs, fmt.Errorf("dataset seeds %d+%d must be at least 1 main and at most 5 total", c.Dataset.MainSeeds, c.Dataset.AdditionalSeeds))
	}
	switch c.Storage.Driver {
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}
