package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	setCredentials(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Spotify.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Spotify.RetryBackoff())
	assert.Equal(t, 15*time.Second, cfg.Spotify.Timeout)
	assert.Equal(t, 100, cfg.Spotify.FeatureBatchSize)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 200, cfg.Dataset.TargetSize)
	assert.Equal(t, 3, cfg.Dataset.MainSeeds)
	assert.Equal(t, 2, cfg.Dataset.AdditionalSeeds)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setCredentials(t)
	t.Setenv("SPOTIFY_MAX_RETRIES", "5")
	t.Setenv("SPOTIFY_RETRY_BACKOFF_MS", "50")
	t.Setenv("SPOTIFY_TIMEOUT", "2s")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "id", cfg.Spotify.ClientID)
	assert.Equal(t, 5, cfg.Spotify.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Spotify.RetryBackoff())
	assert.Equal(t, 2*time.Second, cfg.Spotify.Timeout)
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	setCredentials(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataset:\n  target_size: 120\n  additional_seeds: 0\nlog:\n  format: console\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Dataset.TargetSize)
	assert.Equal(t, 0, cfg.Dataset.AdditionalSeeds)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	// t.Setenv registers cleanup for variables godotenv will set.
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	require.NoError(t, os.Unsetenv("SPOTIFY_CLIENT_ID"))
	require.NoError(t, os.Unsetenv("SPOTIFY_CLIENT_SECRET"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SPOTIFY_CLIENT_ID=from-dotenv\nSPOTIFY_CLIENT_SECRET=s\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Spotify.ClientID)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Spotify: SpotifyConfig{ClientID: "id", ClientSecret: "s", MaxRetries: 3, FeatureBatchSize: 100, FeatureConcurrency: 1},
			Storage: StorageConfig{Driver: "sqlite"},
			Dataset: DatasetConfig{TargetSize: 200, MainSeeds: 3, AdditionalSeeds: 2, RecommendationCount: 50},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.Spotify.ClientSecret = "" }, wantErr: true},
		{name: "batch too large", mutate: func(c *Config) { c.Spotify.FeatureBatchSize = 101 }, wantErr: true},
		{name: "too many seeds", mutate: func(c *Config) { c.Dataset.MainSeeds = 4 }, wantErr: true},
		{name: "no main seeds", mutate: func(c *Config) { c.Dataset.MainSeeds = 0 }, wantErr: true},
		{name: "recommendations above limit", mutate: func(c *Config) { c.Dataset.RecommendationCount = 51 }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, wantErr: true},
		{name: "zero retries", mutate: func(c *Config) { c.Spotify.MaxRetries = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
