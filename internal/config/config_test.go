package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: "data/spacebook.db"},
		Auth:     AuthConfig{JWTSecret: "secret"},
		MPesa: MPesaConfig{
			ConsumerKey:    "key",
			ConsumerSecret: "secret",
			ShortCode:      "174379",
			PassKey:        "passkey",
			CallbackURL:    "https://example.com/mpesa-callback",
		},
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("SPACEBOOK_TEST_SECRET", "from-env")

	yamlContent := `
app:
  name: spacebook
database:
  path: "test.db"
auth:
  jwt_secret: "${SPACEBOOK_TEST_SECRET}"
mpesa:
  base_url: "https://sandbox.example.com/"
  consumer_key: "ck"
  consumer_secret: "cs"
  short_code: "174379"
  pass_key: "pk"
  callback_url: "https://example.com/mpesa-callback"
  timeout: 5s
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "https://sandbox.example.com", cfg.MPesa.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.MPesa.Timeout)
	assert.Equal(t, DefaultTransactionType, cfg.MPesa.TransactionType)
	assert.Equal(t, []string{DefaultCORSOrigin}, cfg.API.CORS.AllowedOrigins)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.API.MaxBodyBytes)
	assert.Equal(t, DefaultHTTPPort, cfg.API.HTTP.Port)
	assert.Equal(t, DefaultUploadsDir, cfg.Uploads.Dir)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing db path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "missing jwt secret", mutate: func(c *Config) { c.Auth.JWTSecret = " " }, wantErr: true},
		{name: "missing pass key", mutate: func(c *Config) { c.MPesa.PassKey = "" }, wantErr: true},
		{name: "missing callback", mutate: func(c *Config) { c.MPesa.CallbackURL = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
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

func TestApplyDefaultsRateLimitBurst(t *testing.T) {
	cfg := validConfig()
	cfg.API.RateLimit.RPS = 10
	cfg.applyDefaults()
	assert.Equal(t, DefaultRateLimitBurst, cfg.API.RateLimit.Burst)
	assert.Equal(t, DefaultTokenMaxRetries, cfg.MPesa.TokenRetry.MaxRetries)
}
