package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Auth       AuthConfig       `yaml:"auth"`
	Uploads    UploadsConfig    `yaml:"uploads"`
	MPesa      MPesaConfig      `yaml:"mpesa"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	HTTP         APIHTTPConfig      `yaml:"http"`
	GRPC         APIGRPCConfig      `yaml:"grpc"`
	CORS         APICORSConfig      `yaml:"cors"`
	RateLimit    APIRateLimitConfig `yaml:"rate_limit"`
	MaxBodyBytes int64              `yaml:"max_body_bytes"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

// APIGRPCConfig controls the gRPC health endpoint. Port 0 disables it.
type APIGRPCConfig struct {
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APICORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type UploadsConfig struct {
	Dir string `yaml:"dir"`
}

// MPesaConfig holds Daraja credentials and endpoints.
type MPesaConfig struct {
	BaseURL         string        `yaml:"base_url"`
	ConsumerKey     string        `yaml:"consumer_key"`
	ConsumerSecret  string        `yaml:"consumer_secret"`
	ShortCode       string        `yaml:"short_code"`
	PassKey         string        `yaml:"pass_key"`
	CallbackURL     string        `yaml:"callback_url"`
	TransactionType string        `yaml:"transaction_type"`
	Timeout         time.Duration `yaml:"timeout"`
	TokenRetry      RetryConfig   `yaml:"token_retry"`
}

type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

const (
	DefaultMPesaBaseURL     = "https://sandbox.safaricom.co.ke"
	DefaultTransactionType  = "CustomerPayBillOnline"
	DefaultCORSOrigin       = "http://localhost:3000"
	DefaultMaxBodyBytes     = 16 * 1024 * 1024
	DefaultMPesaTimeout     = 15 * time.Second
	DefaultTokenTTL         = 24 * time.Hour
	DefaultUploadsDir       = "uploads"
	DefaultHTTPPort         = 8080
	DefaultPrometheusPort   = 9090
	DefaultRateLimitBurst   = 5
	DefaultTokenMaxRetries  = 2
	DefaultTokenRetryDelay  = 200 * time.Millisecond
	DefaultTokenRetryFactor = 2
)

// Load reads the YAML config at configPath. A .env file next to the
// process is loaded first when present so ${VAR} references resolve.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth jwt_secret is required")
	}

	var missing []string
	if c.MPesa.ConsumerKey == "" {
		missing = append(missing, "consumer_key")
	}
	if c.MPesa.ConsumerSecret == "" {
		missing = append(missing, "consumer_secret")
	}
	if c.MPesa.ShortCode == "" {
		missing = append(missing, "short_code")
	}
	if c.MPesa.PassKey == "" {
		missing = append(missing, "pass_key")
	}
	if c.MPesa.CallbackURL == "" {
		missing = append(missing, "callback_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("mpesa settings missing: %s", strings.Join(missing, ", "))
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = DefaultHTTPPort
	}
	if c.API.MaxBodyBytes <= 0 {
		c.API.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(c.API.CORS.AllowedOrigins) == 0 {
		c.API.CORS.AllowedOrigins = []string{DefaultCORSOrigin}
	}
	if c.API.RateLimit.RPS > 0 && c.API.RateLimit.Burst <= 0 {
		c.API.RateLimit.Burst = DefaultRateLimitBurst
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = DefaultPrometheusPort
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = DefaultUploadsDir
	}

	c.MPesa.BaseURL = strings.TrimRight(c.MPesa.BaseURL, "/")
	if c.MPesa.BaseURL == "" {
		c.MPesa.BaseURL = DefaultMPesaBaseURL
	}
	if c.MPesa.TransactionType == "" {
		c.MPesa.TransactionType = DefaultTransactionType
	}
	if c.MPesa.Timeout <= 0 {
		c.MPesa.Timeout = DefaultMPesaTimeout
	}
	if c.MPesa.TokenRetry.MaxRetries == 0 {
		c.MPesa.TokenRetry.MaxRetries = DefaultTokenMaxRetries
	}
	if c.MPesa.TokenRetry.InitialDelay == 0 {
		c.MPesa.TokenRetry.InitialDelay = DefaultTokenRetryDelay
	}
	if c.MPesa.TokenRetry.BackoffFactor == 0 {
		c.MPesa.TokenRetry.BackoffFactor = DefaultTokenRetryFactor
	}
}
