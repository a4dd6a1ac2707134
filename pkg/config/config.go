// pkg/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	// Storage
	InvoicesDir string `yaml:"invoices_dir"`
	Currency    string `yaml:"currency"`

	// Server
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	// Optional Postgres ledger
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	// Optional S3 mirror
	S3 struct {
		Region string `yaml:"region"`
		Bucket string `yaml:"bucket"`
		Prefix string `yaml:"prefix"`
	} `yaml:"s3"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// Default returns the built-in settings.
func Default() *Config {
	cfg := &Config{
		InvoicesDir: "invoices",
		Currency:    "RM",
	}
	cfg.HTTP.Addr = "127.0.0.1:8080"
	cfg.S3.Region = "us-east-1"
	cfg.Log.Level = "info"
	return cfg
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables. A .env file in
// the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	getEnv := func(key string, target *string) {
		if value, exists := os.LookupEnv(key); exists && value != "" {
			*target = value
		}
	}
	getEnv("INVOICES_DIR", &cfg.InvoicesDir)
	getEnv("CURRENCY_SYMBOL", &cfg.Currency)
	getEnv("HTTP_ADDR", &cfg.HTTP.Addr)
	getEnv("DATABASE_URL", &cfg.Postgres.DSN)
	getEnv("AWS_REGION", &cfg.S3.Region)
	getEnv("S3_BUCKET", &cfg.S3.Bucket)
	getEnv("S3_PREFIX", &cfg.S3.Prefix)
	getEnv("LOG_LEVEL", &cfg.Log.Level)
	if v, ok := os.LookupEnv("LOG_DEVELOPMENT"); ok {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid LOG_DEVELOPMENT: %w", err)
		}
		cfg.Log.Development = dev
	}

	if cfg.InvoicesDir == "" {
		return nil, fmt.Errorf("config: invoices_dir must not be empty")
	}
	return cfg, nil
}

// Logger builds the zap logger described by the log section.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
