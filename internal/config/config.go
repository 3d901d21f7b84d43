package config

import (
	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/validation"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	Network   string `env:"NETWORK_NAME" envDefault:"onefinity-testnet"`

	API      APIConfig
	HTTP     HTTPConfig
	Sync     SyncConfig
	Display  DisplayConfig
	Wallet   WalletConfig
	Server   ServerConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
}

// APIConfig describes the upstream REST API
type APIConfig struct {
	BaseURL    string        `env:"API_BASE_URL" envDefault:"https://testnet-api.onefinity.network"`
	ApiKey     string        `env:"API_KEY"`
	RateLimit  float64       `env:"API_RATE_LIMIT" envDefault:"10"`
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"1"`
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"5s"`
}

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	Timeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
}

// SyncConfig bounds the bulk sync and refresh cadence
type SyncConfig struct {
	PageSize        int           `env:"SYNC_PAGE_SIZE" envDefault:"50"`
	MaxPages        int           `env:"SYNC_MAX_PAGES" envDefault:"20"`
	DisplayPageSize int           `env:"DISPLAY_PAGE_SIZE" envDefault:"10"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"30s"`
}

type DisplayConfig struct {
	TimeZone        string `env:"DISPLAY_TIMEZONE" envDefault:"UTC"`
	ExplorerBaseURL string `env:"EXPLORER_BASE_URL" envDefault:"https://testnet-explorer.onefinity.network"`
}

type WalletConfig struct {
	// Address is connected at startup when set.
	Address string   `env:"WALLET_ADDRESS"`
	HRPs    []string `env:"WALLET_ADDRESS_HRPS" envDefault:"one,erd" envSeparator:","`
}

type ServerConfig struct {
	Addr           string   `env:"SERVER_ADDR" envDefault:":8080"`
	AllowedOrigins []string `env:"SERVER_ALLOWED_ORIGINS" envSeparator:","`
}

// KafkaConfig holds Kafka configuration. Publishing is disabled when BrokerAddress is empty.
type KafkaConfig struct {
	BrokerAddress string `env:"KAFKA_BROKER_ADDRESS"`
	Topic         string `env:"KAFKA_TOPIC" envDefault:"explorer-transactions"`
}

// DatabaseConfig holds the archive database configuration. The archive is disabled when Host is empty.
type DatabaseConfig struct {
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	DBName   string `env:"DB_NAME" envDefault:"blockchain_explorer"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// A missing .env is fine, variables may be set externally.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	if err := validation.ValidateURL(c.API.BaseURL); err != nil {
		return fmt.Errorf("API_BASE_URL: %w", err)
	}
	if c.Display.ExplorerBaseURL != "" {
		if err := validation.ValidateURL(c.Display.ExplorerBaseURL); err != nil {
			return fmt.Errorf("EXPLORER_BASE_URL: %w", err)
		}
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be positive, got %d", c.Sync.PageSize)
	}
	if c.Sync.MaxPages <= 0 {
		return fmt.Errorf("SYNC_MAX_PAGES must be positive, got %d", c.Sync.MaxPages)
	}
	if c.Sync.DisplayPageSize <= 0 {
		return fmt.Errorf("DISPLAY_PAGE_SIZE must be positive, got %d", c.Sync.DisplayPageSize)
	}
	if c.Sync.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", c.Sync.RefreshInterval)
	}
	if c.API.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.API.MaxRetries)
	}
	if _, err := c.Display.Location(); err != nil {
		return fmt.Errorf("DISPLAY_TIMEZONE: %w", err)
	}
	return nil
}

func (c *Config) NetworkName() models.NetworkName {
	return models.NetworkName(c.Network)
}

// Location resolves the time zone used for displayed timestamps
func (d DisplayConfig) Location() (*time.Location, error) {
	if d.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(d.TimeZone)
}

func (k KafkaConfig) Enabled() bool {
	return k.BrokerAddress != ""
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}
