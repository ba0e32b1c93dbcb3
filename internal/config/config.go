package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	Port        string
	MetricsPort string
	APIKey      string

	// ClientSecretSalt keys the client secret derivation. Rotating it
	// invalidates every outstanding secret.
	ClientSecretSalt string

	Application string

	DB     DBConfig
	Ledger LedgerConfig
	Stripe StripeConfig
}

// DBConfig holds the PostgreSQL connection settings.
type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// ConnString builds the lib/pq connection string.
func (c DBConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// LedgerConfig holds the chain connection and vault settings.
type LedgerConfig struct {
	RPCURL          string
	VaultAddress    string
	OwnerPrivateKey string
	ChainID         int64
	TokenDecimals   int32
}

// StripeConfig holds the payment processor webhook settings.
type StripeConfig struct {
	WebhookSecret string
}

// Load reads configuration from the environment. A .env file is applied
// first when present, matching local development setups.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		MetricsPort:      getEnv("METRICS_PORT", "9090"),
		APIKey:           os.Getenv("API_KEY"),
		ClientSecretSalt: os.Getenv("CLIENT_SECRET_SALT"),
		Application:      getEnv("APPLICATION", "default"),
		DB: DBConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "textpay"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: int(getEnvInt64("DB_MAX_OPEN_CONNS", 25)),
			MaxIdleConns: int(getEnvInt64("DB_MAX_IDLE_CONNS", 5)),
		},
		Ledger: LedgerConfig{
			RPCURL:          getEnv("LEDGER_RPC_URL", "http://localhost:8545"),
			VaultAddress:    os.Getenv("LEDGER_VAULT_ADDRESS"),
			OwnerPrivateKey: os.Getenv("LEDGER_OWNER_PRIVATE_KEY"),
			ChainID:         getEnvInt64("LEDGER_CHAIN_ID", 1),
			TokenDecimals:   int32(getEnvInt64("LEDGER_TOKEN_DECIMALS", 6)),
		},
		Stripe: StripeConfig{
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API_KEY is required")
	}
	if cfg.ClientSecretSalt == "" {
		return nil, fmt.Errorf("CLIENT_SECRET_SALT is required")
	}
	if cfg.Ledger.VaultAddress == "" {
		return nil, fmt.Errorf("LEDGER_VAULT_ADDRESS is required")
	}
	if cfg.Ledger.OwnerPrivateKey == "" {
		return nil, fmt.Errorf("LEDGER_OWNER_PRIVATE_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
