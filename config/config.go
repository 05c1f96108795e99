package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration. It is constructed once in main
// and passed by reference into every component constructor; no package in this
// codebase reads configuration from ambient globals.
type Config struct {
	DatabaseURL string
	Port        string
	GoEnv       string
	LogLevel    string

	JWTSecret   string
	JWTTokenTTL time.Duration

	// Blockchain settings
	ChainURL                string
	ChainID                 int64
	ChainCallTimeout        time.Duration
	ChainReceiptTimeout     time.Duration
	ContractBinPath         string
	OwnerKeystorePath       string
	OwnerKeystorePassphrase string

	// Owner account sustaining funds. An empty FaucetPrivateKey disables
	// auto-funding; production deployments must leave it unset.
	FaucetPrivateKey string
	FundingFloorWei  string
}

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// If environment-specific file doesn't exist, try .env
		if err := godotenv.Load(); err != nil {
			// In production, environment variables are set directly
			// so it's okay if .env files don't exist
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	config := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		GoEnv:       getEnv("GO_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		JWTSecret:   getEnv("JWT_SECRET_KEY", "JWT_SECRET_DEV_KEY"),
		JWTTokenTTL: getEnvDuration("JWT_TOKEN_TTL", time.Hour),

		ChainURL:                getEnv("BLOCKCHAIN_URL", "http://127.0.0.1:8545"),
		ChainID:                 getEnvInt64("CHAIN_ID", 1337),
		ChainCallTimeout:        getEnvDuration("CHAIN_CALL_TIMEOUT", 15*time.Second),
		ChainReceiptTimeout:     getEnvDuration("CHAIN_RECEIPT_TIMEOUT", 60*time.Second),
		ContractBinPath:         getEnv("CONTRACT_BIN_PATH", "./blockchain/OrderPayment.bin"),
		OwnerKeystorePath:       getEnv("OWNER_KEYSTORE_PATH", "./keystore/owner.json"),
		OwnerKeystorePassphrase: getEnv("OWNER_KEYSTORE_PASSPHRASE", ""),

		FaucetPrivateKey: getEnv("CHAIN_FAUCET_PRIVATE_KEY", ""),
		FundingFloorWei:  getEnv("OWNER_FUNDING_FLOOR_WEI", "1000000000000000000"),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.ChainURL == "" {
		return fmt.Errorf("BLOCKCHAIN_URL is required")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// AutoFundEnabled reports whether the owner account should be topped up from
// the configured faucet key when its balance drops below the funding floor.
func (c *Config) AutoFundEnabled() bool {
	return c.FaucetPrivateKey != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64 retrieves an integer environment variable or returns a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvDuration retrieves a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
