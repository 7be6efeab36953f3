package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Isolation levels accepted by TX_ISOLATION.
const (
	IsolationSerializable  = "serializable"
	IsolationReadCommitted = "read_committed"
)

// Config holds application configuration
type Config struct {
	// Server
	Env  string
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// TxIsolation is the isolation level of every mutation transaction.
	// Balance rows are locked and rollups are incremented atomically at any
	// level; serializable additionally turns write skew into a retryable
	// conflict.
	TxIsolation string

	// ReconcileWorkers bounds how many accounts a drift scan checks at once.
	ReconcileWorkers int
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "tallybook"),
		DBPassword: getEnv("DB_PASSWORD", "tallybook"),
		DBName:     getEnv("DB_NAME", "tallybook"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		TxIsolation: strings.ToLower(getEnv("TX_ISOLATION", IsolationSerializable)),
	}

	switch config.TxIsolation {
	case IsolationSerializable, IsolationReadCommitted:
	default:
		log.Printf("Warning: invalid TX_ISOLATION value '%s', falling back to %s\n", config.TxIsolation, IsolationSerializable)
		config.TxIsolation = IsolationSerializable
	}

	workers, err := strconv.Atoi(getEnv("RECONCILE_WORKERS", "4"))
	if err != nil || workers < 1 {
		log.Printf("Warning: invalid RECONCILE_WORKERS value, falling back to 4\n")
		workers = 4
	}
	config.ReconcileWorkers = workers

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
