package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	App       AppConfig
	Oracle    OracleConfig
	Redis     RedisConfig
	Generator GeneratorConfig
	Jobs      JobsConfig
	Log       LogConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver     string // postgres or sqlite
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port        string
	FrontendURL string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	CronSecret       string
	JWTSecret        string
	InitialBalance   int64
	SweepConcurrency int
}

// OracleConfig holds price oracle settings
type OracleConfig struct {
	BaseURL    string
	Timeout    time.Duration
	VsCurrency string
}

// RedisConfig enables cross-process payout locks when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GeneratorConfig points at the external market content service
type GeneratorConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// JobsConfig holds in-process schedule intervals. Zero disables a job.
type JobsConfig struct {
	SweepInterval     time.Duration
	ReconcileInterval time.Duration
	GenerateInterval  time.Duration
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
	File  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var errs []error
	config := &Config{
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", ""),
			DBName:     getEnv("DB_NAME", "wendao_market"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "wendao.db"),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", ""),
		},
		App: AppConfig{
			CronSecret:       getEnv("CRON_SECRET", ""),
			JWTSecret:        getEnv("JWT_SECRET", ""),
			InitialBalance:   getInt64(&errs, "INITIAL_BALANCE", 1000),
			SweepConcurrency: int(getInt64(&errs, "SWEEP_CONCURRENCY", 4)),
		},
		Oracle: OracleConfig{
			BaseURL:    getEnv("ORACLE_BASE_URL", "https://api.coingecko.com/api/v3"),
			Timeout:    getDuration(&errs, "ORACLE_TIMEOUT", 10*time.Second),
			VsCurrency: getEnv("ORACLE_VS_CURRENCY", "usd"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       int(getInt64(&errs, "REDIS_DB", 0)),
		},
		Generator: GeneratorConfig{
			URL:     getEnv("GENERATOR_URL", ""),
			APIKey:  getEnv("GENERATOR_API_KEY", ""),
			Timeout: getDuration(&errs, "GENERATOR_TIMEOUT", 60*time.Second),
		},
		Jobs: JobsConfig{
			SweepInterval:     getDuration(&errs, "SWEEP_INTERVAL", 0),
			ReconcileInterval: getDuration(&errs, "RECONCILE_INTERVAL", 0),
			GenerateInterval:  getDuration(&errs, "GENERATE_INTERVAL", 0),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks required fields
func (c *Config) Validate() error {
	if c.App.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}
	if c.App.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.App.InitialBalance < 0 {
		return fmt.Errorf("INITIAL_BALANCE must not be negative")
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt64(errs *[]error, key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func getDuration(errs *[]error, key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}
