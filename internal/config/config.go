package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bank-reconciliation-backend/internal/normalize"
	"bank-reconciliation-backend/internal/services/matching"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Matching matching.Config
	Import   ImportConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr              string
	CORSOrigins       []string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type ImportConfig struct {
	DateFormats   []string
	ProgressEvery int
	MaxFileBytes  int64
	Workers       int
	QueueSize     int
	Timeout       time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. Call godotenv.Load first to
// pick up a .env file.
func Load() *Config {
	defaults := matching.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:              ":" + strings.TrimPrefix(getEnv("PORT", "8080"), ":"),
			CORSOrigins:       getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 10*time.Second),
			ShutdownTimeout:   getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			DSN:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Matching: matching.Config{
			AmountToleranceAbs: getEnvAsDecimal("MATCH_AMOUNT_TOLERANCE_ABS", defaults.AmountToleranceAbs),
			AmountTolerancePct: getEnvAsFloat("MATCH_AMOUNT_TOLERANCE_PCT", defaults.AmountTolerancePct),
			AmountDiffCap:      getEnvAsDecimal("MATCH_AMOUNT_DIFF_CAP", defaults.AmountDiffCap),
			DayWindow:          getEnvAsInt("MATCH_DAY_WINDOW", defaults.DayWindow),
			CandidateCap:       getEnvAsInt("MATCH_CANDIDATE_CAP", defaults.CandidateCap),
			Threshold:          getEnvAsInt("MATCH_THRESHOLD", defaults.Threshold),
			Weights: matching.Weights{
				Amount: getEnvAsFloat("MATCH_WEIGHT_AMOUNT", defaults.Weights.Amount),
				Date:   getEnvAsFloat("MATCH_WEIGHT_DATE", defaults.Weights.Date),
				Text:   getEnvAsFloat("MATCH_WEIGHT_TEXT", defaults.Weights.Text),
			},
			NoiseTokens: getEnvAsList("MATCH_NOISE_TOKENS", defaults.NoiseTokens),
		},
		Import: ImportConfig{
			DateFormats:   getEnvAsList("IMPORT_DATE_FORMATS", normalize.DefaultDateFormats),
			ProgressEvery: getEnvAsInt("IMPORT_PROGRESS_EVERY", 100),
			MaxFileBytes:  int64(getEnvAsInt("IMPORT_MAX_FILE_BYTES", 20<<20)),
			Workers:       getEnvAsInt("IMPORT_WORKERS", 4),
			QueueSize:     getEnvAsInt("IMPORT_QUEUE_SIZE", 256),
			Timeout:       getEnvAsDuration("IMPORT_TIMEOUT", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	m := c.Matching
	if m.Weights.Amount < 0 || m.Weights.Date < 0 || m.Weights.Text < 0 {
		return fmt.Errorf("match weights must not be negative")
	}
	if m.Weights.Amount+m.Weights.Date+m.Weights.Text == 0 {
		return fmt.Errorf("at least one match weight must be positive")
	}
	if m.Threshold < 0 || m.Threshold > 100 {
		return fmt.Errorf("MATCH_THRESHOLD must be within 0..100")
	}
	if m.DayWindow < 0 || m.CandidateCap < 0 || m.AmountTolerancePct < 0 || m.AmountToleranceAbs.IsNegative() {
		return fmt.Errorf("match windows must not be negative")
	}
	if c.Import.ProgressEvery <= 0 {
		return fmt.Errorf("IMPORT_PROGRESS_EVERY must be positive")
	}
	if len(c.Import.DateFormats) == 0 {
		return fmt.Errorf("IMPORT_DATE_FORMATS must list at least one layout")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
