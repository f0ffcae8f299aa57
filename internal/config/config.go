package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	App      AppConfig
	Engine   EngineConfig
	Tax      TaxConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

// EngineConfig tunes the payroll run: worker pool size and how long
// each employee calculation gets before its transaction is aborted.
type EngineConfig struct {
	Workers         int
	EmployeeTimeout time.Duration
	ConflictRetries int
	PaidLeave       bool
	PaidHolidays    bool
}

// TaxConfig carries the progressive income-tax bracket table. Brackets are
// supplied via TAX_BRACKETS as "floor-ceiling:rate" segments separated by
// commas; an empty ceiling means the bracket is open-ended, e.g.
// "0-4300000:0,4300000-6700000:0.19,6700000-:0.28".
type TaxConfig struct {
	Brackets []TaxBracketConfig
}

type TaxBracketConfig struct {
	Floor   string
	Ceiling string // empty = no upper bound
	Rate    string
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "payroll-engine"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// Engine configuration
	workers, err := strconv.Atoi(getEnv("PAYROLL_WORKERS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_WORKERS: %w", err)
	}

	employeeTimeout, err := time.ParseDuration(getEnv("PAYROLL_EMPLOYEE_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_EMPLOYEE_TIMEOUT: %w", err)
	}

	conflictRetries, err := strconv.Atoi(getEnv("PAYROLL_CONFLICT_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_CONFLICT_RETRIES: %w", err)
	}

	config.Engine = EngineConfig{
		Workers:         workers,
		EmployeeTimeout: employeeTimeout,
		ConflictRetries: conflictRetries,
		PaidLeave:       getEnv("PAYROLL_PAID_LEAVE", "true") == "true",
		PaidHolidays:    getEnv("PAYROLL_PAID_HOLIDAYS", "true") == "true",
	}

	// Tax bracket table
	brackets, err := parseTaxBrackets(getEnv("TAX_BRACKETS", defaultTaxBrackets))
	if err != nil {
		return nil, fmt.Errorf("invalid TAX_BRACKETS: %w", err)
	}
	config.Tax = TaxConfig{Brackets: brackets}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Colombian monthly withholding brackets, the seed-data default.
const defaultTaxBrackets = "0-4300000:0,4300000-6700000:0.19,6700000-10800000:0.28,10800000-:0.33"

func parseTaxBrackets(raw string) ([]TaxBracketConfig, error) {
	var brackets []TaxBracketConfig
	for _, segment := range strings.Split(raw, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		bounds, rate, ok := strings.Cut(segment, ":")
		if !ok {
			return nil, fmt.Errorf("bracket %q missing rate", segment)
		}
		floor, ceiling, ok := strings.Cut(bounds, "-")
		if !ok {
			return nil, fmt.Errorf("bracket %q missing bounds", segment)
		}
		brackets = append(brackets, TaxBracketConfig{
			Floor:   strings.TrimSpace(floor),
			Ceiling: strings.TrimSpace(ceiling),
			Rate:    strings.TrimSpace(rate),
		})
	}
	if len(brackets) == 0 {
		return nil, fmt.Errorf("no brackets defined")
	}
	return brackets, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("DB_MAX_CONNS must be at least DB_MIN_CONNS")
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("PAYROLL_WORKERS must be at least 1")
	}
	if c.Engine.EmployeeTimeout <= 0 {
		return fmt.Errorf("PAYROLL_EMPLOYEE_TIMEOUT must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
