package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the engine configuration, loaded from environment variables
// with sane defaults. Rule tables are not configuration: they live in the
// rules file named here and are validated at load time.
type Config struct {
	Port string `json:"port"`

	DatabasePath string `json:"database_path"`
	RulesPath    string `json:"rules_path"`

	// Classification.
	DefaultDomain string   `json:"default_domain"`
	TrustOrder    []string `json:"trust_order"`

	// Reindex batch settings.
	ReindexPageSize  int     `json:"reindex_page_size"`
	ReindexWorkers   int     `json:"reindex_workers"`
	ReindexWriteRate float64 `json:"reindex_write_rate"`

	// Connection pooling.
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	QueryTimeout    time.Duration `json:"query_timeout"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("SERVER_PORT", "9980"),
		DatabasePath:     getEnv("CATALOG_DB_PATH", "catalog.db"),
		RulesPath:        getEnv("RULES_PATH", "rules.yaml"),
		DefaultDomain:    getEnv("DEFAULT_DOMAIN", "panneaux"),
		TrustOrder:       splitList(getEnv("TRUST_ORDER", "")),
		ReindexPageSize:  getEnvInt("REINDEX_PAGE_SIZE", 1000),
		ReindexWorkers:   getEnvInt("REINDEX_WORKERS", 4),
		ReindexWriteRate: getEnvFloat("REINDEX_WRITE_RATE", 0),
		MaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		QueryTimeout:     getEnvDuration("DB_QUERY_TIMEOUT", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on configuration that cannot work.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.RulesPath == "" {
		return fmt.Errorf("rules path is required")
	}
	if c.DefaultDomain == "" {
		return fmt.Errorf("default classification domain is required")
	}
	if c.ReindexPageSize <= 0 {
		return fmt.Errorf("reindex page size must be positive, got %d", c.ReindexPageSize)
	}
	if c.ReindexWorkers <= 0 || c.ReindexWorkers > 64 {
		return fmt.Errorf("reindex workers must be in 1..64, got %d", c.ReindexWorkers)
	}
	if c.ReindexWriteRate < 0 {
		return fmt.Errorf("reindex write rate cannot be negative")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[Config] Invalid %s=%q, using default %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("[Config] Invalid %s=%q, using default %g", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("[Config] Invalid %s=%q, using default %s", key, value, fallback)
		return fallback
	}
	return parsed
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
