package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"txfilter/internal/core"
)

// Backends accepted by DATA_BACKEND.
var validBackends = []string{"memory", "remote", "sheets", "sqlite"}

type Config struct {
	// HTTP Server
	Port string `yaml:"port"`

	// Backend selection
	DataBackend string `yaml:"data_backend"`

	// Memory backend
	DataFile string `yaml:"data_file"`

	// Remote backend
	RemoteDatasetURL string        `yaml:"remote_dataset_url"`
	DatasetCacheTTL  time.Duration `yaml:"dataset_cache_ttl"`

	// Database
	SQLiteDBPath string `yaml:"sqlite_db_path"`

	// AMQP
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Google Sheets
	GoogleSpreadsheetID   string `yaml:"google_spreadsheet_id"`
	GoogleSheetName       string `yaml:"google_sheet_name"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Filter form
	ValidFrom string `yaml:"valid_from"`
	ValidTo   string `yaml:"valid_to"`
	Currency  string `yaml:"currency"`

	// Rate limiting
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	LogLevel string `yaml:"log_level"`
}

// Load reads the configuration from the environment. When CONFIG_FILE names
// a YAML file, its non-zero keys are applied first and environment variables
// that are set still take precedence.
func Load() (*Config, error) {
	base := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := base.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", base.Port),
		DataBackend: getEnv("DATA_BACKEND", base.DataBackend),
		DataFile:    getEnv("DATA_FILE", base.DataFile),

		RemoteDatasetURL: getEnv("REMOTE_DATASET_URL", base.RemoteDatasetURL),
		DatasetCacheTTL:  getEnvDuration("DATASET_CACHE_TTL", base.DatasetCacheTTL),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", base.SQLiteDBPath),

		AMQPURL:      getEnv("AMQP_URL", base.AMQPURL),
		AMQPExchange: getEnv("AMQP_EXCHANGE", base.AMQPExchange),
		AMQPQueue:    getEnv("AMQP_QUEUE", base.AMQPQueue),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", base.GoogleSpreadsheetID),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", base.GoogleSheetName),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", base.GoogleCredentialsFile),

		ValidFrom: getEnv("VALID_FROM", base.ValidFrom),
		ValidTo:   getEnv("VALID_TO", base.ValidTo),
		Currency:  getEnv("CURRENCY", base.Currency),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", base.RateLimitRPS),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", base.RateLimitBurst),

		LogLevel: getEnv("LOG_LEVEL", base.LogLevel),
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:            "8081",
		DataBackend:     "memory",
		DataFile:        "./data/transactions.json",
		DatasetCacheTTL: 5 * time.Minute,
		SQLiteDBPath:    "./data/txfilter.db",
		AMQPExchange:    "txfilter",
		AMQPQueue:       "ingest_transactions",
		ValidFrom:       "2019-05-01",
		ValidTo:         "2019-05-31",
		Currency:        "ISK",
		RateLimitRPS:    10,
		RateLimitBurst:  20,
		LogLevel:        "info",
	}
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.merge(file)
	return nil
}

func (c *Config) merge(o Config) {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&c.Port, o.Port)
	str(&c.DataBackend, o.DataBackend)
	str(&c.DataFile, o.DataFile)
	str(&c.RemoteDatasetURL, o.RemoteDatasetURL)
	str(&c.SQLiteDBPath, o.SQLiteDBPath)
	str(&c.AMQPURL, o.AMQPURL)
	str(&c.AMQPExchange, o.AMQPExchange)
	str(&c.AMQPQueue, o.AMQPQueue)
	str(&c.GoogleSpreadsheetID, o.GoogleSpreadsheetID)
	str(&c.GoogleSheetName, o.GoogleSheetName)
	str(&c.GoogleCredentialsFile, o.GoogleCredentialsFile)
	str(&c.ValidFrom, o.ValidFrom)
	str(&c.ValidTo, o.ValidTo)
	str(&c.Currency, o.Currency)
	str(&c.LogLevel, o.LogLevel)
	if o.DatasetCacheTTL != 0 {
		c.DatasetCacheTTL = o.DatasetCacheTTL
	}
	if o.RateLimitRPS != 0 {
		c.RateLimitRPS = o.RateLimitRPS
	}
	if o.RateLimitBurst != 0 {
		c.RateLimitBurst = o.RateLimitBurst
	}
}

// Window returns the closed range of dates the filter form accepts.
func (c *Config) Window() (core.DateRange, error) {
	from, err := core.ParseDate(c.ValidFrom)
	if err != nil {
		return core.DateRange{}, fmt.Errorf("valid from: %w", err)
	}
	to, err := core.ParseDate(c.ValidTo)
	if err != nil {
		return core.DateRange{}, fmt.Errorf("valid to: %w", err)
	}
	return core.DateRange{From: from, To: to}, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "remote":
		if c.RemoteDatasetURL == "" {
			errors = append(errors, "REMOTE_DATASET_URL is required when using remote backend")
		} else if u, err := url.Parse(c.RemoteDatasetURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid remote dataset URL '%s': must be http or https", c.RemoteDatasetURL))
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if w, err := c.Window(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid date window: %v", err))
	} else if w.To.Before(w.From.Time) {
		errors = append(errors, fmt.Sprintf("invalid date window %s: end before start", w))
	}

	if c.DatasetCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid dataset cache TTL %v: must not be negative", c.DatasetCacheTTL))
	}
	if c.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
