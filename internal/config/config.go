package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"finwise/internal/core"
)

// FileEnv names the environment variable pointing at an optional TOML file.
const FileEnv = "FINWISE_CONFIG"

type Config struct {
	// HTTP Server
	Port string

	// Database
	DataBackend  string
	SQLiteDBPath string
	SeedDir      string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Ledger behaviour
	NegativeBalancePolicy string
	CorrectionCategory    string
	DefaultUserID         string
	MaxImportBytes        int

	// Summary cache
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Google Sheets export mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// fileConfig mirrors the TOML layout. Zero values leave defaults alone.
type fileConfig struct {
	Server struct {
		Port string `toml:"port"`
	} `toml:"server"`
	Storage struct {
		Backend    string `toml:"backend"`
		SQLitePath string `toml:"sqlite_path"`
		SeedDir    string `toml:"seed_dir"`
	} `toml:"storage"`
	AMQP struct {
		URL      string `toml:"url"`
		Exchange string `toml:"exchange"`
		Queue    string `toml:"queue"`
	} `toml:"amqp"`
	Ledger struct {
		NegativeBalancePolicy string `toml:"negative_balance_policy"`
		CorrectionCategory    string `toml:"correction_category"`
		DefaultUserID         string `toml:"default_user_id"`
		MaxImportBytes        int    `toml:"max_import_bytes"`
	} `toml:"ledger"`
	Cache struct {
		Size int    `toml:"size"`
		TTL  string `toml:"ttl"`
	} `toml:"cache"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	Sheets struct {
		SpreadsheetID      string `toml:"spreadsheet_id"`
		SheetName          string `toml:"sheet_name"`
		ServiceAccountFile string `toml:"service_account_file"`
	} `toml:"sheets"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:                  "8081",
		DataBackend:           "memory",
		SQLiteDBPath:          "./data/finwise.db",
		SeedDir:               "./data",
		AMQPExchange:          "finwise",
		AMQPQueue:             "ledger_changed",
		NegativeBalancePolicy: string(core.PolicyWarn),
		CorrectionCategory:    "Balance correction",
		DefaultUserID:         "local",
		MaxImportBytes:        5 << 20,
		SummaryCacheSize:      256,
		SummaryCacheTTL:       5 * time.Minute,
		LogLevel:              "info",
		LogFormat:             "text",
		GoogleSheetName:       "Transactions",
	}
}

// Load layers defaults, the optional TOML file named by FINWISE_CONFIG and
// environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// ApplyFile overlays non-empty values from a TOML file.
func (c *Config) ApplyFile(path string) error {
	var f fileConfig
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	setString(&c.Port, f.Server.Port)
	setString(&c.DataBackend, f.Storage.Backend)
	setString(&c.SQLiteDBPath, f.Storage.SQLitePath)
	setString(&c.SeedDir, f.Storage.SeedDir)
	setString(&c.AMQPURL, f.AMQP.URL)
	setString(&c.AMQPExchange, f.AMQP.Exchange)
	setString(&c.AMQPQueue, f.AMQP.Queue)
	setString(&c.NegativeBalancePolicy, f.Ledger.NegativeBalancePolicy)
	setString(&c.CorrectionCategory, f.Ledger.CorrectionCategory)
	setString(&c.DefaultUserID, f.Ledger.DefaultUserID)
	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)
	setString(&c.GoogleSpreadsheetID, f.Sheets.SpreadsheetID)
	setString(&c.GoogleSheetName, f.Sheets.SheetName)
	setString(&c.GoogleServiceAccountFile, f.Sheets.ServiceAccountFile)
	if f.Ledger.MaxImportBytes != 0 {
		c.MaxImportBytes = f.Ledger.MaxImportBytes
	}
	if f.Cache.Size != 0 {
		c.SummaryCacheSize = f.Cache.Size
	}
	if f.Cache.TTL != "" {
		d, err := time.ParseDuration(f.Cache.TTL)
		if err != nil {
			return fmt.Errorf("config file %s: cache.ttl: %w", path, err)
		}
		c.SummaryCacheTTL = d
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.SeedDir = getEnv("SEED_DIR", c.SeedDir)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.NegativeBalancePolicy = getEnv("NEGATIVE_BALANCE_POLICY", c.NegativeBalancePolicy)
	c.CorrectionCategory = getEnv("CORRECTION_CATEGORY", c.CorrectionCategory)
	c.DefaultUserID = getEnv("DEFAULT_USER_ID", c.DefaultUserID)
	c.MaxImportBytes = getEnvInt("MAX_IMPORT_BYTES", c.MaxImportBytes)

	c.SummaryCacheSize = getEnvInt("SUMMARY_CACHE_SIZE", c.SummaryCacheSize)
	c.SummaryCacheTTL = getEnvDuration("SUMMARY_CACHE_TTL", c.SummaryCacheTTL)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", c.GoogleSheetName)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
}

// Policy returns the parsed negative balance policy. Call Validate first.
func (c *Config) Policy() core.Policy {
	p, err := core.ParsePolicy(c.NegativeBalancePolicy)
	if err != nil {
		return core.PolicyWarn
	}
	return p
}

// SheetsEnabled reports whether the export mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
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
	}

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

	if _, err := core.ParsePolicy(c.NegativeBalancePolicy); err != nil {
		errors = append(errors, fmt.Sprintf("invalid negative balance policy '%s': must be one of warn, block, allow", c.NegativeBalancePolicy))
	}
	if strings.TrimSpace(c.CorrectionCategory) == "" {
		errors = append(errors, "correction category name cannot be empty")
	}
	if strings.TrimSpace(c.DefaultUserID) == "" {
		errors = append(errors, "default user id cannot be empty")
	}
	if c.MaxImportBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid max import size %d: must be at least 1024 bytes", c.MaxImportBytes))
	}

	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}
	if c.SummaryCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must be at least 1 second", c.SummaryCacheTTL))
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
