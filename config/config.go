package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds pipeline configuration.
type Config struct {
	BaseURL      string
	SearchPath   string
	Subject      string
	Limit        int
	Timeout      time.Duration
	UserAgent    string
	DBPath       string
	Table        string
	ChartFile    string
	ChartDPI     int
	ChartWidth   float64 // inches
	ChartHeight  float64 // inches
	OpenChart    bool
	ExportFile   string
	ExportFormat string // csv, json, or dual
	MetricsAddr  string
	Verbose      bool
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultConfig returns the fixed behavior of a plain invocation.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://openlibrary.org",
		SearchPath:   "/search.json",
		Subject:      "fiction",
		Limit:        100,
		Timeout:      10 * time.Second,
		UserAgent:    "go-fiction-books/1.0 (+https://github.com/aluiziolira/go-fiction-books)",
		DBPath:       "books.db",
		Table:        "fiction_books",
		ChartFile:    "books_by_year.png",
		ChartDPI:     300,
		ChartWidth:   16,
		ChartHeight:  7,
		ExportFormat: "csv",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Subject == "" {
		return fmt.Errorf("subject cannot be empty")
	}
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if !identifier.MatchString(c.Table) {
		return fmt.Errorf("table name %q must be a plain identifier", c.Table)
	}
	if c.ChartFile == "" {
		return fmt.Errorf("chart file cannot be empty")
	}
	if c.ChartDPI <= 0 {
		return fmt.Errorf("chart dpi must be positive")
	}
	if c.ChartWidth <= 0 || c.ChartHeight <= 0 {
		return fmt.Errorf("chart size must be positive")
	}
	if c.ExportFile != "" && c.ExportFormat != "csv" && c.ExportFormat != "json" && c.ExportFormat != "dual" {
		return fmt.Errorf("export format must be csv, json, or dual")
	}

	return nil
}

// ValidTableName reports whether name can be used as the stored table name.
func ValidTableName(name string) bool {
	return identifier.MatchString(name)
}

// EnvInt reads an integer environment variable. ok is false when unset.
func EnvInt(key string) (value int, ok bool, err error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err = strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvString reads a non-empty environment variable.
func EnvString(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", false
	}
	return value, true
}

// ApplyEnv overrides cfg with the BOOKS_* environment variables.
func (c *Config) ApplyEnv() error {
	if value, ok, err := EnvInt("BOOKS_LIMIT"); err != nil {
		return fmt.Errorf("invalid BOOKS_LIMIT: %w", err)
	} else if ok {
		c.Limit = value
	}
	if value, ok := EnvString("BOOKS_DB"); ok {
		c.DBPath = value
	}
	if value, ok := EnvString("BOOKS_CHART"); ok {
		c.ChartFile = value
	}
	if value, ok := EnvString("BOOKS_METRICS_ADDR"); ok {
		c.MetricsAddr = value
	}
	return nil
}
