package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML layout of a config file. Unset keys keep the
// current value.
type fileConfig struct {
	BaseURL   *string `yaml:"base_url"`
	Subject   *string `yaml:"subject"`
	Limit     *int    `yaml:"limit"`
	Timeout   *string `yaml:"timeout"`
	UserAgent *string `yaml:"user_agent"`
	Database  *struct {
		Path  *string `yaml:"path"`
		Table *string `yaml:"table"`
	} `yaml:"database"`
	Chart *struct {
		File   *string  `yaml:"file"`
		DPI    *int     `yaml:"dpi"`
		Width  *float64 `yaml:"width"`
		Height *float64 `yaml:"height"`
		Open   *bool    `yaml:"open"`
	} `yaml:"chart"`
	Export *struct {
		File   *string `yaml:"file"`
		Format *string `yaml:"format"`
	} `yaml:"export"`
	MetricsAddr *string `yaml:"metrics_addr"`
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return c.apply(&fc)
}

func (c *Config) apply(fc *fileConfig) error {
	setString(&c.BaseURL, fc.BaseURL)
	setString(&c.Subject, fc.Subject)
	setString(&c.UserAgent, fc.UserAgent)
	setString(&c.MetricsAddr, fc.MetricsAddr)
	if fc.Limit != nil {
		c.Limit = *fc.Limit
	}
	if fc.Timeout != nil {
		d, err := time.ParseDuration(*fc.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", *fc.Timeout, err)
		}
		c.Timeout = d
	}
	if db := fc.Database; db != nil {
		setString(&c.DBPath, db.Path)
		setString(&c.Table, db.Table)
	}
	if chart := fc.Chart; chart != nil {
		setString(&c.ChartFile, chart.File)
		if chart.DPI != nil {
			c.ChartDPI = *chart.DPI
		}
		if chart.Width != nil {
			c.ChartWidth = *chart.Width
		}
		if chart.Height != nil {
			c.ChartHeight = *chart.Height
		}
		if chart.Open != nil {
			c.OpenChart = *chart.Open
		}
	}
	if export := fc.Export; export != nil {
		setString(&c.ExportFile, export.File)
		setString(&c.ExportFormat, export.Format)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
