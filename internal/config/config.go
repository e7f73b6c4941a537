package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Env variable names for secrets and overrides. Credentials are never
// written into config files; the warehouse DSN always comes from the
// environment or a secret-store injection into it.
const (
	EnvWarehouseDSN = "CAISO_OPS_WAREHOUSE_DSN"
	EnvOasisBaseURL = "CAISO_OPS_OASIS_URL"
	EnvPoolRoot     = "CAISO_OPS_POOL_ROOT"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	// PoolRoot is the cache pool directory. Required.
	PoolRoot string `yaml:"pool_root"`

	Warehouse WarehouseConfig `yaml:"warehouse"`
	Oasis     OasisConfig     `yaml:"oasis"`
	Report    ReportConfig    `yaml:"report"`
	API       APIConfig       `yaml:"api"`

	LogLevel string `yaml:"log_level"`
}

type WarehouseConfig struct {
	// Driver is the database/sql driver name; defaults to the pure-Go
	// sqlite build.
	Driver string `yaml:"driver"`
	// DSN is resolved from the environment when empty; it may carry
	// credentials and must never be defaulted in a file.
	DSN string `yaml:"dsn"`
	// Schema qualifies the warehouse tables (e.g. "iceberg.prod").
	Schema string `yaml:"schema"`
}

type OasisConfig struct {
	BaseURL string `yaml:"base_url"`
}

type ReportConfig struct {
	CurrStart string `yaml:"curr_start"`
	CurrEnd   string `yaml:"curr_end"`
	RefStart  string `yaml:"ref_start"`
	RefEnd    string `yaml:"ref_end"`
}

type APIConfig struct {
	Port string `yaml:"port"`
	// RefreshCron schedules the report cache refresh; empty disables it.
	RefreshCron string `yaml:"refresh_cron"`
}

// Load reads, overlays environment values, applies defaults and
// validates.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads the raw file without env overlay or validation.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ApplyEnv overlays environment values onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvWarehouseDSN); v != "" {
		c.Warehouse.DSN = v
	}
	if v := os.Getenv(EnvOasisBaseURL); v != "" {
		c.Oasis.BaseURL = v
	}
	if v := os.Getenv(EnvPoolRoot); v != "" {
		c.PoolRoot = v
	}
}

func (c *Config) applyDefaults() {
	if c.Warehouse.Driver == "" {
		c.Warehouse.Driver = "sqlite"
	}
	if c.API.Port == "" {
		c.API.Port = "8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Report.RefStart == "" {
		c.Report.RefStart = "2024-01-01"
	}
	if c.Report.RefEnd == "" {
		c.Report.RefEnd = "2024-06-30"
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.PoolRoot == "" {
		return errors.New("pool_root is required")
	}
	for _, field := range []struct{ name, value string }{
		{"report.curr_start", c.Report.CurrStart},
		{"report.curr_end", c.Report.CurrEnd},
		{"report.ref_start", c.Report.RefStart},
		{"report.ref_end", c.Report.RefEnd},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", field.value); err != nil {
			return fmt.Errorf("%s: bad date %q", field.name, field.value)
		}
	}
	return nil
}

// ReportPeriods resolves the configured report window. An unset current
// start means the first of this month; an unset current end means now.
func (c *Config) ReportPeriods() (currStart, currEnd, refStart, refEnd time.Time) {
	parse := func(s string) time.Time {
		t, _ := time.Parse("2006-01-02", s)
		return t
	}
	currStart = parse(c.Report.CurrStart)
	if c.Report.CurrStart == "" {
		now := time.Now()
		currStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	currEnd = parse(c.Report.CurrEnd)
	if c.Report.CurrEnd == "" {
		currEnd = time.Now()
	}
	return currStart, currEnd, parse(c.Report.RefStart), parse(c.Report.RefEnd)
}
