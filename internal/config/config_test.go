package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "pool_root: /tmp/pool\n")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pool", c.PoolRoot)
	assert.Equal(t, "sqlite", c.Warehouse.Driver)
	assert.Equal(t, "8080", c.API.Port)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "2024-01-01", c.Report.RefStart)
}

func TestLoadRequiresPoolRoot(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "pool_root")
}

func TestLoadRejectsBadDates(t *testing.T) {
	path := writeConfig(t, "pool_root: /tmp/pool\nreport:\n  curr_start: January 5\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "curr_start")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "pool_root: /tmp/pool\nwarehouse:\n  dsn: from-file\n")

	t.Setenv(EnvWarehouseDSN, "from-env")
	t.Setenv(EnvPoolRoot, "/env/pool")
	t.Setenv(EnvOasisBaseURL, "https://mirror.test/SingleZip")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Warehouse.DSN)
	assert.Equal(t, "/env/pool", c.PoolRoot)
	assert.Equal(t, "https://mirror.test/SingleZip", c.Oasis.BaseURL)
}

func TestLoadUncheckedSkipsValidation(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n")

	c, err := LoadUnchecked(path)
	require.NoError(t, err)
	assert.Empty(t, c.PoolRoot)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestReportPeriods(t *testing.T) {
	c := &Config{Report: ReportConfig{
		CurrStart: "2025-04-01",
		CurrEnd:   "2025-06-30",
		RefStart:  "2024-04-01",
		RefEnd:    "2024-06-30",
	}}

	currStart, currEnd, refStart, refEnd := c.ReportPeriods()
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), currStart)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), currEnd)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), refStart)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), refEnd)
}

func TestReportPeriodsDefaultCurrentWindow(t *testing.T) {
	c := &Config{}
	currStart, currEnd, _, _ := c.ReportPeriods()

	now := time.Now()
	assert.Equal(t, time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), currStart)
	assert.WithinDuration(t, now, currEnd, time.Minute)
}
