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
	path := filepath.Join(t.TempDir(), "config.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
cache_dir           = "/tmp/fleetcache-test"
staleness_threshold = "6h"
task_retention      = "30m"
scan_workers        = 16
retry_max_attempts  = 2
requests_per_second = 25

profile "prod" {
  tenancy     = "ocid1.tenancy.prod"
  home_region = "us-ashburn-1"
  regions     = ["us-ashburn-1", "eu-frankfurt-1"]
  endpoint    = "https://inventory.{region}.example.com/v1"
}

profile "dev" {
  tenancy     = "ocid1.tenancy.dev"
  home_region = "us-phoenix-1"
  endpoint    = "fake"
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/fleetcache-test", cfg.CacheDir)
	assert.Equal(t, 6*time.Hour, cfg.Staleness())
	assert.Equal(t, 30*time.Minute, cfg.Retention())
	assert.Equal(t, 16, cfg.ScanWorkers)
	assert.Equal(t, 2, cfg.RetryMaxAttempts)
	assert.Equal(t, 25.0, cfg.RequestsPerSecond)

	require.Len(t, cfg.Profiles, 2)
	assert.Equal(t, "prod", cfg.Profiles[0].Name)
	assert.Equal(t, []string{"us-ashburn-1", "eu-frankfurt-1"}, cfg.Profiles[0].Regions)
	assert.Equal(t, "fake", cfg.Profiles[1].Endpoint)
	assert.Empty(t, cfg.Profiles[1].Regions, "regions default to the home region downstream")
}

func TestLoad_DefaultsFillUnsetKnobs(t *testing.T) {
	path := writeConfig(t, `
profile "p" {
  tenancy     = "t"
  home_region = "r1"
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Staleness())
	assert.Equal(t, time.Hour, cfg.Retention())
	assert.Equal(t, 8, cfg.ScanWorkers)
	assert.Equal(t, 4, cfg.RetryMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBase())
	assert.Equal(t, 15*time.Second, cfg.RetryMax())
	assert.Equal(t, 30*time.Second, cfg.CallTimeout())
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `staleness_threshold = "soon"`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staleness_threshold")
}

func TestLoad_NegativeDuration(t *testing.T) {
	path := writeConfig(t, `task_retention = "-5m"`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestLoad_DuplicateProfile(t *testing.T) {
	path := writeConfig(t, `
profile "p" {
  tenancy     = "t1"
  home_region = "r1"
}

profile "p" {
  tenancy     = "t2"
  home_region = "r2"
}
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate profile "p"`)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 24*time.Hour, cfg.Staleness())
	assert.Empty(t, cfg.Profiles)
}
