// Package config loads the fleetcache HCL configuration file.
//
// Every operational knob is explicit here: staleness threshold, task
// retention, scan concurrency, and the retry curve all come from the file
// (or its defaults), never from constants buried in the engine.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the root of the HCL file.
//
//	cache_dir           = "/var/lib/fleetcache"
//	staleness_threshold = "24h"
//
//	profile "prod" {
//	  tenancy     = "ocid1.tenancy.prod"
//	  home_region = "us-ashburn-1"
//	  regions     = ["us-ashburn-1", "eu-frankfurt-1"]
//	  endpoint    = "https://inventory.{region}.example.com/v1"
//	}
type Config struct {
	CacheDir           string  `hcl:"cache_dir,optional"`
	StalenessThreshold string  `hcl:"staleness_threshold,optional"`
	TaskRetention      string  `hcl:"task_retention,optional"`
	ScanWorkers        int     `hcl:"scan_workers,optional"`
	RetryMaxAttempts   int     `hcl:"retry_max_attempts,optional"`
	RetryBaseDelay     string  `hcl:"retry_base_delay,optional"`
	RetryMaxDelay      string  `hcl:"retry_max_delay,optional"`
	RequestTimeout     string  `hcl:"request_timeout,optional"`
	RequestsPerSecond  float64 `hcl:"requests_per_second,optional"`

	Profiles []Profile `hcl:"profile,block"`

	// parsed durations, filled by Load/Default
	staleness     time.Duration
	retention     time.Duration
	retryBase     time.Duration
	retryMax      time.Duration
	callTimeout   time.Duration
}

// Profile is one named credential scope.
type Profile struct {
	Name       string   `hcl:"name,label"`
	Tenancy    string   `hcl:"tenancy"`
	HomeRegion string   `hcl:"home_region"`
	Regions    []string `hcl:"regions,optional"`
	// Endpoint is the control-plane URL template ({region} placeholder).
	// The literal value "fake" selects the in-memory demo control plane.
	Endpoint string `hcl:"endpoint,optional"`
}

const (
	defaultStaleness   = 24 * time.Hour
	defaultRetention   = time.Hour
	defaultWorkers     = 8
	defaultAttempts    = 4
	defaultRetryBase   = 500 * time.Millisecond
	defaultRetryMax    = 15 * time.Second
	defaultCallTimeout = 30 * time.Second
	defaultRPS         = 10
)

// Default returns a config with every knob at its default and no profiles.
func Default() *Config {
	c := &Config{
		CacheDir:          "",
		ScanWorkers:       defaultWorkers,
		RetryMaxAttempts:  defaultAttempts,
		RequestsPerSecond: defaultRPS,
		staleness:         defaultStaleness,
		retention:         defaultRetention,
		retryBase:         defaultRetryBase,
		retryMax:          defaultRetryMax,
		callTimeout:       defaultCallTimeout,
	}
	return c
}

// Load reads and validates the HCL file at path.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.finish(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// finish parses duration strings and applies defaults for zero values.
func (c *Config) finish() error {
	var err error
	if c.staleness, err = parseDur(c.StalenessThreshold, defaultStaleness); err != nil {
		return fmt.Errorf("staleness_threshold: %w", err)
	}
	if c.retention, err = parseDur(c.TaskRetention, defaultRetention); err != nil {
		return fmt.Errorf("task_retention: %w", err)
	}
	if c.retryBase, err = parseDur(c.RetryBaseDelay, defaultRetryBase); err != nil {
		return fmt.Errorf("retry_base_delay: %w", err)
	}
	if c.retryMax, err = parseDur(c.RetryMaxDelay, defaultRetryMax); err != nil {
		return fmt.Errorf("retry_max_delay: %w", err)
	}
	if c.callTimeout, err = parseDur(c.RequestTimeout, defaultCallTimeout); err != nil {
		return fmt.Errorf("request_timeout: %w", err)
	}
	if c.ScanWorkers <= 0 {
		c.ScanWorkers = defaultWorkers
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = defaultAttempts
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = defaultRPS
	}
	seen := make(map[string]bool, len(c.Profiles))
	for _, p := range c.Profiles {
		if seen[p.Name] {
			return fmt.Errorf("duplicate profile %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

func parseDur(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

// Staleness is the snapshot age beyond which a rebuild is recommended.
func (c *Config) Staleness() time.Duration { return c.staleness }

// Retention is how long terminal refresh tasks stay pollable.
func (c *Config) Retention() time.Duration { return c.retention }

// RetryBase is the first backoff delay of the retry curve.
func (c *Config) RetryBase() time.Duration { return c.retryBase }

// RetryMax caps the backoff delay.
func (c *Config) RetryMax() time.Duration { return c.retryMax }

// CallTimeout bounds one control-plane call, not a whole build.
func (c *Config) CallTimeout() time.Duration { return c.callTimeout }
