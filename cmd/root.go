package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/fleetcache/internal/cloudapi"
	"github.com/agentic-research/fleetcache/internal/config"
	"github.com/agentic-research/fleetcache/internal/history"
	"github.com/agentic-research/fleetcache/internal/profile"
	"github.com/agentic-research/fleetcache/internal/query"
	"github.com/agentic-research/fleetcache/internal/refresh"
	"github.com/agentic-research/fleetcache/internal/scan"
	"github.com/agentic-research/fleetcache/internal/store"
)

const version = "0.1.0"

var (
	cfgPath string
	verbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to HCL config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

var rootCmd = &cobra.Command{
	Use:           "fleetcache",
	Short:         "Fleetcache: a point-in-time inventory cache for cloud tenancies",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// app bundles the wired engine for the subcommands.
type app struct {
	cfg     *config.Config
	store   *store.Store
	journal *history.Journal
	sched   *refresh.Scheduler
	queries *query.Service
}

// newApp loads configuration and wires the engine. The default config
// location is ~/.agentic-research/fleetcache/config.hcl; the cache
// directory defaults to the same directory.
func newApp() (*app, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}
	defaultDir := filepath.Join(home, ".agentic-research", "fleetcache")

	var cfg *config.Config
	switch {
	case cfgPath != "":
		cfg, err = config.Load(cfgPath)
	default:
		p := filepath.Join(defaultDir, "config.hcl")
		if _, statErr := os.Stat(p); statErr == nil {
			cfg, err = config.Load(p)
		} else {
			cfg = config.Default()
		}
	}
	if err != nil {
		return nil, err
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = defaultDir
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	st := store.New(osfs.New(cacheDir), log.With("component", "store"))

	journal, err := history.Open(filepath.Join(cacheDir, "history.db"))
	if err != nil {
		return nil, err
	}

	profiles := make([]profile.Profile, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		profiles = append(profiles, profile.Profile{
			Name:       p.Name,
			TenancyID:  p.Tenancy,
			HomeRegion: p.HomeRegion,
			Regions:    p.Regions,
			Endpoint:   p.Endpoint,
		})
	}

	factory := clientFactory()
	resolver := profile.NewResolver(profiles, probeWith(factory))

	sched := refresh.New(refresh.Options{
		Resolver:          resolver,
		Clients:           factory,
		Store:             st,
		Journal:           journal,
		Staleness:         cfg.Staleness(),
		Retention:         cfg.Retention(),
		ScanWorkers:       cfg.ScanWorkers,
		Retry:             retryPolicy(cfg),
		RequestsPerSecond: cfg.RequestsPerSecond,
		CallTimeout:       cfg.CallTimeout(),
		Log:               log.With("component", "refresh"),
	})

	return &app{
		cfg:     cfg,
		store:   st,
		journal: journal,
		sched:   sched,
		queries: query.NewService(st),
	}, nil
}

func (a *app) close() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
}

// clientFactory selects the control-plane transport per profile.
// The endpoint "fake" wires the seeded in-memory control plane, which is
// handy for demos and for exercising the full pipeline offline.
func clientFactory() refresh.ClientFactory {
	return func(p profile.Profile) (cloudapi.Client, error) {
		switch p.Endpoint {
		case "":
			return nil, fmt.Errorf("profile %q has no endpoint", p.Name)
		case "fake":
			return demoClient(p), nil
		default:
			return cloudapi.NewHTTPClient(p.Endpoint, p.HomeRegion, nil), nil
		}
	}
}

func retryPolicy(cfg *config.Config) scan.RetryPolicy {
	return scan.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBase(),
		MaxDelay:    cfg.RetryMax(),
	}
}

func probeWith(factory refresh.ClientFactory) profile.ProbeFunc {
	return func(ctx context.Context, p profile.Profile) error {
		c, err := factory(p)
		if err != nil {
			return err
		}
		return c.Ping(ctx)
	}
}
