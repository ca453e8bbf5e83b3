// Package scan lists resources across regions and compartments with a
// bounded worker pool.
//
// One scan unit is a (region, compartment, kind) triple. Units sharing a
// (compartment, kind) pair are chained onto the same worker so the control
// plane never sees two concurrent requests for the same pair; that is what
// gets a tenancy throttled. Transient failures retry against the injected
// RetryPolicy; a unit that exhausts its retries is marked failed and the
// scan moves on.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/agentic-research/fleetcache/api"
	"github.com/agentic-research/fleetcache/internal/cloudapi"
)

// Stats reports scan partial failures.
type Stats struct {
	UnitsTotal int
	// FailedUnits exhausted their retries; their resources are absent.
	FailedUnits int
	// PermissionDenied units were skipped silently (expected condition).
	PermissionDenied int
	Errors           []string
}

// Scanner runs scan units concurrently.
type Scanner struct {
	Client  cloudapi.Client
	Workers int
	Retry   RetryPolicy
	// Limiter throttles all workers together; nil disables rate limiting.
	Limiter *rate.Limiter
	// CallTimeout bounds one control-plane call, never a whole unit.
	CallTimeout time.Duration
	Log         *slog.Logger

	// OnUnitDone, if set, is called after each unit finishes (any outcome).
	// Used by the refresh scheduler to publish build progress.
	OnUnitDone func()
}

// pairUnits is all units for one (compartment, kind) pair, one per region.
// The pair is the concurrency key: its units run sequentially.
type pairUnits struct {
	compartmentID string
	kind          api.ResourceKind
	regions       []string
}

// Scan lists resources of every kind in every (region, compartment) pair.
// It returns the records found plus stats; the only error it returns itself
// is cancellation. Individual unit failures land in stats.
func (s *Scanner) Scan(ctx context.Context, regions []string, compartments []api.Compartment) ([]api.Resource, Stats, error) {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	workers := s.Workers
	if workers <= 0 {
		workers = 8
	}

	pairs := make([]pairUnits, 0, len(compartments)*len(api.Kinds))
	for _, c := range compartments {
		for _, k := range api.Kinds {
			pairs = append(pairs, pairUnits{compartmentID: c.ID, kind: k, regions: regions})
		}
	}

	var (
		mu      sync.Mutex
		results []api.Resource
		stats   = Stats{UnitsTotal: len(pairs) * len(regions)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range pairs {
		g.Go(func() error {
			for _, region := range p.regions {
				if err := gctx.Err(); err != nil {
					return err
				}
				items, outcome := s.scanUnit(gctx, log, region, p.compartmentID, p.kind)
				mu.Lock()
				switch outcome.status {
				case unitOK:
					results = append(results, items...)
				case unitDenied:
					stats.PermissionDenied++
				case unitFailed:
					stats.FailedUnits++
					stats.Errors = append(stats.Errors, outcome.msg)
				case unitCancelled:
					mu.Unlock()
					return gctx.Err()
				}
				mu.Unlock()
				if s.OnUnitDone != nil {
					s.OnUnitDone()
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	return results, stats, nil
}

type unitStatus int

const (
	unitOK unitStatus = iota
	unitDenied
	unitFailed
	unitCancelled
)

type unitOutcome struct {
	status unitStatus
	msg    string
}

// scanUnit pages through one (region, compartment, kind) listing, retrying
// transient failures. Counts and sizes from the control plane pass through
// untouched.
func (s *Scanner) scanUnit(ctx context.Context, log *slog.Logger, region, compartmentID string, kind api.ResourceKind) ([]api.Resource, unitOutcome) {
	var items []api.Resource
	token := ""
	for {
		page, err := s.listPage(ctx, region, compartmentID, kind, token)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil, unitOutcome{status: unitCancelled}
		case cloudapi.IsPermissionDenied(err):
			// Expected: the caller simply cannot see this compartment.
			return nil, unitOutcome{status: unitDenied}
		case cloudapi.IsNotFound(err):
			// The compartment was deleted between discovery and scan.
			// The unit is simply empty; the assembler drops any records
			// already attributed to it.
			return nil, unitOutcome{status: unitOK}
		default:
			msg := fmt.Sprintf("unit %s/%s/%s: %v", region, compartmentID, kind, err)
			log.Warn("scan unit failed", "region", region, "compartment", compartmentID, "kind", kind, "err", err)
			return nil, unitOutcome{status: unitFailed, msg: msg}
		}

		items = append(items, page.Items...)
		if page.NextPageToken == "" {
			return items, unitOutcome{status: unitOK}
		}
		token = page.NextPageToken
	}
}

// listPage performs one paginated call with retry. Only transient errors
// (429, 5xx) retry; everything else surfaces immediately.
func (s *Scanner) listPage(ctx context.Context, region, compartmentID string, kind api.ResourceKind, token string) (cloudapi.ResourcePage, error) {
	attempts := s.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				return cloudapi.ResourcePage{}, err
			}
		}

		page, err := s.callOnce(ctx, region, compartmentID, kind, token)
		if err == nil {
			return page, nil
		}
		lastErr = err

		// A per-call deadline firing while the build is still alive is a
		// slow call, not a dead unit: retry it like a 5xx.
		timedOut := errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
		if !cloudapi.IsTransient(err) && !timedOut {
			return cloudapi.ResourcePage{}, err
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, s.Retry.Backoff(attempt)); err != nil {
			return cloudapi.ResourcePage{}, err
		}
	}
	return cloudapi.ResourcePage{}, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func (s *Scanner) callOnce(ctx context.Context, region, compartmentID string, kind api.ResourceKind, token string) (cloudapi.ResourcePage, error) {
	if s.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CallTimeout)
		defer cancel()
	}
	return s.Client.ListResources(ctx, region, compartmentID, kind, token)
}
