// Package refresh decides when snapshots are stale and manages background
// rebuild tasks, at most one concurrent build per profile.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/agentic-research/fleetcache/api"
	"github.com/agentic-research/fleetcache/internal/assemble"
	"github.com/agentic-research/fleetcache/internal/cloudapi"
	"github.com/agentic-research/fleetcache/internal/discover"
	"github.com/agentic-research/fleetcache/internal/history"
	"github.com/agentic-research/fleetcache/internal/profile"
	"github.com/agentic-research/fleetcache/internal/scan"
	"github.com/agentic-research/fleetcache/internal/store"
)

var (
	// ErrBuildInProgress means a build for the profile is already running;
	// the caller may poll the existing task instead.
	ErrBuildInProgress = errors.New("build already in progress")
	// ErrTaskNotFound means the task ID is unknown or already collected.
	ErrTaskNotFound = errors.New("task not found")
)

// TaskState is the lifecycle state of a refresh task.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskSucceeded TaskState = "SUCCEEDED"
	TaskFailed    TaskState = "FAILED"
	TaskCancelled TaskState = "CANCELLED"
)

// terminal reports whether the state is final.
func (s TaskState) terminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// Progress is a point-in-time view of how far a build has gotten.
type Progress struct {
	Stage        string `json:"stage"`
	Compartments int    `json:"compartments"`
	UnitsTotal   int    `json:"units_total"`
	UnitsDone    int    `json:"units_done"`
}

// Task is the caller-visible view of one refresh task. TaskStatus returns
// copies; the scheduler is the only writer of task state.
type Task struct {
	ID         string    `json:"id"`
	Profile    string    `json:"profile"`
	State      TaskState `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Progress   Progress  `json:"progress"`
	Error      string    `json:"error,omitempty"`
}

// task is the scheduler-internal task with its cancel handle.
type task struct {
	mu sync.Mutex
	Task
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *task) view() Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Task
}

func (t *task) set(fn func(*Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.Task)
}

// ClientFactory builds a control-plane client for a resolved profile.
type ClientFactory func(p profile.Profile) (cloudapi.Client, error)

// Options wires a Scheduler.
type Options struct {
	Resolver *profile.Resolver
	Clients  ClientFactory
	Store    *store.Store
	// Journal records terminal builds; nil disables the journal.
	Journal *history.Journal

	Staleness         time.Duration
	Retention         time.Duration
	ScanWorkers       int
	Retry             scan.RetryPolicy
	RequestsPerSecond float64
	CallTimeout       time.Duration

	Log *slog.Logger
}

// Scheduler runs builds asynchronously and tracks their tasks.
type Scheduler struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	tasks    map[string]*task
	building map[string]string // profile -> running task ID
}

// New creates a scheduler. Zero-valued knobs take the config defaults.
func New(opts Options) *Scheduler {
	if opts.Staleness <= 0 {
		opts.Staleness = 24 * time.Hour
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = scan.DefaultRetryPolicy()
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		opts:     opts,
		log:      log,
		tasks:    make(map[string]*task),
		building: make(map[string]string),
	}
}

// IsStale reports whether the profile needs a rebuild: no snapshot exists,
// or the current one is older than the staleness threshold.
func (s *Scheduler) IsStale(profileName string) bool {
	ix, err := s.opts.Store.Index(profileName)
	if err != nil {
		return true
	}
	return time.Since(ix.BuiltAt()) > s.opts.Staleness
}

// StartBuild launches an asynchronous rebuild for the profile.
// Returns ErrBuildInProgress while a build for the same profile is running.
func (s *Scheduler) StartBuild(profileName string) (Task, error) {
	s.mu.Lock()
	s.gcLocked(time.Now())
	if id, busy := s.building[profileName]; busy {
		s.mu.Unlock()
		return Task{}, fmt.Errorf("%w: profile %q (task %s)", ErrBuildInProgress, profileName, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		Task: Task{
			ID:      uuid.NewString(),
			Profile: profileName,
			State:   TaskPending,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.tasks[t.ID] = t
	s.building[profileName] = t.ID
	s.mu.Unlock()

	go s.run(ctx, t)
	return t.view(), nil
}

// TaskStatus returns the current state of a task.
func (s *Scheduler) TaskStatus(id string) (Task, error) {
	s.mu.Lock()
	s.gcLocked(time.Now())
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.view(), nil
}

// Cancel requests cooperative cancellation of a running build. In-flight
// scan units stop at their next retry or page checkpoint; no snapshot is
// persisted for a cancelled build.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t.cancel()
	return nil
}

// Await blocks until the task reaches a terminal state or ctx expires.
func (s *Scheduler) Await(ctx context.Context, id string) (Task, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	select {
	case <-t.done:
		return t.view(), nil
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

// gcLocked drops terminal tasks older than the retention window.
// Caller holds s.mu.
func (s *Scheduler) gcLocked(now time.Time) {
	for id, t := range s.tasks {
		v := t.view()
		if v.State.terminal() && now.Sub(v.FinishedAt) > s.opts.Retention {
			delete(s.tasks, id)
		}
	}
}

// run executes one build: resolve -> discover -> scan -> assemble -> save.
func (s *Scheduler) run(ctx context.Context, t *task) {
	v := t.view()
	log := s.log.With("task", v.ID, "profile", v.Profile)
	started := time.Now()
	t.set(func(tk *Task) {
		tk.State = TaskRunning
		tk.StartedAt = started
		tk.Progress.Stage = "resolve"
	})

	snapStats, err := s.build(ctx, t, log)

	final := TaskFailed
	errMsg := ""
	switch {
	case err == nil:
		final = TaskSucceeded
	case errors.Is(err, context.Canceled):
		final = TaskCancelled
	default:
		errMsg = err.Error()
		log.Error("build failed", "err", err)
	}

	finished := time.Now()
	t.set(func(tk *Task) {
		tk.State = final
		tk.FinishedAt = finished
		tk.Error = errMsg
	})

	s.mu.Lock()
	if s.building[v.Profile] == v.ID {
		delete(s.building, v.Profile)
	}
	s.mu.Unlock()
	close(t.done)

	if s.opts.Journal != nil {
		entry := history.Entry{
			TaskID:     v.ID,
			Profile:    v.Profile,
			StartedAt:  started,
			FinishedAt: finished,
			Outcome:    string(final),
			Error:      errMsg,
			Stats:      snapStats,
		}
		if jerr := s.opts.Journal.Record(entry); jerr != nil {
			log.Warn("journal record failed", "err", jerr)
		}
	}
}

// build runs the pipeline stages and persists the snapshot. It returns the
// build stats for the journal even when the run ends early.
func (s *Scheduler) build(ctx context.Context, t *task, log *slog.Logger) (stats api.BuildStats, err error) {
	v := t.view()

	p, err := s.opts.Resolver.Resolve(ctx, v.Profile)
	if err != nil {
		return stats, err
	}

	client, err := s.opts.Clients(p)
	if err != nil {
		return stats, fmt.Errorf("control-plane client: %w", err)
	}

	t.set(func(tk *Task) { tk.Progress.Stage = "discover" })
	nodes, dstats, err := (&discover.Discoverer{Client: client, Log: log}).Discover(ctx, p.TenancyID)
	if err != nil {
		return stats, err
	}

	unitsTotal := len(nodes) * len(p.Regions) * len(api.Kinds)
	t.set(func(tk *Task) {
		tk.Progress.Stage = "scan"
		tk.Progress.Compartments = len(nodes)
		tk.Progress.UnitsTotal = unitsTotal
	})

	var limiter *rate.Limiter
	if s.opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.RequestsPerSecond), 1)
	}
	scanner := &scan.Scanner{
		Client:      client,
		Workers:     s.opts.ScanWorkers,
		Retry:       s.opts.Retry,
		Limiter:     limiter,
		CallTimeout: s.opts.CallTimeout,
		Log:         log,
		OnUnitDone: func() {
			t.set(func(tk *Task) { tk.Progress.UnitsDone++ })
		},
	}
	records, sstats, err := scanner.Scan(ctx, p.Regions, nodes)
	if err != nil {
		return stats, err
	}

	// All units are done (or marked failed) before assembly begins, and a
	// cancelled build must never persist.
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	t.set(func(tk *Task) { tk.Progress.Stage = "assemble" })
	snap := assemble.Assemble(assemble.Input{
		Profile:      p,
		Compartments: nodes,
		Resources:    records,
		Discovery:    dstats,
		Scan:         sstats,
		Log:          log,
	})
	stats = snap.Stats

	if err := s.opts.Store.Save(v.Profile, snap); err != nil {
		return stats, fmt.Errorf("persist snapshot: %w", err)
	}

	t.set(func(tk *Task) {
		tk.Progress.Stage = "done"
		tk.Progress.UnitsDone = tk.Progress.UnitsTotal
	})
	return stats, nil
}
