// Package history keeps a durable journal of completed builds.
//
// One row per terminal refresh task, kept in a small SQLite database in the
// cache directory. The journal exists for operators: "when did this profile
// last build, how long did it take, what got skipped" survives process
// restarts and task garbage collection.
package history

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/fleetcache/api"
)

// Entry is one completed (or failed, or cancelled) build.
type Entry struct {
	TaskID     string
	Profile    string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string // terminal task state
	Error      string
	Stats      api.BuildStats
}

// Journal is a SQLite-backed build log.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		task_id           TEXT PRIMARY KEY,
		profile           TEXT NOT NULL,
		started_at        INTEGER NOT NULL,
		finished_at       INTEGER NOT NULL,
		outcome           TEXT NOT NULL,
		error             TEXT,
		compartments      INTEGER DEFAULT 0,
		resources         INTEGER DEFAULT 0,
		skipped_subtrees  INTEGER DEFAULT 0,
		permission_denied INTEGER DEFAULT 0,
		failed_units      INTEGER DEFAULT 0,
		integrity_drops   INTEGER DEFAULT 0,
		errors            TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_builds_profile ON builds(profile, started_at);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record inserts one build entry.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO builds
		(task_id, profile, started_at, finished_at, outcome, error,
		 compartments, resources, skipped_subtrees, permission_denied,
		 failed_units, integrity_drops, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TaskID, e.Profile, e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli(),
		e.Outcome, e.Error,
		e.Stats.CompartmentsScanned, e.Stats.ResourcesFound,
		e.Stats.SkippedSubtrees, e.Stats.PermissionDenied,
		e.Stats.FailedUnits, e.Stats.IntegrityDrops,
		strings.Join(e.Stats.Errors, "\n"),
	)
	if err != nil {
		return fmt.Errorf("record build %s: %w", e.TaskID, err)
	}
	return nil
}

// Recent returns the newest entries for a profile, most recent first.
func (j *Journal) Recent(profileName string, limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(`
		SELECT task_id, profile, started_at, finished_at, outcome, error,
		       compartments, resources, skipped_subtrees, permission_denied,
		       failed_units, integrity_drops, errors
		FROM builds WHERE profile = ?
		ORDER BY started_at DESC LIMIT ?`, profileName, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e                  Entry
			started, finished  int64
			errText, errorsCol sql.NullString
		)
		if err := rows.Scan(&e.TaskID, &e.Profile, &started, &finished,
			&e.Outcome, &errText,
			&e.Stats.CompartmentsScanned, &e.Stats.ResourcesFound,
			&e.Stats.SkippedSubtrees, &e.Stats.PermissionDenied,
			&e.Stats.FailedUnits, &e.Stats.IntegrityDrops, &errorsCol); err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		e.StartedAt = time.UnixMilli(started)
		e.FinishedAt = time.UnixMilli(finished)
		e.Error = errText.String
		if errorsCol.String != "" {
			e.Stats.Errors = strings.Split(errorsCol.String, "\n")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
