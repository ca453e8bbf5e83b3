// Package store persists per-profile snapshots and serves reads from
// hot-swapped in-memory indexes.
//
// The persisted form is one JSON file per profile, replaced atomically
// (write to a temp file, then rename) so a crash mid-write never corrupts
// the previous good snapshot and a concurrent reader never observes a torn
// one. The filesystem is abstracted behind billy so tests run against
// memfs, including the crash-atomicity tests.
package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/fleetcache/api"
)

// ErrNoSnapshot means no snapshot has ever been built for the profile.
// Callers should treat it as "run a build first", not as a fault.
var ErrNoSnapshot = errors.New("no snapshot for profile")

// Store owns the persisted snapshot files and their derived indexes.
// Save is the single mutation point; readers get whichever index was
// current when they asked and can keep using it while a swap happens.
type Store struct {
	fs  billy.Filesystem
	log *slog.Logger

	mu      sync.RWMutex
	indexes map[string]*Index
}

// New creates a store rooted at fs.
func New(fs billy.Filesystem, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{fs: fs, log: log, indexes: make(map[string]*Index)}
}

// SnapshotPath returns the file name of a profile's snapshot.
func SnapshotPath(profileName string) string {
	return profileName + ".snapshot.json"
}

// Save atomically replaces the profile's snapshot on disk and swaps in a
// freshly built index.
func (s *Store) Save(profileName string, snap *api.Snapshot) error {
	data, err := oj.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := util.TempFile(s.fs, "", profileName+".snapshot-")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	final := SnapshotPath(profileName)
	if err := s.fs.Rename(tmpName, final); err != nil {
		// Some backends refuse to rename over an existing file.
		if rmErr := s.fs.Remove(final); rmErr != nil && !os.IsNotExist(rmErr) {
			_ = s.fs.Remove(tmpName)
			return fmt.Errorf("replace snapshot: %w", err)
		}
		if err := s.fs.Rename(tmpName, final); err != nil {
			_ = s.fs.Remove(tmpName)
			return fmt.Errorf("replace snapshot: %w", err)
		}
	}

	ix := NewIndex(snap)
	s.mu.Lock()
	s.indexes[profileName] = ix
	s.mu.Unlock()

	s.log.Info("snapshot saved", "profile", profileName,
		"compartments", len(snap.Compartments), "resources", len(snap.Resources))
	return nil
}

// Load reads the profile's snapshot from disk, rebuilds its index, and
// swaps it in. Returns ErrNoSnapshot when the file does not exist.
func (s *Store) Load(profileName string) (*api.Snapshot, error) {
	f, err := s.fs.Open(SnapshotPath(profileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrNoSnapshot, profileName)
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap api.Snapshot
	if err := oj.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %q: %w", profileName, err)
	}

	ix := NewIndex(&snap)
	s.mu.Lock()
	s.indexes[profileName] = ix
	s.mu.Unlock()

	return &snap, nil
}

// Index returns the profile's current in-memory index, loading the
// persisted snapshot on first access. Never touches the network.
func (s *Store) Index(profileName string) (*Index, error) {
	s.mu.RLock()
	ix, ok := s.indexes[profileName]
	s.mu.RUnlock()
	if ok {
		return ix, nil
	}

	if _, err := s.Load(profileName); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexes[profileName], nil
}

// Has reports whether a snapshot exists for the profile, in memory or on
// disk, without building an index.
func (s *Store) Has(profileName string) bool {
	s.mu.RLock()
	_, ok := s.indexes[profileName]
	s.mu.RUnlock()
	if ok {
		return true
	}
	_, err := s.fs.Stat(SnapshotPath(profileName))
	return err == nil
}
