package tempstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docserve/docserve/core/infra/logging"
	"github.com/docserve/docserve/core/infra/metrics"
)

const (
	component        = "tempstore"
	indexFilename    = "file_registry.db"
	reaperJoinWindow = 5 * time.Second
)

// EventKind tags an artifact lifecycle event.
type EventKind string

const (
	EventRegistered EventKind = "registered"
	EventDownloaded EventKind = "downloaded"
	EventReaped     EventKind = "reaped"
)

// Event describes an artifact lifecycle change, for observers such as the
// file server's stream endpoint.
type Event struct {
	Kind         EventKind `json:"kind"`
	FileID       string    `json:"file_id,omitempty"`
	UserFilename string    `json:"user_filename,omitempty"`
	Count        int       `json:"count,omitempty"`
	Time         time.Time `json:"time"`
}

// Store owns a private storage root and its colocated index. It is the
// single authority over the files it manages: nothing else may delete or
// relocate them while their records are live.
type Store struct {
	root    string
	workDir string
	index   *Index
	metrics metrics.StoreMetrics

	sinkMu sync.RWMutex
	sink   func(Event)

	reaperMu sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// Open creates the storage root if needed and opens the index inside it.
// workDir is the fallback directory for resolving unmanaged names; empty
// means the current directory. Tests construct independent stores against
// temporary directories.
func Open(root, workDir string, m metrics.StoreMetrics) (*Store, error) {
	if m == nil {
		m = metrics.Noop{}
	}
	if workDir == "" {
		workDir = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	idx, err := OpenIndex(filepath.Join(root, indexFilename))
	if err != nil {
		return nil, err
	}
	return &Store{root: root, workDir: workDir, index: idx, metrics: m}, nil
}

// Close stops the background reaper and closes the index.
func (s *Store) Close() error {
	s.StopReaper()
	return s.index.Close()
}

// Index exposes the underlying registry for read paths that look up by id.
func (s *Store) Index() *Index {
	return s.index
}

// Root returns the managed storage root.
func (s *Store) Root() string {
	return s.root
}

// SetEventSink installs an observer for lifecycle events. Delivery is
// synchronous and best-effort; the sink must not block.
func (s *Store) SetEventSink(fn func(Event)) {
	s.sinkMu.Lock()
	s.sink = fn
	s.sinkMu.Unlock()
}

func (s *Store) emit(ev Event) {
	s.sinkMu.RLock()
	fn := s.sink
	s.sinkMu.RUnlock()
	if fn != nil {
		ev.Time = time.Now().UTC()
		fn(ev)
	}
}

// CreateFile materializes a new managed file: write calls back with a fresh
// unique path under the storage root, and on success the file is registered
// under the logical name. If registration fails the orphaned file is
// deleted before the error is returned, so no file is ever published under
// an id the index does not know about.
func (s *Store) CreateFile(ctx context.Context, userFilename, originalFilename string, ttl time.Duration, write func(path string) error) (*Record, error) {
	path := filepath.Join(s.root, uuid.NewString()+"_"+originalFilename)
	if err := write(path); err != nil {
		return nil, err
	}
	rec, err := s.index.Register(ctx, path, originalFilename, userFilename, ttl)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Error(component, "orphan cleanup failed", "path", path, "error", rmErr)
		}
		return nil, err
	}
	s.metrics.IncRegistered()
	s.emit(Event{Kind: EventRegistered, FileID: rec.FileID, UserFilename: rec.UserFilename})
	return rec, nil
}

// NoteDownload bumps the download counter and emits the event. Index
// failures are logged, never surfaced: the bump is advisory.
func (s *Store) NoteDownload(ctx context.Context, rec *Record) {
	if err := s.index.IncrementDownloads(ctx, rec.FileID); err != nil {
		logging.Error(component, "download count bump failed", "file_id", rec.FileID, "error", err)
	}
	s.metrics.IncDownloads()
	s.emit(Event{Kind: EventDownloaded, FileID: rec.FileID, UserFilename: rec.UserFilename})
}

// Reap removes every record expired at now from the index and deletes the
// corresponding files. A missing file is not an error; an undeletable file
// is logged and skipped without aborting the rest of the sweep. The record
// removal is authoritative either way.
func (s *Store) Reap(ctx context.Context, now time.Time) error {
	paths, err := s.index.PurgeExpired(ctx, now)
	if err != nil {
		return err
	}
	s.metrics.IncReapSweeps()
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logging.Error(component, "remove expired file failed", "path", p, "error", err)
		}
	}
	if len(paths) > 0 {
		s.metrics.AddReapedFiles(len(paths))
		s.emit(Event{Kind: EventReaped, Count: len(paths)})
	}
	return nil
}

// StartReaper launches the background sweep loop. Repeated calls while the
// loop is alive are no-ops.
func (s *Store) StartReaper(interval time.Duration) {
	s.reaperMu.Lock()
	defer s.reaperMu.Unlock()
	if s.running {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	go s.reapLoop(interval, s.stopCh, s.doneCh)
	logging.Info(component, "background reaper started", "interval", interval)
}

func (s *Store) reapLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.Reap(context.Background(), time.Now()); err != nil {
			logging.Error(component, "background reap failed", "error", err)
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// StopReaper signals the sweep loop and waits, bounded, for the in-flight
// sweep to finish. Safe to call when the reaper was never started.
func (s *Store) StopReaper() {
	s.reaperMu.Lock()
	if !s.running {
		s.reaperMu.Unlock()
		return
	}
	close(s.stopCh)
	done := s.doneCh
	s.running = false
	s.reaperMu.Unlock()

	select {
	case <-done:
	case <-time.After(reaperJoinWindow):
		logging.Error(component, "reaper did not stop within join window")
	}
}
