package tempstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Resolve maps a caller-supplied logical name to one concrete, currently
// valid physical path. The second return reports whether the path lives in
// the managed store (true) or is a plain filesystem path (false).
//
// Resolution prefers the newest registered record for the name; a record
// whose file is gone or whose expiry has passed is skipped, and resolution
// falls through to workDir rather than reviving an older record. Callers
// never see physical store paths in errors, only the logical name.
func (s *Store) Resolve(ctx context.Context, name string) (string, bool, error) {
	logical := EnsureDocxExtension(name)

	// Sweep first so stale entries are never resolved.
	if err := s.Reap(ctx, time.Now()); err != nil {
		return "", false, err
	}

	rec, err := s.index.LatestByUserFilename(ctx, logical)
	switch {
	case err == nil:
		// Re-check disk presence and expiry: a concurrent sweep or an
		// out-of-band deletion may have raced the index query.
		if _, statErr := os.Stat(rec.FilePath); statErr == nil && !rec.Expired(time.Now()) {
			return rec.FilePath, true, nil
		}
	case !errors.Is(err, ErrNotFound):
		return "", false, err
	}

	plain, err := filepath.Abs(filepath.Join(s.workDir, logical))
	if err == nil {
		if _, statErr := os.Stat(plain); statErr == nil {
			return plain, false, nil
		}
	}

	return "", false, fmt.Errorf("document %q not found in temp storage or working directory: %w", logical, ErrNotFound)
}

// PlainPath returns the unmanaged fallback path for a logical name and
// whether a file currently exists there.
func (s *Store) PlainPath(name string) (string, bool) {
	plain, err := filepath.Abs(filepath.Join(s.workDir, EnsureDocxExtension(name)))
	if err != nil {
		return "", false
	}
	_, statErr := os.Stat(plain)
	return plain, statErr == nil
}
