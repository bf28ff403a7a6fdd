package tempstore

import (
	"errors"
	"strings"
	"time"
)

// Record is one row of the artifact index: a generated file plus the
// bookkeeping needed to serve, resolve and eventually reap it.
type Record struct {
	FileID           string
	OriginalFilename string // display name used when serving the file
	UserFilename     string // logical name the caller knows the document by
	FilePath         string // absolute path under the managed storage root
	CreatedAt        time.Time
	ExpiresAt        time.Time
	DownloadCount    int64
}

// Expired reports whether the record's lifetime has passed at now.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

var (
	// ErrNotFound marks a logical name or file id with no live record and
	// no fallback plain-file match.
	ErrNotFound = errors.New("document not found")

	// ErrExpired marks a record whose expires_at has passed.
	ErrExpired = errors.New("file has expired")

	// ErrStorageUnavailable marks a failure of the index's backing store.
	ErrStorageUnavailable = errors.New("file index unavailable")
)

// EnsureDocxExtension normalizes a logical name to the canonical extension.
func EnsureDocxExtension(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".docx") {
		return name
	}
	return name + ".docx"
}
