package tempstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "file_registry.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestRegisterAndGetByID(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	rec, err := idx.Register(ctx, "/tmp/store/abc_report.docx", "report.docx", "report.docx", time.Hour)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.FileID == "" {
		t.Fatal("expected generated file id")
	}
	if !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("expires_at %v not after created_at %v", rec.ExpiresAt, rec.CreatedAt)
	}

	got, err := idx.GetByID(ctx, rec.FileID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.UserFilename != "report.docx" || got.FilePath != "/tmp/store/abc_report.docx" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.DownloadCount != 0 {
		t.Fatalf("fresh record has download count %d", got.DownloadCount)
	}
}

func TestRegisterRejectsNonPositiveTTL(t *testing.T) {
	idx := newTestIndex(t)
	if _, err := idx.Register(context.Background(), "/tmp/x.docx", "x.docx", "x.docx", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestGetByIDUnknown(t *testing.T) {
	idx := newTestIndex(t)
	if _, err := idx.GetByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestByUserFilenamePrefersNewest(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if _, err := idx.Register(ctx, "/tmp/store/a_report.docx", "report.docx", "report.docx", time.Hour); err != nil {
		t.Fatalf("register first: %v", err)
	}
	second, err := idx.Register(ctx, "/tmp/store/b_report.docx", "report.docx", "report.docx", time.Hour)
	if err != nil {
		t.Fatalf("register second: %v", err)
	}

	got, err := idx.LatestByUserFilename(ctx, "report.docx")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.FileID != second.FileID {
		t.Fatalf("latest returned %s, want %s", got.FileID, second.FileID)
	}
}

func TestIncrementDownloads(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	rec, err := idx.Register(ctx, "/tmp/store/c.docx", "c.docx", "c.docx", time.Hour)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := idx.IncrementDownloads(ctx, rec.FileID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := idx.IncrementDownloads(ctx, rec.FileID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	got, err := idx.GetByID(ctx, rec.FileID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DownloadCount != 2 {
		t.Fatalf("download count %d, want 2", got.DownloadCount)
	}
}

func TestPurgeExpired(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	old, err := idx.Register(ctx, "/tmp/store/old.docx", "old.docx", "old.docx", time.Hour)
	if err != nil {
		t.Fatalf("register old: %v", err)
	}
	fresh, err := idx.Register(ctx, "/tmp/store/fresh.docx", "fresh.docx", "fresh.docx", 48*time.Hour)
	if err != nil {
		t.Fatalf("register fresh: %v", err)
	}

	paths, err := idx.PurgeExpired(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(paths) != 1 || paths[0] != "/tmp/store/old.docx" {
		t.Fatalf("purged paths %v, want only old.docx", paths)
	}
	if _, err := idx.GetByID(ctx, old.FileID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("purged record still present: %v", err)
	}
	if _, err := idx.GetByID(ctx, fresh.FileID); err != nil {
		t.Fatalf("live record lost: %v", err)
	}
}

func TestListLiveExcludesExpiredAndOrdersNewestFirst(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if _, err := idx.Register(ctx, "/tmp/store/short.docx", "short.docx", "short.docx", time.Hour); err != nil {
		t.Fatalf("register short: %v", err)
	}
	a, err := idx.Register(ctx, "/tmp/store/a.docx", "a.docx", "a.docx", 72*time.Hour)
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	b, err := idx.Register(ctx, "/tmp/store/b.docx", "b.docx", "b.docx", 72*time.Hour)
	if err != nil {
		t.Fatalf("register b: %v", err)
	}

	live, err := idx.ListLive(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("list live: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("live count %d, want 2", len(live))
	}
	if live[0].FileID != b.FileID || live[1].FileID != a.FileID {
		t.Fatalf("unexpected order: %s, %s", live[0].FileID, live[1].FileID)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	idx := newTestIndex(t)
	for i := 0; i < 3; i++ {
		if err := idx.Initialize(context.Background()); err != nil {
			t.Fatalf("initialize round %d: %v", i, err)
		}
	}
}

// Databases created before user_filename existed gain the column back-filled
// from the display name.
func TestInitializeBackfillsUserFilename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file_registry.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE temp_files (
		file_id TEXT PRIMARY KEY,
		original_filename TEXT NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		download_count INTEGER DEFAULT 0
	)`); err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	now := time.Now().UTC()
	if _, err := db.Exec(
		`INSERT INTO temp_files (file_id, original_filename, file_path, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		"legacy-id", "legacy.docx", "/tmp/store/legacy.docx",
		now.Format(timeLayout), now.Add(time.Hour).Format(timeLayout)); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	idx, err := OpenIndex(path)
	if err != nil {
		t.Fatalf("open index over legacy db: %v", err)
	}
	defer idx.Close()

	rec, err := idx.LatestByUserFilename(context.Background(), "legacy.docx")
	if err != nil {
		t.Fatalf("latest after backfill: %v", err)
	}
	if rec.FileID != "legacy-id" || rec.UserFilename != "legacy.docx" {
		t.Fatalf("backfilled record: %+v", rec)
	}
}
