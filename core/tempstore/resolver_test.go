package tempstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResolveManagedFile(t *testing.T) {
	s := newTestStore(t)
	rec := createTestFile(t, s, "report.docx", time.Hour)

	path, managed, err := s.Resolve(context.Background(), "report")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !managed {
		t.Fatal("expected managed resolution")
	}
	if path != rec.FilePath {
		t.Fatalf("resolved %s, want %s", path, rec.FilePath)
	}
}

func TestResolvePrefersNewestRegistration(t *testing.T) {
	s := newTestStore(t)
	createTestFile(t, s, "report.docx", time.Hour)
	newest := createTestFile(t, s, "report.docx", time.Hour)

	path, _, err := s.Resolve(context.Background(), "report.docx")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if path != newest.FilePath {
		t.Fatalf("resolved %s, want newest %s", path, newest.FilePath)
	}
}

func TestResolveFallsBackToWorkDir(t *testing.T) {
	s := newTestStore(t)
	plain := filepath.Join(s.workDir, "notes.docx")
	if err := os.WriteFile(plain, []byte("plain"), 0o644); err != nil {
		t.Fatalf("write plain file: %v", err)
	}

	path, managed, err := s.Resolve(context.Background(), "notes")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if managed {
		t.Fatal("plain file reported as managed")
	}
	abs, _ := filepath.Abs(plain)
	if path != abs {
		t.Fatalf("resolved %s, want %s", path, abs)
	}
}

func TestResolveSkipsExpiredRecord(t *testing.T) {
	s := newTestStore(t)
	rec := createTestFile(t, s, "stale.docx", time.Nanosecond)
	time.Sleep(10 * time.Millisecond)

	_, _, err := s.Resolve(context.Background(), "stale.docx")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired record, got %v", err)
	}
	// The pre-resolution sweep collects the expired file.
	if _, statErr := os.Stat(rec.FilePath); !os.IsNotExist(statErr) {
		t.Fatalf("expired file survived resolution: %v", statErr)
	}
}

func TestResolveSkipsRecordWithMissingFile(t *testing.T) {
	s := newTestStore(t)
	rec := createTestFile(t, s, "vanished.docx", time.Hour)
	if err := os.Remove(rec.FilePath); err != nil {
		t.Fatalf("remove file: %v", err)
	}

	if _, _, err := s.Resolve(context.Background(), "vanished.docx"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveManagedWinsOverPlainFile(t *testing.T) {
	s := newTestStore(t)
	plain := filepath.Join(s.workDir, "both.docx")
	if err := os.WriteFile(plain, []byte("plain"), 0o644); err != nil {
		t.Fatalf("write plain file: %v", err)
	}
	rec := createTestFile(t, s, "both.docx", time.Hour)

	path, managed, err := s.Resolve(context.Background(), "both.docx")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !managed || path != rec.FilePath {
		t.Fatalf("resolved (%s, managed=%v), want managed %s", path, managed, rec.FilePath)
	}
}

func TestResolveUnknownName(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.Resolve(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlainPath(t *testing.T) {
	s := newTestStore(t)
	path, exists := s.PlainPath("draft")
	if exists {
		t.Fatal("reported existing file before write")
	}
	if filepath.Base(path) != "draft.docx" {
		t.Fatalf("plain path %s missing canonical extension", path)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, exists := s.PlainPath("draft"); !exists {
		t.Fatal("existing file not reported")
	}
}
