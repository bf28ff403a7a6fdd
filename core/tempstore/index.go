package tempstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Fixed-width UTC layout so stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const createTempFilesTable = `
CREATE TABLE IF NOT EXISTS temp_files (
    file_id TEXT PRIMARY KEY,
    original_filename TEXT NOT NULL,
    user_filename TEXT NOT NULL,
    file_path TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL,
    expires_at DATETIME NOT NULL,
    download_count INTEGER DEFAULT 0
)`

// Index is the durable registry of temporary files, backed by a single
// SQLite database file colocated with the storage root.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if needed) the index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorageUnavailable, path, err)
	}
	// The reaper goroutine and request handlers share this handle; a single
	// connection sidesteps SQLITE_BUSY on concurrent writes.
	db.SetMaxOpenConns(1)
	idx := &Index{db: db}
	if err := idx.Initialize(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the backing database.
func (x *Index) Close() error {
	if x == nil || x.db == nil {
		return nil
	}
	return x.db.Close()
}

// Initialize ensures the schema exists. It is idempotent and safe to call
// repeatedly. Older databases created before the user_filename column gain
// it back-filled from the display name.
func (x *Index) Initialize(ctx context.Context) error {
	if _, err := x.db.ExecContext(ctx, createTempFilesTable); err != nil {
		return storageErr("create temp_files", err)
	}
	hasUserFilename, err := x.hasColumn(ctx, "temp_files", "user_filename")
	if err != nil {
		return err
	}
	if !hasUserFilename {
		if _, err := x.db.ExecContext(ctx, `ALTER TABLE temp_files ADD COLUMN user_filename TEXT`); err != nil {
			return storageErr("add user_filename column", err)
		}
		if _, err := x.db.ExecContext(ctx,
			`UPDATE temp_files SET user_filename = original_filename WHERE user_filename IS NULL OR user_filename = ''`); err != nil {
			return storageErr("backfill user_filename", err)
		}
	}
	if _, err := x.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_user_filename ON temp_files(user_filename)`); err != nil {
		return storageErr("create user_filename index", err)
	}
	return nil
}

// Register inserts a new record for a file already written to filePath and
// returns it. It never overwrites an existing record.
func (x *Index) Register(ctx context.Context, filePath, originalFilename, userFilename string, ttl time.Duration) (*Record, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("register %s: ttl must be positive", userFilename)
	}
	now := time.Now().UTC()
	rec := &Record{
		FileID:           uuid.NewString(),
		OriginalFilename: originalFilename,
		UserFilename:     userFilename,
		FilePath:         filePath,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}
	_, err := x.db.ExecContext(ctx, `
		INSERT INTO temp_files (file_id, original_filename, user_filename, file_path, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.FileID, rec.OriginalFilename, rec.UserFilename, rec.FilePath,
		rec.CreatedAt.Format(timeLayout), rec.ExpiresAt.Format(timeLayout))
	if err != nil {
		return nil, storageErr("register file", err)
	}
	return rec, nil
}

const recordColumns = `file_id, original_filename, user_filename, file_path, created_at, expires_at, download_count`

// GetByID returns the record for a file id, or ErrNotFound.
func (x *Index) GetByID(ctx context.Context, fileID string) (*Record, error) {
	row := x.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM temp_files WHERE file_id = ?`, fileID)
	return scanRecord(row)
}

// LatestByUserFilename returns the most recently created record registered
// under the logical name, or ErrNotFound.
func (x *Index) LatestByUserFilename(ctx context.Context, userFilename string) (*Record, error) {
	row := x.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM temp_files WHERE user_filename = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		userFilename)
	return scanRecord(row)
}

// IncrementDownloads bumps the download counter. The bump is advisory;
// callers must not fail a download on error here.
func (x *Index) IncrementDownloads(ctx context.Context, fileID string) error {
	_, err := x.db.ExecContext(ctx,
		`UPDATE temp_files SET download_count = download_count + 1 WHERE file_id = ?`, fileID)
	if err != nil {
		return storageErr("increment download count", err)
	}
	return nil
}

// ListLive returns all records not yet expired at now, newest first.
func (x *Index) ListLive(ctx context.Context, now time.Time) ([]Record, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM temp_files WHERE expires_at > ? ORDER BY created_at DESC, rowid DESC`,
		now.UTC().Format(timeLayout))
	if err != nil {
		return nil, storageErr("list live files", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list live files", err)
	}
	return out, nil
}

// PurgeExpired atomically removes every record expired at now and returns
// the physical paths for filesystem cleanup by the caller.
func (x *Index) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	cutoff := now.UTC().Format(timeLayout)
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin purge", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT file_path FROM temp_files WHERE expires_at <= ?`, cutoff)
	if err != nil {
		return nil, storageErr("select expired", err)
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, storageErr("scan expired", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storageErr("select expired", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM temp_files WHERE expires_at <= ?`, cutoff); err != nil {
		return nil, storageErr("delete expired", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit purge", err)
	}
	return paths, nil
}

func (x *Index) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := x.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, storageErr("table info", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, storageErr("table info", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec       Record
		createdAt string
		expiresAt string
	)
	err := row.Scan(&rec.FileID, &rec.OriginalFilename, &rec.UserFilename, &rec.FilePath,
		&createdAt, &expiresAt, &rec.DownloadCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("scan record", err)
	}
	if rec.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, storageErr("parse created_at", err)
	}
	if rec.ExpiresAt, err = parseStoredTime(expiresAt); err != nil {
		return nil, storageErr("parse expires_at", err)
	}
	return &rec, nil
}

func parseStoredTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
