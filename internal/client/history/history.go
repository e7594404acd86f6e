// Package history keeps a local SQLite record of files uploaded from this
// machine, so the CLI can list them and refresh their server-side status.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/client/history/migrations"
	"github.com/dmitrijs2005/uploadvault/internal/dbx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// StatusGone marks an entry the server no longer knows about.
const StatusGone = "gone"

var ErrNotFound = errors.New("not in history")

// fixed width so timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Entry struct {
	FileID    string
	Filename  string
	SizeBytes int64
	MimeType  string
	LocalPath string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusFunc reports the current server-side status of a file. It returns
// ok=false when the server has no record of it.
type StatusFunc func(ctx context.Context, fileID string) (status string, ok bool, err error)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single writer avoids SQLITE_BUSY between the CLI's own statements
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record upserts an entry. CreatedAt is kept from the first insert.
func (s *Store) Record(ctx context.Context, e Entry) error {
	now := s.now().UTC().Format(timeLayout)
	query := `INSERT INTO uploads (file_id, filename, size_bytes, mime_type, local_path, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET filename = excluded.filename,
			size_bytes = excluded.size_bytes,
			mime_type = excluded.mime_type,
			local_path = excluded.local_path,
			status = excluded.status,
			updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, e.FileID, e.Filename, e.SizeBytes, e.MimeType, e.LocalPath, e.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}
	return nil
}

func (s *Store) SetStatus(ctx context.Context, fileID, status string) error {
	return setStatus(ctx, s.db, fileID, status, s.now())
}

func setStatus(ctx context.Context, db dbx.DBTX, fileID, status string, at time.Time) error {
	res, err := db.ExecContext(ctx, `UPDATE uploads SET status = ?, updated_at = ? WHERE file_id = ?`,
		status, at.UTC().Format(timeLayout), fileID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	return nil
}

// Forget removes an entry. Unknown ids are not an error.
func (s *Store) Forget(ctx context.Context, fileID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("failed to forget upload: %w", err)
	}
	return nil
}

// List returns all entries, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	return list(ctx, s.db)
}

func list(ctx context.Context, db dbx.DBTX) ([]Entry, error) {
	rows, err := db.QueryContext(ctx, `SELECT file_id, filename, size_bytes, mime_type, local_path, status, created_at, updated_at
		FROM uploads ORDER BY created_at DESC, file_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select uploads: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created, updated string
		if err := rows.Scan(&e.FileID, &e.Filename, &e.SizeBytes, &e.MimeType, &e.LocalPath, &e.Status, &created, &updated); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("created_at of %s: %w", e.FileID, err)
		}
		if e.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
			return nil, fmt.Errorf("updated_at of %s: %w", e.FileID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Refresh asks status for every entry that is not yet terminal and applies
// the answers in one transaction. Entries the server does not know are
// marked gone. A lookup error aborts the refresh and nothing is written.
func (s *Store) Refresh(ctx context.Context, status StatusFunc) (int, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	type change struct{ id, status string }
	var changes []change
	for _, e := range entries {
		if e.Status == "uploaded" || e.Status == "error" || e.Status == StatusGone {
			continue
		}
		st, ok, err := status(ctx, e.FileID)
		if err != nil {
			return 0, fmt.Errorf("status of %s: %w", e.FileID, err)
		}
		if !ok {
			st = StatusGone
		}
		if st != e.Status {
			changes = append(changes, change{e.FileID, st})
		}
	}
	if len(changes) == 0 {
		return 0, nil
	}

	at := s.now()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, c := range changes {
			if err := setStatus(ctx, tx, c.id, c.status, at); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(changes), nil
}
