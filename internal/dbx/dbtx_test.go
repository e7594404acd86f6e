package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openFilesDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dbx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE files (id TEXT PRIMARY KEY, status TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO files (id, status) VALUES ('f-1', 'pending'), ('f-2', 'pending')`)
	require.NoError(t, err)
	return db
}

func statusOf(t *testing.T, db DBTX, id string) string {
	t.Helper()
	var s string
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT status FROM files WHERE id = ?`, id).Scan(&s))
	return s
}

func markUploaded(ctx context.Context, tx DBTX, ids ...string) error {
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE files SET status = 'uploaded' WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

func TestWithTx_Commit(t *testing.T) {
	db := openFilesDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if err := markUploaded(ctx, tx, "f-1", "f-2"); err != nil {
			return err
		}
		assert.Equal(t, "uploaded", statusOf(t, tx, "f-1"), "writes visible inside the transaction")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "uploaded", statusOf(t, db, "f-1"))
	assert.Equal(t, "uploaded", statusOf(t, db, "f-2"))
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := openFilesDB(t)
	errBoom := errors.New("object vanished")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, markUploaded(ctx, tx, "f-1"))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, "pending", statusOf(t, db, "f-1"))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := openFilesDB(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, markUploaded(ctx, tx, "f-2"))
			panic("kaput")
		})
	})

	assert.Equal(t, "pending", statusOf(t, db, "f-2"))
}

func TestWithTx_BeginError(t *testing.T) {
	db := openFilesDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "files_key_key"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"any constraint", dup, "", true},
		{"wrapped, matching constraint", fmt.Errorf("insert: %w", dup), "files_key_key", true},
		{"other constraint", dup, "buckets_pkey", false},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, "", false},
		{"not a pg error", errors.New("plain"), "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err, tt.constraint))
		})
	}
}
