package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/dbx"
	"github.com/dmitrijs2005/uploadvault/internal/server/models"
)

const fileColumns = `id, filename, size_bytes, mime_type, key, bucket, status, etag, owner_id, meta, created_at, updated_at`

// PostgresRepository implements the file ledger over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new record. The key uniqueness constraint is enforced by
// the database.
func (r *PostgresRepository) Create(ctx context.Context, file *models.FileRecord) error {
	query := `
		INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.Filename, file.SizeBytes, file.MimeType, file.Key, file.Bucket,
		string(file.Status), file.ETag, nullString(file.OwnerID), nullJSON(file.Meta),
		file.CreatedAt, file.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return fmt.Errorf("%w: file %s", common.ErrAlreadyExists, file.Key)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the record with the given id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id=$1`
	return r.getOne(ctx, query, id)
}

// GetByKey returns the record owning the given object key.
func (r *PostgresRepository) GetByKey(ctx context.Context, key string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE key=$1`
	return r.getOne(ctx, query, key)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.FileRecord, error) {
	f, err := scanFile(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: file %s", common.ErrNotFound, arg)
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// Transition is a conditional update guarded by the current status, so two
// racing confirmations cannot both apply.
func (r *PostgresRepository) Transition(ctx context.Context, id string, from, to models.FileStatus, etag string, at time.Time) (*models.FileRecord, bool, error) {
	query := `
		UPDATE files SET status=$3, etag=$4, updated_at=$5
		WHERE id=$1 AND status=$2
		RETURNING ` + fileColumns
	f, err := scanFile(r.db.QueryRowContext(ctx, query, id, string(from), string(to), etag, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to update file status: %w", err)
	}
	return f, true, nil
}

// Delete removes the record. Exactly one row must be affected.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("%w: file %s", common.ErrNotFound, id)
	}
	return nil
}

func scanFile(row *sql.Row) (*models.FileRecord, error) {
	var (
		f      models.FileRecord
		status string
		owner  sql.NullString
		meta   []byte
	)
	err := row.Scan(&f.ID, &f.Filename, &f.SizeBytes, &f.MimeType, &f.Key, &f.Bucket,
		&status, &f.ETag, &owner, &meta, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Status = models.FileStatus(status)
	f.OwnerID = owner.String
	if len(meta) > 0 {
		f.Meta = meta
	}
	return &f, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
