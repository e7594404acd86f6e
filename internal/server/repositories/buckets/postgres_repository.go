package buckets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/dbx"
	"github.com/dmitrijs2005/uploadvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByInstance(ctx context.Context, instanceName string) (*models.BucketRecord, error) {
	query := `SELECT instance_name, bucket_name, region, created_at FROM buckets WHERE instance_name=$1`

	b := &models.BucketRecord{}
	err := r.db.QueryRowContext(ctx, query, instanceName).Scan(&b.InstanceName, &b.BucketName, &b.Region, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: bucket for instance %s", common.ErrNotFound, instanceName)
		}
		return nil, fmt.Errorf("failed to select bucket: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) Create(ctx context.Context, bucket *models.BucketRecord) error {
	query := `
		INSERT INTO buckets (instance_name, bucket_name, region, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instance_name) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, bucket.InstanceName, bucket.BucketName, bucket.Region, bucket.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%w: instance %s", common.ErrAlreadyExists, bucket.InstanceName)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
