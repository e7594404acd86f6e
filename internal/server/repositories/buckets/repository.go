// Package buckets persists the bucket registry: one row per instance name.
package buckets

import (
	"context"

	"github.com/dmitrijs2005/uploadvault/internal/server/models"
)

type Repository interface {
	// GetByInstance returns common.ErrNotFound when the instance has no row.
	GetByInstance(ctx context.Context, instanceName string) (*models.BucketRecord, error)
	// Create returns common.ErrAlreadyExists when another writer inserted the
	// instance first.
	Create(ctx context.Context, bucket *models.BucketRecord) error
}
