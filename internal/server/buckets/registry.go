// Package buckets maps logical instance names to physical buckets and makes
// sure the bucket for an instance exists before the server takes traffic.
package buckets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/logging"
	"github.com/dmitrijs2005/uploadvault/internal/server/models"
	"github.com/dmitrijs2005/uploadvault/internal/server/repositories/repomanager"
)

// Store is the subset of the object store the registry needs.
type Store interface {
	HeadBucket(ctx context.Context, bucket string) (string, error)
	CreateBucket(ctx context.Context, bucket, region string) error
}

type Registry struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       Store
	production  bool
	logger      logging.Logger

	now    func() time.Time
	suffix func(production bool) string
}

func NewRegistry(db *sql.DB, rm repomanager.RepositoryManager, store Store, production bool, logger logging.Logger) *Registry {
	return &Registry{
		db:          db,
		repomanager: rm,
		store:       store,
		production:  production,
		logger:      logger.With("module", "buckets"),
		now:         time.Now,
		suffix:      Suffix,
	}
}

// EnsureBucket returns the registry row for instance, creating the bucket and
// the row when absent. The registry row is the source of truth: a bucket that
// exists without a row is not adopted, and a row whose bucket is unreachable
// fails with common.ErrBucketAccess.
func (r *Registry) EnsureBucket(ctx context.Context, instance, region string) (*models.BucketRecord, error) {
	if instance == "" {
		return nil, fmt.Errorf("%w: instance name is required", common.ErrInvalidInput)
	}

	repo := r.repomanager.Buckets(r.db)

	row, err := repo.GetByInstance(ctx, instance)
	switch {
	case err == nil:
		return row, r.verify(ctx, row, region)
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}

	name := BucketName(instance, r.suffix(r.production))
	r.logger.Info(ctx, "creating bucket", "instance", instance, "bucket", name, "region", region)

	if err := r.store.CreateBucket(ctx, name, region); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrBucketCreation, name, err)
	}

	row = &models.BucketRecord{
		InstanceName: instance,
		BucketName:   name,
		Region:       region,
		CreatedAt:    r.now().UTC(),
	}
	if err := repo.Create(ctx, row); err != nil {
		if !errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
		// Another process registered the instance first.
		existing, gerr := repo.GetByInstance(ctx, instance)
		if gerr != nil {
			return nil, gerr
		}
		if existing.BucketName != name {
			r.logger.Warn(ctx, "bucket created concurrently is not registered",
				"instance", instance, "registered", existing.BucketName, "orphaned", name)
		}
		return existing, r.verify(ctx, existing, region)
	}

	r.logger.Debug(ctx, "bucket registered", "instance", instance, "bucket", name)
	return row, nil
}

func (r *Registry) verify(ctx context.Context, row *models.BucketRecord, region string) error {
	live, err := r.store.HeadBucket(ctx, row.BucketName)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrBucketAccess, row.BucketName, err)
	}
	if row.Region != region {
		r.logger.Warn(ctx, "bucket region differs from configuration",
			"bucket", row.BucketName, "registered", row.Region, "configured", region)
	}
	if live != "" && live != row.Region {
		r.logger.Warn(ctx, "bucket region differs from registry",
			"bucket", row.BucketName, "registered", row.Region, "live", live)
	}
	return nil
}
