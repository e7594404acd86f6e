package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/server/models"
)

type BucketRepository struct {
	mu   sync.RWMutex
	rows map[string]models.BucketRecord
}

func NewBucketRepository() *BucketRepository {
	return &BucketRepository{rows: make(map[string]models.BucketRecord)}
}

func (r *BucketRepository) GetByInstance(ctx context.Context, instanceName string) (*models.BucketRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.rows[instanceName]
	if !ok {
		return nil, fmt.Errorf("%w: bucket for instance %s", common.ErrNotFound, instanceName)
	}
	return &b, nil
}

func (r *BucketRepository) Create(ctx context.Context, bucket *models.BucketRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[bucket.InstanceName]; ok {
		return fmt.Errorf("%w: instance %s", common.ErrAlreadyExists, bucket.InstanceName)
	}
	r.rows[bucket.InstanceName] = *bucket
	return nil
}
