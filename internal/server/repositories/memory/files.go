// Package memory provides in-process implementations of the ledger and the
// bucket registry. They honour the same uniqueness constraints as the
// PostgreSQL schema and are safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/server/models"
)

type FileRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.FileRecord
	byKey map[string]string
}

func NewFileRepository() *FileRepository {
	return &FileRepository{
		byID:  make(map[string]*models.FileRecord),
		byKey: make(map[string]string),
	}
}

func (r *FileRepository) Create(ctx context.Context, file *models.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[file.ID]; ok {
		return fmt.Errorf("%w: file %s", common.ErrAlreadyExists, file.ID)
	}
	if _, ok := r.byKey[file.Key]; ok {
		return fmt.Errorf("%w: file %s", common.ErrAlreadyExists, file.Key)
	}
	r.byID[file.ID] = file.Clone()
	r.byKey[file.Key] = file.ID
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", common.ErrNotFound, id)
	}
	return f.Clone(), nil
}

func (r *FileRepository) GetByKey(ctx context.Context, key string) (*models.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", common.ErrNotFound, key)
	}
	return r.byID[id].Clone(), nil
}

func (r *FileRepository) Transition(ctx context.Context, id string, from, to models.FileStatus, etag string, at time.Time) (*models.FileRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.byID[id]
	if !ok || f.Status != from {
		return nil, false, nil
	}
	f.Status = to
	f.ETag = etag
	f.UpdatedAt = at
	return f.Clone(), true, nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: file %s", common.ErrNotFound, id)
	}
	delete(r.byKey, f.Key)
	delete(r.byID, id)
	return nil
}
