package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/server/models"
)

// Repository is the file ledger.
//
// Get* methods return common.ErrNotFound when no row matches; Create returns
// common.ErrAlreadyExists when the id or key is taken.
type Repository interface {
	Create(ctx context.Context, file *models.FileRecord) error
	GetByID(ctx context.Context, id string) (*models.FileRecord, error)
	GetByKey(ctx context.Context, key string) (*models.FileRecord, error)
	// Transition atomically moves the record from one status to another,
	// setting etag and updated_at. applied is false when the record was not
	// in status from; the returned record is then nil.
	Transition(ctx context.Context, id string, from, to models.FileStatus, etag string, at time.Time) (file *models.FileRecord, applied bool, err error)
	Delete(ctx context.Context, id string) error
}
