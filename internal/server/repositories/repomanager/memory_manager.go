package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/uploadvault/internal/dbx"
	"github.com/dmitrijs2005/uploadvault/internal/server/repositories/buckets"
	"github.com/dmitrijs2005/uploadvault/internal/server/repositories/files"
	"github.com/dmitrijs2005/uploadvault/internal/server/repositories/memory"
)

// MemoryRepositoryManager serves the same in-memory repositories regardless
// of the DBTX handed in. It has no schema to migrate.
type MemoryRepositoryManager struct {
	files   *memory.FileRepository
	buckets *memory.BucketRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		files:   memory.NewFileRepository(),
		buckets: memory.NewBucketRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Files(dbx.DBTX) files.Repository {
	return m.files
}

func (m *MemoryRepositoryManager) Buckets(dbx.DBTX) buckets.Repository {
	return m.buckets
}
