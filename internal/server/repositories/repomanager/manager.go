package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/uploadvault/internal/dbx"
	"github.com/dmitrijs2005/uploadvault/internal/server/repositories/buckets"
	"github.com/dmitrijs2005/uploadvault/internal/server/repositories/files"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// the same code against *sql.DB or inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Files(db dbx.DBTX) files.Repository
	Buckets(db dbx.DBTX) buckets.Repository
}
