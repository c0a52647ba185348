package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/peny/internal/dbx"
	"github.com/dmitrijs2005/peny/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/peny/internal/server/repositories/credentials"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction, so services can compose them inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Credentials(db dbx.DBTX) credentials.Repository
}
