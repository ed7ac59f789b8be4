package accounts

import (
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenDatabase opens a sqlite-backed bun handle for the shipped repository
// implementations. Deployments with their own database hand a *bun.DB to
// NewRepositoryManager directly instead.
func OpenDatabase(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database")
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// RegisterModels registers the subsystem's models so bun can resolve
// relations before any query runs.
func RegisterModels(db *bun.DB) {
	db.RegisterModel(
		(*Account)(nil),
		(*UserLevel)(nil),
		(*ActionToken)(nil),
	)
}
