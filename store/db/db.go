package db

import (
	"github.com/pkg/errors"

	"github.com/finpilot/advisor/internal/profile"
	"github.com/finpilot/advisor/store"
	"github.com/finpilot/advisor/store/db/postgres"
	"github.com/finpilot/advisor/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// PostgreSQL is the reference driver: it carries the full document store
// including pgvector nearest-neighbor search. SQLite covers local
// development; document CRUD works but vector search is unavailable there.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
