package app

import (
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/housecup/internal/store"
	"github.com/shrimpsizemoose/housecup/internal/store/postgres"
	"github.com/shrimpsizemoose/housecup/internal/store/sqlite"
)

func NewStore(dsn, migrationsDir string) (store.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database.dsn is not configured")
	}

	dbType := store.DBTypeSQLite
	if strings.HasPrefix(dsn, "postgres") {
		dbType = store.DBTypePostgres
	}

	switch dbType {
	case store.DBTypePostgres:
		s, err := postgres.NewPostgresStore(dsn, migrationsDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case store.DBTypeSQLite:
		s, err := sqlite.NewSQLiteStore(dsn, migrationsDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", dsn)
	}
}
