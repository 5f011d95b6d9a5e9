package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/wenqi-dev/timegrid/pkg/config"
)

// NewSQLite returns a configured handle on the local SQLite file.
//
// The store is single-writer by design, so the pool is capped at one
// connection; this also makes in-memory databases safe for tests.
func NewSQLite(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	busyMillis := int64(5000)
	if cfg.BusyTimeout > 0 {
		busyMillis = cfg.BusyTimeout.Milliseconds()
	}

	dsn := fmt.Sprintf("file:%s?_time_format=sqlite&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, busyMillis)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// NewMemory opens a fresh in-memory database, used by tests.
func NewMemory() (*sqlx.DB, error) {
	return NewSQLite(config.DatabaseConfig{Path: ":memory:"})
}
