package audit

import (
	"database/sql"
	"fmt"
	"time"
)

// DriverMemory keeps the journal in memory
const DriverMemory = "memory"

// Config selects and configures a journal store
type Config struct {
	Driver string
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open creates the configured store. SQL stores own their connection and
// close it on Close.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryJournal(), nil
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", cfg.Driver)
	}

	if cfg.DSN == "" {
		return nil, fmt.Errorf("journal dsn is required for driver %s", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// one writer keeps sqlite from reporting SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	j, err := NewSQLJournal(db, cfg.Driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	j.owned = true
	return j, nil
}
