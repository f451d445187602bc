// Package ledger is the core's external, best-effort audit sink for trade
// history. The in-memory sequencer and matcher state is always
// authoritative; the ledger can fall behind or lose rows under load
// without compromising the core's invariants.
package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver, default for local/dev
)

type DB struct {
	*sql.DB
	driver string
}

// Open detects the driver from the connection string's scheme: sqlite://
// for local dev, postgres:// or postgresql:// for a hosted deployment.
func Open(connStr string) (*DB, error) {
	var driver, dsn string

	switch {
	case strings.HasPrefix(connStr, "sqlite://"):
		driver = "sqlite"
		dsn = strings.TrimPrefix(connStr, "sqlite://")
	case strings.HasPrefix(connStr, "postgres://"), strings.HasPrefix(connStr, "postgresql://"):
		driver = "postgres"
		dsn = connStr
		if !strings.Contains(dsn, "sslmode") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "sslmode=require"
		}
	default:
		return nil, fmt.Errorf("ledger: unsupported database URL %q", connStr)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ledger: failed to ping database: %w", err)
	}

	if driver == "postgres" {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(3)
		db.SetConnMaxLifetime(5 * time.Minute)
	} else {
		db.SetMaxOpenConns(1)
	}

	return &DB{DB: db, driver: driver}, nil
}

// InitSchema creates the trades table if it does not already exist. Money
// and quantity columns are TEXT: the ledger stores exactly the decimal
// strings the core produced, never a lossy float column.
func (db *DB) InitSchema() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol_id INTEGER NOT NULL,
			buy_order_id TEXT NOT NULL,
			sell_order_id TEXT NOT NULL,
			buy_account_id INTEGER NOT NULL,
			sell_account_id INTEGER NOT NULL,
			price TEXT NOT NULL,
			quantity TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_symbol_id ON trades(symbol_id);
		CREATE INDEX IF NOT EXISTS idx_trades_buy_account ON trades(buy_account_id);
		CREATE INDEX IF NOT EXISTS idx_trades_sell_account ON trades(sell_account_id);
	`)
	if err != nil {
		return fmt.Errorf("ledger: failed to initialize schema: %w", err)
	}
	return nil
}
