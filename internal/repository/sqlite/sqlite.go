// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside the Go binary and stores
// everything in a single file, with no server to run. The membership
// ledger is a single-node service (no multi-node coordination), which is exactly
// the deployment SQLite is built for. Tests use ":memory:".
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go translation
// of the SQLite C code.
//
// THE STORE IS THE LAST LINE OF DEFENCE:
// The service allocates user IDs and referral codes with read-then-write
// sequences. The schema below turns any race into a constraint error instead
// of a silent duplicate:
//   - users.user_id is the PRIMARY KEY
//   - users.referral_code, users.email, users.mobile are UNIQUE
//   - payments.user_id is UNIQUE (one ledger record per member)
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// BLANK IMPORT:
	// The sqlite package's init() registers itself with database/sql as a driver
	// named "sqlite". After this import, sql.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so the row helpers below
// run the same SQL inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and implements every repository interface.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/membership.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests, lost on close)
//
// ONE CONNECTION:
// SQLite allows a single writer at a time, and an in-memory database exists
// per connection. We pin the pool to one connection so every query sees the
// same database and writers queue inside database/sql instead of failing
// with SQLITE_BUSY.
//
// Foreign keys are enabled through the DSN (_pragma) rather than a one-off
// Exec so that a reopened connection still enforces them.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", withPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets readers proceed while a write is in progress.
	// In-memory databases report "memory" and ignore it.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func withPragmas(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS is idempotent, and
// later column additions go through addColumnIfNotExists.
func (db *DB) migrate() error {
	// parent_user_id mirrors the referral relationship: deleting the referrer
	// clears the reference, renaming a user_id cascades to its referees.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			user_id        TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			email          TEXT NOT NULL UNIQUE,
			mobile         TEXT NOT NULL UNIQUE,
			password_hash  TEXT NOT NULL,
			position       TEXT,
			coins          INTEGER NOT NULL DEFAULT 0,
			email_verified INTEGER NOT NULL DEFAULT 0,
			referral_code  TEXT UNIQUE,
			parent_user_id TEXT REFERENCES users(user_id) ON DELETE SET NULL ON UPDATE CASCADE,
			status         TEXT NOT NULL DEFAULT 'pending',
			is_admin       INTEGER NOT NULL DEFAULT 0,
			joining_date   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			active_date    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_parent_user_id ON users(parent_user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id      TEXT UNIQUE REFERENCES users(user_id) ON DELETE SET NULL ON UPDATE CASCADE,
			total_amount INTEGER NOT NULL DEFAULT 0,
			status       TEXT NOT NULL DEFAULT 'pending',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating payments table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			trans_id   TEXT PRIMARY KEY,
			user_id    TEXT REFERENCES users(user_id) ON DELETE SET NULL ON UPDATE CASCADE,
			type       TEXT NOT NULL,
			amount     INTEGER NOT NULL DEFAULT 0,
			status     TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating transactions table: %w", err)
	}

	// v2: reference and free-form details on transactions.
	if err := db.addColumnIfNotExists("transactions", "reference",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding reference to transactions: %w", err)
	}
	if err := db.addColumnIfNotExists("transactions", "details", "TEXT"); err != nil {
		return fmt.Errorf("adding details to transactions: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist,
// so ALTER TABLE migrations can run on every start.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
