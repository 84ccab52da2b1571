// Package store is the SQLite-backed persistence layer: the declarative
// nets/ports tables the reconciler reads, and the of_flows/ofcs tables it
// writes back. Schema creation and pragma setup follow the same pattern
// the daemon uses for its own state database.
package store

import (
	"database/sql"
	"fmt"
)

// StoreError wraps any failure from a store operation, per the error-kind
// taxonomy: the reconciler never inspects *sql.DB errors directly.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Open opens the SQLite database at path with the daemon's standard
// pragmas: WAL journaling, a generous busy timeout, and a shared cache, so
// the worker's single writer goroutine does not block the startup
// bootstrap pass that reads the nets table concurrently.
func Open(path string) (*sql.DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=30000&cache=shared&_cache_size=-65536&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, wrap("open", err)
	}
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.Close()
		return nil, wrap("checkpoint", err)
	}
	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the worker's tables if they do not already exist.
// Safe to call on every startup.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nets (
			uuid           TEXT PRIMARY KEY,
			type           TEXT NOT NULL,
			admin_state_up INTEGER NOT NULL DEFAULT 1,
			vlan           INTEGER,
			provider       TEXT,
			bind_net       TEXT,
			bind_type      TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS ports (
			uuid           TEXT PRIMARY KEY,
			net_id         TEXT NOT NULL REFERENCES nets(uuid),
			switch_port    TEXT NOT NULL,
			vlan           INTEGER,
			mac            TEXT,
			type           TEXT NOT NULL DEFAULT '',
			model          TEXT NOT NULL DEFAULT '',
			admin_state_up INTEGER NOT NULL DEFAULT 1,
			status         TEXT NOT NULL DEFAULT 'ACTIVE'
		)`,
		`CREATE TABLE IF NOT EXISTS of_flows (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			name         TEXT NOT NULL,
			net_id       TEXT REFERENCES nets(uuid) ON DELETE SET NULL,
			priority     INTEGER NOT NULL,
			vlan         TEXT,
			ingress_port TEXT NOT NULL,
			actions      TEXT NOT NULL,
			dst_mac      TEXT,
			src_mac      TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS ofcs (
			uuid       TEXT PRIMARY KEY,
			status     TEXT NOT NULL DEFAULT 'INACTIVE',
			last_error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ports_net_id ON ports(net_id)`,
		`CREATE INDEX IF NOT EXISTS idx_of_flows_net_id ON of_flows(net_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return wrap("ensure-schema", err)
		}
	}
	return nil
}
