package store

import "database/sql"

// OFC status values written to the ofcs table.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
	StatusError    = "ERROR"
)

// SetOFCStatus records an OFC's health. Rows for the sentinel "Default" OFC
// are never written — there is no physical controller behind it to report
// on.
func SetOFCStatus(db *sql.DB, ofcUUID, status, lastError string) error {
	if ofcUUID == "Default" {
		return nil
	}
	_, err := db.Exec(`
		INSERT INTO ofcs (uuid, status, last_error) VALUES (?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET status=excluded.status, last_error=excluded.last_error`,
		ofcUUID, status, lastError)
	return wrap("set-ofc-status", err)
}
