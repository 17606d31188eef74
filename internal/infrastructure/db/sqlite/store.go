package sqlitedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arkade-os/swapd/internal/core/ports"
	"github.com/arkade-os/swapd/internal/infrastructure/db/sqlkv"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

var dialect = sqlkv.Dialect{
	Name: "sqlite",
	Get: `SELECT value FROM kv_entries
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
	Upsert: `INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
	Delete: `DELETE FROM kv_entries WHERE key = ?`,
	Touch:  `UPDATE kv_entries SET expires_at = ? WHERE key = ?`,
	Purge:  `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`,

	IsConflict: isConflictError,
}

// OpenDb opens the sqlite file, creating its directory if needed.
func OpenDb(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %v", err)
		}
	}

	db, err := sql.Open(driverName, dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	return db, nil
}

// NewStore expects an open *sql.DB with migrations applied, the entry ttl
// and the purge interval.
func NewStore(config ...interface{}) (ports.Store, error) {
	if len(config) != 3 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open ledger store: expected *sql.DB but got %T", config[0])
	}
	ttl, ok := config[1].(time.Duration)
	if !ok {
		return nil, fmt.Errorf("invalid ttl")
	}
	purgeInterval, ok := config[2].(time.Duration)
	if !ok {
		return nil, fmt.Errorf("invalid purge interval")
	}

	store, err := sqlkv.NewStore(db, dialect, ttl, purgeInterval)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func isConflictError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "database is locked") ||
		strings.Contains(errMsg, "database table is locked") ||
		strings.Contains(errMsg, "busy")
}
