package pgdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/arkade-os/swapd/internal/core/ports"
	"github.com/arkade-os/swapd/internal/infrastructure/db/sqlkv"
)

var dialect = sqlkv.Dialect{
	Name: "postgres",
	Get: `SELECT value FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`,
	Upsert: `INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
	Delete: `DELETE FROM kv_entries WHERE key = $1`,
	Touch:  `UPDATE kv_entries SET expires_at = $1 WHERE key = $2`,
	Purge:  `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`,

	TxOptions:  &sql.TxOptions{Isolation: sql.LevelSerializable},
	IsConflict: isConflictError,
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
