package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arkade-os/swapd/internal/core/ports"
	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"
)

const (
	maxRetries = 5
	retryDelay = 100 * time.Millisecond
)

// Dialect holds the statements and error classification of a SQL engine.
// Every statement takes its arguments in the documented order.
type Dialect struct {
	Name string
	// Get: key, now
	Get string
	// Upsert: key, value, expires_at
	Upsert string
	// Delete: key
	Delete string
	// Touch: expires_at, key
	Touch string
	// Purge: now
	Purge string

	TxOptions  *sql.TxOptions
	IsConflict func(error) bool
}

type Store struct {
	db        *sql.DB
	dialect   Dialect
	ttl       time.Duration
	scheduler *gocron.Scheduler
}

// NewStore returns a store over the kv_entries table. When ttl is positive a
// background job deletes expired rows every purgeInterval.
func NewStore(db *sql.DB, dialect Dialect, ttl, purgeInterval time.Duration) (*Store, error) {
	s := &Store{db: db, dialect: dialect, ttl: ttl}

	if ttl > 0 && purgeInterval > 0 {
		scheduler := gocron.NewScheduler(time.UTC)
		if _, err := scheduler.Every(purgeInterval).Do(s.purge); err != nil {
			return nil, fmt.Errorf("failed to schedule purge job: %w", err)
		}
		scheduler.StartAsync()
		s.scheduler = scheduler
	}

	return s, nil
}

func (s *Store) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	var lastErr error
	for range maxRetries {
		sqlTx, err := s.db.BeginTx(ctx, s.dialect.TxOptions)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(s.newTx(ctx, sqlTx)); err != nil {
			//nolint:all
			sqlTx.Rollback()

			if s.isConflict(err) {
				lastErr = err
				time.Sleep(retryDelay)
				continue
			}
			return err
		}

		if err := sqlTx.Commit(); err != nil {
			if s.isConflict(err) {
				lastErr = err
				time.Sleep(retryDelay)
				continue
			}
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}

	return fmt.Errorf("%w: %s", ports.ErrConflict, lastErr)
}

func (s *Store) View(ctx context.Context, fn func(tx ports.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	//nolint:all
	defer sqlTx.Rollback()

	t := s.newTx(ctx, sqlTx)
	t.readOnly = true
	return fn(t)
}

func (s *Store) Close() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	// nolint:all
	s.db.Close()
}

// Purge deletes expired rows and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.Purge, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.Purge(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to purge expired ledger entries")
		return
	}
	if count > 0 {
		log.Debugf("purged %d expired ledger entries", count)
	}
}

func (s *Store) isConflict(err error) bool {
	if s.dialect.IsConflict == nil {
		return false
	}
	return s.dialect.IsConflict(err)
}

func (s *Store) newTx(ctx context.Context, sqlTx *sql.Tx) *tx {
	return &tx{ctx: ctx, sqlTx: sqlTx, dialect: s.dialect, ttl: s.ttl}
}

type tx struct {
	ctx      context.Context
	sqlTx    *sql.Tx
	dialect  Dialect
	ttl      time.Duration
	readOnly bool
}

func (t *tx) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := t.sqlTx.QueryRowContext(t.ctx, t.dialect.Get, key, time.Now().Unix()).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (t *tx) Has(key string) (bool, error) {
	_, ok, err := t.Get(key)
	return ok, err
}

func (t *tx) Set(key string, value []byte) error {
	if t.readOnly {
		return fmt.Errorf("failed to set %s: read-only transaction", key)
	}
	if _, err := t.sqlTx.ExecContext(
		t.ctx, t.dialect.Upsert, key, value, t.expiresAt(),
	); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (t *tx) Delete(key string) error {
	if t.readOnly {
		return fmt.Errorf("failed to delete %s: read-only transaction", key)
	}
	if _, err := t.sqlTx.ExecContext(t.ctx, t.dialect.Delete, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (t *tx) Touch(key string) error {
	if t.readOnly || t.ttl <= 0 {
		return nil
	}
	if _, err := t.sqlTx.ExecContext(t.ctx, t.dialect.Touch, t.expiresAt(), key); err != nil {
		return fmt.Errorf("failed to touch %s: %w", key, err)
	}
	return nil
}

func (t *tx) expiresAt() sql.NullInt64 {
	if t.ttl <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: time.Now().Add(t.ttl).Unix(), Valid: true}
}
