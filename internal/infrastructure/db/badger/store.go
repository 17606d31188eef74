package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/arkade-os/swapd/internal/core/ports"
	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const (
	ledgerStoreDir = "ledger"
	maxRetries     = 5
	retryDelay     = 100 * time.Millisecond
)

type store struct {
	db  *badgerhold.Store
	ttl time.Duration
}

// NewStore expects the base directory (empty for an in-memory db), a
// badger.Logger (may be nil) and the entry ttl (0 disables expiry).
func NewStore(config ...interface{}) (ports.Store, error) {
	if len(config) != 3 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}
	ttl, ok := config[2].(time.Duration)
	if !ok {
		return nil, fmt.Errorf("invalid ttl")
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, ledgerStoreDir)
	}
	db, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %s", err)
	}

	return &store{db, ttl}, nil
}

func (s *store) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	var err error
	for range maxRetries {
		if err = ctx.Err(); err != nil {
			return err
		}

		err = func() error {
			txn := s.db.Badger().NewTransaction(true)
			defer txn.Discard()

			if err := fn(&tx{txn: txn, ttl: s.ttl}); err != nil {
				return err
			}
			return txn.Commit()
		}()
		if err == nil {
			return nil
		}

		if errors.Is(err, badger.ErrConflict) {
			log.Debug("ledger store conflict, retrying")
			time.Sleep(retryDelay)
			continue
		}
		return err
	}

	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %s", ports.ErrConflict, err)
	}
	return err
}

func (s *store) View(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Badger().View(func(txn *badger.Txn) error {
		return fn(&tx{txn: txn, readOnly: true})
	})
}

func (s *store) Close() {
	// nolint:all
	s.db.Close()
}

type tx struct {
	txn      *badger.Txn
	ttl      time.Duration
	readOnly bool
}

func (t *tx) Get(key string) ([]byte, bool, error) {
	item, err := t.txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (t *tx) Has(key string) (bool, error) {
	_, err := t.txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return true, nil
}

func (t *tx) Set(key string, value []byte) error {
	entry := badger.NewEntry([]byte(key), value)
	if t.ttl > 0 {
		entry = entry.WithTTL(t.ttl)
	}
	if err := t.txn.SetEntry(entry); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (t *tx) Delete(key string) error {
	if err := t.txn.Delete([]byte(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (t *tx) Touch(key string) error {
	if t.readOnly || t.ttl <= 0 {
		return nil
	}
	value, ok, err := t.Get(key)
	if err != nil || !ok {
		return err
	}
	return t.Set(key, value)
}

func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
