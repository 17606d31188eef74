package ports

import (
	"context"
	"errors"
)

// ErrConflict is returned by Store.Update when the transaction lost a race
// against a concurrent writer and could not be committed after retrying.
var ErrConflict = errors.New("transaction conflict")

// Tx is a read-write view of the key-value store within a single unit of
// work. Writes become visible to other transactions only after commit.
type Tx interface {
	// Get returns the value stored at key and whether it exists.
	Get(key string) ([]byte, bool, error)
	Has(key string) (bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Touch extends the lifetime of key without changing its value.
	// It is a no-op if key does not exist.
	Touch(key string) error
}

// Store runs units of work atomically: Update commits every write made
// through tx if fn returns nil and discards all of them otherwise.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Close()
}
