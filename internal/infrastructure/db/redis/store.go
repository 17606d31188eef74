package redisdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arkade-os/swapd/internal/core/ports"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const keyPrefix = "swapd:"

type store struct {
	rdb          *redis.Client
	ttl          time.Duration
	numOfRetries int
	retryDelay   time.Duration
}

// NewStore expects the redis url, the entry ttl (0 disables expiry) and the
// number of retries for transactions invalidated by concurrent writers.
func NewStore(config ...interface{}) (ports.Store, error) {
	if len(config) != 3 {
		return nil, fmt.Errorf("invalid config")
	}
	url, ok := config[0].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("invalid redis url")
	}
	ttl, ok := config[1].(time.Duration)
	if !ok {
		return nil, fmt.Errorf("invalid ttl")
	}
	numOfRetries, ok := config[2].(int)
	if !ok || numOfRetries <= 0 {
		return nil, fmt.Errorf("invalid number of retries")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// nolint:all
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &store{
		rdb:          rdb,
		ttl:          ttl,
		numOfRetries: numOfRetries,
		retryDelay:   10 * time.Millisecond,
	}, nil
}

func (s *store) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	var err error
	for range s.numOfRetries {
		var appErr error
		err = s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			t := newTx(ctx, rtx, s.ttl, false)
			if appErr = fn(t); appErr != nil {
				return appErr
			}
			return t.commit()
		})
		if err == nil {
			return nil
		}
		if appErr != nil || !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		log.Debug("ledger store transaction invalidated, retrying")
		time.Sleep(s.retryDelay)
	}
	return fmt.Errorf("%w: %s", ports.ErrConflict, err)
}

func (s *store) View(ctx context.Context, fn func(tx ports.Tx) error) error {
	return fn(newTx(ctx, s.rdb, s.ttl, true))
}

func (s *store) Close() {
	// nolint:all
	s.rdb.Close()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type pendingWrite struct {
	value   []byte
	deleted bool
	touched bool
}

// tx watches every key it reads and buffers writes until commit, so reads
// observe the transaction's own writes.
type tx struct {
	ctx      context.Context
	rdb      getter
	rtx      *redis.Tx
	ttl      time.Duration
	readOnly bool
	writes   map[string]*pendingWrite
	order    []string
}

func newTx(ctx context.Context, rdb getter, ttl time.Duration, readOnly bool) *tx {
	t := &tx{
		ctx:      ctx,
		rdb:      rdb,
		ttl:      ttl,
		readOnly: readOnly,
		writes:   make(map[string]*pendingWrite),
	}
	if rtx, ok := rdb.(*redis.Tx); ok {
		t.rtx = rtx
	}
	return t
}

func (t *tx) Get(key string) ([]byte, bool, error) {
	if w, ok := t.writes[key]; ok && !w.touched {
		if w.deleted {
			return nil, false, nil
		}
		return w.value, true, nil
	}
	if err := t.watch(key); err != nil {
		return nil, false, err
	}
	value, err := t.rdb.Get(t.ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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
	t.buffer(key, &pendingWrite{value: value})
	return nil
}

func (t *tx) Delete(key string) error {
	if t.readOnly {
		return fmt.Errorf("failed to delete %s: read-only transaction", key)
	}
	t.buffer(key, &pendingWrite{deleted: true})
	return nil
}

func (t *tx) Touch(key string) error {
	if t.readOnly || t.ttl <= 0 {
		return nil
	}
	if _, ok := t.writes[key]; ok {
		// a pending set already refreshes the ttl
		return nil
	}
	t.buffer(key, &pendingWrite{touched: true})
	return nil
}

func (t *tx) buffer(key string, w *pendingWrite) {
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = w
}

func (t *tx) watch(key string) error {
	if t.rtx == nil {
		return nil
	}
	if err := t.rtx.Watch(t.ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to watch %s: %w", key, err)
	}
	return nil
}

func (t *tx) commit() error {
	if len(t.writes) == 0 {
		return nil
	}
	_, err := t.rtx.TxPipelined(t.ctx, func(pipe redis.Pipeliner) error {
		for _, key := range t.order {
			w := t.writes[key]
			switch {
			case w.deleted:
				pipe.Del(t.ctx, keyPrefix+key)
			case w.touched:
				pipe.Expire(t.ctx, keyPrefix+key, t.ttl)
			default:
				pipe.Set(t.ctx, keyPrefix+key, w.value, t.ttl)
			}
		}
		return nil
	})
	return err
}
