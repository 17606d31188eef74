package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/internal/core/ports"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
)

const (
	adminKey           = "admin"
	operatorKey        = "operator"
	swapRouterKey      = "swap_router"
	proxyWalletsKey    = "proxy_wallets"
	lastOperationIdKey = "last_operation_id"
	codeHashKey        = "code_hash"
	nextMemoKey        = "next_memo"
	globalFeeKey       = "fee"
	noncePrefix        = "nonce/"
)

var errStaleNonce = errors.New("proof nonce already used or out of order")

// state is the ledger as seen from within one unit of work. Within an update,
// every read refreshes the lifetime of the record it hits; views leave
// lifetimes untouched.
type state struct {
	ctx    context.Context
	tx     ports.Tx
	events []domain.Event
}

func newState(ctx context.Context, tx ports.Tx) *state {
	return &state{ctx: ctx, tx: tx}
}

func (s *state) emit(events ...domain.Event) {
	s.events = append(s.events, events...)
}

// get decodes the value at key into v and reports whether it exists.
func (s *state) get(key string, v any) (bool, error) {
	buf, ok, err := s.tx.Get(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := s.tx.Touch(key); err != nil {
		return false, err
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return false, fmt.Errorf("malformed record at %s: %w", key, err)
	}
	return true, nil
}

// mustGet is get failing with VALUE_MISSING when key is absent.
func (s *state) mustGet(key string, v any) error {
	ok, err := s.get(key, v)
	if err != nil {
		return err
	}
	if !ok {
		return arkerrors.VALUE_MISSING.New("no value at %s", key).
			WithMetadata(arkerrors.ValueMissingMetadata{Key: key})
	}
	return nil
}

func (s *state) put(key string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode record at %s: %w", key, err)
	}
	return s.tx.Set(key, buf)
}

func (s *state) has(key string) (bool, error) {
	return s.tx.Has(key)
}

func (s *state) account(key string) (domain.AccountId, bool, error) {
	var account domain.AccountId
	ok, err := s.get(key, &account)
	return account, ok, err
}

func (s *state) lastOperationId() (domain.OpId, error) {
	var opId domain.OpId
	if _, err := s.get(lastOperationIdKey, &opId); err != nil {
		return domain.OpId{}, err
	}
	return opId, nil
}

func (s *state) setLastOperationId(opId domain.OpId) error {
	return s.put(lastOperationIdKey, opId)
}

type codeVersion struct {
	CodeHash string `json:"code_hash"`
	Version  uint32 `json:"version"`
}

func (s *state) codeVersion() (*codeVersion, error) {
	var cv codeVersion
	ok, err := s.get(codeHashKey, &cv)
	if err != nil || !ok {
		return nil, err
	}
	return &cv, nil
}

// nonce returns the last proof nonce consumed for signer, 0 if none.
func (s *state) nonce(signer domain.AccountId) (uint64, error) {
	var nonce uint64
	if _, err := s.get(noncePrefix+string(signer), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

func (s *state) advanceNonce(signer domain.AccountId, nonce uint64) error {
	last, err := s.nonce(signer)
	if err != nil {
		return err
	}
	if nonce != last+1 {
		return fmt.Errorf("%w: got %d, expected %d", errStaleNonce, nonce, last+1)
	}
	return s.put(noncePrefix+string(signer), nonce)
}
