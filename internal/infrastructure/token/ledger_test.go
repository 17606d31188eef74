package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/internal/core/ports"
	badgerdb "github.com/arkade-os/swapd/internal/infrastructure/db/badger"
	"github.com/arkade-os/swapd/internal/infrastructure/token"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
	"github.com/stretchr/testify/require"
)

const usdc = domain.TokenId("usdc")

func newStore(t *testing.T) ports.Store {
	store, err := badgerdb.NewStore("", nil, time.Duration(0))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ledger := token.NewLedger()

	balanceOf := func(account domain.AccountId) domain.Amount {
		var balance domain.Amount
		err := store.View(ctx, func(tx ports.Tx) error {
			var err error
			balance, err = ledger.Balance(ctx, tx, usdc, account)
			return err
		})
		require.NoError(t, err)
		return balance
	}

	err := store.Update(ctx, func(tx ports.Tx) error {
		return ledger.Mint(ctx, tx, usdc, "alice", domain.NewAmount(100))
	})
	require.NoError(t, err)
	require.Equal(t, "100", balanceOf("alice").String())
	require.Equal(t, "0", balanceOf("bob").String())

	t.Run("transfer", func(t *testing.T) {
		err := store.Update(ctx, func(tx ports.Tx) error {
			return ledger.Transfer(ctx, tx, usdc, "alice", "bob", domain.NewAmount(30))
		})
		require.NoError(t, err)
		require.Equal(t, "70", balanceOf("alice").String())
		require.Equal(t, "30", balanceOf("bob").String())

		err = store.Update(ctx, func(tx ports.Tx) error {
			return ledger.Transfer(ctx, tx, usdc, "bob", "alice", domain.NewAmount(31))
		})
		require.True(t, arkerrors.INSUFFICIENT_BALANCE.Is(err))

		err = store.Update(ctx, func(tx ports.Tx) error {
			return ledger.Transfer(ctx, tx, usdc, "bob", "alice", domain.NewAmount(-1))
		})
		require.True(t, arkerrors.INVALID_AMOUNT.Is(err))
	})

	t.Run("transfer from", func(t *testing.T) {
		err := store.Update(ctx, func(tx ports.Tx) error {
			return ledger.TransferFrom(
				ctx, tx, usdc, "custody", "alice", "custody", domain.NewAmount(10),
			)
		})
		require.True(t, arkerrors.INSUFFICIENT_ALLOWANCE.Is(err))

		err = store.Update(ctx, func(tx ports.Tx) error {
			return ledger.Approve(ctx, tx, usdc, "alice", "custody", domain.NewAmount(15))
		})
		require.NoError(t, err)

		err = store.Update(ctx, func(tx ports.Tx) error {
			return ledger.TransferFrom(
				ctx, tx, usdc, "custody", "alice", "custody", domain.NewAmount(10),
			)
		})
		require.NoError(t, err)
		require.Equal(t, "60", balanceOf("alice").String())
		require.Equal(t, "10", balanceOf("custody").String())

		err = store.View(ctx, func(tx ports.Tx) error {
			allowance, err := ledger.Allowance(ctx, tx, usdc, "alice", "custody")
			require.NoError(t, err)
			require.Equal(t, "5", allowance.String())
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("rolled back with the transaction", func(t *testing.T) {
		err := store.Update(ctx, func(tx ports.Tx) error {
			if err := ledger.Transfer(ctx, tx, usdc, "alice", "bob", domain.NewAmount(60)); err != nil {
				return err
			}
			return ledger.Transfer(ctx, tx, usdc, "bob", "carol", domain.NewAmount(1000))
		})
		require.Error(t, err)
		require.Equal(t, "60", balanceOf("alice").String())
		require.Equal(t, "30", balanceOf("bob").String())
		require.Equal(t, "0", balanceOf("carol").String())
	})

	t.Run("mint", func(t *testing.T) {
		err := store.Update(ctx, func(tx ports.Tx) error {
			return ledger.Mint(ctx, tx, usdc, "alice", domain.NewAmount(0))
		})
		require.True(t, arkerrors.INVALID_AMOUNT.Is(err))
	})
}
