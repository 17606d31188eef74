package ports

import (
	"context"

	"github.com/arkade-os/swapd/internal/core/domain"
)

// TokenLedger is the fungible-token transfer primitive. Every call runs
// inside the caller's transaction so token movements roll back together
// with the ledger state.
type TokenLedger interface {
	Balance(ctx context.Context, tx Tx, token domain.TokenId, account domain.AccountId) (domain.Amount, error)
	Allowance(
		ctx context.Context, tx Tx, token domain.TokenId, owner, spender domain.AccountId,
	) (domain.Amount, error)
	Approve(
		ctx context.Context, tx Tx, token domain.TokenId, owner, spender domain.AccountId,
		amount domain.Amount,
	) error
	Transfer(
		ctx context.Context, tx Tx, token domain.TokenId, from, to domain.AccountId,
		amount domain.Amount,
	) error
	// TransferFrom moves amount from -> to on behalf of spender, consuming
	// the allowance from granted to spender.
	TransferFrom(
		ctx context.Context, tx Tx, token domain.TokenId, spender, from, to domain.AccountId,
		amount domain.Amount,
	) error
	Mint(ctx context.Context, tx Tx, token domain.TokenId, to domain.AccountId, amount domain.Amount) error
}
