package ports

import (
	"context"
	"fmt"
	"sync"

	"github.com/arkade-os/swapd/internal/core/domain"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
)

// SwapRouter executes a chained swap on behalf of user. The router pulls
// amountIn of tokenIn from the grant owner by consuming grant, and credits
// the output to user. It must fail if the output is below outMin.
type SwapRouter interface {
	Account() domain.AccountId
	SwapChained(
		ctx context.Context, tx Tx, grant *TransferGrant, user domain.AccountId,
		route domain.Route, tokenIn domain.TokenId, amountIn, outMin domain.Amount,
	) (domain.Amount, error)
}

// TransferGrant authorizes spender to move exactly amount of token out of
// owner's account, once. It cannot be delegated further.
type TransferGrant struct {
	token   domain.TokenId
	owner   domain.AccountId
	spender domain.AccountId
	amount  domain.Amount

	lock     sync.Mutex
	consumed bool
	revoked  bool
}

func NewTransferGrant(
	token domain.TokenId, owner, spender domain.AccountId, amount domain.Amount,
) *TransferGrant {
	return &TransferGrant{
		token:   token,
		owner:   owner,
		spender: spender,
		amount:  amount,
	}
}

func (g *TransferGrant) Token() domain.TokenId     { return g.token }
func (g *TransferGrant) Owner() domain.AccountId   { return g.owner }
func (g *TransferGrant) Spender() domain.AccountId { return g.spender }
func (g *TransferGrant) Amount() domain.Amount     { return g.amount }

// Consume validates the requested transfer against the grant and marks it
// used.
func (g *TransferGrant) Consume(
	token domain.TokenId, spender domain.AccountId, amount domain.Amount,
) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	meta := arkerrors.GrantMetadata{
		Token:   string(token),
		Spender: string(spender),
		Amount:  amount.String(),
	}
	var reason string
	switch {
	case g.revoked:
		reason = "grant revoked"
	case g.consumed:
		reason = "grant already consumed"
	case token != g.token:
		reason = fmt.Sprintf("grant is for token %s", g.token)
	case spender != g.spender:
		reason = fmt.Sprintf("grant is for spender %s", g.spender)
	case !amount.Equal(g.amount):
		reason = fmt.Sprintf("grant is for amount %s", g.amount)
	default:
		g.consumed = true
		return nil
	}
	return arkerrors.GRANT_REJECTED.New("%s", reason).WithMetadata(meta)
}

func (g *TransferGrant) Revoke() {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.revoked = true
}

func (g *TransferGrant) Consumed() bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.consumed
}
