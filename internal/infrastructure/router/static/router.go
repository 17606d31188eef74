package staticrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/internal/core/ports"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var bpsDenominator = decimal.NewFromInt(maxFeeBps)

// pool is the persisted part of a pool. Reserves are the token balances of
// the pool's account.
type pool struct {
	Id     domain.PoolId    `json:"id"`
	Tokens []domain.TokenId `json:"tokens"`
	FeeBps uint32           `json:"fee_bps"`
}

func poolKey(id domain.PoolId) string {
	return fmt.Sprintf("pool/%s", id)
}

func poolAccount(id domain.PoolId) domain.AccountId {
	return domain.AccountId(fmt.Sprintf("pool:%s", id))
}

type router struct {
	account domain.AccountId
	ledger  ports.TokenLedger
}

// NewRouter returns a router of constant-product pools that lives at account.
func NewRouter(account domain.AccountId, ledger ports.TokenLedger) ports.SwapRouter {
	return &router{account, ledger}
}

// Seed creates the configured pools that do not exist yet and mints their
// reserves.
func Seed(
	ctx context.Context, store ports.Store, ledger ports.TokenLedger, pools []PoolConfig,
) error {
	return store.Update(ctx, func(tx ports.Tx) error {
		for _, cfg := range pools {
			parsed, err := cfg.parse()
			if err != nil {
				return err
			}
			key := poolKey(parsed.id)
			exists, err := tx.Has(key)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			buf, err := json.Marshal(pool{parsed.id, parsed.tokens, parsed.feeBps})
			if err != nil {
				return err
			}
			if err := tx.Set(key, buf); err != nil {
				return err
			}
			for i, token := range parsed.tokens {
				if err := ledger.Mint(
					ctx, tx, token, poolAccount(parsed.id), parsed.reserves[i],
				); err != nil {
					return err
				}
			}
			log.Infof("seeded pool %s (%s/%s)", parsed.id, parsed.tokens[0], parsed.tokens[1])
		}
		return nil
	})
}

func (r *router) Account() domain.AccountId {
	return r.account
}

func (r *router) SwapChained(
	ctx context.Context, tx ports.Tx, grant *ports.TransferGrant, user domain.AccountId,
	route domain.Route, tokenIn domain.TokenId, amountIn, outMin domain.Amount,
) (domain.Amount, error) {
	if len(route) == 0 {
		return domain.Amount{}, arkerrors.INVALID_ROUTE.New("route is empty").
			WithMetadata(arkerrors.RouteMetadata{Reason: "empty"})
	}
	if err := route.Validate(tokenIn, route[len(route)-1].TokenOut); err != nil {
		var routeErr *domain.RouteError
		if errors.As(err, &routeErr) {
			return domain.Amount{}, arkerrors.INVALID_ROUTE.Wrap(err).
				WithMetadata(arkerrors.RouteMetadata{Hop: routeErr.Hop, Reason: routeErr.Reason})
		}
		return domain.Amount{}, err
	}
	if err := grant.Consume(tokenIn, r.account, amountIn); err != nil {
		return domain.Amount{}, err
	}
	if err := r.ledger.Transfer(ctx, tx, tokenIn, grant.Owner(), r.account, amountIn); err != nil {
		return domain.Amount{}, err
	}

	current, amount := tokenIn, amountIn
	for i, hop := range route {
		out, err := r.swap(ctx, tx, i, hop, current, amount)
		if err != nil {
			return domain.Amount{}, err
		}
		current, amount = hop.TokenOut, out
	}

	if amount.Cmp(outMin) < 0 {
		return domain.Amount{}, arkerrors.SLIPPAGE_EXCEEDED.New(
			"swap output %s below minimum %s", amount, outMin,
		).WithMetadata(arkerrors.SlippageMetadata{
			AmountOut: amount.String(),
			MinOut:    outMin.String(),
		})
	}

	if err := r.ledger.Transfer(ctx, tx, current, r.account, user, amount); err != nil {
		return domain.Amount{}, err
	}
	return amount, nil
}

func (r *router) swap(
	ctx context.Context, tx ports.Tx, index int, hop domain.SwapHop,
	tokenIn domain.TokenId, amountIn domain.Amount,
) (domain.Amount, error) {
	p, err := getPool(tx, hop.PoolId)
	if err != nil {
		return domain.Amount{}, err
	}
	if p == nil {
		return domain.Amount{}, arkerrors.INVALID_ROUTE.New("pool %s not found", hop.PoolId).
			WithMetadata(arkerrors.RouteMetadata{Hop: index, Reason: "unknown pool"})
	}
	if !slices.Contains(p.Tokens, tokenIn) || !slices.Contains(p.Tokens, hop.TokenOut) {
		return domain.Amount{}, arkerrors.INVALID_ROUTE.New(
			"pool %s does not trade %s for %s", hop.PoolId, tokenIn, hop.TokenOut,
		).WithMetadata(arkerrors.RouteMetadata{Hop: index, Reason: "pair mismatch"})
	}

	account := poolAccount(p.Id)
	reserveIn, err := r.ledger.Balance(ctx, tx, tokenIn, account)
	if err != nil {
		return domain.Amount{}, err
	}
	reserveOut, err := r.ledger.Balance(ctx, tx, hop.TokenOut, account)
	if err != nil {
		return domain.Amount{}, err
	}

	amountOut, err := getAmountOut(amountIn, reserveIn, reserveOut, p.FeeBps)
	if err != nil {
		return domain.Amount{}, err
	}

	if err := r.ledger.Transfer(ctx, tx, tokenIn, r.account, account, amountIn); err != nil {
		return domain.Amount{}, err
	}
	if err := r.ledger.Transfer(ctx, tx, hop.TokenOut, account, r.account, amountOut); err != nil {
		return domain.Amount{}, err
	}
	return amountOut, nil
}

// getAmountOut applies the constant-product formula with the fee taken on
// the input, flooring the result.
func getAmountOut(amountIn, reserveIn, reserveOut domain.Amount, feeBps uint32) (domain.Amount, error) {
	if !amountIn.IsPositive() {
		return domain.Amount{}, arkerrors.INVALID_AMOUNT.New("swap input must be positive").
			WithMetadata(arkerrors.AmountMetadata{Amount: amountIn.String()})
	}
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return domain.ZeroAmount, nil
	}

	inWithFee := amountIn.Decimal().Mul(bpsDenominator.Sub(decimal.NewFromInt(int64(feeBps))))
	numerator := inWithFee.Mul(reserveOut.Decimal())
	denominator := reserveIn.Decimal().Mul(bpsDenominator).Add(inWithFee)
	quotient, _ := numerator.QuoRem(denominator, 0)
	return domain.AmountFromDecimal(quotient)
}

func getPool(tx ports.Tx, id domain.PoolId) (*pool, error) {
	key := poolKey(id)
	buf, ok, err := tx.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if err := tx.Touch(key); err != nil {
		return nil, err
	}
	var p pool
	if err := json.Unmarshal(buf, &p); err != nil {
		return nil, fmt.Errorf("malformed pool %s: %w", id, err)
	}
	return &p, nil
}
