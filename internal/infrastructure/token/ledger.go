package token

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/internal/core/ports"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
)

// ledger keeps balances and allowances in the same key-value store as the
// swap ledger.
type ledger struct{}

func NewLedger() ports.TokenLedger {
	return ledger{}
}

func balanceKey(token domain.TokenId, account domain.AccountId) string {
	return fmt.Sprintf("balance/%s/%s", token, account)
}

func allowanceKey(token domain.TokenId, owner, spender domain.AccountId) string {
	return fmt.Sprintf("allowance/%s/%s/%s", token, owner, spender)
}

func (l ledger) Balance(
	_ context.Context, tx ports.Tx, token domain.TokenId, account domain.AccountId,
) (domain.Amount, error) {
	return readAmount(tx, balanceKey(token, account))
}

func (l ledger) Allowance(
	_ context.Context, tx ports.Tx, token domain.TokenId, owner, spender domain.AccountId,
) (domain.Amount, error) {
	return readAmount(tx, allowanceKey(token, owner, spender))
}

func (l ledger) Approve(
	_ context.Context, tx ports.Tx, token domain.TokenId, owner, spender domain.AccountId,
	amount domain.Amount,
) error {
	if amount.IsNegative() {
		return arkerrors.INVALID_AMOUNT.New("allowance must not be negative").
			WithMetadata(arkerrors.AmountMetadata{Amount: amount.String()})
	}
	key := allowanceKey(token, owner, spender)
	if amount.IsZero() {
		return tx.Delete(key)
	}
	return writeAmount(tx, key, amount)
}

func (l ledger) Transfer(
	_ context.Context, tx ports.Tx, token domain.TokenId, from, to domain.AccountId,
	amount domain.Amount,
) error {
	return move(tx, token, from, to, amount)
}

func (l ledger) TransferFrom(
	_ context.Context, tx ports.Tx, token domain.TokenId, spender, from, to domain.AccountId,
	amount domain.Amount,
) error {
	if amount.IsNegative() {
		return arkerrors.INVALID_AMOUNT.New("transfer amount must not be negative").
			WithMetadata(arkerrors.AmountMetadata{Amount: amount.String()})
	}

	key := allowanceKey(token, from, spender)
	allowance, err := readAmount(tx, key)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return arkerrors.INSUFFICIENT_ALLOWANCE.New(
			"%s may not spend %s %s of %s", spender, amount, token, from,
		).WithMetadata(arkerrors.BalanceMetadata{
			Token:     string(token),
			Account:   string(from),
			Available: allowance.String(),
			Required:  amount.String(),
		})
	}
	left, err := allowance.Sub(amount)
	if err != nil {
		return err
	}
	if left.IsZero() {
		if err := tx.Delete(key); err != nil {
			return err
		}
	} else if err := writeAmount(tx, key, left); err != nil {
		return err
	}

	return move(tx, token, from, to, amount)
}

func (l ledger) Mint(
	_ context.Context, tx ports.Tx, token domain.TokenId, to domain.AccountId, amount domain.Amount,
) error {
	if !amount.IsPositive() {
		return arkerrors.INVALID_AMOUNT.New("mint amount must be positive").
			WithMetadata(arkerrors.AmountMetadata{Amount: amount.String()})
	}
	key := balanceKey(token, to)
	balance, err := readAmount(tx, key)
	if err != nil {
		return err
	}
	balance, err = balance.Add(amount)
	if err != nil {
		return arkerrors.INVALID_AMOUNT.Wrap(err).
			WithMetadata(arkerrors.AmountMetadata{Amount: amount.String()})
	}
	return writeAmount(tx, key, balance)
}

func move(
	tx ports.Tx, token domain.TokenId, from, to domain.AccountId, amount domain.Amount,
) error {
	if amount.IsNegative() {
		return arkerrors.INVALID_AMOUNT.New("transfer amount must not be negative").
			WithMetadata(arkerrors.AmountMetadata{Amount: amount.String()})
	}
	if amount.IsZero() || from == to {
		return nil
	}

	fromKey := balanceKey(token, from)
	fromBalance, err := readAmount(tx, fromKey)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return arkerrors.INSUFFICIENT_BALANCE.New(
			"%s holds less than %s %s", from, amount, token,
		).WithMetadata(arkerrors.BalanceMetadata{
			Token:     string(token),
			Account:   string(from),
			Available: fromBalance.String(),
			Required:  amount.String(),
		})
	}

	toKey := balanceKey(token, to)
	toBalance, err := readAmount(tx, toKey)
	if err != nil {
		return err
	}

	fromBalance, err = fromBalance.Sub(amount)
	if err != nil {
		return err
	}
	toBalance, err = toBalance.Add(amount)
	if err != nil {
		return arkerrors.INVALID_AMOUNT.Wrap(err).
			WithMetadata(arkerrors.AmountMetadata{Amount: amount.String()})
	}

	if err := writeAmount(tx, fromKey, fromBalance); err != nil {
		return err
	}
	return writeAmount(tx, toKey, toBalance)
}

func readAmount(tx ports.Tx, key string) (domain.Amount, error) {
	buf, ok, err := tx.Get(key)
	if err != nil {
		return domain.Amount{}, err
	}
	if !ok {
		return domain.ZeroAmount, nil
	}
	if err := tx.Touch(key); err != nil {
		return domain.Amount{}, err
	}
	var amount domain.Amount
	if err := json.Unmarshal(buf, &amount); err != nil {
		return domain.Amount{}, fmt.Errorf("malformed amount at %s: %w", key, err)
	}
	return amount, nil
}

func writeAmount(tx ports.Tx, key string, amount domain.Amount) error {
	buf, err := json.Marshal(amount)
	if err != nil {
		return err
	}
	return tx.Set(key, buf)
}
