package application

import (
	"fmt"

	"github.com/arkade-os/swapd/internal/core/domain"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
)

func feeKey(token domain.TokenId) string {
	if token.IsEmpty() {
		return globalFeeKey
	}
	return fmt.Sprintf("fee/%s", token)
}

func listProxyWallets(s *state) (map[domain.AccountId]domain.TokenId, error) {
	wallets := make(map[domain.AccountId]domain.TokenId)
	if _, err := s.get(proxyWalletsKey, &wallets); err != nil {
		return nil, err
	}
	return wallets, nil
}

// registerProxyWallet maps wallet to token, evicting any other wallet
// mapped to the same token. It returns the evicted wallet, if any.
func registerProxyWallet(
	s *state, wallet domain.AccountId, token domain.TokenId,
) (domain.AccountId, error) {
	wallets, err := listProxyWallets(s)
	if err != nil {
		return "", err
	}
	var evicted domain.AccountId
	for w, t := range wallets {
		if t == token && w != wallet {
			evicted = w
			delete(wallets, w)
		}
	}
	wallets[wallet] = token
	if err := s.put(proxyWalletsKey, wallets); err != nil {
		return "", err
	}
	return evicted, nil
}

func resolveOutputToken(s *state, wallet domain.AccountId) (domain.TokenId, error) {
	wallets, err := listProxyWallets(s)
	if err != nil {
		return "", err
	}
	token, ok := wallets[wallet]
	if !ok {
		return "", arkerrors.UNAUTHORIZED_PROXY_WALLET.New("%s is not a proxy wallet", wallet).
			WithMetadata(arkerrors.AccountMetadata{Account: string(wallet)})
	}
	return token, nil
}

// getFee returns the fee of token, falling back to the global fee and then
// to zero.
func getFee(s *state, token domain.TokenId) (domain.Amount, error) {
	fee := domain.ZeroAmount
	ok, err := s.get(feeKey(token), &fee)
	if err != nil {
		return domain.Amount{}, err
	}
	if ok || token.IsEmpty() {
		return fee, nil
	}
	if _, err := s.get(globalFeeKey, &fee); err != nil {
		return domain.Amount{}, err
	}
	return fee, nil
}

func setFee(s *state, token domain.TokenId, amount domain.Amount) error {
	if amount.IsNegative() {
		return arkerrors.INVALID_AMOUNT.New("fee must not be negative").
			WithMetadata(arkerrors.AmountMetadata{Fee: amount.String()})
	}
	return s.put(feeKey(token), amount)
}
