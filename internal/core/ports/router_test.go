package ports_test

import (
	"testing"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/internal/core/ports"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTransferGrant(t *testing.T) {
	newGrant := func() *ports.TransferGrant {
		return ports.NewTransferGrant("usdc", "custody", "router", domain.NewAmount(100))
	}

	t.Run("single use", func(t *testing.T) {
		grant := newGrant()
		require.NoError(t, grant.Consume("usdc", "router", domain.NewAmount(100)))
		require.True(t, grant.Consumed())

		err := grant.Consume("usdc", "router", domain.NewAmount(100))
		require.True(t, arkerrors.GRANT_REJECTED.Is(err))
	})

	t.Run("revoked", func(t *testing.T) {
		grant := newGrant()
		grant.Revoke()
		err := grant.Consume("usdc", "router", domain.NewAmount(100))
		require.True(t, arkerrors.GRANT_REJECTED.Is(err))
		require.False(t, grant.Consumed())
	})

	t.Run("scope", func(t *testing.T) {
		fixtures := []struct {
			name    string
			token   domain.TokenId
			spender domain.AccountId
			amount  int64
		}{
			{"other token", "xlm", "router", 100},
			{"other spender", "usdc", "mallory", 100},
			{"less", "usdc", "router", 99},
			{"more", "usdc", "router", 101},
		}
		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				grant := newGrant()
				err := grant.Consume(f.token, f.spender, domain.NewAmount(f.amount))
				require.True(t, arkerrors.GRANT_REJECTED.Is(err))
				require.False(t, grant.Consumed())
			})
		}
	})
}
