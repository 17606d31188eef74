package domain_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestOpId(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		maxU128 := "340282366920938463463374607431768211455"
		id, err := domain.ParseOpId(maxU128)
		require.NoError(t, err)
		require.Equal(t, maxU128, id.String())

		_, err = domain.ParseOpId("340282366920938463463374607431768211456")
		require.Error(t, err)
		_, err = domain.ParseOpId("-1")
		require.Error(t, err)
		_, err = domain.ParseOpId("abc")
		require.Error(t, err)
	})

	t.Run("compare", func(t *testing.T) {
		require.Equal(t, -1, domain.NewOpId(1).Cmp(domain.NewOpId(2)))
		require.Equal(t, 0, domain.NewOpId(7).Cmp(domain.NewOpId(7)))
		require.True(t, domain.OpId{}.IsZero())
	})

	t.Run("json", func(t *testing.T) {
		buf, err := json.Marshal(domain.NewOpId(42))
		require.NoError(t, err)
		require.Equal(t, `"42"`, string(buf))

		var id domain.OpId
		require.NoError(t, json.Unmarshal([]byte(`"42"`), &id))
		require.Equal(t, 0, id.Cmp(domain.NewOpId(42)))
		require.NoError(t, json.Unmarshal([]byte(`43`), &id))
		require.Equal(t, 0, id.Cmp(domain.NewOpId(43)))
	})
}

func TestAmount(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		maxI128 := "170141183460469231731687303715884105727"
		a, err := domain.ParseAmount(maxI128)
		require.NoError(t, err)
		require.Equal(t, maxI128, a.String())

		_, err = domain.ParseAmount("170141183460469231731687303715884105728")
		require.Error(t, err)
		_, err = domain.ParseAmount("-170141183460469231731687303715884105729")
		require.Error(t, err)
		_, err = domain.ParseAmount("1.5")
		require.Error(t, err)
	})

	t.Run("arithmetic", func(t *testing.T) {
		sum, err := domain.NewAmount(100).Add(domain.NewAmount(5))
		require.NoError(t, err)
		require.True(t, sum.Equal(domain.NewAmount(105)))

		diff, err := domain.NewAmount(100).Sub(domain.NewAmount(105))
		require.NoError(t, err)
		require.True(t, diff.IsNegative())

		maxAmount, err := domain.ParseAmount("170141183460469231731687303715884105727")
		require.NoError(t, err)
		_, err = maxAmount.Add(domain.NewAmount(1))
		require.Error(t, err)
	})

	t.Run("json", func(t *testing.T) {
		buf, err := json.Marshal(domain.NewAmount(-9))
		require.NoError(t, err)
		require.Equal(t, `"-9"`, string(buf))

		var a domain.Amount
		require.NoError(t, json.Unmarshal([]byte(`"96"`), &a))
		require.True(t, a.Equal(domain.NewAmount(96)))
	})
}

func TestTxHash(t *testing.T) {
	hexHash := strings.Repeat("ab", 32)
	h, err := domain.ParseTxHash(hexHash)
	require.NoError(t, err)
	require.Equal(t, hexHash, h.String())

	_, err = domain.ParseTxHash("abcd")
	require.Error(t, err)
	_, err = domain.ParseTxHash(strings.Repeat("zz", 32))
	require.Error(t, err)
}
