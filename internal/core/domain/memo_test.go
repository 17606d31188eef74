package domain_test

import (
	"strings"
	"testing"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/stretchr/testify/require"
)

// memoAt renders n in base 62 over the memo alphabet, left padded.
func memoAt(n uint64) domain.Memo {
	buf := []byte(strings.Repeat("0", domain.MemoLength))
	for i := len(buf) - 1; i >= 0 && n > 0; i-- {
		buf[i] = domain.MemoAlphabet[n%62]
		n /= 62
	}
	return domain.Memo(buf)
}

func TestNextMemo(t *testing.T) {
	t.Run("first thousand", func(t *testing.T) {
		expected := []string{
			"0000000000000000000000000000",
			"000000000000000000000000003e",
			"000000000000000000000000006s",
			"000000000000000000000000009G",
			"00000000000000000000000000cU",
		}

		memo := domain.InitialMemo
		sampled := make([]string, 0, len(expected))
		seen := make(map[domain.Memo]struct{})
		for i := 0; i < 1000; i++ {
			if i%200 == 0 {
				sampled = append(sampled, memo.String())
			}
			_, dup := seen[memo]
			require.False(t, dup, "memo %s repeated", memo)
			seen[memo] = struct{}{}
			require.Equal(t, memoAt(uint64(i)), memo)

			if i < 999 {
				memo = domain.NextMemo(memo)
			}
		}
		require.Equal(t, expected, sampled)
		require.Equal(t, domain.Memo(strings.Repeat("0", 26)+"g7"), memo)
	})

	t.Run("far vectors", func(t *testing.T) {
		fixtures := []struct {
			n        uint64
			expected string
		}{
			{20_000_000, "000000000000000000000001lUUE"},
			{40_000_000, "000000000000000000000002HPPi"},
			{60_000_000, "0000000000000000000000043KJW"},
			{80_000_000, "000000000000000000000005pFEA"},
		}
		for _, f := range fixtures {
			require.Equal(t, f.expected, memoAt(f.n).String())
			require.Equal(t, memoAt(f.n+1), domain.NextMemo(memoAt(f.n)))
		}
	})

	t.Run("carry", func(t *testing.T) {
		for _, n := range []uint64{61, 62*62 - 1, 62*62*62 - 1, 14776336 - 1} {
			require.Equal(t, memoAt(n+1), domain.NextMemo(memoAt(n)), "n=%d", n)
		}
	})

	t.Run("wrap around", func(t *testing.T) {
		last := domain.Memo(strings.Repeat("Z", domain.MemoLength))
		require.Equal(t, domain.InitialMemo, domain.NextMemo(last))
	})
}

func TestParseMemo(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		m, err := domain.ParseMemo("000000000000000000000001lUUE")
		require.NoError(t, err)
		require.Equal(t, domain.Memo("000000000000000000000001lUUE"), m)
	})

	t.Run("invalid", func(t *testing.T) {
		fixtures := []string{
			"",
			"0000",
			strings.Repeat("0", domain.MemoLength+1),
			strings.Repeat("0", domain.MemoLength-1) + "-",
			strings.Repeat("0", domain.MemoLength-1) + " ",
		}
		for _, f := range fixtures {
			_, err := domain.ParseMemo(f)
			require.Error(t, err, "memo %q", f)
		}
	})
}
