package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestSwapRequestEqual(t *testing.T) {
	req := domain.SwapRequest{
		TxHash:      domain.TxHash{1},
		OpId:        domain.NewOpId(1),
		Destination: "bob",
		TokenIn:     "usdc",
		AmountIn:    domain.NewAmount(100),
		TokenOut:    "xlm",
	}

	same := req
	same.AmountIn = domain.NewAmount(100)
	require.True(t, req.Equal(same))

	other := req
	other.TxHash = domain.TxHash{2}
	require.False(t, req.Equal(other))

	other = req
	other.AmountIn = domain.NewAmount(99)
	require.False(t, req.Equal(other))

	buf, err := json.Marshal(domain.CompletedSwapRequest{SwapRequest: req, AmountOut: domain.NewAmount(7)})
	require.NoError(t, err)

	var decoded domain.CompletedSwapRequest
	require.NoError(t, json.Unmarshal(buf, &decoded))
	require.True(t, req.Equal(decoded.SwapRequest))
	require.True(t, decoded.AmountOut.Equal(domain.NewAmount(7)))
}

func TestRouteValidate(t *testing.T) {
	hop := func(tokenOut domain.TokenId, tokens ...domain.TokenId) domain.SwapHop {
		return domain.SwapHop{Tokens: tokens, TokenOut: tokenOut}
	}

	valid := []struct {
		name  string
		route domain.Route
	}{
		{"single hop", domain.Route{hop("b", "a", "b")}},
		{"two hops", domain.Route{hop("b", "a", "b"), hop("c", "b", "c")}},
	}
	for _, f := range valid {
		t.Run(f.name, func(t *testing.T) {
			out := f.route[len(f.route)-1].TokenOut
			require.NoError(t, f.route.Validate("a", out))
		})
	}

	invalid := []struct {
		name     string
		route    domain.Route
		tokenOut domain.TokenId
		hop      int
	}{
		{"empty", nil, "b", 0},
		{"wrong input", domain.Route{hop("c", "b", "c")}, "c", 0},
		{"token out not in pool", domain.Route{hop("c", "a", "b")}, "c", 0},
		{"self swap", domain.Route{hop("a", "a", "b")}, "a", 0},
		{"broken chain", domain.Route{hop("b", "a", "b"), hop("d", "c", "d")}, "d", 1},
		{"wrong output", domain.Route{hop("b", "a", "b")}, "c", 0},
	}
	for _, f := range invalid {
		t.Run(f.name, func(t *testing.T) {
			err := f.route.Validate("a", f.tokenOut)
			require.Error(t, err)
			var routeErr *domain.RouteError
			require.ErrorAs(t, err, &routeErr)
			require.Equal(t, f.hop, routeErr.Hop)
		})
	}
}
