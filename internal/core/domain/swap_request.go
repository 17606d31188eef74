package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
)

const (
	// CompletedRequestsPageSize is the capacity of a page of a destination's
	// completed log.
	CompletedRequestsPageSize = 50
	// DestinationsPageSize is the capacity of a page of the destination index.
	DestinationsPageSize = 100
)

// SwapRequest is a registered swap obligation waiting to be settled.
type SwapRequest struct {
	TxHash      TxHash    `json:"tx_hash"`
	OpId        OpId      `json:"op_id"`
	Destination AccountId `json:"destination"`
	TokenIn     TokenId   `json:"token_in"`
	AmountIn    Amount    `json:"amount_in"`
	TokenOut    TokenId   `json:"token_out"`
}

// Equal compares every field, which is how active entries are matched on
// completion.
func (r SwapRequest) Equal(other SwapRequest) bool {
	return r.TxHash == other.TxHash &&
		r.OpId.Cmp(other.OpId) == 0 &&
		r.Destination == other.Destination &&
		r.TokenIn == other.TokenIn &&
		r.AmountIn.Equal(other.AmountIn) &&
		r.TokenOut == other.TokenOut
}

// CompletedSwapRequest is a settled request with the amount credited to the
// destination.
type CompletedSwapRequest struct {
	SwapRequest
	AmountOut Amount `json:"amount_out"`
}

// PoolId identifies a liquidity pool inside the router.
type PoolId [32]byte

func ParsePoolId(s string) (PoolId, error) {
	var id PoolId
	buf, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid pool id: %w", err)
	}
	if len(buf) != len(id) {
		return id, fmt.Errorf("invalid pool id: expected 32 bytes, got %d", len(buf))
	}
	copy(id[:], buf)
	return id, nil
}

func (p PoolId) String() string { return hex.EncodeToString(p[:]) }

func (p PoolId) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *PoolId) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePoolId(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// SwapHop is a single step of a route: swap through the pool identified by
// PoolId, whose tokens are Tokens, receiving TokenOut.
type SwapHop struct {
	Tokens   []TokenId `json:"tokens"`
	PoolId   PoolId    `json:"pool_id"`
	TokenOut TokenId   `json:"token_out"`
}

// Route is an ordered multi-hop path through the router's pools.
type Route []SwapHop

// RouteError describes why a route was rejected.
type RouteError struct {
	Hop    int
	Reason string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("invalid route at hop %d: %s", e.Hop, e.Reason)
}

// Validate checks that the route starts from tokenIn, chains hop by hop and
// ends in tokenOut.
func (r Route) Validate(tokenIn, tokenOut TokenId) error {
	if len(r) == 0 {
		return &RouteError{Hop: 0, Reason: "route is empty"}
	}
	current := tokenIn
	for i, hop := range r {
		if !slices.Contains(hop.Tokens, current) {
			return &RouteError{Hop: i, Reason: fmt.Sprintf("pool does not accept %s", current)}
		}
		if !slices.Contains(hop.Tokens, hop.TokenOut) {
			return &RouteError{Hop: i, Reason: fmt.Sprintf("pool does not hold %s", hop.TokenOut)}
		}
		if hop.TokenOut == current {
			return &RouteError{Hop: i, Reason: "hop swaps a token for itself"}
		}
		current = hop.TokenOut
	}
	if current != tokenOut {
		return &RouteError{
			Hop:    len(r) - 1,
			Reason: fmt.Sprintf("route ends in %s, expected %s", current, tokenOut),
		}
	}
	return nil
}
