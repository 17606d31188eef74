package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
)

// generateErrorFixtures creates test fixtures with sample metadata for each error type
func generateErrorFixtures() []Error {
	return []Error{
		INTERNAL_ERROR.New("Internal server error occurred").
			WithMetadata(map[string]any{"component": "store"}),
		INVALID_ARGUMENT.New("missing destination").
			WithMetadata(map[string]any{"field": "destination"}),
		INVALID_AMOUNT.New("fee exceeds amount").
			WithMetadata(AmountMetadata{Amount: "10", Fee: "10"}),
		INVALID_MEMO.New("bad memo").
			WithMetadata(MemoMetadata{Memo: "xyz"}),
		INVALID_ROUTE.New("broken chain").
			WithMetadata(RouteMetadata{Hop: 1, Reason: "token mismatch"}),
		UNAUTHORIZED.New("bad signature").
			WithMetadata(AccountMetadata{Account: "alice"}),
		NOT_INITIALIZED.New("admin not set"),
		GRANT_REJECTED.New("grant already consumed").
			WithMetadata(GrantMetadata{Token: "usdc", Spender: "router", Amount: "100"}),
		INSUFFICIENT_BALANCE.New("not enough funds").
			WithMetadata(BalanceMetadata{Token: "usdc", Account: "a", Available: "1", Required: "2"}),
		INSUFFICIENT_ALLOWANCE.New("not enough allowance").
			WithMetadata(BalanceMetadata{Token: "usdc", Account: "a", Available: "1", Required: "2"}),
		SLIPPAGE_EXCEEDED.New("output below minimum").
			WithMetadata(SlippageMetadata{AmountOut: "95", MinOut: "96"}),
		ALREADY_INITIALIZED.New("admin already set"),
		VALUE_MISSING.New("no such request").
			WithMetadata(ValueMissingMetadata{Key: "swap_requests/bob"}),
		OPERATION_ID_ALREADY_CONSUMED.New("operation id too low").
			WithMetadata(OperationIdMetadata{OperationId: "4", LastOperationId: "5"}),
		SWAP_NOT_PERFORMED.New("router returned zero").
			WithMetadata(SwapMetadata{Destination: "bob", OperationId: "1"}),
		UNAUTHORIZED_OPERATOR.New("caller is not the operator").
			WithMetadata(AccountMetadata{Account: "mallory"}),
		UNAUTHORIZED_PROXY_WALLET.New("wallet not registered").
			WithMetadata(AccountMetadata{Account: "wallet"}),
	}
}

func TestErrorFixtures(t *testing.T) {
	fixtures := generateErrorFixtures()
	seen := make(map[uint16]string)

	for _, err := range fixtures {
		require.NotNil(t, err)
		require.NotEmpty(t, err.Error())
		require.NotEmpty(t, err.CodeName())
		require.NotEqual(t, grpccodes.OK, err.GrpcCode())
		require.NotNil(t, err.Log())

		name, ok := seen[err.Code()]
		require.False(t, ok, "code %d used by both %s and %s", err.Code(), name, err.CodeName())
		seen[err.Code()] = err.CodeName()
	}
}

func TestErrorMetadata(t *testing.T) {
	err := OPERATION_ID_ALREADY_CONSUMED.New("operation id too low").
		WithMetadata(OperationIdMetadata{OperationId: "4", LastOperationId: "5"})

	require.Equal(t, map[string]string{
		"operation_id":      "4",
		"last_operation_id": "5",
	}, err.Metadata())
	require.Equal(t, "OPERATION_ID_ALREADY_CONSUMED (2300): operation id too low", err.Error())
}

func TestCodeIs(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := fmt.Errorf("context: %w", VALUE_MISSING.Wrap(cause))

	require.True(t, VALUE_MISSING.Is(err))
	require.False(t, SWAP_NOT_PERFORMED.Is(err))
	require.False(t, VALUE_MISSING.Is(cause))
	require.ErrorIs(t, err, cause)
}
