package application

import (
	"context"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/pkg/auth"
)

// Operation names covered by authorization proofs.
const (
	OpSetOperator         = "set_operator"
	OpRegisterProxyWallet = "register_proxy_wallet"
	OpSetSwapRouter       = "set_swap_router"
	OpSetFee              = "set_fee"
	OpAddRequest          = "add_request"
	OpSettle              = "settle"
	OpUpgrade             = "upgrade"
	OpApprove             = "approve"
	OpMint                = "mint"
)

type Service interface {
	InitializeAdmin(ctx context.Context, admin domain.AccountId) error
	SetOperator(ctx context.Context, args SetOperatorArgs, proof *auth.Proof) error
	RegisterProxyWallet(ctx context.Context, args RegisterProxyWalletArgs, proof *auth.Proof) error
	SetSwapRouter(ctx context.Context, args SetSwapRouterArgs, proof *auth.Proof) error
	Upgrade(ctx context.Context, args UpgradeArgs, proof *auth.Proof) error

	SetFee(ctx context.Context, args SetFeeArgs, proof *auth.Proof) error
	GetFee(ctx context.Context, token domain.TokenId) (domain.Amount, error)
	ListProxyWallets(ctx context.Context) (map[domain.AccountId]domain.TokenId, error)

	AddRequest(ctx context.Context, args AddRequestArgs, proof *auth.Proof) (*domain.SwapRequest, error)
	Settle(ctx context.Context, args SettleArgs, proof *auth.Proof) (domain.Amount, error)

	GetRequests(ctx context.Context, destination domain.AccountId) ([]domain.SwapRequest, error)
	GetCompletedRequests(
		ctx context.Context, destination domain.AccountId, page uint32,
	) ([]domain.CompletedSwapRequest, error)
	GetCompletedRequestsLastPage(ctx context.Context, destination domain.AccountId) (uint32, error)
	GetDestinations(ctx context.Context, page uint32) ([]domain.AccountId, error)
	GetDestinationsLastPage(ctx context.Context) (uint32, error)
	GetLastOperationId(ctx context.Context) (domain.OpId, error)

	GenerateMemo(ctx context.Context, user domain.AccountId, token domain.TokenId) (domain.Memo, error)
	GetMemo(ctx context.Context, user domain.AccountId, token domain.TokenId) (domain.Memo, error)
	HasMemo(ctx context.Context, user domain.AccountId, token domain.TokenId) (bool, error)
	ResolveMemo(ctx context.Context, memo domain.Memo) (*MemoOwner, error)

	GetBalance(ctx context.Context, token domain.TokenId, account domain.AccountId) (domain.Amount, error)
	Approve(ctx context.Context, args ApproveArgs, proof *auth.Proof) error
	Mint(ctx context.Context, args MintArgs, proof *auth.Proof) error

	GetNonce(ctx context.Context, signer domain.AccountId) (uint64, error)
	GetInfo(ctx context.Context) (*ServiceInfo, error)
}

type ServiceInfo struct {
	Admin            domain.AccountId `json:"admin,omitempty"`
	Operator         domain.AccountId `json:"operator,omitempty"`
	SwapRouter       domain.AccountId `json:"swap_router,omitempty"`
	CustodyAccount   domain.AccountId `json:"custody_account"`
	Version          uint32           `json:"version"`
	CodeHash         string           `json:"code_hash,omitempty"`
	RejectZeroOutput bool             `json:"reject_zero_output"`
	LastOperationId  domain.OpId      `json:"last_operation_id"`
}

type MemoOwner struct {
	User  domain.AccountId `json:"user"`
	Token domain.TokenId   `json:"token"`
}

// The *Args types are the exact payloads covered by authorization proofs:
// signers and verifiers must encode the same struct.

type SetOperatorArgs struct {
	Operator domain.AccountId `json:"operator"`
}

type RegisterProxyWalletArgs struct {
	Wallet domain.AccountId `json:"wallet"`
	Token  domain.TokenId   `json:"token"`
}

type SetSwapRouterArgs struct {
	Router domain.AccountId `json:"router"`
}

type UpgradeArgs struct {
	CodeHash string `json:"code_hash"`
}

// SetFeeArgs with an empty Token sets the global fee.
type SetFeeArgs struct {
	Operator domain.AccountId `json:"operator"`
	Token    domain.TokenId   `json:"token"`
	Amount   domain.Amount    `json:"amount"`
}

type AddRequestArgs struct {
	Operator    domain.AccountId `json:"operator"`
	Wallet      domain.AccountId `json:"wallet"`
	TxHash      domain.TxHash    `json:"tx_hash"`
	OpId        domain.OpId      `json:"op_id"`
	Destination domain.AccountId `json:"destination,omitempty"`
	TokenIn     domain.TokenId   `json:"token_in"`
	AmountIn    domain.Amount    `json:"amount_in"`
	// Memo, when set, selects the destination and the output token.
	Memo domain.Memo `json:"memo,omitempty"`
}

type SettleArgs struct {
	Operator    domain.AccountId `json:"operator"`
	Destination domain.AccountId `json:"destination"`
	OpId        domain.OpId      `json:"op_id"`
	Route       domain.Route     `json:"route"`
	MinOut      domain.Amount    `json:"min_out"`
}

type ApproveArgs struct {
	Token   domain.TokenId   `json:"token"`
	Owner   domain.AccountId `json:"owner"`
	Spender domain.AccountId `json:"spender"`
	Amount  domain.Amount    `json:"amount"`
}

type MintArgs struct {
	Token  domain.TokenId   `json:"token"`
	To     domain.AccountId `json:"to"`
	Amount domain.Amount    `json:"amount"`
}
