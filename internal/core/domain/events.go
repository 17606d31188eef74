package domain

const (
	EventTypeRequestAdded     = "swap_request_added"
	EventTypeRequestSettled   = "swap_request_settled"
	EventTypeMemoGenerated    = "memo_generated"
	EventTypeProxyWalletSet   = "proxy_wallet_registered"
	EventTypeOperatorSet      = "operator_set"
	EventTypeSwapRouterSet    = "swap_router_set"
	EventTypeFeeSet           = "fee_set"
	EventTypeAdminInitialized = "admin_initialized"
	EventTypeUpgraded         = "upgraded"
)

// Event is emitted once the operation that produced it has committed.
type Event interface {
	Type() string
}

type RequestAdded struct {
	Request SwapRequest `json:"request"`
	Wallet  AccountId   `json:"wallet"`
	Fee     Amount      `json:"fee"`
	Memo    Memo        `json:"memo,omitempty"`
}

func (RequestAdded) Type() string { return EventTypeRequestAdded }

type RequestSettled struct {
	Request CompletedSwapRequest `json:"request"`
	Route   Route                `json:"route"`
}

func (RequestSettled) Type() string { return EventTypeRequestSettled }

type MemoGenerated struct {
	Memo  Memo      `json:"memo"`
	User  AccountId `json:"user"`
	Token TokenId   `json:"token"`
}

func (MemoGenerated) Type() string { return EventTypeMemoGenerated }

type ProxyWalletRegistered struct {
	Wallet  AccountId `json:"wallet"`
	Token   TokenId   `json:"token"`
	Evicted AccountId `json:"evicted,omitempty"`
}

func (ProxyWalletRegistered) Type() string { return EventTypeProxyWalletSet }

type AdminInitialized struct {
	Admin AccountId `json:"admin"`
}

func (AdminInitialized) Type() string { return EventTypeAdminInitialized }

type OperatorSet struct {
	Operator AccountId `json:"operator"`
}

func (OperatorSet) Type() string { return EventTypeOperatorSet }

type SwapRouterSet struct {
	Router AccountId `json:"router"`
}

func (SwapRouterSet) Type() string { return EventTypeSwapRouterSet }

type FeeSet struct {
	Token  TokenId `json:"token,omitempty"`
	Amount Amount  `json:"amount"`
}

func (FeeSet) Type() string { return EventTypeFeeSet }

type Upgraded struct {
	CodeHash string `json:"code_hash"`
	Version  uint32 `json:"version"`
}

func (Upgraded) Type() string { return EventTypeUpgraded }
