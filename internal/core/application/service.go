package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/internal/core/ports"
	"github.com/arkade-os/swapd/pkg/auth"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/arkade-os/swapd/internal/core/application"

type Config struct {
	// CustodyAccount holds deposited funds until they are settled.
	CustodyAccount   domain.AccountId
	RejectZeroOutput bool
	Version          uint32
}

type service struct {
	store     ports.Store
	ledger    ports.TokenLedger
	publisher ports.EventPublisher
	executor  *executor
	tracer    trace.Tracer

	// operations counts calls by name and outcome
	operations metric.Int64Counter

	custody          domain.AccountId
	rejectZeroOutput bool
	version          uint32

	// every mutating operation holds lock for its whole unit of work
	lock sync.Mutex
}

func NewService(
	store ports.Store, ledger ports.TokenLedger, routers []ports.SwapRouter,
	publisher ports.EventPublisher, cfg Config,
) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("missing store")
	}
	if ledger == nil {
		return nil, fmt.Errorf("missing token ledger")
	}
	if cfg.CustodyAccount.IsEmpty() {
		return nil, fmt.Errorf("missing custody account")
	}

	routersByAccount := make(map[domain.AccountId]ports.SwapRouter, len(routers))
	for _, r := range routers {
		if _, ok := routersByAccount[r.Account()]; ok {
			return nil, fmt.Errorf("duplicated swap router %s", r.Account())
		}
		routersByAccount[r.Account()] = r
	}

	operations, err := otel.Meter(tracerName).Int64Counter(
		"swapd.operations",
		metric.WithDescription("Ledger operations by name and outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}

	return &service{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		executor: &executor{
			ledger:           ledger,
			routers:          routersByAccount,
			custody:          cfg.CustodyAccount,
			rejectZeroOutput: cfg.RejectZeroOutput,
		},
		tracer:           otel.Tracer(tracerName),
		custody:          cfg.CustodyAccount,
		rejectZeroOutput: cfg.RejectZeroOutput,
		version:          cfg.Version,
		operations:       operations,
	}, nil
}

func (s *service) InitializeAdmin(ctx context.Context, admin domain.AccountId) error {
	if err := validateAccount("admin", admin); err != nil {
		return err
	}
	return s.update(ctx, "InitializeAdmin", ports.AdminTopic, func(st *state) error {
		exists, err := st.has(adminKey)
		if err != nil {
			return err
		}
		if exists {
			return arkerrors.ALREADY_INITIALIZED.New("admin already initialized")
		}
		if err := st.put(adminKey, admin); err != nil {
			return err
		}
		st.emit(domain.AdminInitialized{Admin: admin})
		return nil
	})
}

func (s *service) SetOperator(
	ctx context.Context, args SetOperatorArgs, proof *auth.Proof,
) error {
	if err := validateAccount("operator", args.Operator); err != nil {
		return err
	}
	return s.update(ctx, "SetOperator", ports.AdminTopic, func(st *state) error {
		if err := requireAdmin(st, proof, OpSetOperator, args); err != nil {
			return err
		}
		if err := st.put(operatorKey, args.Operator); err != nil {
			return err
		}
		st.emit(domain.OperatorSet{Operator: args.Operator})
		return nil
	})
}

func (s *service) RegisterProxyWallet(
	ctx context.Context, args RegisterProxyWalletArgs, proof *auth.Proof,
) error {
	if err := validateAccount("wallet", args.Wallet); err != nil {
		return err
	}
	if err := validateToken("token", args.Token); err != nil {
		return err
	}
	return s.update(ctx, "RegisterProxyWallet", ports.AdminTopic, func(st *state) error {
		if err := requireAdmin(st, proof, OpRegisterProxyWallet, args); err != nil {
			return err
		}
		evicted, err := registerProxyWallet(st, args.Wallet, args.Token)
		if err != nil {
			return err
		}
		st.emit(domain.ProxyWalletRegistered{
			Wallet: args.Wallet, Token: args.Token, Evicted: evicted,
		})
		return nil
	})
}

func (s *service) SetSwapRouter(
	ctx context.Context, args SetSwapRouterArgs, proof *auth.Proof,
) error {
	if err := validateAccount("router", args.Router); err != nil {
		return err
	}
	return s.update(ctx, "SetSwapRouter", ports.AdminTopic, func(st *state) error {
		if err := requireAdmin(st, proof, OpSetSwapRouter, args); err != nil {
			return err
		}
		if err := st.put(swapRouterKey, args.Router); err != nil {
			return err
		}
		st.emit(domain.SwapRouterSet{Router: args.Router})
		return nil
	})
}

// Upgrade records the hash of the code the ledger is being migrated to and
// bumps the stored version.
func (s *service) Upgrade(ctx context.Context, args UpgradeArgs, proof *auth.Proof) error {
	if args.CodeHash == "" {
		return arkerrors.INVALID_ARGUMENT.New("missing code hash")
	}
	return s.update(ctx, "Upgrade", ports.AdminTopic, func(st *state) error {
		if err := requireAdmin(st, proof, OpUpgrade, args); err != nil {
			return err
		}
		cv, err := st.codeVersion()
		if err != nil {
			return err
		}
		next := codeVersion{CodeHash: args.CodeHash, Version: s.version + 1}
		if cv != nil {
			next.Version = cv.Version + 1
		}
		if err := st.put(codeHashKey, next); err != nil {
			return err
		}
		st.emit(domain.Upgraded{CodeHash: next.CodeHash, Version: next.Version})
		return nil
	})
}

func (s *service) SetFee(ctx context.Context, args SetFeeArgs, proof *auth.Proof) error {
	return s.update(ctx, "SetFee", ports.AdminTopic, func(st *state) error {
		if err := requireOperator(st, args.Operator, proof, OpSetFee, args); err != nil {
			return err
		}
		if err := setFee(st, args.Token, args.Amount); err != nil {
			return err
		}
		st.emit(domain.FeeSet{Token: args.Token, Amount: args.Amount})
		return nil
	})
}

func (s *service) GetFee(ctx context.Context, token domain.TokenId) (domain.Amount, error) {
	var fee domain.Amount
	err := s.view(ctx, "GetFee", func(st *state) (err error) {
		fee, err = getFee(st, token)
		return
	})
	return fee, err
}

func (s *service) ListProxyWallets(
	ctx context.Context,
) (map[domain.AccountId]domain.TokenId, error) {
	var wallets map[domain.AccountId]domain.TokenId
	err := s.view(ctx, "ListProxyWallets", func(st *state) (err error) {
		wallets, err = listProxyWallets(st)
		return
	})
	return wallets, err
}

// AddRequest pulls the deposit from the proxy wallet into custody, pays the
// intake fee to the operator and enqueues the request for the destination.
// A memo overrides both the destination and the output token.
func (s *service) AddRequest(
	ctx context.Context, args AddRequestArgs, proof *auth.Proof,
) (*domain.SwapRequest, error) {
	if err := validateToken("token_in", args.TokenIn); err != nil {
		return nil, err
	}
	if !args.AmountIn.IsPositive() {
		return nil, arkerrors.INVALID_AMOUNT.New("deposit must be positive").
			WithMetadata(arkerrors.AmountMetadata{Amount: args.AmountIn.String()})
	}
	if args.Memo != "" {
		if err := validateMemo(args.Memo); err != nil {
			return nil, err
		}
	} else if err := validateAccount("destination", args.Destination); err != nil {
		return nil, err
	}

	var request domain.SwapRequest
	err := s.update(ctx, "AddRequest", ports.LedgerTopic, func(st *state) error {
		if err := requireOperator(st, args.Operator, proof, OpAddRequest, args); err != nil {
			return err
		}

		tokenOut, err := resolveOutputToken(st, args.Wallet)
		if err != nil {
			return err
		}
		destination := args.Destination
		if args.Memo != "" {
			owner, err := resolveMemo(st, args.Memo)
			if err != nil {
				return err
			}
			destination, tokenOut = owner.User, owner.Token
		}

		lastOpId, err := st.lastOperationId()
		if err != nil {
			return err
		}
		if args.OpId.Cmp(lastOpId) <= 0 {
			return arkerrors.OPERATION_ID_ALREADY_CONSUMED.New(
				"operation id %s is not greater than %s", args.OpId, lastOpId,
			).WithMetadata(arkerrors.OperationIdMetadata{
				OperationId:     args.OpId.String(),
				LastOperationId: lastOpId.String(),
			})
		}

		fee, err := getFee(st, args.TokenIn)
		if err != nil {
			return err
		}
		if fee.Cmp(args.AmountIn) >= 0 {
			return arkerrors.INVALID_AMOUNT.New(
				"deposit %s does not cover fee %s", args.AmountIn, fee,
			).WithMetadata(arkerrors.AmountMetadata{
				Amount: args.AmountIn.String(), Fee: fee.String(),
			})
		}
		amountIn, err := args.AmountIn.Sub(fee)
		if err != nil {
			return err
		}

		if err := s.ledger.TransferFrom(
			ctx, st.tx, args.TokenIn, s.custody, args.Wallet, s.custody, args.AmountIn,
		); err != nil {
			return err
		}
		if err := s.ledger.Transfer(
			ctx, st.tx, args.TokenIn, s.custody, args.Operator, fee,
		); err != nil {
			return err
		}

		request = domain.SwapRequest{
			TxHash:      args.TxHash,
			OpId:        args.OpId,
			Destination: destination,
			TokenIn:     args.TokenIn,
			AmountIn:    amountIn,
			TokenOut:    tokenOut,
		}
		if err := addRequest(st, destination, request); err != nil {
			return err
		}
		st.emit(domain.RequestAdded{
			Request: request, Wallet: args.Wallet, Fee: fee, Memo: args.Memo,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (s *service) Settle(
	ctx context.Context, args SettleArgs, proof *auth.Proof,
) (domain.Amount, error) {
	var amountOut domain.Amount
	err := s.update(ctx, "Settle", ports.LedgerTopic, func(st *state) error {
		if err := requireOperator(st, args.Operator, proof, OpSettle, args); err != nil {
			return err
		}
		completed, err := s.executor.settle(ctx, st, args)
		if err != nil {
			return err
		}
		amountOut = completed.AmountOut
		st.emit(domain.RequestSettled{Request: *completed, Route: args.Route})
		return nil
	})
	return amountOut, err
}

func (s *service) GetRequests(
	ctx context.Context, destination domain.AccountId,
) ([]domain.SwapRequest, error) {
	var requests []domain.SwapRequest
	err := s.view(ctx, "GetRequests", func(st *state) (err error) {
		requests, err = getRequests(st, destination)
		return
	})
	return requests, err
}

func (s *service) GetCompletedRequests(
	ctx context.Context, destination domain.AccountId, page uint32,
) ([]domain.CompletedSwapRequest, error) {
	var requests []domain.CompletedSwapRequest
	err := s.view(ctx, "GetCompletedRequests", func(st *state) (err error) {
		requests, err = getPage[domain.CompletedSwapRequest](st, completedIndex(destination), page)
		return
	})
	return requests, err
}

func (s *service) GetCompletedRequestsLastPage(
	ctx context.Context, destination domain.AccountId,
) (uint32, error) {
	var page uint32
	err := s.view(ctx, "GetCompletedRequestsLastPage", func(st *state) (err error) {
		page, err = getLastPage(st, completedIndex(destination))
		return
	})
	return page, err
}

func (s *service) GetDestinations(ctx context.Context, page uint32) ([]domain.AccountId, error) {
	var destinations []domain.AccountId
	err := s.view(ctx, "GetDestinations", func(st *state) (err error) {
		destinations, err = getPage[domain.AccountId](st, destinationsIndex(), page)
		return
	})
	return destinations, err
}

func (s *service) GetDestinationsLastPage(ctx context.Context) (uint32, error) {
	var page uint32
	err := s.view(ctx, "GetDestinationsLastPage", func(st *state) (err error) {
		page, err = getLastPage(st, destinationsIndex())
		return
	})
	return page, err
}

func (s *service) GetLastOperationId(ctx context.Context) (domain.OpId, error) {
	var opId domain.OpId
	err := s.view(ctx, "GetLastOperationId", func(st *state) (err error) {
		opId, err = st.lastOperationId()
		return
	})
	return opId, err
}

func (s *service) GenerateMemo(
	ctx context.Context, user domain.AccountId, token domain.TokenId,
) (domain.Memo, error) {
	if err := validateAccount("user", user); err != nil {
		return "", err
	}
	if err := validateToken("token", token); err != nil {
		return "", err
	}
	var memo domain.Memo
	err := s.update(ctx, "GenerateMemo", ports.LedgerTopic, func(st *state) error {
		var created bool
		var err error
		memo, created, err = generateOrGetMemo(st, user, token)
		if err != nil {
			return err
		}
		if created {
			st.emit(domain.MemoGenerated{Memo: memo, User: user, Token: token})
		}
		return nil
	})
	return memo, err
}

func (s *service) GetMemo(
	ctx context.Context, user domain.AccountId, token domain.TokenId,
) (domain.Memo, error) {
	var memo domain.Memo
	err := s.view(ctx, "GetMemo", func(st *state) (err error) {
		memo, err = getMemo(st, user, token)
		return
	})
	return memo, err
}

func (s *service) HasMemo(
	ctx context.Context, user domain.AccountId, token domain.TokenId,
) (bool, error) {
	var exists bool
	err := s.view(ctx, "HasMemo", func(st *state) (err error) {
		exists, err = hasMemo(st, user, token)
		return
	})
	return exists, err
}

func (s *service) ResolveMemo(ctx context.Context, memo domain.Memo) (*MemoOwner, error) {
	if err := validateMemo(memo); err != nil {
		return nil, err
	}
	var owner *MemoOwner
	err := s.view(ctx, "ResolveMemo", func(st *state) (err error) {
		owner, err = resolveMemo(st, memo)
		return
	})
	return owner, err
}

func (s *service) GetBalance(
	ctx context.Context, token domain.TokenId, account domain.AccountId,
) (domain.Amount, error) {
	var balance domain.Amount
	err := s.view(ctx, "GetBalance", func(st *state) (err error) {
		balance, err = s.ledger.Balance(ctx, st.tx, token, account)
		return
	})
	return balance, err
}

func (s *service) Approve(ctx context.Context, args ApproveArgs, proof *auth.Proof) error {
	if err := validateToken("token", args.Token); err != nil {
		return err
	}
	if err := validateAccount("spender", args.Spender); err != nil {
		return err
	}
	return s.update(ctx, "Approve", ports.LedgerTopic, func(st *state) error {
		if err := requireOwner(st, args.Owner, proof, OpApprove, args); err != nil {
			return err
		}
		return s.ledger.Approve(ctx, st.tx, args.Token, args.Owner, args.Spender, args.Amount)
	})
}

func (s *service) Mint(ctx context.Context, args MintArgs, proof *auth.Proof) error {
	if err := validateToken("token", args.Token); err != nil {
		return err
	}
	if err := validateAccount("to", args.To); err != nil {
		return err
	}
	return s.update(ctx, "Mint", ports.LedgerTopic, func(st *state) error {
		if err := requireAdmin(st, proof, OpMint, args); err != nil {
			return err
		}
		return s.ledger.Mint(ctx, st.tx, args.Token, args.To, args.Amount)
	})
}

// GetNonce returns the last proof nonce consumed for signer. The next proof
// signer produces must carry this value plus one.
func (s *service) GetNonce(ctx context.Context, signer domain.AccountId) (uint64, error) {
	if err := validateAccount("signer", signer); err != nil {
		return 0, err
	}
	var nonce uint64
	err := s.view(ctx, "GetNonce", func(st *state) (err error) {
		nonce, err = st.nonce(signer)
		return
	})
	return nonce, err
}

func (s *service) GetInfo(ctx context.Context) (*ServiceInfo, error) {
	info := &ServiceInfo{
		CustodyAccount:   s.custody,
		Version:          s.version,
		RejectZeroOutput: s.rejectZeroOutput,
	}
	err := s.view(ctx, "GetInfo", func(st *state) error {
		var err error
		if info.Admin, _, err = st.account(adminKey); err != nil {
			return err
		}
		if info.Operator, _, err = st.account(operatorKey); err != nil {
			return err
		}
		if info.SwapRouter, _, err = st.account(swapRouterKey); err != nil {
			return err
		}
		if info.LastOperationId, err = st.lastOperationId(); err != nil {
			return err
		}
		cv, err := st.codeVersion()
		if err != nil {
			return err
		}
		if cv != nil {
			info.CodeHash = cv.CodeHash
			info.Version = cv.Version
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// update runs fn as a single unit of work. Events emitted by fn are
// published only once the unit of work has committed.
func (s *service) update(
	ctx context.Context, name string, topic ports.Topic, fn func(st *state) error,
) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	events, err := s.commit(ctx, fn)
	if err != nil {
		return s.fail(ctx, span, name, err)
	}

	s.count(ctx, name, "OK")
	span.SetAttributes(attribute.Int("events", len(events)))
	if s.publisher != nil && len(events) > 0 {
		if err := s.publisher.Publish(ctx, topic, events...); err != nil {
			log.WithError(err).Warnf("failed to publish events of %s", name)
		}
	}
	return nil
}

// commit runs fn in one store transaction under the lock and returns the
// events to publish once the lock is released.
func (s *service) commit(ctx context.Context, fn func(st *state) error) ([]domain.Event, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var events []domain.Event
	err := s.store.Update(ctx, func(tx ports.Tx) error {
		st := newState(ctx, tx)
		if err := fn(st); err != nil {
			return err
		}
		events = st.events
		return nil
	})
	return events, err
}

func (s *service) view(ctx context.Context, name string, fn func(st *state) error) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	if err := s.store.View(ctx, func(tx ports.Tx) error {
		return fn(newState(ctx, tx))
	}); err != nil {
		return s.fail(ctx, span, name, err)
	}
	s.count(ctx, name, "OK")
	return nil
}

// fail converts err into a typed error, falling back to INTERNAL_ERROR.
func (s *service) fail(ctx context.Context, span trace.Span, name string, err error) error {
	var typedErr arkerrors.Error
	if !errors.As(err, &typedErr) {
		log.WithError(err).Errorf("%s failed", name)
		typedErr = arkerrors.INTERNAL_ERROR.Wrap(err)
	}
	span.RecordError(typedErr)
	span.SetStatus(codes.Error, typedErr.CodeName())
	s.count(ctx, name, typedErr.CodeName())
	return typedErr
}

func (s *service) count(ctx context.Context, name, outcome string) {
	s.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", name), attribute.String("outcome", outcome),
	))
}

func validateAccount(field string, account domain.AccountId) error {
	if account.IsEmpty() {
		return arkerrors.INVALID_ARGUMENT.New("missing %s", field).
			WithMetadata(map[string]any{"field": field})
	}
	return nil
}

func validateToken(field string, token domain.TokenId) error {
	if token.IsEmpty() {
		return arkerrors.INVALID_ARGUMENT.New("missing %s", field).
			WithMetadata(map[string]any{"field": field})
	}
	return nil
}
