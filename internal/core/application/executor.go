package application

import (
	"context"
	"errors"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/internal/core/ports"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
)

// executor settles active requests through the registered router, paying
// out of the custody account.
type executor struct {
	ledger           ports.TokenLedger
	routers          map[domain.AccountId]ports.SwapRouter
	custody          domain.AccountId
	rejectZeroOutput bool
}

func (e *executor) router(s *state) (ports.SwapRouter, error) {
	account, ok, err := s.account(swapRouterKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, arkerrors.VALUE_MISSING.New("swap router not set").
			WithMetadata(arkerrors.ValueMissingMetadata{Key: swapRouterKey})
	}
	router, ok := e.routers[account]
	if !ok {
		return nil, arkerrors.VALUE_MISSING.New("swap router %s not available", account).
			WithMetadata(arkerrors.ValueMissingMetadata{Key: swapRouterKey})
	}
	return router, nil
}

func (e *executor) settle(
	ctx context.Context, s *state, args SettleArgs,
) (*domain.CompletedSwapRequest, error) {
	request, err := getRequestById(s, args.Destination, args.OpId)
	if err != nil {
		return nil, err
	}

	if err := args.Route.Validate(request.TokenIn, request.TokenOut); err != nil {
		meta := arkerrors.RouteMetadata{Reason: err.Error()}
		var routeErr *domain.RouteError
		if errors.As(err, &routeErr) {
			meta = arkerrors.RouteMetadata{Hop: routeErr.Hop, Reason: routeErr.Reason}
		}
		return nil, arkerrors.INVALID_ROUTE.Wrap(err).WithMetadata(meta)
	}

	router, err := e.router(s)
	if err != nil {
		return nil, err
	}

	grant := ports.NewTransferGrant(
		request.TokenIn, e.custody, router.Account(), request.AmountIn,
	)
	amountOut, err := router.SwapChained(
		ctx, s.tx, grant, e.custody, args.Route, request.TokenIn, request.AmountIn, args.MinOut,
	)
	grant.Revoke()
	if err != nil {
		return nil, err
	}
	if !grant.Consumed() {
		return nil, arkerrors.SWAP_NOT_PERFORMED.New("router did not pull the input").
			WithMetadata(arkerrors.SwapMetadata{
				Destination: string(args.Destination),
				OperationId: args.OpId.String(),
			})
	}
	if amountOut.IsNegative() {
		return nil, arkerrors.INVALID_AMOUNT.New("router returned a negative output").
			WithMetadata(arkerrors.AmountMetadata{Amount: amountOut.String()})
	}

	if err := e.ledger.Transfer(
		ctx, s.tx, request.TokenOut, e.custody, args.Destination, amountOut,
	); err != nil {
		return nil, err
	}

	return completeRequest(s, args.Destination, *request, amountOut, e.rejectZeroOutput)
}
