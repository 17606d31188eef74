package application

import (
	"fmt"

	"github.com/arkade-os/swapd/internal/core/domain"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
)

func activeRequestsKey(destination domain.AccountId) string {
	return fmt.Sprintf("swap_requests/%s", destination)
}

func getRequests(s *state, destination domain.AccountId) ([]domain.SwapRequest, error) {
	requests := make([]domain.SwapRequest, 0)
	if _, err := s.get(activeRequestsKey(destination), &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// isNewDestination reports whether destination never had an active list,
// even an empty one.
func isNewDestination(s *state, destination domain.AccountId) (bool, error) {
	exists, err := s.has(activeRequestsKey(destination))
	return !exists, err
}

// addRequest enqueues request and moves the operation id counter to its id.
// Fencing the id is up to the caller.
func addRequest(s *state, destination domain.AccountId, request domain.SwapRequest) error {
	isNew, err := isNewDestination(s, destination)
	if err != nil {
		return err
	}
	if isNew {
		if err := appendToLastPage(s, destinationsIndex(), destination); err != nil {
			return err
		}
	}

	requests, err := getRequests(s, destination)
	if err != nil {
		return err
	}
	if err := s.setLastOperationId(request.OpId); err != nil {
		return err
	}
	requests = append(requests, request)
	return s.put(activeRequestsKey(destination), requests)
}

func getRequestById(
	s *state, destination domain.AccountId, opId domain.OpId,
) (*domain.SwapRequest, error) {
	requests, err := getRequests(s, destination)
	if err != nil {
		return nil, err
	}
	for _, request := range requests {
		if request.OpId.Cmp(opId) == 0 {
			return &request, nil
		}
	}
	key := activeRequestsKey(destination)
	return nil, arkerrors.VALUE_MISSING.New("no request %s at %s", opId, key).
		WithMetadata(arkerrors.ValueMissingMetadata{Key: key})
}

// completeRequest drops the last active entry equal to request and appends
// its completed form to the destination's log.
func completeRequest(
	s *state, destination domain.AccountId, request domain.SwapRequest,
	amountOut domain.Amount, rejectZeroOutput bool,
) (*domain.CompletedSwapRequest, error) {
	if rejectZeroOutput && amountOut.IsZero() {
		return nil, arkerrors.SWAP_NOT_PERFORMED.New("swap produced no output").
			WithMetadata(arkerrors.SwapMetadata{
				Destination: string(destination),
				OperationId: request.OpId.String(),
			})
	}

	requests, err := getRequests(s, destination)
	if err != nil {
		return nil, err
	}
	index := -1
	for i := len(requests) - 1; i >= 0; i-- {
		if requests[i].Equal(request) {
			index = i
			break
		}
	}
	if index < 0 {
		key := activeRequestsKey(destination)
		return nil, arkerrors.VALUE_MISSING.New("request %s not active at %s", request.OpId, key).
			WithMetadata(arkerrors.ValueMissingMetadata{Key: key})
	}

	requests = append(requests[:index], requests[index+1:]...)
	if err := s.put(activeRequestsKey(destination), requests); err != nil {
		return nil, err
	}

	completed := domain.CompletedSwapRequest{SwapRequest: request, AmountOut: amountOut}
	if err := appendToLastPage(s, completedIndex(destination), completed); err != nil {
		return nil, err
	}
	return &completed, nil
}
