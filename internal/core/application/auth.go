package application

import (
	"errors"

	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/pkg/auth"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
)

func requireAdmin(s *state, proof *auth.Proof, operation string, args any) error {
	admin, ok, err := s.account(adminKey)
	if err != nil {
		return err
	}
	if !ok {
		return arkerrors.NOT_INITIALIZED.New("admin not initialized")
	}
	signer, err := auth.Verify(proof, operation, args)
	if err != nil {
		return arkerrors.UNAUTHORIZED.Wrap(err).
			WithMetadata(arkerrors.AccountMetadata{Account: string(admin)})
	}
	if domain.AccountId(signer) != admin {
		return arkerrors.UNAUTHORIZED.New("%s is not the admin", signer).
			WithMetadata(arkerrors.AccountMetadata{Account: signer})
	}
	return consumeNonce(s, admin, proof, arkerrors.UNAUTHORIZED)
}

// requireOperator checks that operator is the registered operator and that
// proof was signed by it.
func requireOperator(
	s *state, operator domain.AccountId, proof *auth.Proof, operation string, args any,
) error {
	registered, ok, err := s.account(operatorKey)
	if err != nil {
		return err
	}
	unauthorized := arkerrors.UNAUTHORIZED_OPERATOR.New("%s is not the operator", operator).
		WithMetadata(arkerrors.AccountMetadata{Account: string(operator)})
	if !ok || operator != registered {
		return unauthorized
	}
	signer, err := auth.Verify(proof, operation, args)
	if err != nil {
		return arkerrors.UNAUTHORIZED_OPERATOR.Wrap(err).
			WithMetadata(arkerrors.AccountMetadata{Account: string(operator)})
	}
	if domain.AccountId(signer) != operator {
		return unauthorized
	}
	return consumeNonce(s, operator, proof, arkerrors.UNAUTHORIZED_OPERATOR)
}

// requireOwner checks that proof was signed by owner itself.
func requireOwner(
	s *state, owner domain.AccountId, proof *auth.Proof, operation string, args any,
) error {
	signer, err := auth.Verify(proof, operation, args)
	if err != nil {
		return arkerrors.UNAUTHORIZED.Wrap(err).
			WithMetadata(arkerrors.AccountMetadata{Account: string(owner)})
	}
	if domain.AccountId(signer) != owner {
		return arkerrors.UNAUTHORIZED.New("proof not signed by %s", owner).
			WithMetadata(arkerrors.AccountMetadata{Account: string(owner)})
	}
	return consumeNonce(s, owner, proof, arkerrors.UNAUTHORIZED)
}

// consumeNonce advances the signer's nonce to the one carried by proof. A
// proof is accepted once: replays and out of order nonces fail with code.
func consumeNonce(
	s *state, signer domain.AccountId, proof *auth.Proof,
	code arkerrors.Code[arkerrors.AccountMetadata],
) error {
	err := s.advanceNonce(signer, proof.Nonce)
	if errors.Is(err, errStaleNonce) {
		return code.Wrap(err).WithMetadata(arkerrors.AccountMetadata{Account: string(signer)})
	}
	return err
}
