package application

import (
	"fmt"

	"github.com/arkade-os/swapd/internal/core/domain"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
)

func userMemoKey(user domain.AccountId, token domain.TokenId) string {
	return fmt.Sprintf("user_memo/%s/%s", user, token)
}

func memoKey(memo domain.Memo) string {
	return fmt.Sprintf("memo/%s", memo)
}

// generateOrGetMemo returns the memo of (user, token), assigning the next
// free code on first use.
func generateOrGetMemo(
	s *state, user domain.AccountId, token domain.TokenId,
) (domain.Memo, bool, error) {
	var memo domain.Memo
	ok, err := s.get(userMemoKey(user, token), &memo)
	if err != nil {
		return "", false, err
	}
	if ok {
		return memo, false, nil
	}

	memo = domain.InitialMemo
	if _, err := s.get(nextMemoKey, &memo); err != nil {
		return "", false, err
	}

	if err := s.put(userMemoKey(user, token), memo); err != nil {
		return "", false, err
	}
	if err := s.put(memoKey(memo), MemoOwner{User: user, Token: token}); err != nil {
		return "", false, err
	}
	if err := s.put(nextMemoKey, domain.NextMemo(memo)); err != nil {
		return "", false, err
	}
	return memo, true, nil
}

func getMemo(s *state, user domain.AccountId, token domain.TokenId) (domain.Memo, error) {
	var memo domain.Memo
	if err := s.mustGet(userMemoKey(user, token), &memo); err != nil {
		return "", err
	}
	return memo, nil
}

func hasMemo(s *state, user domain.AccountId, token domain.TokenId) (bool, error) {
	return s.has(userMemoKey(user, token))
}

func resolveMemo(s *state, memo domain.Memo) (*MemoOwner, error) {
	var owner MemoOwner
	if err := s.mustGet(memoKey(memo), &owner); err != nil {
		return nil, err
	}
	return &owner, nil
}

func validateMemo(memo domain.Memo) error {
	if _, err := domain.ParseMemo(string(memo)); err != nil {
		return arkerrors.INVALID_MEMO.Wrap(err).
			WithMetadata(arkerrors.MemoMetadata{Memo: string(memo)})
	}
	return nil
}
