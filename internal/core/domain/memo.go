package domain

import (
	"fmt"
	"strings"
)

const (
	MemoAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	MemoLength   = 28
)

// Memo is a fixed-width code that users attach to external deposits so the
// operator can recover the (user, token) pair they are for.
type Memo string

// InitialMemo is the first code ever handed out.
var InitialMemo = Memo(strings.Repeat(string(MemoAlphabet[0]), MemoLength))

// ParseMemo accepts only codes of MemoLength symbols from MemoAlphabet.
func ParseMemo(s string) (Memo, error) {
	if len(s) != MemoLength {
		return "", fmt.Errorf("memo must be %d symbols long, got %d", MemoLength, len(s))
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(MemoAlphabet, s[i]) < 0 {
			return "", fmt.Errorf("memo has invalid symbol %q at position %d", s[i], i)
		}
	}
	return Memo(s), nil
}

// NextMemo increments m as a base-62 number, least significant symbol last.
// The successor of the all-'Z' code wraps around to InitialMemo.
func NextMemo(m Memo) Memo {
	buf := []byte(m)
	last := MemoAlphabet[len(MemoAlphabet)-1]
	for i := len(buf) - 1; i >= 0; i-- {
		if buf[i] == last {
			buf[i] = MemoAlphabet[0]
			continue
		}
		buf[i] = MemoAlphabet[strings.IndexByte(MemoAlphabet, buf[i])+1]
		return Memo(buf)
	}
	return Memo(buf)
}

func (m Memo) String() string { return string(m) }
