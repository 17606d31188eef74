package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// AccountId identifies any account known to the ledger: principals, custody,
// proxy wallets, destinations, the router.
type AccountId string

// TokenId identifies a fungible token.
type TokenId string

func (a AccountId) IsEmpty() bool { return strings.TrimSpace(string(a)) == "" }

func (t TokenId) IsEmpty() bool { return strings.TrimSpace(string(t)) == "" }

// TxHash is the hash of the external deposit a swap request was created for.
type TxHash [32]byte

func ParseTxHash(s string) (TxHash, error) {
	var h TxHash
	buf, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid tx hash: %w", err)
	}
	if len(buf) != len(h) {
		return h, fmt.Errorf("invalid tx hash: expected 32 bytes, got %d", len(buf))
	}
	copy(h[:], buf)
	return h, nil
}

func (h TxHash) String() string {
	return hex.EncodeToString(h[:])
}

func (h TxHash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *TxHash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTxHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// OpId is the externally assigned, strictly increasing operation id.
// It holds any unsigned 128-bit value.
type OpId struct {
	v uint256.Int
}

func NewOpId(n uint64) OpId {
	var id OpId
	id.v.SetUint64(n)
	return id
}

func ParseOpId(s string) (OpId, error) {
	v, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return OpId{}, fmt.Errorf("invalid operation id %q: %w", s, err)
	}
	if v.BitLen() > 128 {
		return OpId{}, fmt.Errorf("invalid operation id %q: exceeds 128 bits", s)
	}
	return OpId{v: *v}, nil
}

func (o OpId) Cmp(other OpId) int {
	return o.v.Cmp(&other.v)
}

func (o OpId) IsZero() bool {
	return o.v.IsZero()
}

func (o OpId) String() string {
	return o.v.Dec()
}

func (o OpId) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *OpId) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// bare numbers are accepted too
		s = string(data)
	}
	parsed, err := ParseOpId(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

var (
	maxAmount = decimal.NewFromBigInt(
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1)), 0,
	)
	minAmount = decimal.NewFromBigInt(new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127)), 0)
)

// Amount is a signed 128-bit integer quantity of some token.
type Amount struct {
	d decimal.Decimal
}

var ZeroAmount = Amount{d: decimal.Zero}

func NewAmount(n int64) Amount {
	return Amount{d: decimal.NewFromInt(n)}
}

// AmountFromDecimal truncates d toward zero and fails if the result does
// not fit in 128 signed bits.
func AmountFromDecimal(d decimal.Decimal) (Amount, error) {
	a := Amount{d: d.Truncate(0)}
	if !a.inRange() {
		return Amount{}, fmt.Errorf("amount %s overflows 128 bits", d.String())
	}
	return a, nil
}

func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.IsInteger() {
		return Amount{}, fmt.Errorf("invalid amount %q: must be an integer", s)
	}
	return AmountFromDecimal(d)
}

func (a Amount) inRange() bool {
	return a.d.Cmp(maxAmount) <= 0 && a.d.Cmp(minAmount) >= 0
}

func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) Add(other Amount) (Amount, error) {
	return AmountFromDecimal(a.d.Add(other.d))
}

func (a Amount) Sub(other Amount) (Amount, error) {
	return AmountFromDecimal(a.d.Sub(other.d))
}

func (a Amount) Cmp(other Amount) int { return a.d.Cmp(other.d) }

func (a Amount) Equal(other Amount) bool { return a.d.Equal(other.d) }

func (a Amount) IsZero() bool { return a.d.IsZero() }

func (a Amount) IsPositive() bool { return a.d.IsPositive() }

func (a Amount) IsNegative() bool { return a.d.IsNegative() }

func (a Amount) String() string { return a.d.String() }

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
