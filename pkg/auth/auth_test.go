package auth_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/arkade-os/swapd/pkg/auth"
	"github.com/stretchr/testify/require"
)

type args struct {
	Operator string `json:"operator"`
	Amount   string `json:"amount"`
}

func TestSignVerify(t *testing.T) {
	key, err := auth.NewPrivateKey()
	require.NoError(t, err)

	a := args{Operator: "op", Amount: "10"}
	proof, err := auth.Sign(key, "set_fee", 1, a)
	require.NoError(t, err)
	require.Len(t, proof.Signer, 64)
	require.Len(t, proof.Signature, 128)

	signer, err := auth.Verify(proof, "set_fee", a)
	require.NoError(t, err)
	require.Equal(t, auth.PubKey(key), signer)

	t.Run("other operation", func(t *testing.T) {
		_, err := auth.Verify(proof, "add_request", a)
		require.ErrorIs(t, err, auth.ErrSigMismatch)
	})

	t.Run("other arguments", func(t *testing.T) {
		_, err := auth.Verify(proof, "set_fee", args{Operator: "op", Amount: "11"})
		require.ErrorIs(t, err, auth.ErrSigMismatch)
	})

	t.Run("other nonce", func(t *testing.T) {
		bumped := *proof
		bumped.Nonce = 2
		_, err := auth.Verify(&bumped, "set_fee", a)
		require.ErrorIs(t, err, auth.ErrSigMismatch)
	})

	t.Run("other signer", func(t *testing.T) {
		other, err := auth.NewPrivateKey()
		require.NoError(t, err)
		forged := *proof
		forged.Signer = auth.PubKey(other)
		_, err = auth.Verify(&forged, "set_fee", a)
		require.ErrorIs(t, err, auth.ErrSigMismatch)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := auth.Verify(nil, "set_fee", a)
		require.ErrorIs(t, err, auth.ErrMissingProof)

		_, err = auth.Verify(&auth.Proof{Signer: "zz", Signature: proof.Signature}, "set_fee", a)
		require.ErrorIs(t, err, auth.ErrInvalidSigner)

		_, err = auth.Verify(&auth.Proof{Signer: proof.Signer, Signature: "abcd"}, "set_fee", a)
		require.ErrorIs(t, err, auth.ErrInvalidSig)
	})
}

func TestParsePrivateKey(t *testing.T) {
	key, err := auth.ParsePrivateKey(strings.Repeat("01", 32))
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("01", 32), hex.EncodeToString(key.Serialize()))

	_, err = auth.ParsePrivateKey("01")
	require.ErrorIs(t, err, auth.ErrInvalidPrivKey)
}
