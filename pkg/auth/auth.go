// Package auth implements the authorization proofs attached to privileged
// swapd calls: a BIP-340 signature by a principal's key over the operation
// name, the signer's next nonce and the arguments.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

const domainTag = "swapd"

var (
	ErrMissingProof   = errors.New("missing authorization proof")
	ErrInvalidSigner  = errors.New("invalid signer public key")
	ErrInvalidSig     = errors.New("invalid signature encoding")
	ErrSigMismatch    = errors.New("signature does not match signer and arguments")
	ErrInvalidPrivKey = errors.New("invalid private key")
)

// Proof binds a signer to one invocation of an operation.
type Proof struct {
	// Signer is the hex encoded x-only public key of the principal.
	Signer string `json:"signer"`
	// Nonce must be exactly one above the last nonce consumed for Signer.
	Nonce uint64 `json:"nonce"`
	// Signature is the hex encoded 64-byte schnorr signature.
	Signature string `json:"signature"`
}

// Digest is sha256("swapd/" + operation + "/" + nonce + "/" + json(args)),
// with nonce in base 10.
func Digest(operation string, nonce uint64, args any) ([]byte, error) {
	buf, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	msg := make([]byte, 0, len(domainTag)+len(operation)+len(buf)+23)
	msg = append(msg, domainTag...)
	msg = append(msg, '/')
	msg = append(msg, operation...)
	msg = append(msg, '/')
	msg = strconv.AppendUint(msg, nonce, 10)
	msg = append(msg, '/')
	msg = append(msg, buf...)

	digest := sha256.Sum256(msg)
	return digest[:], nil
}

func Sign(key *btcec.PrivateKey, operation string, nonce uint64, args any) (*Proof, error) {
	digest, err := Digest(operation, nonce, args)
	if err != nil {
		return nil, err
	}
	sig, err := schnorr.Sign(key, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return &Proof{
		Signer:    PubKey(key),
		Nonce:     nonce,
		Signature: hex.EncodeToString(sig.Serialize()),
	}, nil
}

// Verify checks the proof and returns the signer it authenticates. Whether
// the nonce is fresh is up to the caller.
func Verify(proof *Proof, operation string, args any) (string, error) {
	if proof == nil || proof.Signer == "" || proof.Signature == "" {
		return "", ErrMissingProof
	}

	pubkeyBytes, err := hex.DecodeString(proof.Signer)
	if err != nil {
		return "", ErrInvalidSigner
	}
	pubkey, err := schnorr.ParsePubKey(pubkeyBytes)
	if err != nil {
		return "", ErrInvalidSigner
	}

	sigBytes, err := hex.DecodeString(proof.Signature)
	if err != nil {
		return "", ErrInvalidSig
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return "", ErrInvalidSig
	}

	digest, err := Digest(operation, proof.Nonce, args)
	if err != nil {
		return "", err
	}
	if !sig.Verify(digest, pubkey) {
		return "", ErrSigMismatch
	}
	return hex.EncodeToString(schnorr.SerializePubKey(pubkey)), nil
}

// PubKey returns the hex x-only public key of key, the form principals are
// identified by.
func PubKey(key *btcec.PrivateKey) string {
	return hex.EncodeToString(schnorr.SerializePubKey(key.PubKey()))
}

func ParsePrivateKey(s string) (*btcec.PrivateKey, error) {
	buf, err := hex.DecodeString(s)
	if err != nil || len(buf) != 32 {
		return nil, ErrInvalidPrivKey
	}
	key, _ := btcec.PrivKeyFromBytes(buf)
	return key, nil
}

func NewPrivateKey() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey()
}
