// Package oracle verifies sealed bid submissions. The engine treats bid
// confidentiality as a black box: it hands over an opaque envelope and gets
// back either the plaintext bid value or a rejection. This implementation
// opens XChaCha20-Poly1305 envelopes bound to a listing and bidder; any
// other scheme can sit behind the same interface.
package oracle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/chacha20poly1305"

	"gavel/pkg/domain"
	dErrors "gavel/pkg/domain-errors"
)

// Verifier opens a sealed bid or rejects it. The returned value is the
// authoritative bid amount; the envelope itself is retained elsewhere only
// for audit.
type Verifier interface {
	Open(ctx context.Context, sealed string, id domain.ListingID, bidder domain.Address) (decimal.Decimal, error)
}

// SealedBidVerifier opens envelopes sealed to the engine's key. The
// additional data binds each envelope to one listing and one bidder, so an
// intercepted envelope cannot be replayed elsewhere.
type SealedBidVerifier struct {
	key []byte
}

// NewSealedBidVerifier builds a verifier from a 64-hex-char key.
func NewSealedBidVerifier(hexKey string) (*SealedBidVerifier, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode sealing key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &SealedBidVerifier{key: key}, nil
}

func aad(id domain.ListingID, bidder domain.Address) []byte {
	return []byte(id.String() + "|" + bidder.String())
}

// Open decrypts and validates a sealed envelope.
//
// Errors: CodeDependency for any envelope the verifier cannot accept —
// malformed encoding, failed authentication, binding mismatch, or a
// non-positive amount.
func (v *SealedBidVerifier) Open(_ context.Context, sealed string, id domain.ListingID, bidder domain.Address) (decimal.Decimal, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return decimal.Zero, dErrors.New(dErrors.CodeDependency, "bid rejected: malformed envelope")
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodeInternal, "construct cipher")
	}
	if len(raw) < aead.NonceSize() {
		return decimal.Zero, dErrors.New(dErrors.CodeDependency, "bid rejected: malformed envelope")
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad(id, bidder))
	if err != nil {
		return decimal.Zero, dErrors.New(dErrors.CodeDependency, "bid rejected: verification failed")
	}

	amount, err := decimal.NewFromString(string(plaintext))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, dErrors.New(dErrors.CodeDependency, "bid rejected: invalid amount")
	}
	return amount, nil
}

// Seal produces an envelope that Open will accept for the same listing and
// bidder. Bidder tooling and tests use this; the engine itself only opens.
func (v *SealedBidVerifier) Seal(amount decimal.Decimal, id domain.ListingID, bidder domain.Address) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("construct cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(amount.String()), aad(id, bidder))
	return base64.StdEncoding.EncodeToString(sealed), nil
}
