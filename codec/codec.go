/*
Package codec implements the reversible amount codec.

PURPOSE:
  Monetary values (hourly rates, requirement amounts, the project ledger
  total) are stored encrypted. This package is the single boundary between
  plaintext decimal arithmetic and the opaque at-rest representation.

CONTRACT:
  Encode(v)           -> opaque string (never leaks the plaintext value)
  Decode(opaque)      -> *decimal.Decimal, nil if opaque is empty or malformed
  Decode(Encode(v))   == Round2(v) for every non-negative v with <= 2
                         fractional digits (values are rounded before sealing)

KEY MATERIAL:
  One server-held 32-byte key, loaded once at process start. Rotating the
  key invalidates every previously encoded value; rotation is out of scope.

CIPHER:
  ChaCha20-Poly1305 with a random 12-byte nonce prepended to the sealed
  box, the whole blob base64url-encoded. Authenticated encryption means a
  tampered or truncated blob fails to open and decodes to nil instead of
  yielding a wrong number.

FAILURE MODE:
  Malformed input NEVER panics or errors out of Decode - it returns nil.
  Callers must null-check and decide whether "no amount set" means zero
  for their operation. They must never merge nil into arithmetic silently.
*/
package codec

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/lumencrm/ledger-engine/engine"
)

// KeySize is the required key length in bytes.
const KeySize = chacha20poly1305.KeySize

// Codec seals and opens currency values with a server-held key.
type Codec struct {
	key [KeySize]byte
}

// New creates a codec from raw key bytes.
func New(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("codec key must be %d bytes, got %d", KeySize, len(key))
	}
	c := &Codec{}
	copy(c.key[:], key)
	return c, nil
}

// NewFromHex creates a codec from a hex-encoded key (64 hex chars).
// This is the form the key takes in configuration.
func NewFromHex(hexKey string) (*Codec, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("codec key is not valid hex: %w", err)
	}
	return New(raw)
}

// NewRandom creates a codec with an ephemeral random key.
// Values sealed with it are unreadable after restart; dev/test only.
func NewRandom() *Codec {
	c := &Codec{}
	if _, err := rand.Read(c.key[:]); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return c
}

// =============================================================================
// ENCODE / DECODE
// =============================================================================

// Encode rounds v to 2 fractional digits and seals it into an opaque string.
// Two calls with the same value produce different blobs (random nonce), so
// the stored representation leaks nothing about equality either.
func (c *Codec) Encode(v decimal.Decimal) (string, error) {
	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return "", err
	}

	plaintext := []byte(engine.Round2(v).String())
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens an opaque string back into a decimal value.
// Returns nil for empty input (no amount set) and for anything that fails
// to decode, authenticate, or parse. It never returns an error: at this
// boundary malformed decodes to nil, and callers null-check.
func (c *Codec) Decode(opaque string) *decimal.Decimal {
	if opaque == "" {
		return nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(opaque)
	if err != nil {
		return nil
	}

	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return nil
	}
	if len(raw) < aead.NonceSize() {
		return nil
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil
	}

	v, err := decimal.NewFromString(string(plaintext))
	if err != nil {
		return nil
	}
	return &v
}

// DecodeStrict is Decode but reports malformed input as engine.ErrDecode.
// Used where the caller needs to distinguish "never set" from "corrupted".
func (c *Codec) DecodeStrict(opaque string) (*decimal.Decimal, error) {
	if opaque == "" {
		return nil, nil
	}
	v := c.Decode(opaque)
	if v == nil {
		return nil, engine.ErrDecode
	}
	return v, nil
}
