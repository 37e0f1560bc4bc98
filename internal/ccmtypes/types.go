// Package ccmtypes defines the fixed-width wire types shared by every layer
// of the credible commitment machine: the crypto primitives, the Merkle
// index, the identifier hashers, the commitment engine, and the settlement
// builder all speak this vocabulary instead of raw byte slices.
package ccmtypes

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Address is a 20-byte account or contract address.
type Address [20]byte

// Hash is a 32-byte keccak digest or opaque 32-byte identifier.
type Hash [32]byte

// Signature is a 65-byte r||s||v ECDSA signature, v in {27, 28}.
type Signature [65]byte

// Amount is an unsigned 256-bit integer, the wire representation for any
// token quantity. It is a type alias so callers get uint256.Int's full
// arithmetic API (Add, Cmp, ...) without an extra indirection layer.
type Amount = uint256.Int

// ZeroAddress is the all-zero address, used as the placeholder for
// Native-kind assets and for the CCM's fixed EIP-712 verifyingContract.
var ZeroAddress Address

// ZeroHash is the all-zero 32-byte value, the empty-Merkle-tree root and
// the placeholder for an absent executionData/tokenId hash.
var ZeroHash Hash

func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string { return a.Hex() }

// Equal compares two addresses case-insensitively, per the
// "lowercase comparison" recovery rule (addresses are already fixed-width
// byte arrays here, so this is a plain byte comparison, but the helper
// documents the invariant at call sites that used to compare hex strings).
func (a Address) Equal(b Address) bool { return a == b }

func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string { return h.Hex() }

func (h Hash) IsZero() bool { return h == ZeroHash }

func (s Signature) Hex() string {
	return "0x" + hex.EncodeToString(s[:])
}

// AddressFromHex parses a 0x-prefixed, 40-hex-char address.
func AddressFromHex(s string) (Address, error) {
	b, err := decodeFixedHex(s, 20)
	if err != nil {
		return Address{}, fmt.Errorf("address: %w", err)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// HashFromHex parses a 0x-prefixed, 64-hex-char hash.
func HashFromHex(s string) (Hash, error) {
	b, err := decodeFixedHex(s, 32)
	if err != nil {
		return Hash{}, fmt.Errorf("hash: %w", err)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// SignatureFromHex parses a 0x-prefixed, 130-hex-char signature.
func SignatureFromHex(s string) (Signature, error) {
	b, err := decodeFixedHex(s, 65)
	if err != nil {
		return Signature{}, fmt.Errorf("signature: %w", err)
	}
	var sig Signature
	copy(sig[:], b)
	return sig, nil
}

func decodeFixedHex(s string, width int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != width*2 {
		return nil, fmt.Errorf("expected %d hex chars, got %d", width*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// ParseAmount parses a base-10 string into an Amount, as required at the
// RPC boundary where bigints travel as decimal strings.
func ParseAmount(decimal string) (*Amount, error) {
	v, err := uint256.FromDecimal(decimal)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	return v, nil
}

// AmountToDecimal renders an Amount as a base-10 string for the wire.
func AmountToDecimal(a *Amount) string {
	if a == nil {
		return "0"
	}
	return a.Dec()
}
