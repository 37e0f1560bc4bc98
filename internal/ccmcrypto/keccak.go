// Package ccmcrypto implements the crypto primitives module of the core:
// keccak-256, secp256k1 ECDSA sign/recover, a head-only abi.encode, and
// EIP-712 domain/struct hashing. Grounded on the pack's Ethereum-facing
// repositories (wyf-ACCEPT-eth2030, Aigen6-preworker) which pull in
// github.com/ethereum/go-ethereum for exactly these primitives; this
// codebase's other services use decred's secp256k1 only indirectly (via
// a Neo N3 SDK) and never touch keccak or EIP-712, so this package is
// new code written in a terse, package-per-concern style rather than an
// adaptation of an existing file elsewhere in the tree.
package ccmcrypto

import (
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
)

// Keccak256 hashes the concatenation of all inputs.
func Keccak256(data ...[]byte) ccmtypes.Hash {
	return ccmtypes.Hash(gethcrypto.Keccak256(data...))
}

// Keccak256Bytes is Keccak256 but returns a plain slice, for call sites
// that immediately feed the digest into another encoder.
func Keccak256Bytes(data ...[]byte) []byte {
	return gethcrypto.Keccak256(data...)
}
