package ccmcrypto

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
)

// GenerateKey allocates a fresh secp256k1 private key. Callers that need
// the enclave's ephemeral key (see internal/commitment) are responsible
// for zeroing it on shutdown.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return gethcrypto.GenerateKey()
}

// AddressFromPublicKey derives the low-20-bytes-of-keccak(pubkey) address.
func AddressFromPublicKey(pub *ecdsa.PublicKey) ccmtypes.Address {
	return ccmtypes.Address(gethcrypto.PubkeyToAddress(*pub))
}

// PublicKeyBytes returns the uncompressed public key, without the leading
// 0x04 prefix, matching the 64-byte form used in the boot attestation.
func PublicKeyBytes(pub *ecdsa.PublicKey) []byte {
	full := gethcrypto.FromECDSAPub(pub)
	return full[1:]
}

// Sign produces a 65-byte r||s||v signature with v in {27, 28}, low-s
// canonical (secp256k1's signer already normalizes s).
func Sign(hash ccmtypes.Hash, priv *ecdsa.PrivateKey) (ccmtypes.Signature, error) {
	sig, err := gethcrypto.Sign(hash[:], priv)
	if err != nil {
		return ccmtypes.Signature{}, fmt.Errorf("sign: %w", err)
	}
	var out ccmtypes.Signature
	copy(out[:64], sig[:64])
	out[64] = sig[64] + 27
	return out, nil
}

// Recover recovers the signer address from a 65-byte r||s||v signature.
func Recover(hash ccmtypes.Hash, sig ccmtypes.Signature) (ccmtypes.Address, error) {
	if sig[64] != 27 && sig[64] != 28 {
		return ccmtypes.Address{}, fmt.Errorf("recover: v must be 27 or 28, got %d", sig[64])
	}
	normalized := make([]byte, 65)
	copy(normalized, sig[:64])
	normalized[64] = sig[64] - 27

	pub, err := gethcrypto.SigToPub(hash[:], normalized)
	if err != nil {
		return ccmtypes.Address{}, fmt.Errorf("recover: %w", err)
	}
	return AddressFromPublicKey(pub), nil
}

// Verify reports whether sig recovers to expected (case-insensitive, per
// the lowercase-comparison rule).
func Verify(hash ccmtypes.Hash, sig ccmtypes.Signature, expected ccmtypes.Address) bool {
	recovered, err := Recover(hash, sig)
	if err != nil {
		return false
	}
	return strings.EqualFold(recovered.Hex(), expected.Hex())
}
