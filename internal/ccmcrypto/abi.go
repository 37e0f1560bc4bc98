package ccmcrypto

import (
	"encoding/binary"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
)

// Encoder builds a head-only abi.encode buffer: every fixed-width value
// occupies one 32-byte, big-endian, left-padded word. Dynamic bytes are
// written as a length word followed by the payload right-padded to a
// multiple of 32 bytes.
//
// This mirrors on-chain abi.encode exactly as long as a dynamic field is
// the tuple's terminal element, matching the on-chain decoders that the
// four normative hashers built on it (hashAsset, hashFulfillmentCondition,
// lockId's inputs, and the LockApproval struct hash) feed. The other
// hashes built with Encoder elsewhere (commitmentHash's lockDataHash,
// the boot-attestation message, the AppAttestation dataHash) are pure
// enclave-internal hash preimages that nothing ever decodes, so a dynamic
// field appearing mid-tuple there is harmless.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder { return &Encoder{} }

func (e *Encoder) word(b []byte) *Encoder {
	var w [32]byte
	copy(w[32-len(b):], b)
	e.buf = append(e.buf, w[:]...)
	return e
}

// Uint64 encodes a uint64 as a single 32-byte word.
func (e *Encoder) Uint64(v uint64) *Encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return e.word(b[:])
}

// Uint8 encodes a small enum/kind discriminant as a single 32-byte word.
func (e *Encoder) Uint8(v uint8) *Encoder {
	return e.word([]byte{v})
}

// Uint256 encodes a *uint256.Int (nil treated as zero) as one 32-byte word.
func (e *Encoder) Uint256(v *uint256.Int) *Encoder {
	if v == nil {
		return e.word(nil)
	}
	b := v.Bytes32()
	e.buf = append(e.buf, b[:]...)
	return e
}

// BigInt encodes a *big.Int as one 32-byte word (used only for values
// already validated to fit in 256 bits).
func (e *Encoder) BigInt(v *big.Int) *Encoder {
	if v == nil {
		return e.word(nil)
	}
	return e.word(v.Bytes())
}

// Address right-aligns a 20-byte address in a 32-byte word.
func (e *Encoder) Address(a ccmtypes.Address) *Encoder {
	return e.word(a[:])
}

// Bool encodes a boolean as 0 or 1 in one word.
func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		return e.word([]byte{1})
	}
	return e.word([]byte{0})
}

// Bytes32 passes a 32-byte value through unchanged.
func (e *Encoder) Bytes32(h ccmtypes.Hash) *Encoder {
	e.buf = append(e.buf, h[:]...)
	return e
}

// Raw appends already-encoded words verbatim (e.g. a nested struct hash).
func (e *Encoder) Raw(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

// BytesTail encodes a dynamic byte slice as a length word followed by its
// payload, right-padded to a 32-byte multiple.
func (e *Encoder) BytesTail(data []byte) *Encoder {
	e.Uint64(uint64(len(data)))
	padded := make([]byte, ((len(data)+31)/32)*32)
	copy(padded, data)
	e.buf = append(e.buf, padded...)
	return e
}

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte { return e.buf }
