package ccmcrypto

import (
	"github.com/holiman/uint256"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
)

// eip712DomainTypeHash is keccak256("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)").
var eip712DomainTypeHash = Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

// lockApprovalTypeHash is keccak256 of the LockApproval struct's canonical
// type signature. LockApproval is the only EIP-712 struct type this
// core ever signs.
var lockApprovalTypeHash = Keccak256([]byte("LockApproval(bytes32 lockId,address owner,bytes32 asset,uint256 amount,uint256 nonce,uint256 expiresAt,bytes32 fulfillmentHash)"))

// Domain is an EIP-712 domain separator's inputs.
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract ccmtypes.Address
}

// CCMDomain builds the CCM's fixed EIP-712 domain for a given chain: name
// and version are hardcoded, verifyingContract is the zero address, and
// chainId is set per-lock to the locked asset's chain.
func CCMDomain(chainID uint64) Domain {
	return Domain{
		Name:              "CredibleCommitmentMachine",
		Version:           "1.0.0",
		ChainID:           chainID,
		VerifyingContract: ccmtypes.ZeroAddress,
	}
}

// Separator computes the EIP-712 domain separator.
func (d Domain) Separator() ccmtypes.Hash {
	nameHash := Keccak256([]byte(d.Name))
	versionHash := Keccak256([]byte(d.Version))

	enc := NewEncoder().
		Bytes32(eip712DomainTypeHash).
		Bytes32(nameHash).
		Bytes32(versionHash).
		Uint64(d.ChainID).
		Address(d.VerifyingContract)
	return Keccak256(enc.Bytes())
}

// LockApproval mirrors the LockApproval EIP-712 struct fields.
type LockApproval struct {
	LockID          ccmtypes.Hash
	Owner           ccmtypes.Address
	Asset           ccmtypes.Hash
	Amount          *uint256.Int
	Nonce           *uint256.Int
	ExpiresAt       uint64
	FulfillmentHash ccmtypes.Hash
}

// StructHash computes the EIP-712 struct hash for a LockApproval message.
func (m LockApproval) StructHash() ccmtypes.Hash {
	enc := NewEncoder().
		Bytes32(lockApprovalTypeHash).
		Bytes32(m.LockID).
		Address(m.Owner).
		Bytes32(m.Asset).
		Uint256(m.Amount).
		Uint256(m.Nonce).
		Uint64(m.ExpiresAt).
		Bytes32(m.FulfillmentHash)
	return Keccak256(enc.Bytes())
}

// HashTypedData computes keccak(0x1901 || domainSeparator || structHash),
// the digest that gets signed and recovered against.
func HashTypedData(domainSeparator, structHash ccmtypes.Hash) ccmtypes.Hash {
	prefix := []byte{0x19, 0x01}
	return Keccak256(prefix, domainSeparator[:], structHash[:])
}

// HashLockApproval is the convenience composition of Separator + StructHash
// + HashTypedData used by the commitment engine.
func HashLockApproval(domain Domain, msg LockApproval) ccmtypes.Hash {
	return HashTypedData(domain.Separator(), msg.StructHash())
}
