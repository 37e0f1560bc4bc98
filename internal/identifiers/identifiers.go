// Package identifiers implements the identifiers-and-hashing module: the
// AssetIdentifier and FulfillmentCondition value types, their canonical
// keccak hashes, and lock-ID derivation. These hashes are consumed by
// on-chain contracts, so their byte layout is normative and must not
// drift from the abi.encode rules the rest of this core follows.
package identifiers

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmcrypto"
	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
)

// AssetKind enumerates the four asset kinds a lock can reserve.
type AssetKind uint8

const (
	AssetKindNative AssetKind = 0
	AssetKindErc20  AssetKind = 1
	AssetKindErc721 AssetKind = 2
	AssetKindErc1155 AssetKind = 3
)

func (k AssetKind) Valid() bool {
	return k == AssetKindNative || k == AssetKindErc20 || k == AssetKindErc721 || k == AssetKindErc1155
}

func (k AssetKind) String() string {
	switch k {
	case AssetKindNative:
		return "native"
	case AssetKindErc20:
		return "erc20"
	case AssetKindErc721:
		return "erc721"
	case AssetKindErc1155:
		return "erc1155"
	default:
		return "unknown"
	}
}

// AssetIdentifier identifies a specific asset on a specific chain.
// Invariant: Kind == AssetKindNative iff Contract is nil.
type AssetIdentifier struct {
	ChainID  uint64
	Kind     AssetKind
	Contract *ccmtypes.Address
	TokenID  *uint256.Int
}

// Validate checks the AssetKind/Contract invariant and enum range.
func (a AssetIdentifier) Validate() error {
	if !a.Kind.Valid() {
		return fmt.Errorf("invalid asset kind %d", a.Kind)
	}
	if a.Kind == AssetKindNative && a.Contract != nil {
		return fmt.Errorf("native asset must not carry a contract address")
	}
	if a.Kind != AssetKindNative && a.Contract == nil {
		return fmt.Errorf("non-native asset requires a contract address")
	}
	return nil
}

// Hash computes keccak(abi.encode(chainId, kind, contract?:zero, tokenId?:0)).
func (a AssetIdentifier) Hash() ccmtypes.Hash {
	contract := ccmtypes.ZeroAddress
	if a.Contract != nil {
		contract = *a.Contract
	}
	tokenID := uint256.NewInt(0)
	if a.TokenID != nil {
		tokenID = a.TokenID
	}

	enc := ccmcrypto.NewEncoder().
		Uint64(a.ChainID).
		Uint8(uint8(a.Kind)).
		Address(contract).
		Uint256(tokenID)
	return ccmcrypto.Keccak256(enc.Bytes())
}

// FulfillmentCondition describes what must be delivered on the
// destination chain for a lock to be considered fulfilled.
type FulfillmentCondition struct {
	TargetChainID uint64
	TargetAsset   AssetIdentifier
	TargetAmount  *uint256.Int
	Recipient     ccmtypes.Address
	ExecutionData []byte // optional
}

// Hash computes the canonical FulfillmentCondition hash: keccak of the
// target chain, the target asset's hash, the target amount, the
// recipient, and keccak(executionData) (or 32 zero bytes when absent).
func (f FulfillmentCondition) Hash() ccmtypes.Hash {
	execHash := ccmtypes.ZeroHash
	if len(f.ExecutionData) > 0 {
		execHash = ccmcrypto.Keccak256(f.ExecutionData)
	}
	amount := f.TargetAmount
	if amount == nil {
		amount = uint256.NewInt(0)
	}

	enc := ccmcrypto.NewEncoder().
		Uint64(f.TargetChainID).
		Bytes32(f.TargetAsset.Hash()).
		Uint256(amount).
		Address(f.Recipient).
		Bytes32(execHash)
	return ccmcrypto.Keccak256(enc.Bytes())
}

// LockID derives id = keccak(abi.encode(owner, assetHash, amount, nonce, lockedAt)).
func LockID(owner ccmtypes.Address, assetHash ccmtypes.Hash, amount, nonce *uint256.Int, lockedAt uint64) ccmtypes.Hash {
	enc := ccmcrypto.NewEncoder().
		Address(owner).
		Bytes32(assetHash).
		Uint256(amount).
		Uint256(nonce).
		Uint64(lockedAt)
	return ccmcrypto.Keccak256(enc.Bytes())
}
