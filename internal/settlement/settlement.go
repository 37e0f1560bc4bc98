// Package settlement implements the ERC-4337-style UserOperation builder:
// call-data construction for native and ERC-20 transfers, the v0.7 UserOp
// hash, and the 130-byte combined signature. It has no
// dependency on the lock lifecycle in internal/commitment — the engine
// hands it plain parameters, which keeps this package independently
// testable and avoids an import cycle.
package settlement

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/holiman/uint256"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmcrypto"
	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
	"github.com/R3E-Network/credible-commitment-machine/internal/identifiers"
)

// EntryPointAddress is the standard ERC-4337 EntryPoint contract.
var EntryPointAddress = mustAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

// Function selectors used to build call data.
var (
	selectorExecute       = mustSelector("0xb61d27f6")
	selectorERC20Transfer = mustSelector("0xa9059cbb")
)

const (
	defaultCallGasLimit         = 100_000
	defaultVerificationGasLimit = 100_000
	defaultPreVerificationGas   = 21_000
)

var (
	defaultMaxFeePerGas         = uint256.NewInt(1_000_000_000)
	defaultMaxPriorityFeePerGas = uint256.NewInt(1_000_000_000)
)

// ErrUnsupportedAssetKind is returned when the asset kind has no call-data
// encoding in this revision (ERC-721, ERC-1155).
var ErrUnsupportedAssetKind = errors.New("settlement: unsupported asset kind")

// Params describes the fulfilled lock a UserOperation settles.
type Params struct {
	Sender        ccmtypes.Address
	Nonce         *uint256.Int
	Asset         identifiers.AssetIdentifier
	Amount        *uint256.Int
	Recipient     ccmtypes.Address
	ChainID       uint64
	UserSignature ccmtypes.Signature
	Sign          func(hash ccmtypes.Hash) (ccmtypes.Signature, error)
}

// UserOperation is a populated ERC-4337 v0.7 user operation ready to
// submit to EntryPointAddress.
type UserOperation struct {
	Sender               ccmtypes.Address
	Nonce                *uint256.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         uint64
	VerificationGasLimit uint64
	PreVerificationGas   uint64
	MaxFeePerGas         *uint256.Int
	MaxPriorityFeePerGas *uint256.Int
	PaymasterAndData     []byte
	// Signature is exactly 130 bytes: userSignature (65) || ccmSignature (65).
	Signature []byte
}

// Build constructs the UserOperation for p, signs its ERC-4337 hash with
// p.Sign, and appends that signature to p.UserSignature.
func Build(p Params) (*UserOperation, error) {
	callData, err := buildCallData(p.Asset, p.Recipient, p.Amount)
	if err != nil {
		return nil, err
	}

	op := &UserOperation{
		Sender:               p.Sender,
		Nonce:                p.Nonce,
		CallData:             callData,
		CallGasLimit:         defaultCallGasLimit,
		VerificationGasLimit: defaultVerificationGasLimit,
		PreVerificationGas:   defaultPreVerificationGas,
		MaxFeePerGas:         defaultMaxFeePerGas,
		MaxPriorityFeePerGas: defaultMaxPriorityFeePerGas,
	}

	hash := UserOpHash(op, p.ChainID)
	ccmSig, err := p.Sign(hash)
	if err != nil {
		return nil, err
	}

	combined := make([]byte, 0, 130)
	combined = append(combined, p.UserSignature[:]...)
	combined = append(combined, ccmSig[:]...)
	op.Signature = combined
	return op, nil
}

func buildCallData(asset identifiers.AssetIdentifier, recipient ccmtypes.Address, amount *uint256.Int) ([]byte, error) {
	switch asset.Kind {
	case identifiers.AssetKindNative:
		return executeCallData(recipient, amount, nil), nil
	case identifiers.AssetKindErc20:
		if asset.Contract == nil {
			return nil, ErrUnsupportedAssetKind
		}
		inner := erc20TransferCallData(recipient, amount)
		return executeCallData(*asset.Contract, uint256.NewInt(0), inner), nil
	default:
		return nil, ErrUnsupportedAssetKind
	}
}

// executeCallData encodes execute(address,uint256,bytes).
func executeCallData(target ccmtypes.Address, value *uint256.Int, data []byte) []byte {
	enc := ccmcrypto.NewEncoder().Address(target).Uint256(value).BytesTail(data)
	out := make([]byte, 0, 4+len(enc.Bytes()))
	out = append(out, selectorExecute...)
	out = append(out, enc.Bytes()...)
	return out
}

// erc20TransferCallData encodes transfer(address,uint256).
func erc20TransferCallData(recipient ccmtypes.Address, amount *uint256.Int) []byte {
	enc := ccmcrypto.NewEncoder().Address(recipient).Uint256(amount)
	out := make([]byte, 0, 4+len(enc.Bytes()))
	out = append(out, selectorERC20Transfer...)
	out = append(out, enc.Bytes()...)
	return out
}

// UserOpHash computes the ERC-4337 v0.7 hash EntryPointAddress expects
// the combined signature to cover.
func UserOpHash(op *UserOperation, chainID uint64) ccmtypes.Hash {
	initCodeHash := ccmcrypto.Keccak256(op.InitCode)
	callDataHash := ccmcrypto.Keccak256(op.CallData)
	paymasterHash := ccmcrypto.Keccak256(op.PaymasterAndData)

	inner := ccmcrypto.Keccak256(ccmcrypto.NewEncoder().
		Address(op.Sender).
		Uint256(op.Nonce).
		Bytes32(initCodeHash).
		Bytes32(callDataHash).
		Uint64(op.CallGasLimit).
		Uint64(op.VerificationGasLimit).
		Uint64(op.PreVerificationGas).
		Uint256(op.MaxFeePerGas).
		Uint256(op.MaxPriorityFeePerGas).
		Bytes32(paymasterHash).
		Bytes())

	return ccmcrypto.Keccak256(ccmcrypto.NewEncoder().
		Bytes32(inner).
		Address(EntryPointAddress).
		Uint64(chainID).
		Bytes())
}

func mustAddress(hexStr string) ccmtypes.Address {
	addr, err := ccmtypes.AddressFromHex(hexStr)
	if err != nil {
		panic(err)
	}
	return addr
}

func mustSelector(hexStr string) []byte {
	b, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		panic(err)
	}
	return b
}
