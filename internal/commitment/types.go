// Package commitment implements the lock lifecycle state machine:
// createLock, signLock, verifyFulfillment, cancelLock, the read-only
// queries, and the maintenance sweep, all serialized behind a single
// critical section under a single-writer scheduling model.
package commitment

import (
	"github.com/holiman/uint256"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmcrypto"
	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
	"github.com/R3E-Network/credible-commitment-machine/internal/identifiers"
	"github.com/R3E-Network/credible-commitment-machine/internal/merkle"
	"github.com/R3E-Network/credible-commitment-machine/internal/settlement"
)

// Status is a ResourceLock's position in the lifecycle state machine.
// Fulfilled, Expired, and Cancelled are terminal.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusActive    Status = "Active"
	StatusFulfilled Status = "Fulfilled"
	StatusSettled   Status = "Settled"
	StatusExpired   Status = "Expired"
	StatusCancelled Status = "Cancelled"
)

// Code returns the stable numeric encoding of a Status used inside
// AppAttestation.DataHash, so status names can change without altering
// the hash a client already verified against.
func (s Status) Code() uint8 {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusFulfilled:
		return 2
	case StatusSettled:
		return 3
	case StatusExpired:
		return 4
	case StatusCancelled:
		return 5
	default:
		return 255
	}
}

// RiskLimits bounds a single owner's and the enclave's aggregate exposure.
type RiskLimits struct {
	MaxTotalLockedPerAccount *uint256.Int
	MaxSingleLockAmount      *uint256.Int
	MaxConcurrentLocks       uint32
	MaxDailyVolume           *uint256.Int
}

func (r *RiskLimits) applyDefaults() {
	if r.MaxTotalLockedPerAccount == nil {
		r.MaxTotalLockedPerAccount = uint256.NewInt(1_000_000)
	}
	if r.MaxSingleLockAmount == nil {
		r.MaxSingleLockAmount = uint256.NewInt(100_000)
	}
	if r.MaxConcurrentLocks == 0 {
		r.MaxConcurrentLocks = 100
	}
	if r.MaxDailyVolume == nil {
		r.MaxDailyVolume = uint256.NewInt(10_000_000)
	}
}

// EnclaveConfig is loaded once at Initialize and never mutated afterward.
type EnclaveConfig struct {
	MinLockDuration  uint64
	MaxLockDuration  uint64
	SupportedChains  map[uint64]bool
	SettlementBuffer uint64
	RiskLimits       RiskLimits
}

// applyDefaults fills zero-valued fields with the enclave's stated defaults.
func (c *EnclaveConfig) applyDefaults() {
	if c.MinLockDuration == 0 {
		c.MinLockDuration = 30
	}
	if c.MaxLockDuration == 0 {
		c.MaxLockDuration = 3600
	}
	if c.SettlementBuffer == 0 {
		c.SettlementBuffer = 300
	}
	if c.SupportedChains == nil {
		c.SupportedChains = map[uint64]bool{1: true}
	}
	c.RiskLimits.applyDefaults()
}

// ResourceLock is the central entity: a reservation of an owner's asset
// pending or bound to a cross-chain fulfillment.
type ResourceLock struct {
	ID          ccmtypes.Hash
	Owner       ccmtypes.Address
	Asset       identifiers.AssetIdentifier
	Amount      *uint256.Int
	LockedAt    uint64
	ExpiresAt   uint64
	Nonce       *uint256.Int
	Fulfillment identifiers.FulfillmentCondition
	Status      Status

	UserSignature *ccmtypes.Signature
	CCMSignature  *ccmtypes.Signature
}

// EnclaveState is the process-singleton, volatile state created by
// Initialize and destroyed at shutdown. Nothing here is persisted.
type EnclaveState struct {
	Address     ccmtypes.Address
	EnclaveID   ccmtypes.Hash
	BootTime    uint64
	Locks       map[ccmtypes.Hash]*ResourceLock
	Nonces      map[ccmtypes.Address]*uint256.Int
	DailyVolume map[string]*uint256.Int
	Merkle      *merkle.Tree
	StateRoot   ccmtypes.Hash
}

// CCMAttestation is the enclave's co-signature over a commitment.
type CCMAttestation struct {
	EnclaveID      ccmtypes.Hash
	Timestamp      uint64
	CommitmentHash ccmtypes.Hash
	Signature      ccmtypes.Signature
}

// BootAttestation is returned by generateBootAttestation and binds the
// enclave's public key to a measured code identity.
type BootAttestation struct {
	EnclaveID            ccmtypes.Hash
	PublicKey            []byte
	BootTime             uint64
	CodeHash             []byte
	AttestationDocument  []byte
	Signature            ccmtypes.Signature
	IsRealAttestation    bool
}

// AppAttestation is returned by cancelLock: a signed record of an
// enclave-observed application-level event.
type AppAttestation struct {
	EnclaveID ccmtypes.Hash
	Operation string
	Timestamp uint64
	DataHash  ccmtypes.Hash
	Signature ccmtypes.Signature
}

// Commitment is the externally visible, co-signed attestation that a
// lock's assets are reserved under its fulfillment condition.
type Commitment struct {
	LockID               ccmtypes.Hash
	ProtocolVersion      uint8
	SourceChainID        uint64
	SmartAccount         ccmtypes.Address
	LockedAsset          identifiers.AssetIdentifier
	LockedAmount         *uint256.Int
	CreatedAt            uint64
	ExpiresAt            uint64
	SettlementDeadline   uint64
	FulfillmentCondition identifiers.FulfillmentCondition
	Nonce                *uint256.Int
	StateRoot            ccmtypes.Hash
	UserSignatureHash    ccmtypes.Hash
	CCMAttestation       CCMAttestation
}

// CreateLockRequest is the input to createLock. SessionKey is accepted
// but unused by validation: this revision enforces owner-only signing and
// never checks a delegated session key.
type CreateLockRequest struct {
	Owner       ccmtypes.Address
	Asset       identifiers.AssetIdentifier
	Amount      *uint256.Int
	ExpiresIn   uint64
	Fulfillment identifiers.FulfillmentCondition
	SessionKey  *ccmtypes.Address
}

// CreateLockResponse carries the typed-data payload the client must
// countersign to move the lock from Pending to Active.
type CreateLockResponse struct {
	LockID               ccmtypes.Hash
	Status               Status
	Nonce                *uint256.Int
	TypedData            ccmcrypto.LockApproval
	DomainSeparator      ccmtypes.Hash
	ExpirationTimestamp  uint64
}

// SignLockResponse is returned once a user signature has been verified
// and the lock has transitioned to Active.
type SignLockResponse struct {
	LockID     ccmtypes.Hash
	Status     Status
	Commitment Commitment
}

// FulfillmentProof is the solver-supplied evidence a fulfillment
// occurred on the destination chain.
type FulfillmentProof struct {
	TransactionHash ccmtypes.Hash
	BlockHash       ccmtypes.Hash
	BlockNumber     uint64
}

// FulfillLockResponse pairs the post-fulfillment Commitment with the
// settlement UserOperation the caller submits to the EntryPoint.
type FulfillLockResponse struct {
	LockID        ccmtypes.Hash
	Status        Status
	Commitment    Commitment
	UserOperation settlement.UserOperation
}
