// Package rpcserver exposes the commitment machine over JSON-RPC 2.0, on
// both a line-framed TCP bridge and an HTTP compatibility endpoint. Every
// wire value is a string: addresses and hashes travel as 0x-prefixed hex
// of their exact fixed width, uint256 amounts travel as base-10 decimal,
// matching the boundary encoding ccmtypes.ParseAmount/AmountToDecimal and
// ccmtypes.AddressFromHex/HashFromHex/SignatureFromHex already define.
package rpcserver

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmcrypto"
	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
	"github.com/R3E-Network/credible-commitment-machine/internal/commitment"
	"github.com/R3E-Network/credible-commitment-machine/internal/identifiers"
	"github.com/R3E-Network/credible-commitment-machine/internal/settlement"
)

type wireAsset struct {
	ChainID  uint64  `json:"chainId"`
	Kind     uint8   `json:"kind"`
	Contract *string `json:"contract,omitempty"`
	TokenID  *string `json:"tokenId,omitempty"`
}

func (w wireAsset) toDomain() (identifiers.AssetIdentifier, error) {
	asset := identifiers.AssetIdentifier{ChainID: w.ChainID, Kind: identifiers.AssetKind(w.Kind)}
	if w.Contract != nil {
		addr, err := ccmtypes.AddressFromHex(*w.Contract)
		if err != nil {
			return asset, fmt.Errorf("contract: %w", err)
		}
		asset.Contract = &addr
	}
	if w.TokenID != nil {
		id, err := uint256.FromDecimal(*w.TokenID)
		if err != nil {
			return asset, fmt.Errorf("tokenId: %w", err)
		}
		asset.TokenID = id
	}
	return asset, nil
}

func fromAsset(a identifiers.AssetIdentifier) wireAsset {
	w := wireAsset{ChainID: a.ChainID, Kind: uint8(a.Kind)}
	if a.Contract != nil {
		hex := a.Contract.Hex()
		w.Contract = &hex
	}
	if a.TokenID != nil {
		dec := a.TokenID.Dec()
		w.TokenID = &dec
	}
	return w
}

type wireFulfillment struct {
	TargetChainID uint64    `json:"targetChainId"`
	TargetAsset   wireAsset `json:"targetAsset"`
	TargetAmount  string    `json:"targetAmount"`
	Recipient     string    `json:"recipient"`
	ExecutionData string    `json:"executionData,omitempty"`
}

func (w wireFulfillment) toDomain() (identifiers.FulfillmentCondition, error) {
	var out identifiers.FulfillmentCondition
	asset, err := w.TargetAsset.toDomain()
	if err != nil {
		return out, fmt.Errorf("targetAsset: %w", err)
	}
	amount, err := ccmtypes.ParseAmount(w.TargetAmount)
	if err != nil {
		return out, fmt.Errorf("targetAmount: %w", err)
	}
	recipient, err := ccmtypes.AddressFromHex(w.Recipient)
	if err != nil {
		return out, fmt.Errorf("recipient: %w", err)
	}
	out = identifiers.FulfillmentCondition{
		TargetChainID: w.TargetChainID,
		TargetAsset:   asset,
		TargetAmount:  amount,
		Recipient:     recipient,
	}
	if w.ExecutionData != "" {
		data, err := hex.DecodeString(trimHexPrefix(w.ExecutionData))
		if err != nil {
			return out, fmt.Errorf("executionData: %w", err)
		}
		out.ExecutionData = data
	}
	return out, nil
}

func fromFulfillment(f identifiers.FulfillmentCondition) wireFulfillment {
	w := wireFulfillment{
		TargetChainID: f.TargetChainID,
		TargetAsset:   fromAsset(f.TargetAsset),
		TargetAmount:  ccmtypes.AmountToDecimal(f.TargetAmount),
		Recipient:     f.Recipient.Hex(),
	}
	if len(f.ExecutionData) > 0 {
		w.ExecutionData = "0x" + hex.EncodeToString(f.ExecutionData)
	}
	return w
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// createLock

type createLockParams struct {
	Owner       string          `json:"owner"`
	Asset       wireAsset       `json:"asset"`
	Amount      string          `json:"amount"`
	ExpiresIn   uint64          `json:"expiresIn"`
	Fulfillment wireFulfillment `json:"fulfillment"`
	SessionKey  string          `json:"sessionKey,omitempty"`
}

func (p createLockParams) toDomain() (commitment.CreateLockRequest, error) {
	var req commitment.CreateLockRequest
	owner, err := ccmtypes.AddressFromHex(p.Owner)
	if err != nil {
		return req, fmt.Errorf("owner: %w", err)
	}
	asset, err := p.Asset.toDomain()
	if err != nil {
		return req, err
	}
	amount, err := ccmtypes.ParseAmount(p.Amount)
	if err != nil {
		return req, fmt.Errorf("amount: %w", err)
	}
	fulfillment, err := p.Fulfillment.toDomain()
	if err != nil {
		return req, err
	}
	req = commitment.CreateLockRequest{
		Owner: owner, Asset: asset, Amount: amount,
		ExpiresIn: p.ExpiresIn, Fulfillment: fulfillment,
	}
	if p.SessionKey != "" {
		sk, err := ccmtypes.AddressFromHex(p.SessionKey)
		if err != nil {
			return req, fmt.Errorf("sessionKey: %w", err)
		}
		req.SessionKey = &sk
	}
	return req, nil
}

type wireLockApproval struct {
	LockID          string `json:"lockId"`
	Owner           string `json:"owner"`
	Asset           string `json:"asset"`
	Amount          string `json:"amount"`
	Nonce           string `json:"nonce"`
	ExpiresAt       uint64 `json:"expiresAt"`
	FulfillmentHash string `json:"fulfillmentHash"`
}

func fromLockApproval(m ccmcrypto.LockApproval) wireLockApproval {
	return wireLockApproval{
		LockID:          m.LockID.Hex(),
		Owner:           m.Owner.Hex(),
		Asset:           m.Asset.Hex(),
		Amount:          ccmtypes.AmountToDecimal(m.Amount),
		Nonce:           ccmtypes.AmountToDecimal(m.Nonce),
		ExpiresAt:       m.ExpiresAt,
		FulfillmentHash: m.FulfillmentHash.Hex(),
	}
}

type createLockResult struct {
	LockID              string           `json:"lockId"`
	Status              string           `json:"status"`
	Nonce               string           `json:"nonce"`
	TypedData           wireLockApproval `json:"typedData"`
	DomainSeparator     string           `json:"domainSeparator"`
	ExpirationTimestamp uint64           `json:"expirationTimestamp"`
}

func fromCreateLockResponse(r *commitment.CreateLockResponse) createLockResult {
	return createLockResult{
		LockID:              r.LockID.Hex(),
		Status:              string(r.Status),
		Nonce:               ccmtypes.AmountToDecimal(r.Nonce),
		TypedData:           fromLockApproval(r.TypedData),
		DomainSeparator:     r.DomainSeparator.Hex(),
		ExpirationTimestamp: r.ExpirationTimestamp,
	}
}

// signLock / cancelLock

type lockSignatureParams struct {
	LockID    string `json:"lockId"`
	Signature string `json:"signature"`
}

func (p lockSignatureParams) parse() (ccmtypes.Hash, ccmtypes.Signature, error) {
	lockID, err := ccmtypes.HashFromHex(p.LockID)
	if err != nil {
		return ccmtypes.Hash{}, ccmtypes.Signature{}, fmt.Errorf("lockId: %w", err)
	}
	sig, err := ccmtypes.SignatureFromHex(p.Signature)
	if err != nil {
		return ccmtypes.Hash{}, ccmtypes.Signature{}, fmt.Errorf("signature: %w", err)
	}
	return lockID, sig, nil
}

type wireCCMAttestation struct {
	EnclaveID      string `json:"enclaveId"`
	Timestamp      uint64 `json:"timestamp"`
	CommitmentHash string `json:"commitmentHash"`
	Signature      string `json:"signature"`
}

func fromCCMAttestation(a commitment.CCMAttestation) wireCCMAttestation {
	return wireCCMAttestation{
		EnclaveID:      a.EnclaveID.Hex(),
		Timestamp:      a.Timestamp,
		CommitmentHash: a.CommitmentHash.Hex(),
		Signature:      a.Signature.Hex(),
	}
}

type wireCommitment struct {
	LockID               string             `json:"lockId"`
	ProtocolVersion      uint8              `json:"protocolVersion"`
	SourceChainID        uint64             `json:"sourceChainId"`
	SmartAccount         string             `json:"smartAccount"`
	LockedAsset          wireAsset          `json:"lockedAsset"`
	LockedAmount         string             `json:"lockedAmount"`
	CreatedAt            uint64             `json:"createdAt"`
	ExpiresAt            uint64             `json:"expiresAt"`
	SettlementDeadline   uint64             `json:"settlementDeadline"`
	FulfillmentCondition wireFulfillment    `json:"fulfillmentCondition"`
	Nonce                string             `json:"nonce"`
	StateRoot            string             `json:"stateRoot"`
	UserSignatureHash    string             `json:"userSignatureHash"`
	CCMAttestation       wireCCMAttestation `json:"ccmAttestation"`
}

func fromCommitment(c commitment.Commitment) wireCommitment {
	return wireCommitment{
		LockID:               c.LockID.Hex(),
		ProtocolVersion:      c.ProtocolVersion,
		SourceChainID:        c.SourceChainID,
		SmartAccount:         c.SmartAccount.Hex(),
		LockedAsset:          fromAsset(c.LockedAsset),
		LockedAmount:         ccmtypes.AmountToDecimal(c.LockedAmount),
		CreatedAt:            c.CreatedAt,
		ExpiresAt:            c.ExpiresAt,
		SettlementDeadline:   c.SettlementDeadline,
		FulfillmentCondition: fromFulfillment(c.FulfillmentCondition),
		Nonce:                ccmtypes.AmountToDecimal(c.Nonce),
		StateRoot:            c.StateRoot.Hex(),
		UserSignatureHash:    c.UserSignatureHash.Hex(),
		CCMAttestation:       fromCCMAttestation(c.CCMAttestation),
	}
}

type signLockResult struct {
	LockID     string         `json:"lockId"`
	Status     string         `json:"status"`
	Commitment wireCommitment `json:"commitment"`
}

func fromSignLockResponse(r *commitment.SignLockResponse) signLockResult {
	return signLockResult{LockID: r.LockID.Hex(), Status: string(r.Status), Commitment: fromCommitment(r.Commitment)}
}

// verifyFulfillment

type verifyFulfillmentParams struct {
	LockID          string `json:"lockId"`
	TransactionHash string `json:"transactionHash"`
	BlockHash       string `json:"blockHash"`
	BlockNumber     uint64 `json:"blockNumber"`
}

func (p verifyFulfillmentParams) parse() (ccmtypes.Hash, commitment.FulfillmentProof, error) {
	lockID, err := ccmtypes.HashFromHex(p.LockID)
	if err != nil {
		return ccmtypes.Hash{}, commitment.FulfillmentProof{}, fmt.Errorf("lockId: %w", err)
	}
	txHash, err := ccmtypes.HashFromHex(p.TransactionHash)
	if err != nil {
		return ccmtypes.Hash{}, commitment.FulfillmentProof{}, fmt.Errorf("transactionHash: %w", err)
	}
	blockHash, err := ccmtypes.HashFromHex(p.BlockHash)
	if err != nil {
		return ccmtypes.Hash{}, commitment.FulfillmentProof{}, fmt.Errorf("blockHash: %w", err)
	}
	return lockID, commitment.FulfillmentProof{
		TransactionHash: txHash, BlockHash: blockHash, BlockNumber: p.BlockNumber,
	}, nil
}

type wireUserOperation struct {
	Sender               string `json:"sender"`
	Nonce                string `json:"nonce"`
	InitCode             string `json:"initCode"`
	CallData             string `json:"callData"`
	CallGasLimit         uint64 `json:"callGasLimit"`
	VerificationGasLimit uint64 `json:"verificationGasLimit"`
	PreVerificationGas   uint64 `json:"preVerificationGas"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
	PaymasterAndData     string `json:"paymasterAndData"`
	Signature            string `json:"signature"`
}

func fromUserOperation(op settlement.UserOperation) wireUserOperation {
	return wireUserOperation{
		Sender:               op.Sender.Hex(),
		Nonce:                ccmtypes.AmountToDecimal(op.Nonce),
		InitCode:             "0x" + hex.EncodeToString(op.InitCode),
		CallData:             "0x" + hex.EncodeToString(op.CallData),
		CallGasLimit:         op.CallGasLimit,
		VerificationGasLimit: op.VerificationGasLimit,
		PreVerificationGas:   op.PreVerificationGas,
		MaxFeePerGas:         ccmtypes.AmountToDecimal(op.MaxFeePerGas),
		MaxPriorityFeePerGas: ccmtypes.AmountToDecimal(op.MaxPriorityFeePerGas),
		PaymasterAndData:     "0x" + hex.EncodeToString(op.PaymasterAndData),
		Signature:            "0x" + hex.EncodeToString(op.Signature),
	}
}

type fulfillLockResult struct {
	LockID        string            `json:"lockId"`
	Status        string            `json:"status"`
	Commitment    wireCommitment    `json:"commitment"`
	UserOperation wireUserOperation `json:"userOperation"`
}

func fromFulfillLockResponse(r *commitment.FulfillLockResponse) fulfillLockResult {
	return fulfillLockResult{
		LockID: r.LockID.Hex(), Status: string(r.Status),
		Commitment: fromCommitment(r.Commitment), UserOperation: fromUserOperation(r.UserOperation),
	}
}

// cancelLock

type wireAppAttestation struct {
	EnclaveID string `json:"enclaveId"`
	Operation string `json:"operation"`
	Timestamp uint64 `json:"timestamp"`
	DataHash  string `json:"dataHash"`
	Signature string `json:"signature"`
}

func fromAppAttestation(a *commitment.AppAttestation) wireAppAttestation {
	return wireAppAttestation{
		EnclaveID: a.EnclaveID.Hex(), Operation: a.Operation, Timestamp: a.Timestamp,
		DataHash: a.DataHash.Hex(), Signature: a.Signature.Hex(),
	}
}

// getLock / getActiveLocks

type wireResourceLock struct {
	ID            string          `json:"id"`
	Owner         string          `json:"owner"`
	Asset         wireAsset       `json:"asset"`
	Amount        string          `json:"amount"`
	LockedAt      uint64          `json:"lockedAt"`
	ExpiresAt     uint64          `json:"expiresAt"`
	Nonce         string          `json:"nonce"`
	Fulfillment   wireFulfillment `json:"fulfillment"`
	Status        string          `json:"status"`
	UserSignature string          `json:"userSignature,omitempty"`
	CCMSignature  string          `json:"ccmSignature,omitempty"`
}

func fromResourceLock(l *commitment.ResourceLock) wireResourceLock {
	w := wireResourceLock{
		ID: l.ID.Hex(), Owner: l.Owner.Hex(), Asset: fromAsset(l.Asset),
		Amount: ccmtypes.AmountToDecimal(l.Amount), LockedAt: l.LockedAt, ExpiresAt: l.ExpiresAt,
		Nonce: ccmtypes.AmountToDecimal(l.Nonce), Fulfillment: fromFulfillment(l.Fulfillment),
		Status: string(l.Status),
	}
	if l.UserSignature != nil {
		w.UserSignature = l.UserSignature.Hex()
	}
	if l.CCMSignature != nil {
		w.CCMSignature = l.CCMSignature.Hex()
	}
	return w
}

// getLockedBalance

type getLockedBalanceParams struct {
	Owner string    `json:"owner"`
	Asset wireAsset `json:"asset"`
}

func (p getLockedBalanceParams) parse() (ccmtypes.Address, identifiers.AssetIdentifier, error) {
	owner, err := ccmtypes.AddressFromHex(p.Owner)
	if err != nil {
		return ccmtypes.Address{}, identifiers.AssetIdentifier{}, fmt.Errorf("owner: %w", err)
	}
	asset, err := p.Asset.toDomain()
	if err != nil {
		return ccmtypes.Address{}, identifiers.AssetIdentifier{}, err
	}
	return owner, asset, nil
}

// getBootAttestation

type wireBootAttestation struct {
	EnclaveID           string `json:"enclaveId"`
	PublicKey           string `json:"publicKey"`
	BootTime            uint64 `json:"bootTime"`
	CodeHash            string `json:"codeHash"`
	AttestationDocument string `json:"attestationDocument"`
	Signature           string `json:"signature"`
	IsRealAttestation   bool   `json:"isRealAttestation"`
}

func fromBootAttestation(a *commitment.BootAttestation) wireBootAttestation {
	return wireBootAttestation{
		EnclaveID:           a.EnclaveID.Hex(),
		PublicKey:           "0x" + hex.EncodeToString(a.PublicKey),
		BootTime:            a.BootTime,
		CodeHash:            "0x" + hex.EncodeToString(a.CodeHash),
		AttestationDocument: "0x" + hex.EncodeToString(a.AttestationDocument),
		Signature:           a.Signature.Hex(),
		IsRealAttestation:   a.IsRealAttestation,
	}
}
