package rpcserver

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/R3E-Network/credible-commitment-machine/internal/ccmtypes"
	"github.com/R3E-Network/credible-commitment-machine/internal/commitment"
	"github.com/R3E-Network/credible-commitment-machine/services/ccm"
)

func hashParam(s string) (ccmtypes.Hash, error) {
	return ccmtypes.HashFromHex(s)
}

func addressParam(s string) (ccmtypes.Address, error) {
	return ccmtypes.AddressFromHex(s)
}

func hashHex(h ccmtypes.Hash) string {
	return h.Hex()
}

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

// kindCodes maps the commitment package's error taxonomy onto the
// JSON-RPC server-error range (-32000 to -32099), so a client can branch
// on error.code without string-matching error.message.
var kindCodes = map[commitment.Kind]int{
	commitment.KindInvalidParams:        -32000,
	commitment.KindUnsupportedChain:     -32001,
	commitment.KindUnsupportedAssetKind: -32002,
	commitment.KindInvalidAsset:         -32003,
	commitment.KindAmountOutOfRange:     -32004,
	commitment.KindDurationOutOfRange:   -32005,
	commitment.KindRiskLimitExceeded:    -32006,
	commitment.KindLockNotFound:         -32007,
	commitment.KindInvalidLockStatus:    -32008,
	commitment.KindInvalidSignature:     -32009,
	commitment.KindLockExpired:          -32010,
	commitment.KindAttestorUnavailable:  -32011,
	commitment.KindVerifierFailed:       -32012,
	commitment.KindInternal:             -32013,
}

func errorFromDomain(err error) *RPCError {
	var coreErr *commitment.CoreError
	if errors.As(err, &coreErr) {
		code, ok := kindCodes[coreErr.Kind]
		if !ok {
			code = codeInternalError
		}
		return &RPCError{Code: code, Message: coreErr.Error()}
	}
	return &RPCError{Code: codeInternalError, Message: err.Error()}
}

func errorf(code int, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Handler dispatches JSON-RPC method calls onto a running ccm.Service.
type Handler struct {
	service *ccm.Service
}

// NewHandler constructs a Handler over service.
func NewHandler(service *ccm.Service) *Handler {
	return &Handler{service: service}
}

// Dispatch decodes req.Params according to req.Method, invokes the
// matching service operation, and returns a fully populated Response
// carrying req's ID. It never returns an error itself: transport-level
// failures belong to the caller.
func (h *Handler) Dispatch(ctx context.Context, req *Request) *Response {
	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	result, rpcErr := h.dispatchMethod(ctx, req.Method, req.Params)
	if rpcErr != nil {
		resp.Error = rpcErr
		return resp
	}
	resp.Result = result
	return resp
}

func (h *Handler) dispatchMethod(ctx context.Context, method string, raw json.RawMessage) (any, *RPCError) {
	switch method {
	case "health":
		if err := h.service.Health(ctx); err != nil {
			return nil, errorf(codeInternalError, "%v", err)
		}
		return map[string]bool{"healthy": true}, nil

	case "getBootAttestation":
		att, err := h.service.GetBootAttestation(ctx)
		if err != nil {
			return nil, errorFromDomain(err)
		}
		return fromBootAttestation(att), nil

	case "createLock":
		var p createLockParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errorf(codeParseError, "invalid params: %v", err)
		}
		domainReq, err := p.toDomain()
		if err != nil {
			return nil, errorf(codeInvalidParams, "%v", err)
		}
		resp, err := h.service.CreateLock(ctx, domainReq)
		if err != nil {
			return nil, errorFromDomain(err)
		}
		return fromCreateLockResponse(resp), nil

	case "signLock":
		var p lockSignatureParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errorf(codeParseError, "invalid params: %v", err)
		}
		lockID, sig, err := p.parse()
		if err != nil {
			return nil, errorf(codeInvalidParams, "%v", err)
		}
		resp, err := h.service.SignLock(ctx, lockID, sig)
		if err != nil {
			return nil, errorFromDomain(err)
		}
		return fromSignLockResponse(resp), nil

	case "verifyFulfillment":
		var p verifyFulfillmentParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errorf(codeParseError, "invalid params: %v", err)
		}
		lockID, proof, err := p.parse()
		if err != nil {
			return nil, errorf(codeInvalidParams, "%v", err)
		}
		resp, err := h.service.VerifyFulfillment(ctx, lockID, proof)
		if err != nil {
			return nil, errorFromDomain(err)
		}
		return fromFulfillLockResponse(resp), nil

	case "cancelLock":
		var p lockSignatureParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errorf(codeParseError, "invalid params: %v", err)
		}
		lockID, sig, err := p.parse()
		if err != nil {
			return nil, errorf(codeInvalidParams, "%v", err)
		}
		att, err := h.service.CancelLock(ctx, lockID, sig)
		if err != nil {
			return nil, errorFromDomain(err)
		}
		return fromAppAttestation(att), nil

	case "getLock":
		var p struct {
			LockID string `json:"lockId"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errorf(codeParseError, "invalid params: %v", err)
		}
		lockID, err := hashParam(p.LockID)
		if err != nil {
			return nil, errorf(codeInvalidParams, "%v", err)
		}
		lock, err := h.service.GetLock(lockID)
		if err != nil {
			return nil, errorFromDomain(err)
		}
		return fromResourceLock(lock), nil

	case "getActiveLocks":
		var p struct {
			Owner string `json:"owner"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errorf(codeParseError, "invalid params: %v", err)
		}
		owner, err := addressParam(p.Owner)
		if err != nil {
			return nil, errorf(codeInvalidParams, "%v", err)
		}
		locks := h.service.GetActiveLocks(owner)
		out := make([]wireResourceLock, len(locks))
		for i, l := range locks {
			out[i] = fromResourceLock(l)
		}
		return out, nil

	case "getLockedBalance":
		var p getLockedBalanceParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errorf(codeParseError, "invalid params: %v", err)
		}
		owner, asset, err := p.parse()
		if err != nil {
			return nil, errorf(codeInvalidParams, "%v", err)
		}
		balance := h.service.GetLockedBalance(owner, asset)
		return map[string]string{"balance": ccmtypes.AmountToDecimal(balance)}, nil

	case "getStateRoot":
		root := h.service.GetStateRoot()
		return map[string]string{"stateRoot": hashHex(root)}, nil

	case "getEnclaveId":
		id := h.service.GetEnclaveID()
		return map[string]string{"enclaveId": hashHex(id)}, nil

	case "getEnclavePublicKey":
		pub := h.service.GetEnclavePublicKey()
		return map[string]string{"publicKey": "0x" + hex.EncodeToString(pub)}, nil

	case "cleanupExpiredLocks":
		count, err := h.service.CleanupExpiredLocks(ctx)
		if err != nil {
			return nil, errorFromDomain(err)
		}
		return map[string]int{"expired": count}, nil

	default:
		return nil, errorf(codeMethodNotFound, "unknown method %q", method)
	}
}
