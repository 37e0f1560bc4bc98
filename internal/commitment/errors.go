package commitment

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy every commitment operation classifies its
// failures into. Callers should switch on Kind, not
// on error string content.
type Kind string

const (
	KindInvalidParams        Kind = "InvalidParams"
	KindUnsupportedChain     Kind = "UnsupportedChain"
	KindUnsupportedAssetKind Kind = "UnsupportedAssetKind"
	KindInvalidAsset         Kind = "InvalidAsset"
	KindAmountOutOfRange     Kind = "AmountOutOfRange"
	KindDurationOutOfRange   Kind = "DurationOutOfRange"
	KindRiskLimitExceeded    Kind = "RiskLimitExceeded"
	KindLockNotFound         Kind = "LockNotFound"
	KindInvalidLockStatus    Kind = "InvalidLockStatus"
	KindInvalidSignature     Kind = "InvalidSignature"
	KindLockExpired          Kind = "LockExpired"
	KindAttestorUnavailable  Kind = "AttestorUnavailable"
	KindVerifierFailed       Kind = "VerifierFailed"
	KindInternal             Kind = "Internal"
)

// CoreError is the error type every commitment operation returns.
// Reason carries RiskLimitExceeded's sub-reason ("concurrent", "account",
// "daily") and is empty for every other Kind.
type CoreError struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *CoreError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s(%s): %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CoreError) Unwrap() error { return e.Err }

func newErr(kind Kind, reason string, err error) *CoreError {
	return &CoreError{Kind: kind, Reason: reason, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) a *CoreError.
func KindOf(err error) (Kind, bool) {
	var ce *CoreError
	if !errors.As(err, &ce) {
		return "", false
	}
	return ce.Kind, true
}
