// Package types holds the small shared value types passed across the
// tee/enclave and tee/attestation boundary, split out so tee/enclave can
// use them without importing tee/attestation, which imports tee/enclave.
package types

import (
	"errors"
	"time"
)

// ErrEnclaveNotReady is returned by enclave.Runtime operations invoked
// before Initialize or after Shutdown.
var ErrEnclaveNotReady = errors.New("tee: enclave runtime not ready")

// Quote is a (possibly simulated) remote-attestation quote binding a
// measurement to caller-supplied user data.
type Quote struct {
	RawQuote  []byte
	UserData  []byte
	MREnclave string
	MRSigner  string
	Timestamp time.Time
}

// QuoteVerification is the result of checking a Quote against expected
// measurements.
type QuoteVerification struct {
	Valid      bool
	MREnclave  string
	MRSigner   string
	VerifiedAt time.Time
}

// AttestationReport summarizes the current enclave's identity and mode.
type AttestationReport struct {
	EnclaveID string
	Mode      string
	MREnclave string
	MRSigner  string
	Timestamp time.Time
}
