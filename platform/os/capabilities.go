// Package os provides the capability-injection layer the commitment core
// depends on but never implements itself: secure time and secure
// randomness are owned by the ServiceOS host; the Attestor interface
// defined here is owned by whichever runtime produces attestation
// documents (services/ccm sources it from tee/attestation, tests source
// it from MockAttestor) rather than by ServiceOS itself, since the
// document's realness must track the actual runtime mode.
//
// This follows the ServiceOS/per-capability abstraction pattern used
// across this codebase's other hosts, trimmed down to the TEE-host
// capabilities this core actually names — the broader capability surface
// a multi-service coordinator/gateway host would carry (Neo RPC,
// database, chain, queue, cache, ...) has no component here to exercise
// it.
package os

import "context"

// Capability names a permission a component can require of its host.
// Kept even though this core has only one component, because every
// service in this codebase declares its manifest this way and a Capability check
// at a call site documents which host guarantee that call depends on.
type Capability string

const (
	CapSecureTime        Capability = "secure_time"
	CapSecureRandom      Capability = "secure_random"
	CapFulfillmentVerify Capability = "fulfillment.verify"
)

// SecureTime provides the enclave's trusted, monotonic notion of "now".
type SecureTime interface {
	// Now returns the current time as Unix seconds.
	Now(ctx context.Context) (uint64, error)
}

// SecureRandom provides cryptographically secure randomness sourced from
// the TEE host (or, outside a real enclave, the OS CSPRNG).
type SecureRandom interface {
	// Bytes returns n cryptographically secure random bytes.
	Bytes(ctx context.Context, n int) ([]byte, error)
}

// Attestor produces the TEE host's attestation document for a given
// public key and user data. When no real attestation service is
// available the host MAY return ok=false with a deterministic mock
// document; the core marks the resulting BootAttestation accordingly.
type Attestor interface {
	GetAttestationDocument(ctx context.Context, publicKey, userData, nonce []byte) (document []byte, codeHash []byte, ok bool, err error)
}

// SystemSecureTime is the default SecureTime backed by the host's
// monotonic wall clock, used when no TEE host capability is injected.
type SystemSecureTime struct {
	nowFunc func() uint64
}

// NewSystemSecureTime creates a SecureTime backed by time.Now().
func NewSystemSecureTime() *SystemSecureTime {
	return &SystemSecureTime{nowFunc: systemNowUnix}
}

func (s *SystemSecureTime) Now(ctx context.Context) (uint64, error) {
	return s.nowFunc(), nil
}

// SystemSecureRandom is the default SecureRandom backed by crypto/rand.
type SystemSecureRandom struct{}

// NewSystemSecureRandom creates a SecureRandom backed by crypto/rand.
func NewSystemSecureRandom() *SystemSecureRandom {
	return &SystemSecureRandom{}
}

func (s *SystemSecureRandom) Bytes(ctx context.Context, n int) ([]byte, error) {
	return cryptoRandBytes(n)
}

// MockAttestor is the deterministic, non-real attestation fallback: it
// always reports ok=false so callers can mark a BootAttestation as
// isRealAttestation=false, per the boot-attestation contract.
type MockAttestor struct{}

// NewMockAttestor creates the deterministic mock Attestor.
func NewMockAttestor() *MockAttestor { return &MockAttestor{} }

func (m *MockAttestor) GetAttestationDocument(ctx context.Context, publicKey, userData, nonce []byte) ([]byte, []byte, bool, error) {
	doc := deterministicMockDocument(publicKey, userData, nonce)
	return doc, mockCodeHash(), false, nil
}
