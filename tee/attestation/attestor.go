// Package attestation provides remote attestation for the enclave
// runtime: simulated-quote generation and measurement comparison.
// GenerateQuote is what the boot attestation path (services/ccm's
// runtimeAttestor) calls to fill in a BootAttestation's measurement fields.
package attestation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/R3E-Network/credible-commitment-machine/tee/enclave"
	"github.com/R3E-Network/credible-commitment-machine/tee/types"
)

// Config holds attestor configuration.
type Config struct {
	Runtime   enclave.Runtime
	EnclaveID string
}

// Attestor produces and verifies quotes against the enclave runtime's
// reported measurements.
type Attestor struct {
	mu        sync.RWMutex
	runtime   enclave.Runtime
	enclaveID string
}

// New creates a new attestor.
func New(cfg Config) (*Attestor, error) {
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("runtime is required")
	}
	if cfg.EnclaveID == "" {
		return nil, fmt.Errorf("enclave_id is required")
	}
	return &Attestor{runtime: cfg.Runtime, enclaveID: cfg.EnclaveID}, nil
}

// GenerateQuote generates a quote binding userData to the current
// enclave measurements.
func (a *Attestor) GenerateQuote(ctx context.Context, userData []byte) (*types.Quote, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	mrEnclave, err := a.runtime.GetMeasurement()
	if err != nil {
		return nil, fmt.Errorf("get measurement: %w", err)
	}
	mrSigner, err := a.runtime.GetSignerMeasurement()
	if err != nil {
		return nil, fmt.Errorf("get signer measurement: %w", err)
	}

	return a.generateSimulatedQuote(userData, mrEnclave, mrSigner), nil
}

func (a *Attestor) generateSimulatedQuote(userData, mrEnclave, mrSigner []byte) *types.Quote {
	timestamp := time.Now()
	h := sha256.New()
	h.Write([]byte("SIMULATED_QUOTE_V1"))
	h.Write(mrEnclave)
	h.Write(mrSigner)
	h.Write(userData)
	h.Write([]byte(timestamp.Format(time.RFC3339)))

	return &types.Quote{
		RawQuote:  h.Sum(nil),
		UserData:  userData,
		MREnclave: hex.EncodeToString(mrEnclave),
		MRSigner:  hex.EncodeToString(mrSigner),
		Timestamp: timestamp,
	}
}

// VerifyQuote checks a quote's measurements against the runtime's
// current measurements.
func (a *Attestor) VerifyQuote(ctx context.Context, quote *types.Quote) (*types.QuoteVerification, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if quote == nil {
		return nil, fmt.Errorf("quote is nil")
	}
	expectedMREnclave, err := a.runtime.GetMeasurement()
	if err != nil {
		return nil, fmt.Errorf("get measurement: %w", err)
	}
	expectedMRSigner, err := a.runtime.GetSignerMeasurement()
	if err != nil {
		return nil, fmt.Errorf("get signer measurement: %w", err)
	}

	valid := quote.MREnclave == hex.EncodeToString(expectedMREnclave) &&
		quote.MRSigner == hex.EncodeToString(expectedMRSigner)

	return &types.QuoteVerification{
		Valid:      valid,
		MREnclave:  quote.MREnclave,
		MRSigner:   quote.MRSigner,
		VerifiedAt: time.Now(),
	}, nil
}

// Mode reports whether the attestor is backed by a hardware or a
// simulated runtime; a simulated quote is never a real attestation.
func (a *Attestor) Mode() enclave.Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runtime.Mode()
}

// GetReport returns the current attestation report: enclave ID, mode,
// and measurements. The boot attestation path does not use it; it reads
// GenerateQuote instead.
func (a *Attestor) GetReport(ctx context.Context) (*types.AttestationReport, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	mrEnclave, err := a.runtime.GetMeasurement()
	if err != nil {
		return nil, fmt.Errorf("get measurement: %w", err)
	}
	mrSigner, err := a.runtime.GetSignerMeasurement()
	if err != nil {
		return nil, fmt.Errorf("get signer measurement: %w", err)
	}

	mode := string(enclave.ModeSimulation)
	if a.runtime.Mode() == enclave.ModeHardware {
		mode = string(enclave.ModeHardware)
	}

	return &types.AttestationReport{
		EnclaveID: a.enclaveID,
		Mode:      mode,
		MREnclave: hex.EncodeToString(mrEnclave),
		MRSigner:  hex.EncodeToString(mrSigner),
		Timestamp: time.Now(),
	}, nil
}
