package ccm

import (
	"context"
	"fmt"

	"github.com/R3E-Network/credible-commitment-machine/internal/commitment"
	"github.com/R3E-Network/credible-commitment-machine/platform/os"
	"github.com/R3E-Network/credible-commitment-machine/tee/attestation"
	"github.com/R3E-Network/credible-commitment-machine/tee/enclave"
)

// Enclave wires the TEE runtime, its attestor, and the commitment engine
// into a single base.Component the surrounding Service starts and stops.
type Enclave struct {
	runtime  enclave.Runtime
	attestor *attestation.Attestor
	engine   *commitment.CommitmentEngine
	config   commitment.EnclaveConfig
	logger   os.Logger
}

// NewEnclave constructs the runtime/attestor/engine chain but performs no
// I/O; Initialize does that.
func NewEnclave(serviceOS os.ServiceOS, enclaveID string, config commitment.EnclaveConfig) (*Enclave, error) {
	runtime, err := enclave.New(enclave.Config{Mode: enclave.DetectMode(), EnclaveID: enclaveID})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}

	attestor, err := attestation.New(attestation.Config{Runtime: runtime, EnclaveID: enclaveID})
	if err != nil {
		return nil, fmt.Errorf("create attestor: %w", err)
	}

	engine := commitment.NewCommitmentEngine(commitment.Dependencies{
		Time:     os.NewSystemSecureTime(),
		Random:   runtimeRandom{runtime: runtime},
		Attestor: runtimeAttestor{attestor: attestor},
		Logger:   serviceOS.Logger(),
	})

	return &Enclave{
		runtime:  runtime,
		attestor: attestor,
		engine:   engine,
		config:   config,
		logger:   serviceOS.Logger(),
	}, nil
}

// Initialize brings the TEE runtime up, then boots the commitment engine
// on top of it. The engine generates its signing key and enclave ID on
// its first Initialize and never persists them; a later Initialize of
// the same Enclave keeps the ones already generated.
func (e *Enclave) Initialize(ctx context.Context) error {
	if err := e.runtime.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}
	if err := e.engine.Initialize(ctx, e.config); err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	e.logger.Info("ccm enclave initialized", "enclaveId", e.engine.GetEnclaveID().Hex())
	return nil
}

func (e *Enclave) Shutdown(ctx context.Context) error {
	return e.runtime.Shutdown(ctx)
}

func (e *Enclave) Health(ctx context.Context) error {
	return e.runtime.Health(ctx)
}

// Engine exposes the commitment engine for the Service's request handlers.
func (e *Enclave) Engine() *commitment.CommitmentEngine { return e.engine }
