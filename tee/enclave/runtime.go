// Package enclave provides the enclave runtime abstraction the
// commitment core signs through: a simulation/hardware mode split, a
// random source, and the measurement accessors
// GetMeasurement/GetSignerMeasurement that feed BootAttestation.
package enclave

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"sync"

	"github.com/R3E-Network/credible-commitment-machine/tee/types"
)

// Mode specifies the enclave operation mode.
type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeHardware   Mode = "hardware"
)

// Config holds enclave runtime configuration.
type Config struct {
	Mode      Mode
	EnclaveID string
}

// DetectMode reports ModeHardware only when the process carries
// MarbleRun's enclave-launch markers (EDG_MARBLE_TYPE/EDG_MARBLE_UUID);
// absent those, it falls back to ModeSimulation, matching how a
// non-attested local run or a bare `go test` process looks.
func DetectMode() Mode {
	if os.Getenv("EDG_MARBLE_TYPE") != "" || os.Getenv("EDG_MARBLE_UUID") != "" {
		return ModeHardware
	}
	return ModeSimulation
}

// Runtime provides the enclave runtime abstraction: lifecycle,
// randomness, and the measurements a BootAttestation reports. There is
// no sealing/unsealing surface: this enclave holds no state across a
// restart, so it has nothing to persist under a sealing key.
type Runtime interface {
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Health(ctx context.Context) error

	EnclaveID() string
	Mode() Mode

	GenerateRandom(size int) ([]byte, error)

	GetMeasurement() ([]byte, error)
	GetSignerMeasurement() ([]byte, error)
}

type runtimeImpl struct {
	mu     sync.RWMutex
	config Config
	ready  bool
}

// New creates a new enclave runtime.
func New(cfg Config) (Runtime, error) {
	if cfg.EnclaveID == "" {
		return nil, fmt.Errorf("enclave_id is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSimulation
	}
	return &runtimeImpl{config: cfg}, nil
}

func (r *runtimeImpl) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = true
	return nil
}

func (r *runtimeImpl) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = false
	return nil
}

func (r *runtimeImpl) Health(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ready {
		return types.ErrEnclaveNotReady
	}
	return nil
}

func (r *runtimeImpl) EnclaveID() string { return r.config.EnclaveID }
func (r *runtimeImpl) Mode() Mode        { return r.config.Mode }

// GenerateRandom returns size cryptographically secure random bytes.
// Both modes read them from the host CSPRNG (crypto/rand), the same
// source platform/os's default SecureRandom uses; there is no separate
// enclave RNG path.
func (r *runtimeImpl) GenerateRandom(size int) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ready {
		return nil, types.ErrEnclaveNotReady
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate random: %w", err)
	}
	return buf, nil
}

// GetMeasurement returns the enclave measurement (MRENCLAVE-equivalent).
func (r *runtimeImpl) GetMeasurement() ([]byte, error) {
	h := sha256.New()
	h.Write([]byte("MRENCLAVE"))
	h.Write([]byte(r.config.EnclaveID))
	return h.Sum(nil), nil
}

// GetSignerMeasurement returns the signer measurement (MRSIGNER-equivalent).
func (r *runtimeImpl) GetSignerMeasurement() ([]byte, error) {
	h := sha256.New()
	h.Write([]byte("MRSIGNER"))
	h.Write([]byte("credible-commitment-machine"))
	return h.Sum(nil), nil
}
