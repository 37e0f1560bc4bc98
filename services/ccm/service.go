// Package ccm wires the commitment engine into the base service lifecycle:
// startup, the periodic expired-lock sweep, health, and the metrics a
// deployment scrapes.
package ccm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/R3E-Network/credible-commitment-machine/internal/commitment"
	"github.com/R3E-Network/credible-commitment-machine/internal/identifiers"
	"github.com/R3E-Network/credible-commitment-machine/platform/os"
	"github.com/R3E-Network/credible-commitment-machine/services/base"
)

const (
	ServiceID   = "ccm"
	ServiceName = "Credible Commitment Machine"
	Version     = "1.0.0"

	cleanupInterval = 60 * time.Second
)

// Service is the credible commitment machine service: a single enclave
// exposing the lock lifecycle over whatever transport cmd/ccmd wires up.
type Service struct {
	*base.BaseService

	enclave     *Enclave
	stopCleanup chan struct{}
}

// New creates the Service. enclaveID identifies this deployment's
// measurement identity to the attestor; it is not the per-boot random
// enclave ID the commitment engine generates at Initialize.
func New(serviceOS os.ServiceOS, enclaveID string, config commitment.EnclaveConfig) (*Service, error) {
	baseService := base.NewBaseService(ServiceID, ServiceName, Version, serviceOS)

	enc, err := NewEnclave(serviceOS, enclaveID, config)
	if err != nil {
		return nil, fmt.Errorf("create enclave: %w", err)
	}

	svc := &Service{
		BaseService: baseService,
		enclave:     enc,
		stopCleanup: make(chan struct{}),
	}

	baseService.SetEnclave(enc)
	baseService.SetHooks(base.LifecycleHooks{
		OnAfterStart: svc.onAfterStart,
		OnBeforeStop: svc.onBeforeStop,
	})

	return svc, nil
}

func (s *Service) onAfterStart(ctx context.Context) error {
	s.RegisterMetrics("ccm", func(metrics os.MetricsAPI) {
		metrics.RegisterCounter("ccm_locks_created_total", "Total number of locks created")
		metrics.RegisterGauge("ccm_locks_active", "Number of currently Active locks")
		metrics.RegisterCounter("ccm_locks_expired_total", "Total number of locks reaped as expired")
		metrics.RegisterCounterVec("ccm_risk_rejections_total", "Total number of createLock calls rejected by a risk limit", []string{"reason"})
		metrics.RegisterCounter("ccm_settlement_built_total", "Total number of settlement UserOperations built")
	})

	go s.runCleanupLoop()

	s.Logger().Info("ccm service started")
	return nil
}

func (s *Service) onBeforeStop(ctx context.Context) error {
	close(s.stopCleanup)
	return nil
}

func (s *Service) runCleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			count, err := s.enclave.Engine().CleanupExpiredLocks(context.Background())
			if err != nil {
				s.Logger().Warn("cleanup sweep failed", "error", err)
				continue
			}
			if count > 0 {
				s.OS().Metrics().IncCounter("ccm_locks_expired_total", float64(count))
				s.Logger().Info("cleanup swept expired locks", "count", count)
			}
		}
	}
}

func (s *Service) requireRunning() error {
	if s.State() != base.StateRunning {
		return fmt.Errorf("ccm service not running")
	}
	return nil
}

// CreateLock validates and inserts a Pending lock.
func (s *Service) CreateLock(ctx context.Context, req commitment.CreateLockRequest) (*commitment.CreateLockResponse, error) {
	if err := s.requireRunning(); err != nil {
		return nil, err
	}
	resp, err := s.enclave.Engine().CreateLock(ctx, req)
	if err != nil {
		s.recordCreateLockFailure(err)
		return nil, err
	}
	s.OS().Metrics().IncCounter("ccm_locks_created_total", 1)
	return resp, nil
}

func (s *Service) recordCreateLockFailure(err error) {
	var coreErr *commitment.CoreError
	if errors.As(err, &coreErr) && coreErr.Kind == commitment.KindRiskLimitExceeded {
		reason := coreErr.Reason
		if reason == "" {
			reason = "unknown"
		}
		s.OS().Metrics().IncCounterVec("ccm_risk_rejections_total", 1, reason)
	}
}

// SignLock verifies the user's EIP-712 signature and activates the lock.
func (s *Service) SignLock(ctx context.Context, lockID [32]byte, userSig [65]byte) (*commitment.SignLockResponse, error) {
	if err := s.requireRunning(); err != nil {
		return nil, err
	}
	resp, err := s.enclave.Engine().SignLock(ctx, lockID, userSig)
	if err != nil {
		return nil, err
	}
	s.OS().Metrics().SetGauge("ccm_locks_active", float64(len(s.enclave.Engine().GetActiveLocks(resp.Commitment.SmartAccount))))
	return resp, nil
}

// VerifyFulfillment checks solver-supplied proof and, on success, builds
// the settlement UserOperation.
func (s *Service) VerifyFulfillment(ctx context.Context, lockID [32]byte, proof commitment.FulfillmentProof) (*commitment.FulfillLockResponse, error) {
	if err := s.requireRunning(); err != nil {
		return nil, err
	}
	resp, err := s.enclave.Engine().VerifyFulfillment(ctx, lockID, proof)
	if err != nil {
		return nil, err
	}
	s.OS().Metrics().IncCounter("ccm_settlement_built_total", 1)
	return resp, nil
}

// CancelLock signs and applies a user-initiated cancellation.
func (s *Service) CancelLock(ctx context.Context, lockID [32]byte, userSig [65]byte) (*commitment.AppAttestation, error) {
	if err := s.requireRunning(); err != nil {
		return nil, err
	}
	return s.enclave.Engine().CancelLock(ctx, lockID, userSig)
}

// GetLock returns a single lock by ID.
func (s *Service) GetLock(lockID [32]byte) (*commitment.ResourceLock, error) {
	return s.enclave.Engine().GetLock(lockID)
}

// GetActiveLocks returns owner's currently Active locks.
func (s *Service) GetActiveLocks(owner [20]byte) []*commitment.ResourceLock {
	return s.enclave.Engine().GetActiveLocks(owner)
}

// GetLockedBalance sums owner's Active-lock amount in asset.
func (s *Service) GetLockedBalance(owner [20]byte, asset identifiers.AssetIdentifier) *uint256.Int {
	return s.enclave.Engine().GetLockedBalance(owner, asset)
}

// GetBootAttestation returns the enclave's boot-time identity attestation.
func (s *Service) GetBootAttestation(ctx context.Context) (*commitment.BootAttestation, error) {
	if err := s.requireRunning(); err != nil {
		return nil, err
	}
	return s.enclave.Engine().GenerateBootAttestation(ctx)
}

// GetStateRoot returns the current Merkle state root over Active locks.
func (s *Service) GetStateRoot() [32]byte {
	return s.enclave.Engine().GetStateRoot()
}

// GetEnclaveID returns the enclave's per-boot random identity.
func (s *Service) GetEnclaveID() [32]byte {
	return s.enclave.Engine().GetEnclaveID()
}

// GetEnclavePublicKey returns the enclave's uncompressed co-signing public key.
func (s *Service) GetEnclavePublicKey() []byte {
	return s.enclave.Engine().GetEnclavePublicKey()
}

// CleanupExpiredLocks runs the maintenance sweep on demand, in addition
// to the periodic background loop.
func (s *Service) CleanupExpiredLocks(ctx context.Context) (int, error) {
	if err := s.requireRunning(); err != nil {
		return 0, err
	}
	count, err := s.enclave.Engine().CleanupExpiredLocks(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.OS().Metrics().IncCounter("ccm_locks_expired_total", float64(count))
	}
	return count, nil
}
