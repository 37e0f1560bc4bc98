// Package base provides shared enclave/service lifecycle scaffolding.
// Initialize/Shutdown/Health and the ready-flag guard follow the usual
// capability-injection pattern; the secret/network/compute/contract/
// storage helpers a broader multi-service host would carry are dropped
// since this core's only Capability values are secure time, secure
// random and fulfillment verification (see platform/os) — none of those
// helpers have a caller.
package base

import (
	"context"
	"fmt"
	"sync"

	"github.com/R3E-Network/credible-commitment-machine/platform/os"
)

// Enclave is the base interface for service enclave operations.
type Enclave interface {
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Health(ctx context.Context) error
}

// BaseEnclave provides common enclave functionality: readiness tracking
// and access to the injected ServiceOS and Logger.
type BaseEnclave struct {
	mu sync.RWMutex

	serviceID string
	os        os.ServiceOS
	logger    os.Logger
	ready     bool
}

// NewBaseEnclave creates a new BaseEnclave.
func NewBaseEnclave(serviceID string, serviceOS os.ServiceOS) *BaseEnclave {
	return &BaseEnclave{
		serviceID: serviceID,
		os:        serviceOS,
		logger:    serviceOS.Logger(),
	}
}

// Initialize initializes the base enclave.
func (e *BaseEnclave) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return nil
	}
	e.logger.Info("enclave initializing", "service", e.serviceID)
	e.ready = true
	e.logger.Info("enclave initialized", "service", e.serviceID)
	return nil
}

// Shutdown shuts down the base enclave.
func (e *BaseEnclave) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return nil
	}
	e.logger.Info("enclave shutting down", "service", e.serviceID)
	e.ready = false
	e.logger.Info("enclave shut down", "service", e.serviceID)
	return nil
}

// Health checks if the enclave is healthy.
func (e *BaseEnclave) Health(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return fmt.Errorf("enclave not ready")
	}
	return nil
}

// OS returns the injected ServiceOS.
func (e *BaseEnclave) OS() os.ServiceOS { return e.os }

// Logger returns the logger.
func (e *BaseEnclave) Logger() os.Logger { return e.logger }

// ServiceID returns the service ID.
func (e *BaseEnclave) ServiceID() string { return e.serviceID }

// IsReady returns whether the enclave is ready.
func (e *BaseEnclave) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}
