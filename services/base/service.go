// Package base provides shared enclave/service lifecycle scaffolding.
// ServiceState, LifecycleHooks, BaseService and its Registry follow the
// same start/stop/health orchestration pattern used across this
// codebase's other service hosts, kept here since this core has exactly
// one service (services/ccm) that still benefits from it. The
// Contract-callback helpers and Store interface a multi-service host
// would carry are dropped: this core persists nothing outside the
// enclave's own in-memory state and Merkle index, so there is no store
// component and nothing calls a contract callback API.
package base

import (
	"context"
	"fmt"
	"sync"

	"github.com/R3E-Network/credible-commitment-machine/platform/os"
)

// ServiceState represents the state of a service.
type ServiceState string

const (
	StateCreated  ServiceState = "created"
	StateStarting ServiceState = "starting"
	StateRunning  ServiceState = "running"
	StateStopping ServiceState = "stopping"
	StateStopped  ServiceState = "stopped"
	StateFailed   ServiceState = "failed"
)

// Service is the base interface for all services.
type Service interface {
	ID() string
	Name() string
	Version() string

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	State() ServiceState

	Health(ctx context.Context) error
}

// Component is the base interface for service components (the enclave).
type Component interface {
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Health(ctx context.Context) error
}

// LifecycleHooks allows services to customize lifecycle behavior.
type LifecycleHooks struct {
	OnBeforeStart func(ctx context.Context) error
	OnAfterStart  func(ctx context.Context) error
	OnBeforeStop  func(ctx context.Context) error
	OnAfterStop   func(ctx context.Context) error
}

// BaseService provides common functionality for all services: identity,
// state tracking, and enclave-component lifecycle orchestration.
type BaseService struct {
	mu sync.RWMutex

	id      string
	name    string
	version string
	state   ServiceState

	os     os.ServiceOS
	logger os.Logger

	enclave Component
	hooks   LifecycleHooks
}

// NewBaseService creates a new BaseService.
func NewBaseService(id, name, version string, serviceOS os.ServiceOS) *BaseService {
	return &BaseService{
		id:      id,
		name:    name,
		version: version,
		state:   StateCreated,
		os:      serviceOS,
		logger:  serviceOS.Logger(),
	}
}

// SetEnclave sets the enclave component for lifecycle management.
func (s *BaseService) SetEnclave(enclave Component) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enclave = enclave
}

// SetHooks sets lifecycle hooks.
func (s *BaseService) SetHooks(hooks LifecycleHooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = hooks
}

func (s *BaseService) ID() string      { return s.id }
func (s *BaseService) Name() string    { return s.name }
func (s *BaseService) Version() string { return s.version }

func (s *BaseService) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *BaseService) SetState(state ServiceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *BaseService) OS() os.ServiceOS   { return s.os }
func (s *BaseService) Logger() os.Logger { return s.logger }

// Start starts the base service, initializing the enclave component and
// running lifecycle hooks around it.
func (s *BaseService) Start(ctx context.Context) error {
	s.SetState(StateStarting)
	s.logger.Info("service starting", "id", s.id)

	s.mu.RLock()
	enclave := s.enclave
	hooks := s.hooks
	s.mu.RUnlock()

	if hooks.OnBeforeStart != nil {
		if err := hooks.OnBeforeStart(ctx); err != nil {
			s.SetState(StateFailed)
			return fmt.Errorf("before start hook: %w", err)
		}
	}

	if enclave != nil {
		if err := enclave.Initialize(ctx); err != nil {
			s.SetState(StateFailed)
			return fmt.Errorf("initialize enclave: %w", err)
		}
	}

	if hooks.OnAfterStart != nil {
		if err := hooks.OnAfterStart(ctx); err != nil {
			s.SetState(StateFailed)
			return fmt.Errorf("after start hook: %w", err)
		}
	}

	s.SetState(StateRunning)
	s.logger.Info("service started", "id", s.id)
	return nil
}

// Stop stops the base service, shutting down the enclave component.
func (s *BaseService) Stop(ctx context.Context) error {
	s.SetState(StateStopping)
	s.logger.Info("service stopping", "id", s.id)

	s.mu.RLock()
	enclave := s.enclave
	hooks := s.hooks
	s.mu.RUnlock()

	if hooks.OnBeforeStop != nil {
		if err := hooks.OnBeforeStop(ctx); err != nil {
			s.logger.Error("before stop hook failed", "error", err)
		}
	}

	if enclave != nil {
		if err := enclave.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown enclave failed", "error", err)
		}
	}

	if hooks.OnAfterStop != nil {
		if err := hooks.OnAfterStop(ctx); err != nil {
			s.logger.Error("after stop hook failed", "error", err)
		}
	}

	s.SetState(StateStopped)
	s.logger.Info("service stopped", "id", s.id)
	return nil
}

// Health checks if the service and its enclave component are healthy.
func (s *BaseService) Health(ctx context.Context) error {
	state := s.State()
	if state != StateRunning {
		return fmt.Errorf("service not running: %s", state)
	}

	s.mu.RLock()
	enclave := s.enclave
	s.mu.RUnlock()

	if enclave != nil {
		if err := enclave.Health(ctx); err != nil {
			return fmt.Errorf("enclave unhealthy: %w", err)
		}
	}
	return nil
}

// RegisterMetrics registers common service metrics, plus any
// component-specific metrics customMetrics adds.
func (s *BaseService) RegisterMetrics(prefix string, customMetrics func(metrics os.MetricsAPI)) {
	metrics := s.os.Metrics()
	metrics.RegisterCounter(prefix+"_requests_total", "Total number of requests")
	metrics.RegisterCounter(prefix+"_errors_total", "Total number of errors")
	if customMetrics != nil {
		customMetrics(metrics)
	}
}

// Registry manages service instances.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

// NewRegistry creates a new service registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// Register registers a service.
func (r *Registry) Register(svc Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[svc.ID()]; exists {
		return fmt.Errorf("service already registered: %s", svc.ID())
	}
	r.services[svc.ID()] = svc
	return nil
}

// Get returns a service by ID.
func (r *Registry) Get(id string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[id]
	return svc, ok
}

// List returns all registered services.
func (r *Registry) List() []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	services := make([]Service, 0, len(r.services))
	for _, svc := range r.services {
		services = append(services, svc)
	}
	return services
}

// StartAll starts all registered services.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, svc := range r.List() {
		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("start service %s: %w", svc.ID(), err)
		}
	}
	return nil
}

// StopAll stops all registered services, walking List's result in
// reverse. List ranges over a map, so neither StartAll nor StopAll
// follows registration order.
func (r *Registry) StopAll(ctx context.Context) error {
	services := r.List()
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil {
			return fmt.Errorf("stop service %s: %w", services[i].ID(), err)
		}
	}
	return nil
}
