package os

// MetricsAPI is the minimal metrics registration surface a service needs.
// Host uses a no-op implementation unless WithMetrics supplies one, such
// as PrometheusMetrics (prometheus/client_golang).
type MetricsAPI interface {
	RegisterCounter(name, help string)
	RegisterCounterVec(name, help string, labels []string)
	RegisterGauge(name, help string)
	IncCounter(name string, delta float64)
	IncCounterVec(name string, delta float64, labelValues ...string)
	SetGauge(name string, value float64)
}

// ServiceOS is the capability-injection host every BaseEnclave/BaseService
// is constructed with, carrying only the capabilities this core
// actually declares. Attestation is not one of them: services/ccm sources
// its Attestor from the TEE runtime's own measurements (tee/attestation),
// not from the host, since the attestation document must reflect the
// runtime's actual hardware/simulation mode rather than a host-level
// default. platformos.Attestor and MockAttestor remain the shared type
// commitment.Dependencies.Attestor and its tests are built against.
type ServiceOS interface {
	Logger() Logger
	SecureTime() SecureTime
	SecureRandom() SecureRandom
	Metrics() MetricsAPI
	HasCapability(cap Capability) bool
}

// Host is the default ServiceOS: simulation-mode secure time/random,
// wired together for a single process. A hardware TEE deployment swaps
// SecureRandom for a real implementation without touching any caller.
type Host struct {
	logger  Logger
	time    SecureTime
	random  SecureRandom
	metrics MetricsAPI
	caps    map[Capability]bool
}

// HostOption configures a Host at construction time.
type HostOption func(*Host)

// WithMetrics installs a MetricsAPI implementation; see
// NewPrometheusMetrics for the client_golang-backed one production wires.
func WithMetrics(m MetricsAPI) HostOption {
	return func(h *Host) { h.metrics = m }
}

// NewHost builds the default Host for component name, granting the
// two TEE-host capabilities plus fulfillment verification.
func NewHost(component string, opts ...HostOption) *Host {
	h := &Host{
		logger:  NewLogger(component),
		time:    NewSystemSecureTime(),
		random:  NewSystemSecureRandom(),
		metrics: noopMetrics{},
		caps: map[Capability]bool{
			CapSecureTime:        true,
			CapSecureRandom:      true,
			CapFulfillmentVerify: true,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) Logger() Logger             { return h.logger }
func (h *Host) SecureTime() SecureTime     { return h.time }
func (h *Host) SecureRandom() SecureRandom { return h.random }
func (h *Host) Metrics() MetricsAPI        { return h.metrics }

func (h *Host) HasCapability(cap Capability) bool {
	return h.caps[cap]
}

type noopMetrics struct{}

func (noopMetrics) RegisterCounter(name, help string)                         {}
func (noopMetrics) RegisterCounterVec(name, help string, labels []string)     {}
func (noopMetrics) RegisterGauge(name, help string)                          {}
func (noopMetrics) IncCounter(name string, delta float64)                    {}
func (noopMetrics) IncCounterVec(name string, delta float64, lv ...string)   {}
func (noopMetrics) SetGauge(name string, value float64)                      {}
