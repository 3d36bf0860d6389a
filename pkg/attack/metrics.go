package attack

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes used as metric labels.
const (
	outcomeOK             = "ok"
	outcomeUnknownType    = "unknown_type"
	outcomeWrongDirection = "wrong_direction"
	outcomeWindowExpired  = "window_expired"
	outcomeCancelled      = "cancelled"
	outcomeError          = "error"
)

// Injection results.
const (
	InjectionInjected  = "injected"
	InjectionExpired   = "expired"
	InjectionCancelled = "cancelled"
)

// Metrics counts dispatches and injections. A nil *Metrics records nothing.
type Metrics struct {
	dispatches *prometheus.CounterVec
	injections *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg. Pass a
// dedicated prometheus.NewRegistry() to keep them off the global one.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emv_mutator_dispatch_total",
				Help: "Total number of attack dispatches by attack type and outcome",
			},
			[]string{"attack_type", "outcome"},
		),
		injections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emv_mutator_injections_total",
				Help: "Total number of forged TC injections by result",
			},
			[]string{"result"},
		),
	}

	for _, c := range []prometheus.Collector{m.dispatches, m.injections} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeDispatch(t Type, outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(string(t), outcome).Inc()
}

func (m *Metrics) observeInjection(result string) {
	if m == nil {
		return
	}
	m.injections.WithLabelValues(result).Inc()
}
