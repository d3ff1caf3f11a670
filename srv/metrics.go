package srv

import (
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

type lifecycleMetrics struct {
	starts      *prometheus.CounterVec
	stops       prometheus.Counter
	listening   prometheus.Gauge
	connections *prometheus.CounterVec
	active      prometheus.Gauge
}

// newLifecycleMetrics registers the listener collectors on reg. Collectors
// already registered by another server on the same registry are shared.
func newLifecycleMetrics(reg prometheus.Registerer, namespace, scheme string) (*lifecycleMetrics, error) {
	labels := prometheus.Labels{"scheme": scheme}
	m := &lifecycleMetrics{
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "listener",
			Name:        "starts_total",
			Help:        "Listener start attempts by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		stops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "listener",
			Name:        "stops_total",
			Help:        "Listener stops.",
			ConstLabels: labels,
		}),
		listening: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "listener",
			Name:        "listening",
			Help:        "1 while the listener is bound.",
			ConstLabels: labels,
		}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "listener",
			Name:        "connections_total",
			Help:        "Connection state transitions.",
			ConstLabels: labels,
		}, []string{"state"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "listener",
			Name:        "active_connections",
			Help:        "Connections currently open.",
			ConstLabels: labels,
		}),
	}

	var err error
	if m.starts, err = register(reg, m.starts); err != nil {
		return nil, err
	}
	if m.stops, err = register(reg, m.stops); err != nil {
		return nil, err
	}
	if m.listening, err = register(reg, m.listening); err != nil {
		return nil, err
	}
	if m.connections, err = register(reg, m.connections); err != nil {
		return nil, err
	}
	if m.active, err = register(reg, m.active); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// The methods below are no-ops on a nil receiver so the server can call them unconditionally.

func (m *lifecycleMetrics) started() {
	if m == nil {
		return
	}
	m.starts.WithLabelValues("ok").Inc()
	m.listening.Set(1)
}

func (m *lifecycleMetrics) startFailed(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "error"
	}
	m.starts.WithLabelValues(result).Inc()
}

func (m *lifecycleMetrics) stopped() {
	if m == nil {
		return
	}
	m.stops.Inc()
	m.listening.Set(0)
}

func (m *lifecycleMetrics) connState(_ net.Conn, cs http.ConnState) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(cs.String()).Inc()
	switch cs {
	case http.StateNew:
		m.active.Inc()
	case http.StateClosed, http.StateHijacked:
		m.active.Dec()
	}
}
