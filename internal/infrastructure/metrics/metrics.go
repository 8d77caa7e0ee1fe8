package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cuelogic"

// Consequence statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds the engine collectors.
type Metrics struct {
	registry *prometheus.Registry

	validations  *prometheus.CounterVec
	consequences *prometheus.CounterVec
	setDuration  prometheus.Histogram
	items        *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	wsClients    prometheus.Gauge
	wsDropped    prometheus.Counter
	mqttUp       prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_validations_total",
				Help:      "Total number of action consequence sets run, by result",
			},
			[]string{"action", "result"},
		),
		consequences: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consequences_total",
				Help:      "Total number of consequences run, by status",
			},
			[]string{"status"},
		),
		setDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "consequence_set_duration_seconds",
				Help:      "Duration of consequence set runs",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		items: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "items",
				Help:      "Number of items owned by each manager",
			},
			[]string{"manager"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of API requests, by route pattern and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of API requests, by route pattern",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		wsClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "websocket",
				Name:      "clients",
				Help:      "Number of connected WebSocket clients",
			},
		),
		wsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "websocket",
				Name:      "dropped_events_total",
				Help:      "Events not delivered because a client queue was full",
			},
		),
		mqttUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "connected",
				Help:      "1 while the broker link is up",
			},
		),
	}
	m.registry.MustRegister(
		m.validations,
		m.consequences,
		m.setDuration,
		m.items,
		m.httpRequests,
		m.httpDuration,
		m.wsClients,
		m.wsDropped,
		m.mqttUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveExecution records one consequence set run of action.
func (m *Metrics) ObserveExecution(action string, valid bool, total, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(action, strconv.FormatBool(valid)).Inc()
	if ok := total - failed; ok > 0 {
		m.consequences.WithLabelValues(StatusOK).Add(float64(ok))
	}
	if failed > 0 {
		m.consequences.WithLabelValues(StatusFailed).Add(float64(failed))
	}
	m.setDuration.Observe(d.Seconds())
}

// SetItems sets the item count of manager.
func (m *Metrics) SetItems(manager string, n int) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(manager).Set(float64(n))
}

// ForgetAction drops the validation series of a removed action.
func (m *Metrics) ForgetAction(action string) {
	if m == nil {
		return
	}
	m.validations.DeletePartialMatch(prometheus.Labels{"action": action})
}

// ObserveHTTP records one API request. route is the router pattern, not
// the raw path, to keep cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// SetWSClients sets the connected WebSocket client gauge.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

// AddWSDropped counts n undelivered WebSocket events.
func (m *Metrics) AddWSDropped(n int) {
	if m == nil {
		return
	}
	m.wsDropped.Add(float64(n))
}

// SetMQTTConnected records the broker link state.
func (m *Metrics) SetMQTTConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.mqttUp.Set(1)
	} else {
		m.mqttUp.Set(0)
	}
}
