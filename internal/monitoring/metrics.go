// Package monitoring exposes Prometheus metrics for the shell kernel.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the shell.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Window metrics
	WindowsOpen  prometheus.Gauge
	WindowEvents *prometheus.CounterVec

	// App metrics
	AppLaunches    *prometheus.CounterVec
	LaunchFailures *prometheus.CounterVec

	// Loader metrics
	ModuleLoadDuration prometheus.Histogram
	ModuleLoadErrors   prometheus.Counter

	// Event bus metrics
	EventsEmitted   *prometheus.CounterVec
	ListenerPanics  prometheus.Counter
	EventsDelivered prometheus.Counter

	// Pop-out metrics
	PopoutsActive prometheus.Gauge

	// Session metrics
	SessionsSaved    prometheus.Counter
	SessionsRestored prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge

	startTime time.Time
}

// New creates a metrics collector registered on a private registry so that
// repeated construction in tests does not collide.
func New() *Metrics {
	return NewWith(prometheus.NewRegistry())
}

// NewWith creates a metrics collector registered on the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webdesk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webdesk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),

		WindowsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "webdesk_windows_open",
			Help: "Number of currently open windows",
		}),
		WindowEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webdesk_window_events_total",
				Help: "Window lifecycle transitions by kind",
			},
			[]string{"kind"},
		),

		AppLaunches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webdesk_app_launches_total",
				Help: "Application launches by app id",
			},
			[]string{"app"},
		),
		LaunchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webdesk_app_launch_failures_total",
				Help: "Failed application launches by app id",
			},
			[]string{"app"},
		),

		ModuleLoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "webdesk_module_load_duration_seconds",
			Help:    "App module resolution duration in seconds",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 5},
		}),
		ModuleLoadErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "webdesk_module_load_errors_total",
			Help: "App module resolution failures",
		}),

		EventsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webdesk_events_emitted_total",
				Help: "Events emitted on the bus by type",
			},
			[]string{"type"},
		),
		ListenerPanics: factory.NewCounter(prometheus.CounterOpts{
			Name: "webdesk_event_listener_panics_total",
			Help: "Event listeners that panicked during dispatch",
		}),
		EventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "webdesk_events_delivered_total",
			Help: "Listener invocations performed by the bus",
		}),

		PopoutsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "webdesk_popouts_active",
			Help: "Detached windows currently being tracked",
		}),

		SessionsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "webdesk_sessions_saved_total",
			Help: "Desktop sessions saved",
		}),
		SessionsRestored: factory.NewCounter(prometheus.CounterOpts{
			Name: "webdesk_sessions_restored_total",
			Help: "Desktop sessions restored",
		}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "webdesk_ws_connections",
			Help: "Active WebSocket connections",
		}),
	}
}

// Uptime returns the time since metrics collection started.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
