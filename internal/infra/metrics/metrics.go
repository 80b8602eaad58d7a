package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gdo-bridge/internal/domain"
)

const namespace = "gdo"

// Metrics holds the bridge collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	retries      prometheus.Counter
	streamErrors prometheus.Counter
	available    prometheus.Gauge
	doorPosition prometheus.Gauge
	wifiRSSI     prometheus.Gauge
	httpRequests *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Device events handled, by kind.",
		}, []string{"kind"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_retries_total",
			Help:      "Event stream connection attempts that were retried.",
		}),
		streamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_errors_total",
			Help:      "Errors reported by the device client.",
		}),
		available: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_available",
			Help:      "1 while the device is connected.",
		}),
		doorPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "door_position",
			Help:      "Last reported door position.",
		}),
		wifiRSSI: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wifi_rssi_dbm",
			Help:      "Last reported Wi-Fi signal strength.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Control API requests by route, method and status.",
		}, []string{"route", "method", "status"}),
	}

	m.registry.MustRegister(
		m.events,
		m.retries,
		m.streamErrors,
		m.available,
		m.doorPosition,
		m.wifiRSSI,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// HandleEvent updates the collectors from a device event.
func (m *Metrics) HandleEvent(ev domain.Event) {
	m.events.WithLabelValues(string(ev.Kind())).Inc()

	switch e := ev.(type) {
	case domain.LogEvent:
		if e.Attempt > 0 {
			m.retries.Inc()
		}
	case domain.ErrorEvent:
		m.streamErrors.Inc()
	case domain.AvailabilityEvent:
		if e.Available {
			m.available.Set(1)
		} else {
			m.available.Set(0)
		}
	case domain.DoorEvent:
		m.doorPosition.Set(e.Position)
	case domain.MeasurementEvent:
		if e.Measurement == domain.MeasurementWifiStrength && e.Known {
			m.wifiRSSI.Set(e.Value)
		}
	}
}

// ObserveRequest counts one control API request.
func (m *Metrics) ObserveRequest(route, method string, status int) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by route pattern. Scrapes of /metrics are not
// counted.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.ObserveRequest(route, r.Method, rw.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
