// Package metrics holds the Prometheus collectors of the dashboard service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "budgetboard"

var (
	// httpRequests counts handled requests.
	// Labels: route (mux pattern), status (HTTP status code)
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route and status",
	}, []string{"route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// filterApplications counts filter changes.
	// Labels: dimension, result (applied, cleared, invalid)
	filterApplications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "filters_total",
		Help:      "Filter changes by dimension and result",
	}, []string{"dimension", "result"})

	filterLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "filter_duration_seconds",
		Help:      "Time to apply a filter and update every group",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Sessions currently held in memory",
	})

	datasetRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "records",
		Help:      "Records in the current dataset",
	})

	datasetTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "total_budget",
		Help:      "Unfiltered budget sum of the current dataset",
	})

	// datasetLoads counts dataset loads.
	// Labels: result (success, error)
	datasetLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "loads_total",
		Help:      "Dataset load attempts by result",
	}, []string{"result"})

	// securityEvents counts requests stopped or flagged by middleware.
	// Labels: kind (rate_limited, suspicious)
	securityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "security_events_total",
		Help:      "Rate limited and suspicious requests",
	}, []string{"kind"})

	// events counts outbound filter events.
	// Labels: result (published, dropped, error)
	events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "filter_changed_total",
		Help:      "Filter changed events by outcome",
	}, []string{"result"})
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func ObserveHTTP(route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

func ObserveFilter(dimension, result string, d time.Duration) {
	filterApplications.WithLabelValues(dimension, result).Inc()
	if result != "invalid" {
		filterLatency.Observe(d.Seconds())
	}
}

func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }

func ObserveDatasetLoad(records int, total float64, err error) {
	if err != nil {
		datasetLoads.WithLabelValues("error").Inc()
		return
	}
	datasetLoads.WithLabelValues("success").Inc()
	datasetRecords.Set(float64(records))
	datasetTotal.Set(total)
}

func ObserveEvent(result string) { events.WithLabelValues(result).Inc() }

func ObserveSecurityEvent(kind string) { securityEvents.WithLabelValues(kind).Inc() }
