// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	scans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triarb",
			Subsystem: "scanner",
			Name:      "scans_total",
			Help:      "Total number of catalogue scans, by whether an opportunity was found.",
		},
		[]string{"found"},
	)

	scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "triarb",
			Subsystem: "scanner",
			Name:      "scan_duration_seconds",
			Help:      "Wall time of one scan.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
	)

	evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triarb",
			Subsystem: "scanner",
			Name:      "evaluations_total",
			Help:      "Cycle evaluations by outcome.",
		},
		[]string{"outcome"},
	)

	opportunities = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triarb",
			Subsystem: "opportunity",
			Name:      "detected_total",
			Help:      "Profitable cycles detected, by stablecoin and mode.",
		},
		[]string{"stable", "simulated"},
	)

	opportunityProfit = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "triarb",
			Subsystem: "opportunity",
			Name:      "profit_ratio",
			Help:      "Profit ratio of detected opportunities.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		},
	)

	catalogueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "triarb",
			Subsystem: "catalogue",
			Name:      "cycles",
			Help:      "Number of cycles in the active catalogue.",
		},
	)

	catalogueBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triarb",
			Subsystem: "catalogue",
			Name:      "builds_total",
			Help:      "Catalogue builds by result.",
		},
		[]string{"success"},
	)

	catalogueBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "triarb",
			Subsystem: "catalogue",
			Name:      "build_duration_seconds",
			Help:      "Duration of catalogue builds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triarb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		scans,
		scanDuration,
		evaluations,
		opportunities,
		opportunityProfit,
		catalogueSize,
		catalogueBuilds,
		catalogueBuildDuration,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Scanner adapts the package collectors to the scanner's observer hooks.
type Scanner struct{}

// EvaluationDone counts one evaluation outcome.
func (Scanner) EvaluationDone(outcome string) {
	evaluations.WithLabelValues(outcome).Inc()
}

// ScanDone records one completed scan.
func (Scanner) ScanDone(d time.Duration, found bool) {
	scans.WithLabelValues(strconv.FormatBool(found)).Inc()
	scanDuration.Observe(d.Seconds())
}

// RecordOpportunity counts a detected opportunity.
func RecordOpportunity(stable string, simulated bool, profitPct float64) {
	opportunities.WithLabelValues(stable, strconv.FormatBool(simulated)).Inc()
	if profitPct > 0 {
		opportunityProfit.Observe(profitPct)
	}
}

// RecordCatalogueBuild records the outcome of a build.
func RecordCatalogueBuild(success bool, d time.Duration) {
	catalogueBuilds.WithLabelValues(strconv.FormatBool(success)).Inc()
	if success {
		catalogueBuildDuration.Observe(d.Seconds())
	}
}

// SetCatalogueSize sets the active catalogue size.
func SetCatalogueSize(n int) {
	catalogueSize.Set(float64(n))
}

// InstrumentHandler wraps next with request counting.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
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

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
