package observability

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

var (
	// APIRequestDuration records remote call latency by operation and status.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "whispr_api_request_duration_seconds",
		Help:    "Remote API call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	// APIErrors counts failed remote calls by operation and error kind.
	APIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whispr_api_errors_total",
		Help: "Total number of failed remote API calls",
	}, []string{"operation", "kind"})

	// SessionTransitions counts session state changes by target state.
	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whispr_session_transitions_total",
		Help: "Total number of session state transitions",
	}, []string{"to"})

	// Mutations counts toggle mutations by kind and outcome.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whispr_mutations_total",
		Help: "Total number of like/follow mutations by outcome",
	}, []string{"kind", "outcome"})

	// MutationsInFlight is the gauge of guarded mutations currently pending.
	MutationsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "whispr_mutations_in_flight",
		Help: "Number of mutations currently in flight",
	}, []string{"kind"})

	// StorageErrors counts storage driver failures by driver and operation.
	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whispr_storage_errors_total",
		Help: "Total number of storage errors",
	}, []string{"driver", "op"})
)

// Error kinds used as the "kind" label of APIErrors.
const (
	KindTransport = "transport"
	KindStatus    = "status"
	KindDecode    = "decode"
)

// TrackRequest returns a function that records call latency when called
// with the final status (e.g. defer).
func TrackRequest(operation string) func(status int) {
	start := time.Now()
	return func(status int) {
		label := "error"
		if status > 0 {
			label = strconv.Itoa(status)
		}
		APIRequestDuration.WithLabelValues(operation, label).Observe(time.Since(start).Seconds())
	}
}

// RecordAPIError increments APIErrors.
func RecordAPIError(operation, kind string) {
	APIErrors.WithLabelValues(operation, kind).Inc()
}

// RecordStorageError increments StorageErrors.
func RecordStorageError(driver, op string) {
	StorageErrors.WithLabelValues(driver, op).Inc()
}

// WriteMetrics writes every whispr_* family from the default registry in
// the Prometheus text format.
func WriteMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "whispr_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
