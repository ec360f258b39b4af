package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Diagnosis inference metrics
	diagnosisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagnosis_requests_total",
			Help: "Total number of diagnosis inference requests",
		},
		[]string{"source"},
	)

	classifierFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_fallbacks_total",
			Help: "Total number of classifier failures absorbed by the rule engine",
		},
		[]string{"reason"},
	)

	// Ledger metrics
	ledgerRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_records_total",
			Help: "Total number of integrity records built",
		},
		[]string{"subject_type", "status"},
	)

	ledgerVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_verifications_total",
			Help: "Total number of integrity verifications",
		},
		[]string{"subject_type", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		diagnosisRequestsTotal,
		classifierFallbacksTotal,
		ledgerRecordsTotal,
		ledgerVerificationsTotal,
	)
}

// RecordDiagnosisRequest counts one inference request by source path
func RecordDiagnosisRequest(source string) {
	diagnosisRequestsTotal.WithLabelValues(source).Inc()
}

// RecordClassifierFallback counts one absorbed classifier failure
func RecordClassifierFallback(reason string) {
	classifierFallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordLedgerRecord counts one record build by subject type and final status
func RecordLedgerRecord(subjectType, status string) {
	ledgerRecordsTotal.WithLabelValues(subjectType, status).Inc()
}

// RecordVerification counts one verification by outcome
func RecordVerification(subjectType, outcome string) {
	ledgerVerificationsTotal.WithLabelValues(subjectType, outcome).Inc()
}

// Handler returns the prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware instruments HTTP handlers with request count and duration
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}
