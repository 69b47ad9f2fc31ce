// Package metrics exposes Prometheus instrumentation for the account
// lifecycle and credit ledger.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics tracks lifecycle transitions, credit movements and operation durations.
type Metrics struct {
	Registrations        *prometheus.CounterVec
	Verifications        *prometheus.CounterVec
	CodesIssued          prometheus.Counter
	Subscriptions        *prometheus.CounterVec
	CreditsGranted       prometheus.Counter
	CreditsConsumed      prometheus.Counter
	ConsumeRejections    prometheus.Counter
	OperationDuration    *prometheus.HistogramVec
	EventDeliveryFailure *prometheus.CounterVec
}

// New creates Metrics registered on reg. Use prometheus.DefaultRegisterer in
// the server and a fresh prometheus.NewRegistry() per test.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "enroll_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "enroll_email_verifications_total",
			Help: "Email verification attempts by outcome",
		}, []string{"outcome"}),
		CodesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "enroll_verification_codes_issued_total",
			Help: "Total number of verification codes issued",
		}),
		Subscriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "enroll_subscriptions_total",
			Help: "Subscriptions created by plan and payment status",
		}, []string{"plan", "payment_status"}),
		CreditsGranted: factory.NewCounter(prometheus.CounterOpts{
			Name: "enroll_credits_granted_total",
			Help: "Total credits granted across all tranches",
		}),
		CreditsConsumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "enroll_credits_consumed_total",
			Help: "Total credits consumed",
		}),
		ConsumeRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "enroll_credit_consume_rejections_total",
			Help: "Consume requests rejected for insufficient credits",
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enroll_operation_duration_seconds",
			Help:    "Duration of service operations",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		EventDeliveryFailure: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "enroll_event_delivery_failures_total",
			Help: "Lifecycle events that at least one handler failed to process",
		}, []string{"event_type"}),
	}
}

// ObserveOperation records the duration of an operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Outcome returns "success" for a nil error and "failure" otherwise.
func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
