package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/events"
	"github.com/phrazzld/enroll-api/internal/platform/logger"
	"github.com/phrazzld/enroll-api/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/phrazzld/enroll-api/internal/service"

var tracer = otel.Tracer(tracerName)

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

func orNewMetrics(m *metrics.Metrics) *metrics.Metrics {
	if m != nil {
		return m
	}
	return metrics.New(prometheus.NewRegistry())
}

// publisher emits lifecycle events on behalf of a service. A nil emitter
// disables emission.
type publisher struct {
	emitter events.EventEmitter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func (p publisher) publish(ctx context.Context, eventType events.Type, accountID uuid.UUID, payload any) {
	if p.emitter == nil {
		return
	}
	log := logger.FromContextOrDefault(ctx, p.logger)

	event, err := events.NewLifecycleEvent(eventType, accountID, payload)
	if err != nil {
		log.Error("failed to build lifecycle event",
			"error", err,
			"event_type", eventType,
			"account_id", accountID)
		return
	}

	if err := p.emitter.EmitEvent(ctx, event); err != nil {
		p.metrics.EventDeliveryFailure.WithLabelValues(string(eventType)).Inc()
		log.Warn("lifecycle event delivery failed",
			"error", err,
			"event_id", event.ID,
			"event_type", eventType,
			"account_id", accountID)
	}
}

// logFailure logs expected failures at debug level and everything else at error level.
func logFailure(log *slog.Logger, msg string, err error, args ...any) {
	args = append([]any{"error", err}, args...)
	if isDomainError(err) {
		log.Debug(msg, args...)
		return
	}
	log.Error(msg, args...)
}
