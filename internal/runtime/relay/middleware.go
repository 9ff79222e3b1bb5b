package relay

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/kafkarelay/internal/runtime/logging"
	"github.com/drblury/kafkarelay/internal/runtime/metadata"
)

// MiddlewareEnv is what a middleware builder may use while a topology is
// being wired.
type MiddlewareEnv struct {
	Router     *message.Router
	Logger     logging.ServiceLogger
	Topology   Topology
	Registerer prometheus.Registerer
}

// MiddlewareBuilder constructs a handler middleware for one topology. A nil
// middleware with a nil error means "skip".
type MiddlewareBuilder func(MiddlewareEnv) (message.HandlerMiddleware, error)

// MiddlewareRegistration captures how a middleware is registered on the router.
type MiddlewareRegistration struct {
	Name       string
	Middleware message.HandlerMiddleware
	Builder    MiddlewareBuilder
}

func (r MiddlewareRegistration) build(env MiddlewareEnv) (message.HandlerMiddleware, error) {
	switch {
	case r.Middleware != nil:
		return r.Middleware, nil
	case r.Builder != nil:
		return r.Builder(env)
	default:
		return nil, errors.New("middleware registration " + r.Name + " requires Middleware or Builder")
	}
}

// DefaultMiddlewares returns the chain every relay runs with. None of them
// modify the record or acknowledge it on their own.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		LogRecordsMiddleware(),
		TracerMiddleware(),
		MetricsMiddleware(),
		RecovererMiddleware(),
	}
}

// MetricsMiddleware adds Watermill's Prometheus router metrics. It is skipped
// when the engine has no registerer.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(env MiddlewareEnv) (message.HandlerMiddleware, error) {
			if env.Registerer == nil {
				return nil, nil
			}
			metricsBuilder := metrics.NewPrometheusMetricsBuilder(env.Registerer, "kafkarelay", "relay")
			metricsBuilder.AddPrometheusRouterMetrics(env.Router)
			return nil, nil
		},
	}
}

// LogRecordsMiddleware logs the source position of every record at trace level.
// Payloads are never logged.
func LogRecordsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_records",
		Builder: func(env MiddlewareEnv) (message.HandlerMiddleware, error) {
			if env.Logger == nil {
				return nil, errors.New("log records middleware requires a logger")
			}
			logger := env.Logger
			return func(h message.HandlerFunc) message.HandlerFunc {
				return func(msg *message.Message) ([]*message.Message, error) {
					md := metadata.Metadata(msg.Metadata)
					logger.Trace("Relaying record", logging.LogFields{
						"message_uuid": msg.UUID,
						"partition":    md[metadata.Partition],
						"offset":       md[metadata.Offset],
						"bytes":        len(msg.Payload),
					})
					return h(msg)
				}
			}, nil
		},
	}
}

// TracerMiddleware wraps handling of each record in an OpenTelemetry span.
// Nothing is injected into the record headers.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracer",
		Builder: func(env MiddlewareEnv) (message.HandlerMiddleware, error) {
			topology := env.Topology
			return func(h message.HandlerFunc) message.HandlerFunc {
				return func(msg *message.Message) ([]*message.Message, error) {
					ctx, span := otel.Tracer("kafkarelay").Start(msg.Context(), "RelayRecord",
						trace.WithSpanKind(trace.SpanKindConsumer))
					defer span.End()
					msg.SetContext(ctx)

					md := metadata.Metadata(msg.Metadata)
					span.SetAttributes(
						attribute.String("message.uuid", msg.UUID),
						attribute.String("messaging.source.topic", topology.SourceTopic),
						attribute.String("messaging.destination.topic", topology.DestinationTopic),
						attribute.String("messaging.kafka.partition", md[metadata.Partition]),
						attribute.String("messaging.kafka.offset", md[metadata.Offset]),
					)

					produced, err := h(msg)
					if err != nil {
						span.RecordError(err)
						span.SetStatus(codes.Error, err.Error())
					}
					return produced, err
				}
			}, nil
		},
	}
}

// RecovererMiddleware turns a panic into a handler error so the record is
// nacked and redelivered.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: middleware.Recoverer,
	}
}
