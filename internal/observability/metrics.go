package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/hhwjsw711/agentic-jumpstart-sub001"

var (
	instrumentsOnce     sync.Once
	repositoryOps       metric.Int64Counter
	flagEvaluations     metric.Int64Counter
	flagCacheEvents     metric.Int64Counter
	flagTargetingWrites metric.Int64Counter
	rateLimitDecisions  metric.Int64Counter
)

func initInstruments() {
	instrumentsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		repositoryOps, _ = meter.Int64Counter("repository.operations",
			metric.WithDescription("Repository operations by repository, operation and outcome"))
		flagEvaluations, _ = meter.Int64Counter("feature_flag.evaluations",
			metric.WithDescription("Feature flag evaluations by flag, source and result"))
		flagCacheEvents, _ = meter.Int64Counter("feature_flag.cache.events",
			metric.WithDescription("Feature flag evaluation cache hits, misses and errors"))
		flagTargetingWrites, _ = meter.Int64Counter("feature_flag.targeting.writes",
			metric.WithDescription("Feature flag targeting updates by flag, mode and outcome"))
		rateLimitDecisions, _ = meter.Int64Counter("http.rate_limit.decisions",
			metric.WithDescription("Rate limiter decisions by scope and outcome"))
	})
}

func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	initInstruments()
	if repositoryOps == nil {
		return
	}
	repositoryOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repo),
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

// RecordFeatureFlagEvaluation source is one of "store", "cache", "fallback".
func RecordFeatureFlagEvaluation(ctx context.Context, flag, source string, enabled bool) {
	initInstruments()
	if flagEvaluations == nil {
		return
	}
	flagEvaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flag", flag),
		attribute.String("source", source),
		attribute.Bool("enabled", enabled),
	))
}

func RecordFeatureFlagCacheEvent(ctx context.Context, event string) {
	initInstruments()
	if flagCacheEvents == nil {
		return
	}
	flagCacheEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func RecordFeatureFlagTargetingWrite(ctx context.Context, flag, mode, outcome string) {
	initInstruments()
	if flagTargetingWrites == nil {
		return
	}
	flagTargetingWrites.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flag", flag),
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	initInstruments()
	if rateLimitDecisions == nil {
		return
	}
	rateLimitDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}
