package rootpath

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for context retrieval.
var (
	tracer = otel.Tracer("rootpath")
	meter  = otel.Meter("rootpath")
)

var (
	requestLatency metric.Float64Histogram
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	cacheEvictions metric.Int64Counter
	levelFailures  metric.Int64Counter
	invalidations  metric.Int64Counter
	snippetCount   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		requestLatency, err = meter.Float64Histogram(
			"rootpath_context_duration_seconds",
			metric.WithDescription("Duration of root-path context requests"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheHits, err = meter.Int64Counter(
			"rootpath_cache_hits_total",
			metric.WithDescription("Levels served from the cache"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"rootpath_cache_misses_total",
			metric.WithDescription("Levels computed because the cache had no entry"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheEvictions, err = meter.Int64Counter(
			"rootpath_cache_evictions_total",
			metric.WithDescription("Entries evicted to respect cache capacity"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		levelFailures, err = meter.Int64Counter(
			"rootpath_level_failures_total",
			metric.WithDescription("Levels whose extraction failed and contributed nothing"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		invalidations, err = meter.Int64Counter(
			"rootpath_cache_invalidations_total",
			metric.WithDescription("Entries dropped by explicit invalidation"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		snippetCount, err = meter.Int64Histogram(
			"rootpath_snippets",
			metric.WithDescription("Snippets returned per request"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startRequestSpan(ctx context.Context, filepath string, depth int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.GetContextForPath",
		trace.WithAttributes(
			attribute.String("rootpath.file_path", filepath),
			attribute.Int("rootpath.depth", depth),
		),
	)
}

func startLevelSpan(ctx context.Context, nodeType string, start uint32) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.level",
		trace.WithAttributes(
			attribute.String("rootpath.node_type", nodeType),
			attribute.Int64("rootpath.node_start", int64(start)),
		),
	)
}

func recordRequest(ctx context.Context, language string, duration time.Duration, snippets int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	)
	requestLatency.Record(ctx, duration.Seconds(), attrs)
	if success {
		snippetCount.Record(ctx, int64(snippets), metric.WithAttributes(attribute.String("language", language)))
	}
}

func recordCacheLookup(ctx context.Context, nodeType string, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("node_type", nodeType))
	if hit {
		cacheHits.Add(ctx, 1, attrs)
	} else {
		cacheMisses.Add(ctx, 1, attrs)
	}
}

func recordEviction(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheEvictions.Add(ctx, 1)
}

func recordLevelFailure(ctx context.Context, nodeType string) {
	if err := initMetrics(); err != nil {
		return
	}
	levelFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("node_type", nodeType)))
}

func recordInvalidation(ctx context.Context, reason string, n int) {
	if err := initMetrics(); err != nil || n == 0 {
		return
	}
	invalidations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}
