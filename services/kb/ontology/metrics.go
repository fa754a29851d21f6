// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ontology

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for knowledge base operations.
var (
	tracer = otel.Tracer("conceptbase.ontology")
	meter  = otel.Meter("conceptbase.ontology")
)

var (
	resolutionLatency   metric.Float64Histogram
	resolutionTotal     metric.Int64Counter
	reclassifyMoves     metric.Int64Counter
	reclassifyLimitHits metric.Int64Counter
	membershipChanges   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		resolutionLatency, err = meter.Float64Histogram(
			"kb_resolution_duration_seconds",
			metric.WithDescription("Duration of attribute resolution queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resolutionTotal, err = meter.Int64Counter(
			"kb_resolution_total",
			metric.WithDescription("Attribute resolution queries by type and answering tier"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		reclassifyMoves, err = meter.Int64Counter(
			"kb_reclassification_moves_total",
			metric.WithDescription("Concepts classified under or moved up from derived concepts"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		reclassifyLimitHits, err = meter.Int64Counter(
			"kb_reclassification_limit_total",
			metric.WithDescription("Repositionings that hit the pass limit"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		membershipChanges, err = meter.Int64Counter(
			"kb_derived_membership_changes_total",
			metric.WithDescription("Edges added to or removed from derived concepts"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordResolution records one resolution query. A zero duration skips the
// latency histogram.
func recordResolution(ctx context.Context, kb, queryType, tier string, found bool, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kb", kb),
		attribute.String("query_type", queryType),
		attribute.String("tier", tier),
		attribute.Bool("found", found),
	)
	resolutionTotal.Add(ctx, 1, attrs)
	if d > 0 {
		resolutionLatency.Record(ctx, d.Seconds(), attrs)
	}
}

func recordMove(ctx context.Context, kb, derived, direction string) {
	if err := initMetrics(); err != nil {
		return
	}
	reclassifyMoves.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kb", kb),
		attribute.String("derived", derived),
		attribute.String("direction", direction),
	))
}

func recordLimit(ctx context.Context, kb string) {
	if err := initMetrics(); err != nil {
		return
	}
	reclassifyLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("kb", kb)))
}

func recordMembership(ctx context.Context, kb, derived, change string) {
	if err := initMetrics(); err != nil {
		return
	}
	membershipChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kb", kb),
		attribute.String("derived", derived),
		attribute.String("change", change),
	))
}
