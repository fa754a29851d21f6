// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hierarchy

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for hierarchy operations.
var meter = otel.Meter("conceptbase.hierarchy")

var (
	structuralEvents metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		structuralEvents, metricsErr = meter.Int64Counter(
			"kb_hierarchy_structural_events_total",
			metric.WithDescription("Node and edge insertions and removals"),
		)
	})
	return metricsErr
}

// recordStructuralEvent counts one node or edge change.
func recordStructuralEvent(name, element string, change Change) {
	if err := initMetrics(); err != nil {
		return
	}
	structuralEvents.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("hierarchy", name),
		attribute.String("element", element),
		attribute.String("change", change.String()),
	))
}
