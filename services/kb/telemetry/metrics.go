// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service-level instruments of the HTTP facade.
//
// Description:
//
//	Core packages record their own instruments; these cover the request
//	surface. All names use the "kb_" prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks in-flight HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// MutationsTotal counts knowledge base writes by operation and status.
	MutationsTotal metric.Int64Counter

	// ReloadsTotal counts document reloads by status.
	ReloadsTotal metric.Int64Counter
}

// NewMetrics registers the instruments with meter.
//
// Example:
//
//	metrics, err := telemetry.NewMetrics(otel.Meter("conceptbase.api"))
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"kb_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kb_http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"kb_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create kb_http_request_duration_seconds: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"kb_http_active_requests",
		metric.WithDescription("In-flight HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kb_http_active_requests: %w", err)
	}

	m.MutationsTotal, err = meter.Int64Counter(
		"kb_mutations_total",
		metric.WithDescription("Knowledge base writes by operation and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kb_mutations_total: %w", err)
	}

	m.ReloadsTotal, err = meter.Int64Counter(
		"kb_reloads_total",
		metric.WithDescription("Document reloads by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kb_reloads_total: %w", err)
	}

	return m, nil
}
