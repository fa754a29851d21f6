// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("conceptbase.document")

var (
	documentLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kb_document_loads_total",
		Help: "Total document applications by result",
	}, []string{"result"})

	documentLoadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kb_document_load_errors_total",
		Help: "Total document load errors by stage",
	}, []string{"stage"})

	documentLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kb_document_load_duration_seconds",
		Help:    "Duration of applying a document to a knowledge base",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	documentChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kb_document_file_changes_total",
		Help: "Debounced document file changes delivered by the watcher",
	}, []string{"op"})
)
