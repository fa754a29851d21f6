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
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// traceAttrs returns the trace_id and span_id attributes of the span in
// ctx, or nil when ctx carries no valid span context.
func traceAttrs(ctx context.Context) []any {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []any{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
}

// LoggerWithTrace ties log lines to the request span started by otelgin.
//
// Description:
//
//	Returns logger annotated with trace_id and span_id when ctx carries a
//	valid span, and logger itself otherwise.
//
// Example:
//
//	logger := telemetry.LoggerWithTrace(c.Request.Context(), svcLogger)
//	logger.Info("value set", slog.String("concept", name))
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if attrs := traceAttrs(ctx); attrs != nil {
		return logger.With(attrs...)
	}
	return logger
}
