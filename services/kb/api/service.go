// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/conceptbase/services/kb/document"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
	"github.com/AleutianAI/conceptbase/services/kb/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrNilKnowledgeBase is returned by NewService for a nil knowledge base.
var ErrNilKnowledgeBase = errors.New("knowledge base must not be nil")

// Service serializes access to a knowledge base.
//
// Description:
//
//	The knowledge base itself is single-writer. Service adds the locking
//	that makes it shareable between HTTP handlers and the document
//	watcher: Read runs under the shared lock, Write under the exclusive
//	lock, and Reload/Import replace the whole knowledge base atomically.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	mu       sync.RWMutex
	kb       *ontology.KnowledgeBase
	source   string
	loadedAt time.Time

	opts    []ontology.Option
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithKBOptions sets the options used when Reload or Import build a new
// knowledge base.
func WithKBOptions(opts ...ontology.Option) ServiceOption {
	return func(s *Service) { s.opts = append(s.opts, opts...) }
}

// WithMetrics records mutations and reloads on m.
func WithMetrics(m *telemetry.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithServiceLogger sets the logger. Defaults to slog.Default().
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithSource records the document path kb was loaded from.
func WithSource(path string) ServiceOption {
	return func(s *Service) { s.source = path }
}

// NewService wraps kb.
//
// Outputs:
//
//	*Service - The service.
//	error - ErrNilKnowledgeBase if kb is nil.
func NewService(kb *ontology.KnowledgeBase, opts ...ServiceOption) (*Service, error) {
	if kb == nil {
		return nil, ErrNilKnowledgeBase
	}
	s := &Service{kb: kb, loadedAt: time.Now()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Read runs fn under the shared lock. fn must not mutate the knowledge
// base or retain it.
func (s *Service) Read(fn func(kb *ontology.KnowledgeBase) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.kb)
}

// Write runs fn under the exclusive lock and records the outcome as
// operation op.
func (s *Service) Write(ctx context.Context, op string, fn func(kb *ontology.KnowledgeBase) error) error {
	s.mu.Lock()
	err := fn(s.kb)
	s.mu.Unlock()

	status := "ok"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.MutationsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("status", status),
		))
	}
	return err
}

// Source returns the document path of the current knowledge base, or ""
// if it was not loaded from a file.
func (s *Service) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// LoadedAt returns when the current knowledge base was installed.
func (s *Service) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Reload rebuilds the knowledge base from the document at path.
//
// Description:
//
//	The document is decoded and applied to a fresh knowledge base without
//	holding any lock. Only a successful build replaces the current one, so
//	a broken edit leaves the service serving the previous state.
//
// Inputs:
//
//	ctx - Tracing and cancellation for the load.
//	path - Document path.
//
// Outputs:
//
//	document.Summary - What the new knowledge base contains.
//	error - Any load error; the current knowledge base is kept.
func (s *Service) Reload(ctx context.Context, path string) (document.Summary, error) {
	kb, sum, err := document.Load(ctx, path, s.opts...)
	s.recordReload(ctx, err)
	if err != nil {
		s.logger.Warn("reload failed, keeping current knowledge base",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return sum, err
	}
	s.swap(kb, path)
	s.logger.Info("knowledge base reloaded",
		slog.String("path", path),
		slog.Int("concepts", sum.Concepts),
		slog.Int("classified", sum.Classified),
	)
	return sum, nil
}

// Import replaces the knowledge base with one built from doc.
func (s *Service) Import(ctx context.Context, doc *document.Document) (document.Summary, error) {
	opts := append([]ontology.Option(nil), s.opts...)
	if doc.Name != "" {
		opts = append([]ontology.Option{ontology.WithName(doc.Name)}, opts...)
	}
	kb := ontology.New(opts...)
	sum, err := document.Apply(ctx, kb, doc)
	s.recordReload(ctx, err)
	if err != nil {
		return sum, fmt.Errorf("import: %w", err)
	}
	s.swap(kb, "")
	return sum, nil
}

func (s *Service) swap(kb *ontology.KnowledgeBase, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kb = kb
	s.source = source
	s.loadedAt = time.Now()
}

func (s *Service) recordReload(ctx context.Context, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.ReloadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
