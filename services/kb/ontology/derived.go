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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/hierarchy"
)

// Filter decides membership of a derived concept. Filters may run
// concurrently with each other and must not mutate the knowledge base.
type Filter func(kb *KnowledgeBase, c *Concept) bool

// Where builds a Filter that holds when some value of a for c satisfies
// "value op operand".
func Where(a *Attribute, op domain.Operator, operand domain.Value) Filter {
	return func(kb *KnowledgeBase, c *Concept) bool {
		_, ok := kb.GetFirst(c, a, WithComparison(op, operand))
		return ok
	}
}

// And builds a Filter that holds when every filter holds.
func And(filters ...Filter) Filter {
	return func(kb *KnowledgeBase, c *Concept) bool {
		for _, f := range filters {
			if !f(kb, c) {
				return false
			}
		}
		return true
	}
}

// DerivedConcept is a concept whose members are the descendants of all its
// super-concepts that satisfy its filter.
//
// Description:
//
//	Membership is not stored; it is the current position of concepts in
//	the hierarchy, maintained by RestructureHierarchy and
//	RepositionConcept. A classified concept is a child of the derived
//	concept and no longer a direct child of the super-concepts.
type DerivedConcept struct {
	concept *Concept
	supers  []*Concept
	filter  Filter
	source  any
}

// Concept returns the concept node of the derived concept.
func (dc *DerivedConcept) Concept() *Concept { return dc.concept }

// Name returns the derived concept's name.
func (dc *DerivedConcept) Name() string { return dc.concept.name }

// Supers returns the super-concepts.
func (dc *DerivedConcept) Supers() []*Concept {
	out := make([]*Concept, len(dc.supers))
	copy(out, dc.supers)
	return out
}

// FilterSource returns what was given to WithFilterSource, or nil.
func (dc *DerivedConcept) FilterSource() any { return dc.source }

// DerivedOption configures a derived concept.
type DerivedOption func(*DerivedConcept)

// WithFilterSource records a description of the filter, e.g. the clauses
// it was compiled from, for export.
func WithFilterSource(src any) DerivedOption {
	return func(dc *DerivedConcept) { dc.source = src }
}

// DefineDerivedConcept creates a derived concept below supers.
//
// Description:
//
//	The new concept starts with no members. Call RestructureHierarchy to
//	classify existing concepts.
//
// Outputs:
//
//	*DerivedConcept - The definition.
//	error - ErrInvalidDerived, ErrDuplicateName, or a definition error.
func (kb *KnowledgeBase) DefineDerivedConcept(name string, supers []*Concept, filter Filter, opts ...DerivedOption) (*DerivedConcept, error) {
	if len(supers) == 0 || filter == nil {
		return nil, fmt.Errorf("%w: %q needs supers and a filter", ErrInvalidDerived, name)
	}
	if _, exists := kb.conceptNames[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	c, err := kb.define(name, false, supers)
	if err != nil {
		return nil, err
	}
	dc := &DerivedConcept{concept: c, supers: append([]*Concept(nil), supers...), filter: filter}
	for _, opt := range opts {
		opt(dc)
	}
	c.derived = dc
	kb.derived = append(kb.derived, dc)

	if _, err := kb.concepts.OnLocalEdgeEvent(c.node, func(ev hierarchy.EdgeEvent[*Concept]) {
		recordMembership(context.Background(), kb.options.Name, name, ev.Change.String())
	}); err != nil {
		return nil, err
	}

	kb.logger.Info("derived concept defined",
		slog.String("concept", name),
		slog.Int("supers", len(supers)),
	)
	return dc, nil
}

// DerivedConcepts returns the derived concepts in definition order.
func (kb *KnowledgeBase) DerivedConcepts() []*DerivedConcept {
	out := make([]*DerivedConcept, len(kb.derived))
	copy(out, kb.derived)
	return out
}

// IsMember reports whether c currently lies below dc.
func (kb *KnowledgeBase) IsMember(dc *DerivedConcept, c *Concept) bool {
	return c != dc.concept && kb.Subsumes(dc.concept, c)
}

// Members returns the direct children of dc.
func (kb *KnowledgeBase) Members(dc *DerivedConcept) []*Concept {
	return kb.Subs(dc.concept)
}

// affected reports whether c belongs under dc but is not there yet.
func (kb *KnowledgeBase) affected(dc *DerivedConcept, c *Concept) bool {
	if c == dc.concept || c.derived != nil {
		return false
	}
	h := kb.concepts
	if h.IsDescendantOf(c.node, dc.concept.node) || h.IsDescendantOf(dc.concept.node, c.node) {
		return false
	}
	for _, s := range dc.supers {
		if !h.IsDescendantOf(c.node, s.node) {
			return false
		}
	}
	return dc.filter(kb, c)
}

// classify moves c under dc, detaching its direct edges from dc's supers.
func (kb *KnowledgeBase) classify(ctx context.Context, dc *DerivedConcept, c *Concept) error {
	for _, s := range dc.supers {
		if kb.concepts.HasEdge(s.node, c.node) {
			if err := kb.concepts.RemoveSubnode(s.node, c.node); err != nil {
				return err
			}
		}
	}
	if err := kb.concepts.AddSubnode(dc.concept.node, c.node); err != nil {
		return fmt.Errorf("classifying %q under %q: %w", c.name, dc.concept.name, err)
	}
	recordMove(ctx, kb.options.Name, dc.concept.name, "classify")
	kb.logger.Debug("concept classified",
		slog.String("concept", c.name),
		slog.String("derived", dc.concept.name),
	)
	return nil
}

// moveUpwards detaches c from dc and reattaches it to every super of dc it
// no longer lies below.
func (kb *KnowledgeBase) moveUpwards(ctx context.Context, dc *DerivedConcept, c *Concept) error {
	if err := kb.concepts.RemoveSubnode(dc.concept.node, c.node); err != nil {
		return err
	}
	for _, s := range dc.supers {
		if kb.concepts.IsDescendantOf(c.node, s.node) {
			continue
		}
		if err := kb.concepts.AddSubnode(s.node, c.node); err != nil {
			return fmt.Errorf("returning %q to %q: %w", c.name, s.name, err)
		}
	}
	recordMove(ctx, kb.options.Name, dc.concept.name, "move_up")
	kb.logger.Debug("concept moved up",
		slog.String("concept", c.name),
		slog.String("derived", dc.concept.name),
	)
	return nil
}

// RestructureHierarchy classifies every existing concept that belongs
// under dc.
//
// Description:
//
//	Scans the descendants of the first super-concept. A concept is
//	classified when the filter holds and it lies below every super-concept;
//	with a single super this is just the filter. Classified concepts lose
//	their direct edges to the supers and gain an edge from dc. Concepts
//	below a classified concept are already members and are left in place;
//	concepts below a non-match are still probed.
//
//	Filters are evaluated concurrently, bounded by FilterParallelism.
//
// Inputs:
//
//	ctx - Cancels filter evaluation.
//	dc - A derived concept of this knowledge base.
//
// Outputs:
//
//	int - Number of concepts classified.
//	error - ErrUnknownConcept, the context error, or a hierarchy error.
func (kb *KnowledgeBase) RestructureHierarchy(ctx context.Context, dc *DerivedConcept) (int, error) {
	if dc == nil || !kb.owns(dc.concept) || dc.concept.derived != dc {
		return 0, ErrUnknownConcept
	}
	ctx, span := tracer.Start(ctx, "KnowledgeBase.RestructureHierarchy")
	defer span.End()
	span.SetAttributes(
		attribute.String("kb.derived", dc.concept.name),
		attribute.Int("kb.supers", len(dc.supers)),
	)

	var candidates []*Concept
	for id := range kb.concepts.Descendants(dc.supers[0].node) {
		if c, ok := kb.concepts.Label(id); ok {
			candidates = append(candidates, c)
		}
	}

	matched := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(kb.options.FilterParallelism)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matched[i] = kb.affected(dc, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "filter evaluation cancelled")
		return 0, err
	}

	moved := 0
	for i, c := range candidates {
		if !matched[i] || kb.concepts.IsDescendantOf(c.node, dc.concept.node) {
			continue
		}
		if err := kb.classify(ctx, dc, c); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "classification failed")
			return moved, err
		}
		moved++
	}

	span.SetAttributes(
		attribute.Int("kb.candidates", len(candidates)),
		attribute.Int("kb.classified", moved),
	)
	kb.logger.Info("derived concept restructured",
		slog.String("derived", dc.concept.name),
		slog.Int("candidates", len(candidates)),
		slog.Int("classified", moved),
	)
	return moved, nil
}

// RestructureAll runs RestructureHierarchy for every derived concept in
// definition order and returns the total number classified.
func (kb *KnowledgeBase) RestructureAll(ctx context.Context) (int, error) {
	total := 0
	for _, dc := range kb.DerivedConcepts() {
		n, err := kb.RestructureHierarchy(ctx, dc)
		total += n
		if err != nil {
			return total, fmt.Errorf("restructuring %q: %w", dc.concept.name, err)
		}
	}
	return total, nil
}

// RepositionConcept updates c's derived-concept memberships after its data
// changed.
//
// Description:
//
//	First, c leaves every derived concept it is a direct member of whose
//	filter no longer holds, returning to that concept's supers. This
//	repeats until a pass changes nothing. Second, c is classified under
//	every derived concept that now affects it; each derived concept is
//	considered at most once per call, and passes repeat until nothing
//	changes. Each phase is capped at MaxReclassificationPasses passes,
//	the last of which must change nothing.
//
// Outputs:
//
//	error - ErrUnknownConcept, a *ReclassificationError wrapping
//	        ErrReclassificationLimit, the context error, or a hierarchy
//	        error.
func (kb *KnowledgeBase) RepositionConcept(ctx context.Context, c *Concept) error {
	if !kb.owns(c) {
		return ErrUnknownConcept
	}
	if c.derived != nil || len(kb.derived) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "KnowledgeBase.RepositionConcept")
	defer span.End()
	span.SetAttributes(attribute.String("kb.concept", c.name))

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	limit := func(passes int) error {
		err := &ReclassificationError{Concept: c.name, Passes: passes}
		recordLimit(ctx, kb.options.Name)
		kb.logger.Warn("reclassification pass limit reached",
			slog.String("concept", c.name),
			slog.Int("passes", passes),
		)
		return fail(err)
	}
	maxPasses := kb.options.MaxReclassificationPasses

	for passes := 1; ; passes++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if passes > maxPasses {
			return limit(passes - 1)
		}
		changed := false
		for _, dc := range kb.DerivedConcepts() {
			if !kb.concepts.HasEdge(dc.concept.node, c.node) || dc.filter(kb, c) {
				continue
			}
			if err := kb.moveUpwards(ctx, dc, c); err != nil {
				return fail(err)
			}
			changed = true
		}
		if !changed {
			break
		}
	}

	checked := make(map[*DerivedConcept]bool)
	for passes := 1; ; passes++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if passes > maxPasses {
			return limit(passes - 1)
		}
		changed := false
		for _, dc := range kb.DerivedConcepts() {
			if checked[dc] {
				continue
			}
			if kb.concepts.IsDescendantOf(c.node, dc.concept.node) {
				checked[dc] = true
				continue
			}
			if !kb.affected(dc, c) {
				continue
			}
			if err := kb.classify(ctx, dc, c); err != nil {
				return fail(err)
			}
			checked[dc] = true
			changed = true
		}
		if !changed {
			break
		}
	}
	return nil
}
