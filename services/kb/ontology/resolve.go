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
	"iter"
	"log/slog"
	"time"

	"github.com/AleutianAI/conceptbase/services/kb/constraint"
	"github.com/AleutianAI/conceptbase/services/kb/container"
	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/hierarchy"
)

// ResolvedValue is one value produced by resolution, with its provenance.
type ResolvedValue struct {
	Value       domain.Value
	Constraints constraint.List
	Tier        Tier

	// Source is the concept the value is stored on. For computed values it
	// is the concept the computation ran for.
	Source *Concept

	// Attribute is the attribute the value is stored under, which may be a
	// sub-attribute of the one queried.
	Attribute *Attribute
}

// QueryOption narrows a resolution query.
type QueryOption func(*container.Query)

// WithComparison keeps only values v for which "v op operand" is True.
// The comparison filters the winning tier; it never lets a lower tier
// answer in place of values that failed it.
func WithComparison(op domain.Operator, operand domain.Value) QueryOption {
	return func(q *container.Query) {
		q.Op = op
		q.Operand = operand
	}
}

// WithConstraints keeps only values whose stored constraints imply cs.
func WithConstraints(cs ...constraint.Constraint) QueryOption {
	return func(q *container.Query) {
		q.Constraints = append(q.Constraints, cs...)
	}
}

func buildQuery(opts []QueryOption) container.Query {
	var q container.Query
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// resolver is the per-kind value capability every attribute variant
// implements.
type resolver interface {
	stream(kb *KnowledgeBase, c *Concept, q container.Query) iter.Seq[ResolvedValue]
	functional() bool
}

func (a *Attribute) resolver() resolver {
	switch a.kind {
	case KindChain:
		return chainResolver{a}
	case KindFunction:
		return functionResolver{a}
	case KindAggregate:
		return aggregateResolver{a}
	default:
		if a.transitive {
			return transitiveResolver{a}
		}
		return storedResolver{a}
	}
}

func (kb *KnowledgeBase) resolve(c *Concept, a *Attribute, q container.Query) iter.Seq[ResolvedValue] {
	if !kb.owns(c) || !kb.ownsAttribute(a) {
		return func(func(ResolvedValue) bool) {}
	}
	return a.resolver().stream(kb, c, q)
}

// Stream yields every value of a for c.
//
// Description:
//
//	Values come from the first tier that has any: Local values on c
//	(over a and its sub-attributes), then All-scoped values on c and its
//	ancestors, then the first ancestor with a Default value. The
//	sequence is lazy and finite; each value is computed on demand.
//
// Outputs:
//
//	iter.Seq[domain.Value] - Empty when nothing applies. Panics with
//	                         hierarchy.ErrConcurrentModification if the
//	                         concept hierarchy is mutated during
//	                         consumption.
func (kb *KnowledgeBase) Stream(c *Concept, a *Attribute, opts ...QueryOption) iter.Seq[domain.Value] {
	q := buildQuery(opts)
	return func(yield func(domain.Value) bool) {
		recordResolution(context.Background(), kb.options.Name, "stream", "", true, 0)
		for rv := range kb.resolve(c, a, q) {
			if !yield(rv.Value) {
				return
			}
		}
	}
}

// Values collects Stream into a slice.
func (kb *KnowledgeBase) Values(c *Concept, a *Attribute, opts ...QueryOption) []domain.Value {
	var out []domain.Value
	for v := range kb.Stream(c, a, opts...) {
		out = append(out, v)
	}
	return out
}

// GetFirst returns the first value of a for c in tier order.
//
// Outputs:
//
//	domain.Value - The value.
//	bool - False when nothing applies; this is not an error.
func (kb *KnowledgeBase) GetFirst(c *Concept, a *Attribute, opts ...QueryOption) (domain.Value, bool) {
	return kb.Find(c, a, func(domain.Value) bool { return true }, opts...)
}

// Find returns the first value of a for c satisfying pred.
func (kb *KnowledgeBase) Find(c *Concept, a *Attribute, pred func(domain.Value) bool, opts ...QueryOption) (domain.Value, bool) {
	start := time.Now()
	q := buildQuery(opts)
	for rv := range kb.resolve(c, a, q) {
		if pred(rv.Value) {
			recordResolution(context.Background(), kb.options.Name, "find", rv.Tier.String(), true, time.Since(start))
			return rv.Value, true
		}
	}
	recordResolution(context.Background(), kb.options.Name, "find", "", false, time.Since(start))
	return nil, false
}

// Explain returns every value Stream would yield, with provenance.
func (kb *KnowledgeBase) Explain(c *Concept, a *Attribute, opts ...QueryOption) []ResolvedValue {
	var out []ResolvedValue
	for rv := range kb.resolve(c, a, buildQuery(opts)) {
		out = append(out, rv)
	}
	return out
}

// family returns a and its sub-attributes in breadth-first order.
func (kb *KnowledgeBase) family(a *Attribute) []*Attribute {
	var out []*Attribute
	kb.attributes.ForEachInner(a.node, hierarchy.TowardLeaves, hierarchy.BreadthFirst, func(id hierarchy.NodeID) {
		if s, ok := kb.attributes.Label(id); ok {
			out = append(out, s)
		}
	})
	return out
}

// scoped yields the values stored on x under any attribute in family
// with the given scope. Entries are chosen by q's constraints alone; found
// is set for every applicable entry, before q's comparison filters it.
func scoped(x *Concept, family []*Attribute, scope Scope, tier Tier, q container.Query, found *bool, yield func(ResolvedValue) bool) bool {
	applies := container.Query{Constraints: q.Constraints}
	for _, s := range family {
		av, ok := x.values[s]
		if !ok || av.Scope != scope {
			continue
		}
		for e := range av.Container.All(applies) {
			*found = true
			if q.Operand != nil && !domain.Satisfies(e.Value, q.Op, q.Operand) {
				continue
			}
			rv := ResolvedValue{Value: e.Value, Constraints: e.Constraints, Tier: tier, Source: x, Attribute: s}
			if !yield(rv) {
				return false
			}
		}
	}
	return true
}

// storedResolver implements the three-tier lookup for data and concept
// attributes.
type storedResolver struct{ a *Attribute }

func (r storedResolver) functional() bool { return r.a.functional }

func (r storedResolver) stream(kb *KnowledgeBase, c *Concept, q container.Query) iter.Seq[ResolvedValue] {
	return kb.tiered(c, r.a, q, r.a.reflexive)
}

// tiered picks the first tier holding an applicable value and yields the
// values of that tier that pass q's comparison. A tier whose values all
// fail the comparison still hides the tiers after it.
func (kb *KnowledgeBase) tiered(c *Concept, a *Attribute, q container.Query, reflexive bool) iter.Seq[ResolvedValue] {
	return func(yield func(ResolvedValue) bool) {
		family := kb.family(a)
		found := false

		// Local
		if reflexive {
			found = true
			if q.Matches(container.Entry{Value: c}) {
				if !yield(ResolvedValue{Value: c, Tier: TierLocal, Source: c, Attribute: a}) {
					return
				}
			}
		}
		if !scoped(c, family, Local, TierLocal, q, &found, yield) || found {
			return
		}

		// All, on c itself and then every ancestor
		if !scoped(c, family, All, TierAll, q, &found, yield) {
			return
		}
		for id := range kb.concepts.Ancestors(c.node) {
			x, _ := kb.concepts.Label(id)
			if !scoped(x, family, All, TierAll, q, &found, yield) {
				return
			}
		}
		if found {
			return
		}

		// Default, first ancestor only
		for id := range kb.concepts.Ancestors(c.node) {
			x, _ := kb.concepts.Label(id)
			if !scoped(x, family, Default, TierDefault, q, &found, yield) || found {
				return
			}
		}
	}
}

// transitiveResolver closes a concept attribute over concept hops.
type transitiveResolver struct{ a *Attribute }

func (r transitiveResolver) functional() bool { return false }

func (r transitiveResolver) stream(kb *KnowledgeBase, c *Concept, q container.Query) iter.Seq[ResolvedValue] {
	return func(yield func(ResolvedValue) bool) {
		hop := container.Query{Constraints: q.Constraints}
		visited := make(map[*Concept]bool)

		if r.a.reflexive {
			visited[c] = true
			if q.Matches(container.Entry{Value: c}) {
				if !yield(ResolvedValue{Value: c, Tier: TierLocal, Source: c, Attribute: r.a}) {
					return
				}
			}
		}

		queue := []*Concept{c}
		for len(queue) > 0 {
			x := queue[0]
			queue = queue[1:]
			for rv := range kb.tiered(x, r.a, hop, false) {
				target, ok := rv.Value.(*Concept)
				if !ok || visited[target] {
					continue
				}
				visited[target] = true
				queue = append(queue, target)
				if q.Operand != nil && !domain.Satisfies(rv.Value, q.Op, q.Operand) {
					continue
				}
				if !yield(rv) {
					return
				}
			}
		}
	}
}

// chainResolver follows a path of attributes.
type chainResolver struct{ a *Attribute }

func (r chainResolver) functional() bool {
	for _, step := range r.a.chain {
		if !step.IsFunctional() {
			return false
		}
	}
	return true
}

func (r chainResolver) stream(kb *KnowledgeBase, c *Concept, q container.Query) iter.Seq[ResolvedValue] {
	return func(yield func(ResolvedValue) bool) {
		hop := container.Query{Constraints: q.Constraints}
		current := []*Concept{c}
		last := len(r.a.chain) - 1

		for i, step := range r.a.chain[:last] {
			seen := make(map[*Concept]bool)
			var next []*Concept
			for _, x := range current {
				for rv := range kb.resolve(x, step, hop) {
					if target, ok := rv.Value.(*Concept); ok && !seen[target] {
						seen[target] = true
						next = append(next, target)
					}
				}
			}
			if len(next) == 0 {
				kb.logger.Debug("chain ended early",
					slog.String("attribute", r.a.name),
					slog.String("concept", c.name),
					slog.Int("step", i),
				)
				return
			}
			current = next
		}

		final := r.a.chain[last]
		for _, x := range current {
			for rv := range kb.resolve(x, final, q) {
				rv.Tier = TierComputed
				if !yield(rv) {
					return
				}
			}
		}
	}
}

// functionResolver calls a caller-supplied function.
type functionResolver struct{ a *Attribute }

func (r functionResolver) functional() bool { return r.a.functional }

func (r functionResolver) stream(kb *KnowledgeBase, c *Concept, q container.Query) iter.Seq[ResolvedValue] {
	return func(yield func(ResolvedValue) bool) {
		for _, v := range r.a.fn(kb, c) {
			if v == nil || !q.Matches(container.Entry{Value: v}) {
				continue
			}
			if !yield(ResolvedValue{Value: v, Tier: TierComputed, Source: c, Attribute: r.a}) {
				return
			}
		}
	}
}

// aggregateResolver reduces the values of a source attribute.
type aggregateResolver struct{ a *Attribute }

func (r aggregateResolver) functional() bool { return true }

func (r aggregateResolver) stream(kb *KnowledgeBase, c *Concept, q container.Query) iter.Seq[ResolvedValue] {
	return func(yield func(ResolvedValue) bool) {
		var vals []domain.Value
		for rv := range kb.resolve(c, r.a.source, container.Query{Constraints: q.Constraints}) {
			vals = append(vals, rv.Value)
		}
		v, ok := r.a.reduce(vals)
		if !ok || v == nil {
			return
		}
		if q.Operand != nil && !domain.Satisfies(v, q.Op, q.Operand) {
			return
		}
		yield(ResolvedValue{Value: v, Tier: TierComputed, Source: c, Attribute: r.a})
	}
}
