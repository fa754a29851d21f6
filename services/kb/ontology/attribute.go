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
	"fmt"

	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/hierarchy"
)

// Function computes the values of a function attribute for a concept.
type Function func(kb *KnowledgeBase, c *Concept) []domain.Value

// Reducer folds the values of an aggregate attribute's source. It reports
// false when there is no result (e.g. the average of nothing).
type Reducer func(values []domain.Value) (domain.Value, bool)

// Attribute is a node in the attribute hierarchy.
//
// Description:
//
//	The kind is fixed at definition. Data and concept attributes store
//	values on concepts; chain, function and aggregate attributes compute
//	them. Relational flags (reflexive, symmetric, transitive, inverse)
//	apply to concept attributes only.
type Attribute struct {
	name string
	kind AttributeKind
	kb   *KnowledgeBase
	node hierarchy.NodeID

	domain       *Concept
	rangeConcept *Concept
	rangeKind    string

	functional bool
	reflexive  bool
	symmetric  bool
	transitive bool
	inverse    *Attribute

	chain     []*Attribute
	fn        Function
	source    *Attribute
	reduce    Reducer
	reduceTag string

	supers []*Attribute
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.name }

// Kind returns the attribute variant.
func (a *Attribute) Kind() AttributeKind { return a.kind }

// Node returns the attribute's handle in the attribute hierarchy.
func (a *Attribute) Node() hierarchy.NodeID { return a.node }

// Domain returns the concept every carrier must lie below, or nil.
func (a *Attribute) Domain() *Concept { return a.domain }

// RangeConcept returns the concept every value must lie below, or nil.
func (a *Attribute) RangeConcept() *Concept { return a.rangeConcept }

// RangeKind returns the required domain.Value kind of data values, or "".
func (a *Attribute) RangeKind() string { return a.rangeKind }

// IsFunctional reports whether the attribute has at most one logical value
// per concept and constraint context. Aggregates are always functional;
// chains are functional when every step is.
func (a *Attribute) IsFunctional() bool { return a.resolver().functional() }

// IsReflexive reports whether every concept is implicitly its own value.
func (a *Attribute) IsReflexive() bool { return a.reflexive }

// IsSymmetric reports whether c a d implies d a c.
func (a *Attribute) IsSymmetric() bool { return a.symmetric }

// IsTransitive reports whether values are closed over concept hops.
func (a *Attribute) IsTransitive() bool { return a.transitive }

// Inverse returns the inverse attribute, or nil.
func (a *Attribute) Inverse() *Attribute { return a.inverse }

// Chain returns the attribute path of a chain attribute.
func (a *Attribute) Chain() []*Attribute {
	out := make([]*Attribute, len(a.chain))
	copy(out, a.chain)
	return out
}

// Source returns the source attribute of an aggregate attribute.
func (a *Attribute) Source() *Attribute { return a.source }

// Aggregation returns the reducer name given to AsAggregate.
func (a *Attribute) Aggregation() string { return a.reduceTag }

// String returns the attribute name.
func (a *Attribute) String() string { return a.name }

// AttributeOption configures an attribute at definition.
type AttributeOption func(*Attribute)

// WithSuperAttributes places the attribute below the given attributes.
func WithSuperAttributes(supers ...*Attribute) AttributeOption {
	return func(a *Attribute) {
		a.supers = append(a.supers, supers...)
	}
}

// WithDomain restricts which concepts may carry the attribute.
func WithDomain(c *Concept) AttributeOption {
	return func(a *Attribute) {
		a.domain = c
	}
}

// WithDataRange makes a data attribute whose values have the given
// domain.Value kind ("" accepts any kind).
func WithDataRange(kind string) AttributeOption {
	return func(a *Attribute) {
		a.kind = KindData
		a.rangeKind = kind
	}
}

// WithConceptRange makes a concept attribute whose values lie below c
// (nil accepts any concept).
func WithConceptRange(c *Concept) AttributeOption {
	return func(a *Attribute) {
		a.kind = KindConcept
		a.rangeConcept = c
	}
}

// Functional limits the attribute to one logical value.
func Functional() AttributeOption {
	return func(a *Attribute) { a.functional = true }
}

// Reflexive makes every concept implicitly its own value.
func Reflexive() AttributeOption {
	return func(a *Attribute) { a.reflexive = true }
}

// Symmetric mirrors every assignment c a d as d a c.
func Symmetric() AttributeOption {
	return func(a *Attribute) { a.symmetric = true }
}

// Transitive closes values over concept hops.
func Transitive() AttributeOption {
	return func(a *Attribute) { a.transitive = true }
}

// WithInverse mirrors every assignment c a d as d inv c, and vice versa.
func WithInverse(inv *Attribute) AttributeOption {
	return func(a *Attribute) { a.inverse = inv }
}

// AsChain makes a chain attribute: the values of path[0] on the concept,
// then path[1] on each of those, and so on.
func AsChain(path ...*Attribute) AttributeOption {
	return func(a *Attribute) {
		a.kind = KindChain
		a.chain = append([]*Attribute(nil), path...)
	}
}

// AsFunction makes a function attribute computed by fn.
func AsFunction(fn Function) AttributeOption {
	return func(a *Attribute) {
		a.kind = KindFunction
		a.fn = fn
	}
}

// AsAggregate makes an aggregate attribute reducing the values of source.
// name labels the reducer in exports.
func AsAggregate(source *Attribute, name string, reduce Reducer) AttributeOption {
	return func(a *Attribute) {
		a.kind = KindAggregate
		a.source = source
		a.reduceTag = name
		a.reduce = reduce
	}
}

// validate checks the definition against the knowledge base.
func (a *Attribute) validate(kb *KnowledgeBase) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidAttribute, a.name, fmt.Sprintf(format, args...))
	}

	if a.domain != nil && !kb.owns(a.domain) {
		return bad("domain %q is not defined", a.domain.name)
	}
	if a.rangeConcept != nil && !kb.owns(a.rangeConcept) {
		return bad("range %q is not defined", a.rangeConcept.name)
	}
	for _, s := range a.supers {
		if !kb.ownsAttribute(s) {
			return bad("super-attribute is not defined")
		}
	}
	if a.kind != KindConcept && (a.reflexive || a.symmetric || a.transitive || a.inverse != nil) {
		return bad("relational properties require a concept attribute")
	}
	if a.inverse != nil && (!kb.ownsAttribute(a.inverse) || a.inverse.kind != KindConcept) {
		return bad("inverse must be a defined concept attribute")
	}

	switch a.kind {
	case KindChain:
		if len(a.chain) == 0 {
			return bad("chain needs at least one attribute")
		}
		for i, step := range a.chain {
			if !kb.ownsAttribute(step) {
				return bad("chain step %d is not defined", i)
			}
			if i < len(a.chain)-1 && step.kind != KindConcept && step.kind != KindChain {
				return bad("chain step %q must yield concepts", step.name)
			}
		}
	case KindFunction:
		if a.fn == nil {
			return bad("function is nil")
		}
	case KindAggregate:
		if a.source == nil || !kb.ownsAttribute(a.source) {
			return bad("aggregate source is not defined")
		}
		if a.reduce == nil {
			return bad("reducer is nil")
		}
	}
	return nil
}

// Count is a Reducer returning the number of values.
func Count(values []domain.Value) (domain.Value, bool) {
	return domain.Number(len(values)), true
}

// Sum is a Reducer adding numeric values. Non-numbers are skipped.
func Sum(values []domain.Value) (domain.Value, bool) {
	var total domain.Number
	n := 0
	for _, v := range values {
		if x, ok := v.(domain.Number); ok {
			total += x
			n++
		}
	}
	return total, n > 0
}

// Min is a Reducer returning the smallest value under domain.Less.
func Min(values []domain.Value) (domain.Value, bool) {
	return extreme(values, domain.Less)
}

// Max is a Reducer returning the largest value under domain.Greater.
func Max(values []domain.Value) (domain.Value, bool) {
	return extreme(values, domain.Greater)
}

func extreme(values []domain.Value, op domain.Operator) (domain.Value, bool) {
	var best domain.Value
	for _, v := range values {
		if best == nil || v.Compare(op, best) == domain.True {
			best = v
		}
	}
	return best, best != nil
}

// Reducers maps reducer names to the built-in reducers.
var Reducers = map[string]Reducer{
	"count": Count,
	"sum":   Sum,
	"min":   Min,
	"max":   Max,
}
