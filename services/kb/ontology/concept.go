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
	"cmp"
	"slices"

	"github.com/AleutianAI/conceptbase/services/kb/container"
	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/hierarchy"
)

// Concept is a class or an individual in the concept hierarchy.
//
// Concepts are created through a KnowledgeBase and compared by identity.
// A Concept is also a domain.Value, so concept attributes store concepts
// directly.
type Concept struct {
	name       string
	individual bool
	kb         *KnowledgeBase
	node       hierarchy.NodeID

	// values holds only what was set on this concept, never inherited
	// copies.
	values map[*Attribute]*AttributeValue

	derived *DerivedConcept
}

// AttributeValue is the stored value of one attribute on one concept.
type AttributeValue struct {
	Scope     Scope
	Container container.Container
}

// Name returns the concept name.
func (c *Concept) Name() string { return c.name }

// IsIndividual reports whether the concept is a leaf of the concept
// hierarchy.
func (c *Concept) IsIndividual() bool { return c.individual }

// Derived returns the derived concept definition, or nil for ordinary
// concepts.
func (c *Concept) Derived() *DerivedConcept { return c.derived }

// Node returns the concept's handle in the concept hierarchy.
func (c *Concept) Node() hierarchy.NodeID { return c.node }

// Kind implements domain.Value.
func (*Concept) Kind() string { return "concept" }

// String implements domain.Value.
func (c *Concept) String() string { return c.name }

// Compare implements domain.Value.
//
// Concepts are ordered by subsumption: c < o when c lies strictly below o.
// Overlaps holds when the two share a descendant, Contains when o lies
// below c. Identity aside, concepts of different knowledge bases and
// removed concepts are Unknown.
func (c *Concept) Compare(op domain.Operator, other domain.Value) domain.Tristate {
	o, ok := other.(*Concept)
	if !ok || o == nil {
		return domain.Unknown
	}
	switch op {
	case domain.Equals:
		return domain.Of(c == o)
	case domain.NotEquals:
		return domain.Of(c != o)
	}
	if c.kb != o.kb || !c.alive() || !o.alive() {
		return domain.Unknown
	}
	h := c.kb.concepts
	switch op {
	case domain.Less:
		return domain.Of(c != o && h.IsDescendantOf(c.node, o.node))
	case domain.LessOrEqual:
		return domain.Of(h.IsDescendantOf(c.node, o.node))
	case domain.Greater:
		return domain.Of(c != o && h.IsDescendantOf(o.node, c.node))
	case domain.GreaterOrEqual:
		return domain.Of(h.IsDescendantOf(o.node, c.node))
	case domain.Overlaps:
		return domain.Of(h.HaveCommonNode(c.node, o.node, hierarchy.TowardLeaves))
	case domain.Contains:
		return domain.Of(h.IsDescendantOf(o.node, c.node))
	default:
		return domain.Unknown
	}
}

// alive reports whether the concept is still part of its knowledge base.
func (c *Concept) alive() bool {
	if c == nil || c.kb == nil {
		return false
	}
	cur, ok := c.kb.conceptNames[c.name]
	return ok && cur == c
}

// OwnValue returns the value stored directly on c for a, without any
// inheritance.
func (c *Concept) OwnValue(a *Attribute) (AttributeValue, bool) {
	av, ok := c.values[a]
	if !ok {
		return AttributeValue{}, false
	}
	return *av, true
}

// OwnAttributes returns the attributes with a value stored on c, in
// attribute definition order.
func (c *Concept) OwnAttributes() []*Attribute {
	out := make([]*Attribute, 0, len(c.values))
	for a := range c.values {
		out = append(out, a)
	}
	slices.SortFunc(out, func(x, y *Attribute) int { return cmp.Compare(x.node, y.node) })
	return out
}
