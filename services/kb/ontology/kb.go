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
	"iter"
	"log/slog"

	"github.com/AleutianAI/conceptbase/services/kb/container"
	"github.com/AleutianAI/conceptbase/services/kb/hierarchy"
)

// KnowledgeBase owns the concept and attribute hierarchies.
//
// Description:
//
//	Concepts, individuals and attributes are defined by name; every name is
//	unique within its hierarchy. Values are stored per concept and resolved
//	with GetFirst, Find and Stream.
//
// Thread Safety:
//
//	NOT safe for concurrent mutation. Read-only queries (resolution,
//	subsumption, lookups) may run concurrently while no writer is active.
//
// Example:
//
//	kb := ontology.New()
//	person, _ := kb.DefineConcept("Person")
//	alice, _ := kb.DefineIndividual("Alice", person)
//	age, _ := kb.DefineAttribute("age", ontology.WithDataRange("number"), ontology.Functional())
//	_ = kb.SetValue(alice, age, domain.Number(20), ontology.Local)
//	v, ok := kb.GetFirst(alice, age)
type KnowledgeBase struct {
	concepts   *hierarchy.Hierarchy[*Concept]
	attributes *hierarchy.Hierarchy[*Attribute]

	conceptNames   map[string]*Concept
	attributeNames map[string]*Attribute

	derived []*DerivedConcept

	options Options
	logger  *slog.Logger
}

// New creates an empty knowledge base.
func New(opts ...Option) *KnowledgeBase {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("kb", options.Name))

	kb := &KnowledgeBase{
		conceptNames:   make(map[string]*Concept),
		attributeNames: make(map[string]*Attribute),
		options:        options,
		logger:         logger,
	}
	kb.concepts = hierarchy.New(
		func(c *Concept) bool { return c.individual },
		hierarchy.WithName(options.Name+".concepts"),
		hierarchy.WithMaxNodes(options.MaxConcepts),
		hierarchy.WithCycleCheckOnInsert(options.CheckCyclesOnInsert),
		hierarchy.WithLogger(logger),
	)
	kb.attributes = hierarchy.New[*Attribute](nil,
		hierarchy.WithName(options.Name+".attributes"),
		hierarchy.WithCycleCheckOnInsert(options.CheckCyclesOnInsert),
		hierarchy.WithLogger(logger),
	)
	kb.concepts.OnNodeEvent(kb.onConceptNode)

	return kb
}

// Name returns the configured name.
func (kb *KnowledgeBase) Name() string { return kb.options.Name }

// Options returns the effective options.
func (kb *KnowledgeBase) Options() Options { return kb.options }

// ConceptHierarchy exposes the concept hierarchy for read-only traversal.
// Mutating it directly bypasses the knowledge base's bookkeeping.
func (kb *KnowledgeBase) ConceptHierarchy() *hierarchy.Hierarchy[*Concept] {
	return kb.concepts
}

// AttributeHierarchy exposes the attribute hierarchy for read-only
// traversal.
func (kb *KnowledgeBase) AttributeHierarchy() *hierarchy.Hierarchy[*Attribute] {
	return kb.attributes
}

func (kb *KnowledgeBase) owns(c *Concept) bool {
	return c != nil && c.kb == kb && c.alive()
}

func (kb *KnowledgeBase) ownsAttribute(a *Attribute) bool {
	return a != nil && a.kb == kb && kb.attributeNames[a.name] == a
}

// DefineConcept returns the concept with the given name, creating it
// below supers if needed.
//
// Description:
//
//	Idempotent by name. When the concept exists, missing super-concept
//	edges are added. A concept without supers is a root.
//
// Outputs:
//
//	*Concept - The concept.
//	error - ErrDuplicateName if name is an individual, ErrIndividualSuper,
//	        ErrUnknownConcept, or a hierarchy error.
func (kb *KnowledgeBase) DefineConcept(name string, supers ...*Concept) (*Concept, error) {
	return kb.define(name, false, supers)
}

// DefineIndividual is DefineConcept for individuals (leaf concepts).
func (kb *KnowledgeBase) DefineIndividual(name string, supers ...*Concept) (*Concept, error) {
	return kb.define(name, true, supers)
}

func (kb *KnowledgeBase) define(name string, individual bool, supers []*Concept) (*Concept, error) {
	for _, s := range supers {
		if !kb.owns(s) {
			return nil, fmt.Errorf("%w: super of %q", ErrUnknownConcept, name)
		}
		if s.individual {
			return nil, fmt.Errorf("%w: %q", ErrIndividualSuper, s.name)
		}
	}

	c, exists := kb.conceptNames[name]
	if exists {
		if c.individual != individual {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	} else {
		c = &Concept{
			name:       name,
			individual: individual,
			kb:         kb,
			values:     make(map[*Attribute]*AttributeValue),
		}
		id, err := kb.concepts.AddNode(c)
		if err != nil {
			return nil, fmt.Errorf("defining %q: %w", name, err)
		}
		c.node = id
		kb.conceptNames[name] = c
		kb.logger.Debug("concept defined",
			slog.String("concept", name),
			slog.Bool("individual", individual),
		)
	}

	for _, s := range supers {
		if err := kb.concepts.AddSubnode(s.node, c.node); err != nil {
			return nil, fmt.Errorf("defining %q below %q: %w", name, s.name, err)
		}
	}
	return c, nil
}

// AddSuper adds the edge super -> c.
func (kb *KnowledgeBase) AddSuper(c, super *Concept) error {
	if !kb.owns(c) || !kb.owns(super) {
		return ErrUnknownConcept
	}
	if super.individual {
		return fmt.Errorf("%w: %q", ErrIndividualSuper, super.name)
	}
	return kb.concepts.AddSubnode(super.node, c.node)
}

// RemoveSuper removes the edge super -> c. A concept losing its last super
// becomes a root.
func (kb *KnowledgeBase) RemoveSuper(c, super *Concept) error {
	if !kb.owns(c) || !kb.owns(super) {
		return ErrUnknownConcept
	}
	return kb.concepts.RemoveSubnode(super.node, c.node)
}

// Concept looks up a concept by name.
func (kb *KnowledgeBase) Concept(name string) (*Concept, bool) {
	c, ok := kb.conceptNames[name]
	return c, ok
}

// Attribute looks up an attribute by name.
func (kb *KnowledgeBase) Attribute(name string) (*Attribute, bool) {
	a, ok := kb.attributeNames[name]
	return a, ok
}

// Concepts returns all concepts in definition order.
func (kb *KnowledgeBase) Concepts() []*Concept {
	return kb.concepts.Labels()
}

// Attributes returns all attributes in definition order.
func (kb *KnowledgeBase) Attributes() []*Attribute {
	return kb.attributes.Labels()
}

// Supers returns the direct super-concepts of c.
func (kb *KnowledgeBase) Supers(c *Concept) []*Concept {
	if !kb.owns(c) {
		return nil
	}
	return kb.conceptLabels(kb.concepts.Parents(c.node))
}

// Subs returns the direct sub-concepts and individuals of c.
func (kb *KnowledgeBase) Subs(c *Concept) []*Concept {
	if !kb.owns(c) {
		return nil
	}
	return kb.conceptLabels(kb.concepts.Children(c.node))
}

// Roots returns the concepts without super-concepts.
func (kb *KnowledgeBase) Roots() []*Concept {
	return kb.conceptLabels(kb.concepts.Roots())
}

// Subsumes reports whether specific is general or lies below it.
func (kb *KnowledgeBase) Subsumes(general, specific *Concept) bool {
	if !kb.owns(general) || !kb.owns(specific) {
		return false
	}
	return kb.concepts.IsDescendantOf(specific.node, general.node)
}

// Individuals yields every individual below c once.
func (kb *KnowledgeBase) Individuals(c *Concept) iter.Seq[*Concept] {
	if !kb.owns(c) {
		return func(func(*Concept) bool) {}
	}
	return kb.concepts.Leaves(c.node)
}

func (kb *KnowledgeBase) conceptLabels(ids []hierarchy.NodeID) []*Concept {
	out := make([]*Concept, 0, len(ids))
	for _, id := range ids {
		if c, ok := kb.concepts.Label(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// SetMetadata attaches tags, authors and free text to a concept.
func (kb *KnowledgeBase) SetMetadata(c *Concept, meta hierarchy.Metadata) error {
	if !kb.owns(c) {
		return ErrUnknownConcept
	}
	return kb.concepts.SetMetadata(c.node, meta)
}

// Metadata returns the metadata attached to a concept.
func (kb *KnowledgeBase) Metadata(c *Concept) (hierarchy.Metadata, bool) {
	if !kb.owns(c) {
		return hierarchy.Metadata{}, false
	}
	return kb.concepts.Metadata(c.node)
}

// DefineAttribute creates an attribute.
//
// Description:
//
//	Without a kind option the attribute is a data attribute accepting any
//	value kind. WithInverse links both attributes to each other.
//
// Inputs:
//
//	name - Unique attribute name.
//	opts - Kind, range, domain, relational flags and super-attributes.
//
// Outputs:
//
//	*Attribute - The new attribute.
//	error - ErrDuplicateName or ErrInvalidAttribute.
func (kb *KnowledgeBase) DefineAttribute(name string, opts ...AttributeOption) (*Attribute, error) {
	if _, exists := kb.attributeNames[name]; exists {
		return nil, fmt.Errorf("%w: attribute %q", ErrDuplicateName, name)
	}
	a := &Attribute{name: name, kind: KindData, kb: kb}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.validate(kb); err != nil {
		return nil, err
	}
	if a.inverse != nil && a.inverse.inverse != nil {
		return nil, fmt.Errorf("%w: %q already has inverse %q", ErrInvalidAttribute, a.inverse.name, a.inverse.inverse.name)
	}

	id, err := kb.attributes.AddNode(a)
	if err != nil {
		return nil, fmt.Errorf("defining attribute %q: %w", name, err)
	}
	a.node = id
	kb.attributeNames[name] = a
	for _, s := range a.supers {
		if err := kb.attributes.AddSubnode(s.node, a.node); err != nil {
			return nil, fmt.Errorf("defining attribute %q below %q: %w", name, s.name, err)
		}
	}
	if a.inverse != nil {
		a.inverse.inverse = a
	}

	kb.logger.Debug("attribute defined",
		slog.String("attribute", name),
		slog.String("kind", a.kind.String()),
	)
	return a, nil
}

// AddSuperAttribute adds the edge super -> a in the attribute hierarchy.
func (kb *KnowledgeBase) AddSuperAttribute(a, super *Attribute) error {
	if !kb.ownsAttribute(a) || !kb.ownsAttribute(super) {
		return ErrUnknownAttribute
	}
	if err := kb.attributes.AddSubnode(super.node, a.node); err != nil {
		return err
	}
	a.supers = append(a.supers, super)
	return nil
}

// SuperAttributes returns the direct super-attributes of a.
func (kb *KnowledgeBase) SuperAttributes(a *Attribute) []*Attribute {
	if !kb.ownsAttribute(a) {
		return nil
	}
	ids := kb.attributes.Parents(a.node)
	out := make([]*Attribute, 0, len(ids))
	for _, id := range ids {
		if s, ok := kb.attributes.Label(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// RemoveConcept removes c and splices its sub-concepts onto its supers.
//
// Description:
//
//	Values stored on c are dropped. References to c held by unconstrained
//	concept attributes elsewhere are removed; constrained histories keep
//	them. Removing a derived concept returns its members to its
//	super-concepts.
//
// Errors:
//
//	ErrUnknownConcept - c is not part of this knowledge base
//	ErrConceptInUse - c is an attribute domain or range, or a derived
//	                  concept's super
func (kb *KnowledgeBase) RemoveConcept(c *Concept) error {
	if !kb.owns(c) {
		return ErrUnknownConcept
	}
	if err := kb.checkUnreferenced(c); err != nil {
		return err
	}
	return kb.concepts.RemoveNode(c.node)
}

// RemoveConceptSubtree removes c and every descendant not reachable from
// another concept. It returns the names of the removed concepts.
func (kb *KnowledgeBase) RemoveConceptSubtree(c *Concept) ([]string, error) {
	if !kb.owns(c) {
		return nil, ErrUnknownConcept
	}
	if err := kb.checkUnreferenced(c); err != nil {
		return nil, err
	}
	for id := range kb.concepts.Descendants(c.node) {
		d, _ := kb.concepts.Label(id)
		if err := kb.checkUnreferenced(d); err != nil {
			return nil, err
		}
	}

	removed, err := kb.concepts.RemoveSubtree(c.node)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(removed))
	for i, r := range removed {
		names[i] = r.name
	}
	return names, nil
}

func (kb *KnowledgeBase) checkUnreferenced(c *Concept) error {
	for _, a := range kb.attributeNames {
		if a.domain == c || a.rangeConcept == c {
			return fmt.Errorf("%w: %q by attribute %q", ErrConceptInUse, c.name, a.name)
		}
	}
	for _, dc := range kb.derived {
		for _, s := range dc.supers {
			if s == c {
				return fmt.Errorf("%w: %q by derived concept %q", ErrConceptInUse, c.name, dc.concept.name)
			}
		}
	}
	return nil
}

// onConceptNode keeps name and value bookkeeping in step with the concept
// hierarchy. It runs inside hierarchy dispatch and must not mutate it.
func (kb *KnowledgeBase) onConceptNode(ev hierarchy.NodeEvent[*Concept]) {
	if ev.Change != hierarchy.Removed {
		return
	}
	c := ev.Label
	if kb.conceptNames[c.name] == c {
		delete(kb.conceptNames, c.name)
	}
	c.values = nil

	if c.derived != nil {
		for i, dc := range kb.derived {
			if dc == c.derived {
				kb.derived = append(kb.derived[:i], kb.derived[i+1:]...)
				break
			}
		}
	}

	for _, other := range kb.conceptNames {
		for a, av := range other.values {
			if a.kind != KindConcept || av.Container.Kind() == container.KindConstrained {
				continue
			}
			if n, _ := av.Container.Remove(c); n > 0 && av.Container.Len() == 0 {
				delete(other.values, a)
			}
		}
	}

	kb.logger.Debug("concept removed", slog.String("concept", c.name))
}
