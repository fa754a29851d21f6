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
	"log/slog"

	"github.com/AleutianAI/conceptbase/services/kb/constraint"
	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
)

// Export renders kb as a document that Apply can replay.
//
// Description:
//
//	Classification is not exported: a concept placed below a derived
//	concept lists that derived concept's supers instead, and Apply
//	reclassifies it. Mirrored values (symmetric and inverse) are written
//	once. Function attributes, attributes depending on them, aggregates
//	with unregistered reducers, and derived concepts without a clause
//	source cannot be expressed and are skipped with a warning.
//
// Thread Safety:
//
//	Reads kb; callers must exclude concurrent writers.
func Export(kb *ontology.KnowledgeBase) *Document {
	doc := &Document{Name: kb.Name()}

	for _, c := range kb.Concepts() {
		if c.Derived() != nil {
			continue
		}
		e := ConceptEntry{Name: c.Name(), Individual: c.IsIndividual()}
		for _, s := range declassified(kb, kb.Supers(c)) {
			e.Supers = append(e.Supers, s.Name())
		}
		if meta, ok := kb.Metadata(c); ok {
			m := meta
			e.Meta = &m
		}
		doc.Concepts = append(doc.Concepts, e)
	}

	emitted := make(map[*ontology.Attribute]bool)
	for _, a := range kb.Attributes() {
		e, ok := exportAttribute(kb, a, emitted)
		if !ok {
			slog.Warn("attribute not exportable",
				slog.String("attribute", a.Name()),
				slog.String("kind", a.Kind().String()),
			)
			continue
		}
		emitted[a] = true
		doc.Attributes = append(doc.Attributes, e)
	}

	for _, dc := range kb.DerivedConcepts() {
		where, ok := dc.FilterSource().([]Clause)
		if !ok || len(where) == 0 {
			slog.Warn("derived concept has no clause source",
				slog.String("derived", dc.Name()),
			)
			continue
		}
		e := DerivedEntry{Name: dc.Name(), Where: append([]Clause(nil), where...)}
		for _, s := range dc.Supers() {
			e.Supers = append(e.Supers, s.Name())
		}
		doc.Derived = append(doc.Derived, e)
	}

	doc.Values = exportValues(kb, emitted)
	return doc
}

// declassified replaces derived concepts in supers by their own supers,
// recursively, keeping first-seen order.
func declassified(kb *ontology.KnowledgeBase, supers []*ontology.Concept) []*ontology.Concept {
	var out []*ontology.Concept
	seen := make(map[*ontology.Concept]bool)
	var visit func(*ontology.Concept)
	visit = func(c *ontology.Concept) {
		if dc := c.Derived(); dc != nil {
			for _, s := range dc.Supers() {
				visit(s)
			}
			return
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, s := range supers {
		visit(s)
	}
	return out
}

func exportAttribute(kb *ontology.KnowledgeBase, a *ontology.Attribute, emitted map[*ontology.Attribute]bool) (AttributeEntry, bool) {
	e := AttributeEntry{
		Name:       a.Name(),
		Kind:       a.Kind().String(),
		Functional: a.IsFunctional() && a.Kind().Stored(),
		Reflexive:  a.IsReflexive(),
		Symmetric:  a.IsSymmetric(),
		Transitive: a.IsTransitive(),
	}

	switch a.Kind() {
	case ontology.KindFunction:
		return e, false
	case ontology.KindData:
		e.Range = a.RangeKind()
	case ontology.KindConcept:
		if r := a.RangeConcept(); r != nil {
			e.Range = r.Name()
		}
	case ontology.KindChain:
		for _, step := range a.Chain() {
			if !emitted[step] {
				return e, false
			}
			e.Chain = append(e.Chain, step.Name())
		}
	case ontology.KindAggregate:
		if _, ok := ontology.Reducers[a.Aggregation()]; !ok || !emitted[a.Source()] {
			return e, false
		}
		e.Source = a.Source().Name()
		e.Reduce = a.Aggregation()
	}

	if d := a.Domain(); d != nil {
		e.Domain = d.Name()
	}
	for _, s := range kb.SuperAttributes(a) {
		if !emitted[s] {
			return e, false
		}
		e.Supers = append(e.Supers, s.Name())
	}
	// The inverse link is recorded on whichever side is defined second.
	if inv := a.Inverse(); inv != nil && emitted[inv] {
		e.Inverse = inv.Name()
	}
	return e, true
}

type assignment struct {
	concept   *ontology.Concept
	attribute *ontology.Attribute
	value     *ontology.Concept
}

func exportValues(kb *ontology.KnowledgeBase, emitted map[*ontology.Attribute]bool) []ValueEntry {
	var out []ValueEntry
	written := make(map[assignment]bool)

	for _, c := range kb.Concepts() {
		for _, a := range c.OwnAttributes() {
			if !emitted[a] {
				continue
			}
			av, ok := c.OwnValue(a)
			if !ok {
				continue
			}
			for _, entry := range av.Container.Entries() {
				if target, ok := entry.Value.(*ontology.Concept); ok {
					if a.IsSymmetric() && written[assignment{target, a, c}] {
						continue
					}
					if inv := a.Inverse(); inv != nil && written[assignment{target, inv, c}] {
						continue
					}
					written[assignment{c, a, target}] = true
				}
				out = append(out, ValueEntry{
					Concept:     c.Name(),
					Attribute:   a.Name(),
					Value:       EncodeValue(entry.Value),
					Scope:       scopeName(av.Scope),
					Constraints: Clauses(entry.Constraints),
				})
			}
		}
	}
	return out
}

// EncodeValue converts a value into its document form: concepts become
// their names, built-in kinds become plain YAML/JSON values.
func EncodeValue(v domain.Value) any {
	if c, ok := v.(*ontology.Concept); ok {
		return c.Name()
	}
	return domain.ToAny(v)
}

func scopeName(s ontology.Scope) string {
	if s == ontology.Local {
		return ""
	}
	return s.String()
}

// Clauses converts a constraint list back into clauses, the inverse of
// Constraints.
func Clauses(cs constraint.List) []Clause {
	if cs.IsEmpty() {
		return nil
	}
	out := make([]Clause, len(cs))
	for i, c := range cs {
		out[i] = Clause{Attribute: c.Attribute, Op: c.Op.String(), Value: domain.ToAny(c.Value)}
	}
	return out
}
