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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/conceptbase/services/kb/constraint"
	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
)

// Summary counts what Apply created.
type Summary struct {
	Concepts   int `json:"concepts"`
	Attributes int `json:"attributes"`
	Derived    int `json:"derived"`
	Values     int `json:"values"`
	Classified int `json:"classified"`
}

// Apply replays doc against kb.
//
// Description:
//
//	Concepts are defined first, then their super-concept edges, so a
//	concept may name a super that appears later in the list. Attributes,
//	derived concepts and values follow in that order; an attribute may
//	only refer to attributes listed before it. When the document has
//	derived concepts, RestructureAll classifies the result.
//
//	Apply stops at the first failing entry. Entries applied before it
//	remain in kb.
//
// Inputs:
//
//	ctx - Tracing and cancellation for the restructure step.
//	kb - Target knowledge base.
//	doc - A decoded document.
//
// Outputs:
//
//	Summary - What was applied.
//	error - ErrUnresolved, or an ontology error naming the failing entry.
func Apply(ctx context.Context, kb *ontology.KnowledgeBase, doc *Document) (Summary, error) {
	ctx, span := tracer.Start(ctx, "document.Apply", trace.WithAttributes(
		attribute.String("kb.name", kb.Name()),
		attribute.Int("document.concepts", len(doc.Concepts)),
		attribute.Int("document.values", len(doc.Values)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		documentLoadDuration.Observe(time.Since(start).Seconds())
	}()

	var sum Summary
	fail := func(stage string, err error) (Summary, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage+" failed")
		documentLoadErrors.WithLabelValues(stage).Inc()
		documentLoads.WithLabelValues("error").Inc()
		return sum, err
	}

	if err := applyConcepts(kb, doc.Concepts, &sum); err != nil {
		return fail("concepts", err)
	}
	for i, e := range doc.Attributes {
		if err := applyAttribute(kb, e); err != nil {
			return fail("attributes", fmt.Errorf("attributes[%d] %q: %w", i, e.Name, err))
		}
		sum.Attributes++
	}
	for i, e := range doc.Derived {
		if err := applyDerived(kb, e); err != nil {
			return fail("derived", fmt.Errorf("derived[%d] %q: %w", i, e.Name, err))
		}
		sum.Derived++
	}
	for i, e := range doc.Values {
		if err := applyValue(kb, e); err != nil {
			return fail("values", fmt.Errorf("values[%d] %s.%s: %w", i, e.Concept, e.Attribute, err))
		}
		sum.Values++
	}
	if len(doc.Derived) > 0 {
		n, err := kb.RestructureAll(ctx)
		sum.Classified = n
		if err != nil {
			return fail("restructure", err)
		}
	}

	span.SetAttributes(
		attribute.Int("document.classified", sum.Classified),
	)
	documentLoads.WithLabelValues("ok").Inc()
	slog.Info("document applied",
		slog.String("kb", kb.Name()),
		slog.Int("concepts", sum.Concepts),
		slog.Int("attributes", sum.Attributes),
		slog.Int("derived", sum.Derived),
		slog.Int("values", sum.Values),
		slog.Int("classified", sum.Classified),
	)
	return sum, nil
}

func applyConcepts(kb *ontology.KnowledgeBase, entries []ConceptEntry, sum *Summary) error {
	for i, e := range entries {
		var err error
		if e.Individual {
			_, err = kb.DefineIndividual(e.Name)
		} else {
			_, err = kb.DefineConcept(e.Name)
		}
		if err != nil {
			return fmt.Errorf("concepts[%d] %q: %w", i, e.Name, err)
		}
		sum.Concepts++
	}
	for i, e := range entries {
		c, _ := kb.Concept(e.Name)
		for _, name := range e.Supers {
			s, err := lookupConcept(kb, name)
			if err != nil {
				return fmt.Errorf("concepts[%d] %q: %w", i, e.Name, err)
			}
			if err := kb.AddSuper(c, s); err != nil {
				return fmt.Errorf("concepts[%d] %q: %w", i, e.Name, err)
			}
		}
		if e.Meta != nil {
			if err := kb.SetMetadata(c, *e.Meta); err != nil {
				return fmt.Errorf("concepts[%d] %q: %w", i, e.Name, err)
			}
		}
	}
	return nil
}

func applyAttribute(kb *ontology.KnowledgeBase, e AttributeEntry) error {
	var opts []ontology.AttributeOption

	switch e.Kind {
	case "", "data":
		opts = append(opts, ontology.WithDataRange(e.Range))
	case "concept":
		var rng *ontology.Concept
		if e.Range != "" {
			c, err := lookupConcept(kb, e.Range)
			if err != nil {
				return err
			}
			rng = c
		}
		opts = append(opts, ontology.WithConceptRange(rng))
	case "chain":
		path := make([]*ontology.Attribute, len(e.Chain))
		for i, name := range e.Chain {
			a, err := lookupAttribute(kb, name)
			if err != nil {
				return err
			}
			path[i] = a
		}
		opts = append(opts, ontology.AsChain(path...))
	case "aggregate":
		src, err := lookupAttribute(kb, e.Source)
		if err != nil {
			return err
		}
		opts = append(opts, ontology.AsAggregate(src, e.Reduce, ontology.Reducers[e.Reduce]))
	}

	if e.Domain != "" {
		c, err := lookupConcept(kb, e.Domain)
		if err != nil {
			return err
		}
		opts = append(opts, ontology.WithDomain(c))
	}
	for _, name := range e.Supers {
		s, err := lookupAttribute(kb, name)
		if err != nil {
			return err
		}
		opts = append(opts, ontology.WithSuperAttributes(s))
	}
	if e.Inverse != "" {
		inv, err := lookupAttribute(kb, e.Inverse)
		if err != nil {
			return err
		}
		opts = append(opts, ontology.WithInverse(inv))
	}
	if e.Functional {
		opts = append(opts, ontology.Functional())
	}
	if e.Reflexive {
		opts = append(opts, ontology.Reflexive())
	}
	if e.Symmetric {
		opts = append(opts, ontology.Symmetric())
	}
	if e.Transitive {
		opts = append(opts, ontology.Transitive())
	}

	_, err := kb.DefineAttribute(e.Name, opts...)
	return err
}

func applyDerived(kb *ontology.KnowledgeBase, e DerivedEntry) error {
	_, err := DefineDerived(kb, e)
	return err
}

// DefineDerived defines the derived concept described by e. The where
// clauses are kept as the filter source so Export can write them back.
// Existing concepts are not reclassified.
func DefineDerived(kb *ontology.KnowledgeBase, e DerivedEntry) (*ontology.DerivedConcept, error) {
	supers := make([]*ontology.Concept, len(e.Supers))
	for i, name := range e.Supers {
		c, err := lookupConcept(kb, name)
		if err != nil {
			return nil, err
		}
		supers[i] = c
	}
	filter, err := CompileFilter(kb, e.Where)
	if err != nil {
		return nil, err
	}
	src := append([]Clause(nil), e.Where...)
	return kb.DefineDerivedConcept(e.Name, supers, filter, ontology.WithFilterSource(src))
}

// CompileFilter turns where clauses into a conjunctive ontology.Filter.
//
// Description:
//
//	Each clause holds for a concept when some value of the attribute
//	satisfies "value op operand". Operands of concept attributes are
//	concept names.
//
// Outputs:
//
//	ontology.Filter - The compiled filter.
//	error - ErrUnresolved, domain.ErrUnknownOperator or
//	        domain.ErrUnsupportedValue.
func CompileFilter(kb *ontology.KnowledgeBase, clauses []Clause) (ontology.Filter, error) {
	filters := make([]ontology.Filter, len(clauses))
	for i, cl := range clauses {
		a, err := lookupAttribute(kb, cl.Attribute)
		if err != nil {
			return nil, err
		}
		op, err := domain.ParseOperator(cl.Op)
		if err != nil {
			return nil, err
		}
		operand, err := ValueFor(kb, a, cl.Value)
		if err != nil {
			return nil, fmt.Errorf("clause %d: %w", i, err)
		}
		filters[i] = ontology.Where(a, op, operand)
	}
	return ontology.And(filters...), nil
}

func applyValue(kb *ontology.KnowledgeBase, e ValueEntry) error {
	c, err := lookupConcept(kb, e.Concept)
	if err != nil {
		return err
	}
	a, err := lookupAttribute(kb, e.Attribute)
	if err != nil {
		return err
	}
	v, err := ValueFor(kb, a, e.Value)
	if err != nil {
		return err
	}
	scope, err := ontology.ParseScope(e.Scope)
	if err != nil {
		return err
	}
	cs, err := Constraints(e.Constraints)
	if err != nil {
		return err
	}
	return kb.SetValue(c, a, v, scope, cs...)
}

// Constraints converts clauses into a constraint list. Constraint
// attributes are free names and need not be defined attributes.
func Constraints(clauses []Clause) (constraint.List, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	out := make(constraint.List, len(clauses))
	for i, cl := range clauses {
		op, err := domain.ParseOperator(cl.Op)
		if err != nil {
			return nil, err
		}
		v, err := domain.FromAny(cl.Value)
		if err != nil {
			return nil, fmt.Errorf("constraint %q: %w", cl.Attribute, err)
		}
		out[i] = constraint.Constraint{Attribute: cl.Attribute, Op: op, Value: v}
	}
	return out, nil
}

// ValueFor converts a raw decoded value (YAML or JSON) for attribute a.
// Concept attributes take a concept name.
func ValueFor(kb *ontology.KnowledgeBase, a *ontology.Attribute, raw any) (domain.Value, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: missing value", domain.ErrUnsupportedValue)
	}
	if a.Kind() == ontology.KindConcept {
		name, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %q expects a concept name, got %T", domain.ErrUnsupportedValue, a.Name(), raw)
		}
		return lookupConcept(kb, name)
	}
	return domain.FromAny(raw)
}

// ParseScalar decodes a single YAML scalar such as "3", "2.5" or
// "true" into its natural Go type, for values that arrive
// as plain strings (query parameters, CLI flags). Input that is not a
// valid scalar is returned unchanged.
func ParseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	if _, isMap := v.(map[string]any); isMap {
		return s
	}
	return v
}

func lookupConcept(kb *ontology.KnowledgeBase, name string) (*ontology.Concept, error) {
	c, ok := kb.Concept(name)
	if !ok {
		return nil, fmt.Errorf("%w: concept %q", ErrUnresolved, name)
	}
	return c, nil
}

func lookupAttribute(kb *ontology.KnowledgeBase, name string) (*ontology.Attribute, error) {
	a, ok := kb.Attribute(name)
	if !ok {
		return nil, fmt.Errorf("%w: attribute %q", ErrUnresolved, name)
	}
	return a, nil
}

// ReadFile reads and decodes a document file.
//
// Outputs:
//
//	*Document - The decoded document.
//	error - ErrDocumentTooLarge, a file error, or a Decode error.
func ReadFile(ctx context.Context, path string) (*Document, error) {
	_, span := tracer.Start(ctx, "document.ReadFile",
		trace.WithAttributes(attribute.String("path", path)),
	)
	defer span.End()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		documentLoadErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if info.Size() > MaxDocumentSize {
		documentLoadErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrDocumentTooLarge, info.Size(), MaxDocumentSize)
	}
	span.SetAttributes(attribute.Int64("file_size", info.Size()))

	data, err := os.ReadFile(absPath)
	if err != nil {
		documentLoadErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("reading document: %w", err)
	}
	doc, err := Decode(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		documentLoadErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Load reads the document at path into a new knowledge base.
//
// Description:
//
//	The document's name, if set, becomes the knowledge base name unless
//	opts override it.
//
// Example:
//
//	kb, sum, err := document.Load(ctx, "campus.yaml", ontology.WithLogger(logger))
//	if err != nil {
//	    return fmt.Errorf("loading knowledge base: %w", err)
//	}
func Load(ctx context.Context, path string, opts ...ontology.Option) (*ontology.KnowledgeBase, Summary, error) {
	doc, err := ReadFile(ctx, path)
	if err != nil {
		return nil, Summary{}, err
	}
	if doc.Name != "" {
		opts = append([]ontology.Option{ontology.WithName(doc.Name)}, opts...)
	}
	kb := ontology.New(opts...)
	sum, err := Apply(ctx, kb, doc)
	if err != nil {
		return nil, sum, fmt.Errorf("%s: %w", path, err)
	}
	return kb, sum, nil
}
