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

	"github.com/AleutianAI/conceptbase/services/kb/constraint"
	"github.com/AleutianAI/conceptbase/services/kb/container"
	"github.com/AleutianAI/conceptbase/services/kb/domain"
)

// SetValue stores v as the value of a on c.
//
// Description:
//
//	The container depends on the attribute: functional attributes keep a
//	single value, or an append-only constrained history once constraints
//	are given; non-functional attributes keep a list. Assigning under a
//	different scope than the stored one replaces the stored value
//	wholesale.
//
//	For concept attributes the assignment is mirrored: symmetric
//	attributes store c on v, and an inverse attribute stores c on v under
//	the inverse.
//
// Inputs:
//
//	c - Concept receiving the value.
//	a - Data or concept attribute.
//	v - The value. Concept attributes take a *Concept.
//	scope - Local, Default or All.
//	cs - Optional constraints qualifying the value.
//
// Outputs:
//
//	error - ErrUnknownConcept, ErrUnknownAttribute, ErrComputedAttribute,
//	        ErrDomainViolation, ErrRangeViolation, or a reclassification
//	        error when AutoReposition is enabled.
func (kb *KnowledgeBase) SetValue(c *Concept, a *Attribute, v domain.Value, scope Scope, cs ...constraint.Constraint) error {
	list := constraint.List(cs)
	if err := kb.store(c, a, v, scope, list); err != nil {
		return err
	}
	if err := kb.mirror(c, a, v, func(target *Concept, attr *Attribute) error {
		return kb.store(target, attr, c, scope, list)
	}); err != nil {
		return err
	}
	return kb.afterEdit(c)
}

func (kb *KnowledgeBase) store(c *Concept, a *Attribute, v domain.Value, scope Scope, cs constraint.List) error {
	if err := kb.checkValue(c, a, v); err != nil {
		return err
	}

	want := container.KindList
	if a.functional {
		want = container.KindSingle
		if !cs.IsEmpty() {
			want = container.KindConstrained
		}
	}

	av, ok := c.values[a]
	switch {
	case !ok || av.Scope != scope:
		av = &AttributeValue{Scope: scope, Container: container.New(want)}
		c.values[a] = av
	case av.Container.Kind() == container.KindSingle && want == container.KindConstrained:
		upgraded := container.New(container.KindConstrained)
		for _, e := range av.Container.Entries() {
			upgraded.Add(e)
		}
		av.Container = upgraded
	}
	av.Container.Add(container.Entry{Value: v, Constraints: cs})

	kb.logger.Debug("value set",
		slog.String("concept", c.name),
		slog.String("attribute", a.name),
		slog.String("value", v.String()),
		slog.String("scope", scope.String()),
		slog.String("constraints", cs.String()),
	)
	return nil
}

func (kb *KnowledgeBase) checkValue(c *Concept, a *Attribute, v domain.Value) error {
	if !kb.owns(c) {
		return ErrUnknownConcept
	}
	if !kb.ownsAttribute(a) {
		return ErrUnknownAttribute
	}
	if !a.kind.Stored() {
		return fmt.Errorf("%w: %q is a %s attribute", ErrComputedAttribute, a.name, a.kind)
	}
	if v == nil {
		return fmt.Errorf("%w: nil value for %q", ErrRangeViolation, a.name)
	}
	if a.domain != nil && !kb.concepts.IsDescendantOf(c.node, a.domain.node) {
		return fmt.Errorf("%w: %q is not a %q (attribute %q)", ErrDomainViolation, c.name, a.domain.name, a.name)
	}

	target, isConcept := v.(*Concept)
	switch a.kind {
	case KindConcept:
		if !isConcept || !kb.owns(target) {
			return fmt.Errorf("%w: %q expects a concept, got %s", ErrRangeViolation, a.name, v.Kind())
		}
		if a.rangeConcept != nil && !kb.concepts.IsDescendantOf(target.node, a.rangeConcept.node) {
			return fmt.Errorf("%w: %q is not a %q", ErrRangeViolation, target.name, a.rangeConcept.name)
		}
	case KindData:
		if isConcept {
			return fmt.Errorf("%w: %q expects data, got concept %q", ErrRangeViolation, a.name, target.name)
		}
		if a.rangeKind != "" && v.Kind() != a.rangeKind {
			return fmt.Errorf("%w: %q expects %s, got %s", ErrRangeViolation, a.name, a.rangeKind, v.Kind())
		}
	}
	return nil
}

// mirror applies fn to the symmetric and inverse counterparts of c a v.
func (kb *KnowledgeBase) mirror(c *Concept, a *Attribute, v domain.Value, fn func(*Concept, *Attribute) error) error {
	if a.kind != KindConcept {
		return nil
	}
	target, ok := v.(*Concept)
	if !ok {
		return nil
	}
	if a.symmetric && target != c {
		if err := fn(target, a); err != nil {
			return fmt.Errorf("mirroring symmetric %q: %w", a.name, err)
		}
	}
	if a.inverse != nil {
		if err := fn(target, a.inverse); err != nil {
			return fmt.Errorf("mirroring inverse %q: %w", a.inverse.name, err)
		}
	}
	return nil
}

// RemoveValue deletes stored values of a on c equal to v and returns how
// many were removed. Mirrored values are removed too.
//
// Constrained histories are append-only and report container.ErrAppendOnly;
// use ClearValue to drop them.
func (kb *KnowledgeBase) RemoveValue(c *Concept, a *Attribute, v domain.Value) (int, error) {
	n, err := kb.remove(c, a, v)
	if err != nil || n == 0 {
		return n, err
	}
	if err := kb.mirror(c, a, v, func(target *Concept, attr *Attribute) error {
		_, err := kb.remove(target, attr, c)
		return err
	}); err != nil {
		return n, err
	}
	return n, kb.afterEdit(c)
}

func (kb *KnowledgeBase) remove(c *Concept, a *Attribute, v domain.Value) (int, error) {
	if !kb.owns(c) {
		return 0, ErrUnknownConcept
	}
	if !kb.ownsAttribute(a) {
		return 0, ErrUnknownAttribute
	}
	av, ok := c.values[a]
	if !ok {
		return 0, nil
	}
	n, err := av.Container.Remove(v)
	if err != nil {
		return 0, fmt.Errorf("removing %q from %q: %w", a.name, c.name, err)
	}
	if av.Container.Len() == 0 {
		delete(c.values, a)
	}
	return n, nil
}

// ClearValue drops everything stored for a on c, whatever its scope or
// container, and removes the mirrored values. It reports whether anything
// was stored.
func (kb *KnowledgeBase) ClearValue(c *Concept, a *Attribute) (bool, error) {
	if !kb.owns(c) {
		return false, ErrUnknownConcept
	}
	if !kb.ownsAttribute(a) {
		return false, ErrUnknownAttribute
	}
	av, ok := c.values[a]
	if !ok {
		return false, nil
	}
	delete(c.values, a)

	for _, e := range av.Container.Entries() {
		err := kb.mirror(c, a, e.Value, func(target *Concept, attr *Attribute) error {
			tav, ok := target.values[attr]
			if !ok {
				return nil
			}
			if tav.Container.Kind() == container.KindConstrained {
				delete(target.values, attr)
				return nil
			}
			_, err := kb.remove(target, attr, c)
			return err
		})
		if err != nil {
			return true, err
		}
	}
	return true, kb.afterEdit(c)
}

// afterEdit repositions c when AutoReposition is enabled.
func (kb *KnowledgeBase) afterEdit(c *Concept) error {
	if !kb.options.AutoReposition || len(kb.derived) == 0 {
		return nil
	}
	return kb.RepositionConcept(context.Background(), c)
}
