// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ontology implements concepts, attributes and scoped attribute
// resolution on top of two hierarchies.
//
// A KnowledgeBase owns a concept hierarchy (concepts are inner nodes,
// individuals are leaves) and an attribute hierarchy (sub/super
// attributes). Each concept stores only the values set directly on it.
// Resolution combines both hierarchies in three tiers:
//
//  1. Local values on the concept, over the attribute and its
//     sub-attributes.
//  2. All-scoped values on the concept and every ancestor, concatenated.
//  3. The first Default-scoped value found on a strict ancestor.
//
// Derived concepts are concepts defined by super-concepts and a filter.
// RestructureHierarchy places matching concepts under them once;
// RepositionConcept keeps a single concept's placement current after its
// data changes.
//
// # Thread Safety
//
// A KnowledgeBase is NOT safe for concurrent mutation. Resolution queries
// are read-only and may run concurrently while no writer is active.
package ontology

import (
	"errors"
	"fmt"
)

// Sentinel errors for knowledge base operations.
var (
	// ErrUnknownConcept is returned when a concept is nil or not part of
	// this knowledge base.
	ErrUnknownConcept = errors.New("unknown concept")

	// ErrUnknownAttribute is returned when an attribute is nil or not part
	// of this knowledge base.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrDuplicateName is returned when a name is reused for a different
	// kind of element.
	ErrDuplicateName = errors.New("name already defined")

	// ErrIndividualSuper is returned when an individual is used as a
	// super-concept. Individuals are leaves of the concept hierarchy.
	ErrIndividualSuper = errors.New("individual cannot be a super-concept")

	// ErrInvalidAttribute is returned when attribute options are
	// inconsistent, e.g. a symmetric data attribute.
	ErrInvalidAttribute = errors.New("invalid attribute definition")

	// ErrComputedAttribute is returned when storing a value for a chain,
	// function or aggregate attribute.
	ErrComputedAttribute = errors.New("attribute values are computed")

	// ErrDomainViolation is returned when a concept outside the attribute's
	// domain receives a value.
	ErrDomainViolation = errors.New("concept outside attribute domain")

	// ErrRangeViolation is returned when a value does not fit the
	// attribute's range.
	ErrRangeViolation = errors.New("value outside attribute range")

	// ErrConceptInUse is returned when removing a concept that an
	// attribute or derived concept still refers to.
	ErrConceptInUse = errors.New("concept is still referenced")

	// ErrInvalidDerived is returned when a derived concept has no
	// super-concepts or no filter.
	ErrInvalidDerived = errors.New("invalid derived concept definition")

	// ErrReclassificationLimit is returned when repositioning a concept
	// does not settle within the configured number of passes.
	ErrReclassificationLimit = errors.New("reclassification did not reach a fixpoint")
)

// ReclassificationError reports which concept failed to settle.
type ReclassificationError struct {
	Concept string
	Passes  int
}

// Error returns the error message.
func (e *ReclassificationError) Error() string {
	return fmt.Sprintf("reclassifying %q: no fixpoint after %d passes", e.Concept, e.Passes)
}

// Unwrap returns ErrReclassificationLimit so callers can use errors.Is.
func (e *ReclassificationError) Unwrap() error {
	return ErrReclassificationLimit
}
