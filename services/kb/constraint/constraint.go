// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package constraint provides constraint lists that qualify when an
// attribute value applies, and the implication order between them.
package constraint

import (
	"strings"

	"github.com/AleutianAI/conceptbase/services/kb/domain"
)

// Constraint is one (attribute, operator, value) triple, e.g. year == 2020.
type Constraint struct {
	Attribute string
	Op        domain.Operator
	Value     domain.Value
}

// Eq builds an equality constraint.
func Eq(attribute string, v domain.Value) Constraint {
	return Constraint{Attribute: attribute, Op: domain.Equals, Value: v}
}

// String returns "attribute op value".
func (c Constraint) String() string {
	v := "<nil>"
	if c.Value != nil {
		v = c.Value.String()
	}
	return c.Attribute + " " + c.Op.String() + " " + v
}

// List is an ordered set of constraints, read conjunctively.
//
// The zero value is the empty, unconstrained list.
type List []Constraint

// Of returns a list holding cs.
func Of(cs ...Constraint) List {
	return List(cs)
}

// IsEmpty reports whether the list has no constraints.
func (l List) IsEmpty() bool {
	return len(l) == 0
}

// EqualityOnly reports whether every constraint uses Equals.
// The empty list is equality-only.
func (l List) EqualityOnly() bool {
	for _, c := range l {
		if !c.Op.IsEquality() {
			return false
		}
	}
	return true
}

// Lookup returns the constraints on the given attribute.
func (l List) Lookup(attribute string) []Constraint {
	var out []Constraint
	for _, c := range l {
		if c.Attribute == attribute {
			out = append(out, c)
		}
	}
	return out
}

// Implies reports whether every value qualified by l is also qualified by
// other.
//
// Description:
//
//	The empty list constrains nothing and implies every list, and every
//	list implies the empty list. Otherwise,
//	for each triple in other, l must pin the triple's attribute and every
//	value it pins must compare True against the triple's value under the
//	triple's operator. An attribute l is silent on, or a comparison that
//	is Unknown, makes the result false.
//
//	Implication is only decided for equality-only receivers. A receiver
//	with any other operator reports false.
//
// Example:
//
//	List{}.Implies(Of(Eq("year", Number(2020))))                              // true
//	Of(Eq("age", Number(20))).Implies(Of(Constraint{"age", Less, Number(30)})) // true
//	Of(Eq("age", Number(20))).Implies(Of(Eq("height", Number(180))))           // false
func (l List) Implies(other List) bool {
	if len(l) == 0 || len(other) == 0 {
		return true
	}
	if !l.EqualityOnly() {
		return false
	}
	for _, want := range other {
		pinned := l.Lookup(want.Attribute)
		if len(pinned) == 0 {
			return false
		}
		for _, have := range pinned {
			if !domain.Satisfies(have.Value, want.Op, want.Value) {
				return false
			}
		}
	}
	return true
}

// String returns the constraints joined by " and ".
func (l List) String() string {
	if len(l) == 0 {
		return "{}"
	}
	parts := make([]string, len(l))
	for i, c := range l {
		parts[i] = c.String()
	}
	return "{" + strings.Join(parts, " and ") + "}"
}
