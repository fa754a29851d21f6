// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domain defines the concrete-value boundary used by attribute
// values and constraints.
//
// Every stored value implements Value, whose Compare method is
// three-valued: an operator that does not apply to a pair of kinds yields
// Unknown rather than False. Number, Text, Boolean, Interval and Time are
// the built-in kinds; other packages may add their own (concepts are
// values too).
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for value parsing.
var (
	// ErrUnknownOperator is returned when an operator name cannot be parsed.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrUnsupportedValue is returned when a raw value has no domain kind.
	ErrUnsupportedValue = errors.New("unsupported value")
)

// Operator is a comparison operator.
type Operator int

const (
	Equals         Operator = iota // ==
	NotEquals                      // !=
	Less                           // <
	LessOrEqual                    // <=
	Greater                        // >
	GreaterOrEqual                 // >=
	Overlaps                       // intervals share a point
	Contains                       // left holds right
)

var operatorNames = map[Operator]string{
	Equals:         "==",
	NotEquals:      "!=",
	Less:           "<",
	LessOrEqual:    "<=",
	Greater:        ">",
	GreaterOrEqual: ">=",
	Overlaps:       "overlaps",
	Contains:       "contains",
}

// String returns the symbolic form of the operator.
func (o Operator) String() string {
	if s, ok := operatorNames[o]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsEquality reports whether o is Equals.
func (o Operator) IsEquality() bool {
	return o == Equals
}

// ParseOperator accepts symbolic ("<=") and word ("less_or_equal") forms,
// case-insensitively.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "==", "=", "eq", "equals":
		return Equals, nil
	case "!=", "ne", "not_equals":
		return NotEquals, nil
	case "<", "lt", "less":
		return Less, nil
	case "<=", "le", "less_or_equal":
		return LessOrEqual, nil
	case ">", "gt", "greater":
		return Greater, nil
	case ">=", "ge", "greater_or_equal":
		return GreaterOrEqual, nil
	case "overlaps":
		return Overlaps, nil
	case "contains":
		return Contains, nil
	default:
		return Equals, fmt.Errorf("%w: %q", ErrUnknownOperator, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Operator) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operator) UnmarshalText(b []byte) error {
	op, err := ParseOperator(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Tristate is a three-valued truth value.
type Tristate int

const (
	Unknown Tristate = iota
	False
	True
)

// String returns the string representation of the Tristate.
func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Of converts a bool to True or False.
func Of(b bool) Tristate {
	if b {
		return True
	}
	return False
}

// Not negates t, leaving Unknown unchanged.
func (t Tristate) Not() Tristate {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// Value is a stored attribute value.
//
// Compare evaluates "receiver op other". Implementations return Unknown
// when op is not defined for the pair of kinds.
type Value interface {
	Compare(op Operator, other Value) Tristate
	Kind() string
	String() string
}

// Satisfies reports whether v op other is definitely true.
func Satisfies(v Value, op Operator, other Value) bool {
	if v == nil || other == nil {
		return false
	}
	return v.Compare(op, other) == True
}

// Equal reports whether a and b compare equal.
func Equal(a, b Value) bool {
	return Satisfies(a, Equals, b)
}

// compareOrdered maps a three-way comparison result onto op.
func compareOrdered(op Operator, cmp int) Tristate {
	switch op {
	case Equals:
		return Of(cmp == 0)
	case NotEquals:
		return Of(cmp != 0)
	case Less:
		return Of(cmp < 0)
	case LessOrEqual:
		return Of(cmp <= 0)
	case Greater:
		return Of(cmp > 0)
	case GreaterOrEqual:
		return Of(cmp >= 0)
	default:
		return Unknown
	}
}
