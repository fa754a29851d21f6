// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domain

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Number is a real-valued value.
type Number float64

// Kind implements Value.
func (Number) Kind() string { return "number" }

// String implements Value.
func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

// Compare implements Value. Numbers compare with numbers; Overlaps with an
// interval tests membership.
func (n Number) Compare(op Operator, other Value) Tristate {
	switch o := other.(type) {
	case Number:
		return compareOrdered(op, cmp.Compare(n, o))
	case Interval:
		if op == Overlaps {
			return o.Compare(Contains, n)
		}
	}
	return Unknown
}

// Text is a string value.
type Text string

// Kind implements Value.
func (Text) Kind() string { return "text" }

// String implements Value.
func (t Text) String() string { return string(t) }

// Compare implements Value. Ordering is lexicographic; Contains tests for
// a substring.
func (t Text) Compare(op Operator, other Value) Tristate {
	o, ok := other.(Text)
	if !ok {
		return Unknown
	}
	if op == Contains {
		return Of(strings.Contains(string(t), string(o)))
	}
	return compareOrdered(op, strings.Compare(string(t), string(o)))
}

// Boolean is a truth value.
type Boolean bool

// Kind implements Value.
func (Boolean) Kind() string { return "boolean" }

// String implements Value.
func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }

// Compare implements Value. Only equality operators apply.
func (b Boolean) Compare(op Operator, other Value) Tristate {
	o, ok := other.(Boolean)
	if !ok {
		return Unknown
	}
	switch op {
	case Equals:
		return Of(b == o)
	case NotEquals:
		return Of(b != o)
	default:
		return Unknown
	}
}

// Interval is a closed numeric range [Lo, Hi].
type Interval struct {
	Lo float64
	Hi float64
}

// NewInterval returns the interval spanning a and b in either order.
func NewInterval(a, b float64) Interval {
	if a > b {
		a, b = b, a
	}
	return Interval{Lo: a, Hi: b}
}

// Kind implements Value.
func (Interval) Kind() string { return "interval" }

// String implements Value.
func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s]",
		strconv.FormatFloat(i.Lo, 'g', -1, 64),
		strconv.FormatFloat(i.Hi, 'g', -1, 64))
}

// Compare implements Value.
//
// Less and Greater are strict precedence (the whole interval lies before
// or after the other). Overlaps and Contains accept a Number or an
// Interval on the right.
func (i Interval) Compare(op Operator, other Value) Tristate {
	var o Interval
	switch v := other.(type) {
	case Interval:
		o = v
	case Number:
		o = Interval{Lo: float64(v), Hi: float64(v)}
	default:
		return Unknown
	}

	switch op {
	case Equals:
		return Of(i == o)
	case NotEquals:
		return Of(i != o)
	case Less:
		return Of(i.Hi < o.Lo)
	case LessOrEqual:
		return Of(i.Hi <= o.Lo)
	case Greater:
		return Of(i.Lo > o.Hi)
	case GreaterOrEqual:
		return Of(i.Lo >= o.Hi)
	case Overlaps:
		return Of(i.Lo <= o.Hi && o.Lo <= i.Hi)
	case Contains:
		return Of(i.Lo <= o.Lo && o.Hi <= i.Hi)
	default:
		return Unknown
	}
}

// Time is a point in time.
type Time struct {
	time.Time
}

// At wraps t as a Time value.
func At(t time.Time) Time {
	return Time{Time: t}
}

// Kind implements Value.
func (Time) Kind() string { return "time" }

// String implements Value.
func (t Time) String() string { return t.Time.Format(time.RFC3339) }

// Compare implements Value.
func (t Time) Compare(op Operator, other Value) Tristate {
	o, ok := other.(Time)
	if !ok {
		return Unknown
	}
	return compareOrdered(op, t.Time.Compare(o.Time))
}

// FromAny converts a decoded scalar (YAML or JSON) into a Value.
//
// Description:
//
//	Integers and floats become Number, bools Boolean, time.Time Time, and a
//	two-element numeric list an Interval. Strings that parse as RFC 3339
//	timestamps become Time; other strings become Text.
//
// Outputs:
//
//	Value - The converted value.
//	error - ErrUnsupportedValue for anything else.
func FromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case Value:
		return v, nil
	case int:
		return Number(v), nil
	case int64:
		return Number(v), nil
	case uint64:
		return Number(v), nil
	case float64:
		return Number(v), nil
	case float32:
		return Number(v), nil
	case bool:
		return Boolean(v), nil
	case time.Time:
		return At(v), nil
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return At(ts), nil
		}
		return Text(v), nil
	case []any:
		if len(v) == 2 {
			lo, okLo := toFloat(v[0])
			hi, okHi := toFloat(v[1])
			if okLo && okHi {
				return NewInterval(lo, hi), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
}

// ToAny is the inverse of FromAny for the built-in kinds.
func ToAny(v Value) any {
	switch x := v.(type) {
	case Number:
		f := float64(x)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case Boolean:
		return bool(x)
	case Text:
		return string(x)
	case Time:
		return x.String()
	case Interval:
		return []any{x.Lo, x.Hi}
	default:
		return v.String()
	}
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
