// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	jan := At(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	feb := At(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name  string
		left  Value
		op    Operator
		right Value
		want  Tristate
	}{
		{"number equals", Number(20), Equals, Number(20), True},
		{"number less", Number(20), Less, Number(30), True},
		{"number greater false", Number(20), Greater, Number(30), False},
		{"number vs text", Number(20), Equals, Text("20"), Unknown},
		{"number contains undefined", Number(1), Contains, Number(1), Unknown},
		{"number in interval", Number(5), Overlaps, NewInterval(1, 10), True},
		{"text order", Text("apple"), Less, Text("banana"), True},
		{"text contains", Text("freshman"), Contains, Text("fresh"), True},
		{"boolean equals", Boolean(true), Equals, Boolean(true), True},
		{"boolean ordering undefined", Boolean(true), Less, Boolean(false), Unknown},
		{"interval overlaps", NewInterval(1, 5), Overlaps, NewInterval(4, 9), True},
		{"interval disjoint", NewInterval(1, 3), Overlaps, NewInterval(4, 9), False},
		{"interval precedes", NewInterval(1, 3), Less, NewInterval(4, 9), True},
		{"interval contains number", NewInterval(1, 3), Contains, Number(2), True},
		{"interval contains interval", NewInterval(1, 10), Contains, NewInterval(2, 3), True},
		{"time before", jan, Less, feb, True},
		{"time vs number", jan, Less, Number(1), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.left.Compare(tt.op, tt.right))
		})
	}
}

func TestParseOperator(t *testing.T) {
	for in, want := range map[string]Operator{
		"==":            Equals,
		"EQUALS":        Equals,
		"<":             Less,
		"less_or_equal": LessOrEqual,
		" >= ":          GreaterOrEqual,
		"overlaps":      Overlaps,
	} {
		got, err := ParseOperator(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseOperator("~=")
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestTristate(t *testing.T) {
	assert.Equal(t, True, Of(true))
	assert.Equal(t, False, True.Not())
	assert.Equal(t, Unknown, Unknown.Not())
	assert.Equal(t, "unknown", Unknown.String())
}

func TestFromAny(t *testing.T) {
	ts := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		raw  any
		want Value
	}{
		{1, Number(1)},
		{2.5, Number(2.5)},
		{true, Boolean(true)},
		{"Alice", Text("Alice")},
		{"2020-05-01T12:00:00Z", At(ts)},
		{ts, At(ts)},
		{[]any{5, 1}, NewInterval(1, 5)},
	}
	for _, tt := range tests {
		got, err := FromAny(tt.raw)
		require.NoError(t, err)
		assert.True(t, Equal(tt.want, got), "FromAny(%v) = %v", tt.raw, got)
	}

	_, err := FromAny(map[string]any{})
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestToAnyRoundTrip(t *testing.T) {
	for _, v := range []Value{Number(3), Number(1.5), Text("x"), Boolean(false), NewInterval(0, 2)} {
		back, err := FromAny(ToAny(v))
		require.NoError(t, err)
		assert.True(t, Equal(v, back), "%v", v)
	}
}
