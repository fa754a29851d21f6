// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
)

const campusYAML = `
name: campus
concepts:
  - name: Person
    meta:
      tags: [core]
      text: Anyone on campus.
  - name: Student
    supers: [Person]
  - name: Alice
    individual: true
    supers: [Student]
  - name: Bob
    individual: true
    supers: [Student]
attributes:
  - name: semester
    range: number
    functional: true
  - name: knows
    kind: concept
    range: Person
    symmetric: true
  - name: contacts
    kind: aggregate
    source: knows
    reduce: count
derived:
  - name: Freshman
    supers: [Student]
    where:
      - {attribute: semester, op: "==", value: 1}
values:
  - {concept: Alice, attribute: semester, value: 1}
  - {concept: Bob, attribute: semester, value: 3}
  - {concept: Alice, attribute: knows, value: Bob}
  - concept: Student
    attribute: semester
    value: 1
    scope: default
    constraints:
      - {attribute: year, op: "==", value: 2024}
`

func TestDecode(t *testing.T) {
	doc, err := Decode([]byte(campusYAML))
	require.NoError(t, err)

	assert.Equal(t, "campus", doc.Name)
	assert.Len(t, doc.Concepts, 4)
	assert.Len(t, doc.Attributes, 3)
	require.Len(t, doc.Derived, 1)
	assert.Equal(t, "==", doc.Derived[0].Where[0].Op)
	assert.Equal(t, "default", doc.Values[3].Scope)
}

func TestDecode_Empty(t *testing.T) {
	doc, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Concepts)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"concept without name", "concepts:\n  - supers: [A]\n"},
		{"unknown kind", "attributes:\n  - name: a\n    kind: magic\n"},
		{"chain without path", "attributes:\n  - name: a\n    kind: chain\n"},
		{"aggregate without reducer", "attributes:\n  - name: a\n    kind: aggregate\n    source: b\n"},
		{"unknown reducer", "attributes:\n  - name: a\n    kind: aggregate\n    source: b\n    reduce: median\n"},
		{"bad scope", "values:\n  - {concept: A, attribute: a, value: 1, scope: everywhere}\n"},
		{"bad operator", "derived:\n  - {name: D, supers: [A], where: [{attribute: a, op: '~', value: 1}]}\n"},
		{"derived without where", "derived:\n  - {name: D, supers: [A]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}

	_, err := Decode([]byte("concepts:\n  - name: A\n    colour: red\n"))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestApply(t *testing.T) {
	doc, err := Decode([]byte(campusYAML))
	require.NoError(t, err)

	kb := ontology.New(ontology.WithName(doc.Name))
	sum, err := Apply(context.Background(), kb, doc)
	require.NoError(t, err)
	assert.Equal(t, Summary{Concepts: 4, Attributes: 3, Derived: 1, Values: 4, Classified: 1}, sum)

	alice, _ := kb.Concept("Alice")
	bob, _ := kb.Concept("Bob")
	freshman, _ := kb.Concept("Freshman")
	knows, _ := kb.Attribute("knows")
	contacts, _ := kb.Attribute("contacts")

	assert.True(t, kb.IsMember(freshman.Derived(), alice))
	assert.False(t, kb.IsMember(freshman.Derived(), bob))

	v, ok := kb.GetFirst(bob, knows)
	require.True(t, ok)
	assert.Same(t, alice, v)

	v, ok = kb.GetFirst(alice, contacts)
	require.True(t, ok)
	assert.Equal(t, domain.Number(1), v)

	person, _ := kb.Concept("Person")
	meta, ok := kb.Metadata(person)
	require.True(t, ok)
	assert.Equal(t, []string{"core"}, meta.Tags)
}

func TestCompileFilter(t *testing.T) {
	doc, err := Decode([]byte(campusYAML))
	require.NoError(t, err)
	kb := ontology.New()
	_, err = Apply(context.Background(), kb, doc)
	require.NoError(t, err)

	alice, _ := kb.Concept("Alice")
	bob, _ := kb.Concept("Bob")

	senior, err := CompileFilter(kb, []Clause{{Attribute: "semester", Op: ">=", Value: 2}})
	require.NoError(t, err)
	assert.True(t, senior(kb, bob))
	assert.False(t, senior(kb, alice))

	knowsBob, err := CompileFilter(kb, []Clause{
		{Attribute: "semester", Op: "==", Value: 1},
		{Attribute: "knows", Op: "==", Value: "Bob"},
	})
	require.NoError(t, err)
	assert.True(t, knowsBob(kb, alice))
	assert.False(t, knowsBob(kb, bob))

	_, err = CompileFilter(kb, []Clause{{Attribute: "height", Op: "==", Value: 1}})
	assert.ErrorIs(t, err, ErrUnresolved)

	_, err = CompileFilter(kb, []Clause{{Attribute: "semester", Op: "~", Value: 1}})
	assert.ErrorIs(t, err, domain.ErrUnknownOperator)
}

func TestApply_Unresolved(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown super", "concepts:\n  - {name: A, supers: [Nope]}\n"},
		{"forward attribute reference", "attributes:\n  - {name: a, kind: chain, chain: [b]}\n  - {name: b, kind: concept}\n"},
		{"unknown value concept", "attributes:\n  - {name: a}\nvalues:\n  - {concept: Nope, attribute: a, value: 1}\n"},
		{"unknown filter attribute", "concepts:\n  - {name: A}\nderived:\n  - {name: D, supers: [A], where: [{attribute: nope, op: '==', value: 1}]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = Apply(context.Background(), ontology.New(), doc)
			assert.ErrorIs(t, err, ErrUnresolved)
		})
	}
}

func TestApply_OntologyErrorsSurface(t *testing.T) {
	doc, err := Decode([]byte(`
concepts:
  - {name: Person}
attributes:
  - {name: age, range: number}
values:
  - {concept: Person, attribute: age, value: old}
`))
	require.NoError(t, err)

	_, err = Apply(context.Background(), ontology.New(), doc)
	assert.ErrorIs(t, err, ontology.ErrRangeViolation)
	assert.Contains(t, err.Error(), "values[0] Person.age")
}

func TestExport_RoundTrip(t *testing.T) {
	doc, err := Decode([]byte(campusYAML))
	require.NoError(t, err)
	kb := ontology.New(ontology.WithName(doc.Name))
	_, err = Apply(context.Background(), kb, doc)
	require.NoError(t, err)

	out := Export(kb)

	// Alice is exported under Student, not under the derived concept.
	var alice ConceptEntry
	for _, c := range out.Concepts {
		assert.NotEqual(t, "Freshman", c.Name)
		if c.Name == "Alice" {
			alice = c
		}
	}
	assert.Equal(t, []string{"Student"}, alice.Supers)

	// The symmetric knows value is written once.
	knows := 0
	for _, v := range out.Values {
		if v.Attribute == "knows" {
			knows++
		}
	}
	assert.Equal(t, 1, knows)

	data, err := Encode(out)
	require.NoError(t, err)
	again, err := Decode(data)
	require.NoError(t, err, string(data))

	kb2 := ontology.New()
	sum, err := Apply(context.Background(), kb2, again)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Classified)

	alice2, _ := kb2.Concept("Alice")
	semester, _ := kb2.Attribute("semester")
	v, ok := kb2.GetFirst(alice2, semester)
	require.True(t, ok)
	assert.Equal(t, domain.Number(1), v)

	student, _ := kb2.Concept("Student")
	own, ok := student.OwnValue(semester)
	require.True(t, ok)
	assert.Equal(t, ontology.Default, own.Scope)
}

func TestExport_SkipsFunctions(t *testing.T) {
	kb := ontology.New()
	_, err := kb.DefineAttribute("now", ontology.AsFunction(func(*ontology.KnowledgeBase, *ontology.Concept) []domain.Value {
		return nil
	}))
	require.NoError(t, err)

	doc := Export(kb)
	assert.Empty(t, doc.Attributes)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "campus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(campusYAML), 0o644))

	kb, sum, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "campus", kb.Name())
	assert.Equal(t, 4, sum.Values)

	kb, _, err = Load(context.Background(), path, ontology.WithName("override"))
	require.NoError(t, err)
	assert.Equal(t, "override", kb.Name())

	_, _, err = Load(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDecode_TooLarge(t *testing.T) {
	big := "name: " + strings.Repeat("x", MaxDocumentSize) + "\n"
	_, err := Decode([]byte(big))
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"3", 3},
		{"2.5", 2.5},
		{"true", true},
		{"Alice", "Alice"},
		{"", ""},
		{"a: b", "a: b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseScalar(tt.in), tt.in)
	}
}
