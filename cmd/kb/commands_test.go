// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const campusYAML = `
name: campus
concepts:
  - name: Person
  - name: Student
    supers: [Person]
  - name: Staff
    supers: [Person]
  - name: Tutor
    supers: [Student, Staff]
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
  - name: email
    range: text
  - name: room
    range: text
    functional: true
derived:
  - name: Freshman
    supers: [Student]
    where:
      - {attribute: semester, op: "==", value: 1}
values:
  - {concept: Alice, attribute: semester, value: 1}
  - {concept: Bob, attribute: semester, value: 3}
  - {concept: Person, attribute: email, value: info@campus.edu, scope: default}
  - concept: Bob
    attribute: room
    value: A-101
    constraints: [{attribute: year, op: "==", value: 2010}]
  - concept: Bob
    attribute: room
    value: B-202
    constraints: [{attribute: year, op: "==", value: 2020}]
`

func writeCampus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(campusYAML), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck(t *testing.T) {
	out, err := run(t, "check", writeCampus(t))
	require.NoError(t, err)
	assert.Contains(t, out, "campus: 6 concepts, 3 attributes, 1 derived, 5 values, 1 classified")
}

func TestCheck_InvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concepts: [{name: A, supers: [Ghost]}]"), 0o644))

	out, err := run(t, "check", path)
	require.Error(t, err)
	assert.Contains(t, out, "Ghost")
}

func TestQuery(t *testing.T) {
	path := writeCampus(t)

	out, err := run(t, "query", path, "Alice", "email", "--explain")
	require.NoError(t, err)
	assert.Contains(t, out, "info@campus.edu")
	assert.Contains(t, out, "[default from Person via email]")

	out, err = run(t, "query", path, "Bob", "room", "--constraint", "year:==:2010")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "A-101"), out)

	out, err = run(t, "query", path, "Bob", "semester", "--op", ">", "--value", "5")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = run(t, "query", path, "Carol", "email")
	assert.Error(t, err)

	_, err = run(t, "query", path, "Bob", "room", "--constraint", "year")
	assert.Error(t, err)
}

func TestTree(t *testing.T) {
	out, err := run(t, "tree", writeCampus(t), "--individuals")
	require.NoError(t, err)

	want := strings.Join([]string{
		"Person",
		"├── Student",
		"│   ├── Tutor",
		"│   ├── Freshman",
		"│   │   └── Alice",
		"│   └── Bob",
		"└── Staff",
		"    └── Tutor ↑",
		"",
	}, "\n")
	assert.Equal(t, want, out)

	out, err = run(t, "tree", writeCampus(t), "--root", "Staff")
	require.NoError(t, err)
	assert.Equal(t, "Staff\n└── Tutor\n", out)
}

func TestClassify(t *testing.T) {
	out, err := run(t, "classify", writeCampus(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Freshman: Alice")
	assert.Contains(t, out, "1 concepts classified")
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.yaml")

	_, err := run(t, "export", writeCampus(t), "-o", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Freshman")

	out, err := run(t, "check", target)
	require.NoError(t, err)
	assert.Contains(t, out, "1 classified")
}

func TestParseClause(t *testing.T) {
	cl, err := parseClause("at:>=:2024-01-01T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "at", cl.Attribute)
	assert.Equal(t, ">=", cl.Op)
	assert.Equal(t, "2024-01-01T10:00:00Z", cl.Value)

	_, err = parseClause(":==:1")
	assert.Error(t, err)
}
