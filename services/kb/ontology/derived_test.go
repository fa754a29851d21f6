// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ontology

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/conceptbase/services/kb/domain"
)

type campus struct {
	kb       *KnowledgeBase
	student  *Concept
	alice    *Concept
	bob      *Concept
	semester *Attribute
	freshman *DerivedConcept
}

func newCampus(t *testing.T, opts ...Option) campus {
	t.Helper()
	kb := New(opts...)
	student := mustConcept(t, kb, "Student")
	cp := campus{
		kb:       kb,
		student:  student,
		alice:    mustIndividual(t, kb, "Alice", student),
		bob:      mustIndividual(t, kb, "Bob", student),
		semester: mustAttribute(t, kb, "semester", WithDataRange("number"), Functional()),
	}
	require.NoError(t, kb.SetValue(cp.alice, cp.semester, domain.Number(1), Local))
	require.NoError(t, kb.SetValue(cp.bob, cp.semester, domain.Number(3), Local))

	dc, err := kb.DefineDerivedConcept("Freshman", []*Concept{student},
		Where(cp.semester, domain.Equals, domain.Number(1)))
	require.NoError(t, err)
	cp.freshman = dc
	return cp
}

func TestDerived_RestructureClassifies(t *testing.T) {
	cp := newCampus(t)
	kb := cp.kb

	assert.Empty(t, kb.Members(cp.freshman))

	n, err := kb.RestructureHierarchy(context.Background(), cp.freshman)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.True(t, kb.IsMember(cp.freshman, cp.alice))
	assert.False(t, kb.IsMember(cp.freshman, cp.bob))
	assert.Equal(t, []string{"Freshman"}, names(kb.Supers(cp.alice)))
	assert.ElementsMatch(t, []string{"Freshman", "Bob"}, names(kb.Subs(cp.student)))
	assert.True(t, kb.Subsumes(cp.student, cp.alice))

	n, err = kb.RestructureHierarchy(context.Background(), cp.freshman)
	require.NoError(t, err)
	assert.Zero(t, n, "restructuring again changes nothing")
}

func TestDerived_RepositionAfterEdit(t *testing.T) {
	cp := newCampus(t)
	kb := cp.kb
	ctx := context.Background()

	_, err := kb.RestructureHierarchy(ctx, cp.freshman)
	require.NoError(t, err)

	require.NoError(t, kb.SetValue(cp.bob, cp.semester, domain.Number(1), Local))
	require.NoError(t, kb.RepositionConcept(ctx, cp.bob))
	assert.True(t, kb.IsMember(cp.freshman, cp.bob))

	require.NoError(t, kb.SetValue(cp.alice, cp.semester, domain.Number(2), Local))
	require.NoError(t, kb.RepositionConcept(ctx, cp.alice))
	assert.False(t, kb.IsMember(cp.freshman, cp.alice))
	assert.Equal(t, []string{"Student"}, names(kb.Supers(cp.alice)))
	assert.Equal(t, []string{"Bob"}, names(kb.Members(cp.freshman)))
}

func TestDerived_OwnValueHidesInherited(t *testing.T) {
	cp := newCampus(t)
	kb := cp.kb
	ctx := context.Background()

	require.NoError(t, kb.SetValue(cp.student, cp.semester, domain.Number(1), All))
	_, err := kb.RestructureHierarchy(ctx, cp.freshman)
	require.NoError(t, err)

	assert.True(t, kb.IsMember(cp.freshman, cp.alice))
	assert.False(t, kb.IsMember(cp.freshman, cp.bob))
	assert.Equal(t, []string{"Student"}, names(kb.Supers(cp.bob)))

	require.NoError(t, kb.RepositionConcept(ctx, cp.bob))
	assert.False(t, kb.IsMember(cp.freshman, cp.bob))
}

func TestDerived_MatchBelowNonMatch(t *testing.T) {
	cp := newCampus(t)
	kb := cp.kb
	ctx := context.Background()

	grad := mustConcept(t, kb, "Grad", cp.student)
	eve := mustIndividual(t, kb, "Eve", grad)
	require.NoError(t, kb.SetValue(grad, cp.semester, domain.Number(5), Local))
	require.NoError(t, kb.SetValue(eve, cp.semester, domain.Number(1), Local))

	_, err := kb.RestructureHierarchy(ctx, cp.freshman)
	require.NoError(t, err)

	assert.False(t, kb.IsMember(cp.freshman, grad))
	assert.True(t, kb.IsMember(cp.freshman, eve))
	assert.Equal(t, []string{"Grad", "Freshman"}, names(kb.Supers(eve)))

	require.NoError(t, kb.SetValue(eve, cp.semester, domain.Number(2), Local))
	require.NoError(t, kb.RepositionConcept(ctx, eve))
	assert.False(t, kb.IsMember(cp.freshman, eve))
	assert.Equal(t, []string{"Grad"}, names(kb.Supers(eve)), "Student is still reached through Grad")
	assert.True(t, kb.Subsumes(cp.student, eve))
}

func TestDerived_AutoReposition(t *testing.T) {
	cp := newCampus(t, WithAutoReposition(true))
	kb := cp.kb

	// Alice was already freshman before the derived concept existed.
	assert.False(t, kb.IsMember(cp.freshman, cp.alice))

	require.NoError(t, kb.SetValue(cp.bob, cp.semester, domain.Number(1), Local))
	assert.True(t, kb.IsMember(cp.freshman, cp.bob))

	require.NoError(t, kb.SetValue(cp.bob, cp.semester, domain.Number(4), Local))
	assert.False(t, kb.IsMember(cp.freshman, cp.bob))
	assert.Equal(t, []string{"Student"}, names(kb.Supers(cp.bob)))
}

func TestDerived_RequiresAllSupers(t *testing.T) {
	kb := New()
	student := mustConcept(t, kb, "Student")
	employee := mustConcept(t, kb, "Employee")
	carol := mustIndividual(t, kb, "Carol", student, employee)
	dave := mustIndividual(t, kb, "Dave", student)

	always := func(*KnowledgeBase, *Concept) bool { return true }
	ws, err := kb.DefineDerivedConcept("WorkingStudent", []*Concept{student, employee}, always)
	require.NoError(t, err)

	n, err := kb.RestructureHierarchy(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{"WorkingStudent"}, names(kb.Supers(carol)))
	assert.True(t, kb.Subsumes(employee, carol))
	assert.Equal(t, []string{"Student"}, names(kb.Supers(dave)))
}

func TestDerived_DefinitionErrors(t *testing.T) {
	kb := New()
	student := mustConcept(t, kb, "Student")
	always := func(*KnowledgeBase, *Concept) bool { return true }

	_, err := kb.DefineDerivedConcept("NoSupers", nil, always)
	assert.ErrorIs(t, err, ErrInvalidDerived)

	_, err = kb.DefineDerivedConcept("NoFilter", []*Concept{student}, nil)
	assert.ErrorIs(t, err, ErrInvalidDerived)

	_, err = kb.DefineDerivedConcept("Student", []*Concept{student}, always)
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = kb.RestructureHierarchy(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnknownConcept)
}

func TestDerived_ReclassificationLimit(t *testing.T) {
	build := func(passes int) (*KnowledgeBase, *Concept, *DerivedConcept) {
		kb := New(WithMaxReclassificationPasses(passes))
		s := mustConcept(t, kb, "S")
		always := func(*KnowledgeBase, *Concept) bool { return true }
		dc1, err := kb.DefineDerivedConcept("D1", []*Concept{s}, always)
		require.NoError(t, err)
		dc2, err := kb.DefineDerivedConcept("D2", []*Concept{dc1.Concept()}, always)
		require.NoError(t, err)
		return kb, mustIndividual(t, kb, "X", s), dc2
	}

	kb, x, _ := build(1)
	err := kb.RepositionConcept(context.Background(), x)
	require.ErrorIs(t, err, ErrReclassificationLimit)
	var rerr *ReclassificationError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "X", rerr.Concept)
	assert.Equal(t, 1, rerr.Passes)

	kb, x, dc2 := build(2)
	require.NoError(t, kb.RepositionConcept(context.Background(), x))
	assert.Equal(t, []string{"D2"}, names(kb.Supers(x)))
	assert.True(t, kb.IsMember(dc2, x))
}

func TestDerived_CancelledContext(t *testing.T) {
	cp := newCampus(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cp.kb.RestructureHierarchy(ctx, cp.freshman)
	assert.ErrorIs(t, err, context.Canceled)

	err = cp.kb.RepositionConcept(ctx, cp.alice)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"Student"}, names(cp.kb.Supers(cp.alice)))
}

func TestDerived_RemoveReturnsMembers(t *testing.T) {
	cp := newCampus(t)
	kb := cp.kb
	_, err := kb.RestructureHierarchy(context.Background(), cp.freshman)
	require.NoError(t, err)

	require.NoError(t, kb.RemoveConcept(cp.freshman.Concept()))

	assert.Equal(t, []string{"Student"}, names(kb.Supers(cp.alice)))
	assert.Empty(t, kb.DerivedConcepts())
	_, ok := kb.Concept("Freshman")
	assert.False(t, ok)
}

func TestDerived_SuperInUse(t *testing.T) {
	cp := newCampus(t)
	err := cp.kb.RemoveConcept(cp.student)
	assert.ErrorIs(t, err, ErrConceptInUse)
}

func TestDerived_RestructureAll(t *testing.T) {
	cp := newCampus(t)
	kb := cp.kb
	senior, err := kb.DefineDerivedConcept("Senior", []*Concept{cp.student},
		Where(cp.semester, domain.GreaterOrEqual, domain.Number(3)))
	require.NoError(t, err)

	n, err := kb.RestructureAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, kb.IsMember(cp.freshman, cp.alice))
	assert.True(t, kb.IsMember(senior, cp.bob))
}
