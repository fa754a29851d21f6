// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hierarchy

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isIndividual(s string) bool {
	return strings.HasPrefix(s, "#")
}

// build creates a hierarchy from parent/child pairs, adding nodes as needed.
func build(t *testing.T, edges [][2]string, opts ...Option) *Hierarchy[string] {
	t.Helper()
	h := New(isIndividual, opts...)
	for _, e := range edges {
		p, err := h.AddNode(e[0])
		require.NoError(t, err)
		c, err := h.AddNode(e[1])
		require.NoError(t, err)
		require.NoError(t, h.AddSubnode(p, c), "edge %s -> %s", e[0], e[1])
	}
	return h
}

func id(t *testing.T, h *Hierarchy[string], label string) NodeID {
	t.Helper()
	n, ok := h.Lookup(label)
	require.True(t, ok, "label %q not found", label)
	return n
}

func labels(h *Hierarchy[string], ids []NodeID) []string {
	out := make([]string, 0, len(ids))
	for _, n := range ids {
		l, _ := h.Label(n)
		out = append(out, l)
	}
	return out
}

func TestHierarchy_AddNodeIsIdempotent(t *testing.T) {
	h := New(isIndividual)

	a, err := h.AddNode("Animal")
	require.NoError(t, err)
	again, err := h.AddNode("Animal")
	require.NoError(t, err)

	assert.Equal(t, a, again)
	assert.Equal(t, 1, h.Len())
	assert.True(t, h.IsRoot(a))
}

func TestHierarchy_LeafClassification(t *testing.T) {
	h := New(isIndividual)
	inner, _ := h.AddNode("Dog")
	leaf, _ := h.AddNode("#rex")

	kind, ok := h.Kind(inner)
	require.True(t, ok)
	assert.Equal(t, KindInner, kind)
	assert.True(t, h.IsLeaf(leaf))

	require.NoError(t, h.AddSubnode(inner, leaf))
	assert.Equal(t, []NodeID{leaf}, h.LeafChildren(inner))
	assert.Empty(t, h.InnerChildren(inner))

	err := h.AddSubnode(leaf, inner)
	assert.ErrorIs(t, err, ErrLeafParent)
}

func TestHierarchy_AddSubnodeMaintainsRoots(t *testing.T) {
	h := build(t, [][2]string{{"Animal", "Dog"}})

	assert.Equal(t, []string{"Animal"}, labels(h, h.Roots()))
	assert.False(t, h.IsRoot(id(t, h, "Dog")))
}

func TestHierarchy_AddSubnodeDuplicateIsNoop(t *testing.T) {
	h := build(t, [][2]string{{"Animal", "Dog"}})
	calls := 0
	h.OnEdgeEvent(func(EdgeEvent[string]) { calls++ })

	require.NoError(t, h.AddSubnode(id(t, h, "Animal"), id(t, h, "Dog")))

	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, h.Stats().Edges)
}

func TestHierarchy_AddSubnodeErrors(t *testing.T) {
	h := build(t, [][2]string{{"A", "B"}})
	a := id(t, h, "A")

	t.Run("unknown parent", func(t *testing.T) {
		assert.ErrorIs(t, h.AddSubnode(NodeID(42), a), ErrNodeNotFound)
	})
	t.Run("unknown child", func(t *testing.T) {
		assert.ErrorIs(t, h.AddSubnode(a, InvalidNode), ErrNodeNotFound)
	})
	t.Run("self edge", func(t *testing.T) {
		err := h.AddSubnode(a, a)
		assert.ErrorIs(t, err, ErrCycleDetected)
		var cycle *CycleError[string]
		require.True(t, errors.As(err, &cycle))
		assert.Equal(t, []string{"A", "A"}, cycle.Path)
	})
}

func TestHierarchy_CycleCheckOnInsert(t *testing.T) {
	h := build(t, [][2]string{{"A", "B"}, {"B", "C"}}, WithCycleCheckOnInsert(true))

	err := h.AddSubnode(id(t, h, "C"), id(t, h, "A"))
	assert.ErrorIs(t, err, ErrCycleDetected)
	assert.False(t, h.HasEdge(id(t, h, "C"), id(t, h, "A")))
	assert.NoError(t, h.DetectCycle())
}

func TestHierarchy_MaxNodes(t *testing.T) {
	h := New(isIndividual, WithMaxNodes(2))
	_, err := h.AddNode("A")
	require.NoError(t, err)
	_, err = h.AddNode("B")
	require.NoError(t, err)

	_, err = h.AddNode("C")
	assert.ErrorIs(t, err, ErrMaxNodesExceeded)

	_, err = h.AddNode("A")
	assert.NoError(t, err, "existing labels are still returned at capacity")
}

func TestHierarchy_RemoveSubnodeRootReentry(t *testing.T) {
	h := build(t, [][2]string{{"Animal", "Dog"}})
	animal, dog := id(t, h, "Animal"), id(t, h, "Dog")

	require.NoError(t, h.RemoveSubnode(animal, dog))

	assert.True(t, h.IsRoot(dog))
	assert.ElementsMatch(t, []string{"Animal", "Dog"}, labels(h, h.Roots()))
	assert.ErrorIs(t, h.RemoveSubnode(animal, dog), ErrEdgeNotFound)
}

func TestHierarchy_RemoveSubnodeKeepsOtherParents(t *testing.T) {
	h := build(t, [][2]string{{"Pet", "Dog"}, {"Mammal", "Dog"}})

	require.NoError(t, h.RemoveSubnode(id(t, h, "Pet"), id(t, h, "Dog")))

	assert.False(t, h.IsRoot(id(t, h, "Dog")))
	assert.Equal(t, []string{"Mammal"}, labels(h, h.Parents(id(t, h, "Dog"))))
}

func TestHierarchy_RemoveNodeSplicesChildren(t *testing.T) {
	// Animal -> Mammal -> {Dog, #felix}; Pet -> Dog
	h := build(t, [][2]string{
		{"Animal", "Mammal"},
		{"Mammal", "Dog"},
		{"Mammal", "#felix"},
		{"Pet", "Dog"},
	})
	mammal := id(t, h, "Mammal")

	require.NoError(t, h.RemoveNode(mammal))

	assert.False(t, h.Contains("Mammal"))
	animal := id(t, h, "Animal")
	assert.ElementsMatch(t, []string{"Dog", "#felix"}, labels(h, h.Children(animal)))
	assert.ElementsMatch(t, []string{"Pet", "Animal"}, labels(h, h.Parents(id(t, h, "Dog"))))
	_, ok := h.Label(mammal)
	assert.False(t, ok, "handles are not reused")

	stats := h.Stats()
	assert.Equal(t, 4, stats.Nodes)
	assert.Equal(t, 3, stats.Edges)
}

func TestHierarchy_RemoveRootPromotesChildren(t *testing.T) {
	h := build(t, [][2]string{{"A", "B"}, {"A", "C"}, {"X", "C"}})

	require.NoError(t, h.RemoveNode(id(t, h, "A")))

	assert.ElementsMatch(t, []string{"B", "X"}, labels(h, h.Roots()))
	assert.False(t, h.IsRoot(id(t, h, "C")))
}

func TestHierarchy_RemoveSubtree(t *testing.T) {
	// A -> B -> {C, #d}; X -> C
	h := build(t, [][2]string{
		{"A", "B"},
		{"B", "C"},
		{"B", "#d"},
		{"X", "C"},
	})

	removed, err := h.RemoveSubtree(id(t, h, "B"))
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "#d"}, removed)
	assert.True(t, h.Contains("C"), "C is still reachable from X")
	assert.True(t, h.IsRoot(id(t, h, "X")))
	assert.Empty(t, h.Children(id(t, h, "A")))
	assert.Equal(t, []string{"X"}, labels(h, h.Parents(id(t, h, "C"))))
}

func TestHierarchy_Metadata(t *testing.T) {
	h := New(isIndividual)
	a, _ := h.AddNode("A")

	_, ok := h.Metadata(a)
	assert.False(t, ok)

	require.NoError(t, h.SetMetadata(a, Metadata{Tags: []string{"core"}, Text: "root concept"}))
	meta, ok := h.Metadata(a)
	require.True(t, ok)
	assert.Equal(t, "root concept", meta.Text)

	require.NoError(t, h.SetMetadata(a, Metadata{}))
	_, ok = h.Metadata(a)
	assert.False(t, ok)

	assert.ErrorIs(t, h.SetMetadata(NodeID(99), Metadata{Text: "x"}), ErrNodeNotFound)
}

func TestHierarchy_Stats(t *testing.T) {
	h := build(t, [][2]string{{"A", "B"}, {"A", "#c"}, {"B", "#c"}})

	stats := h.Stats()
	assert.Equal(t, Stats{
		Nodes:      3,
		InnerNodes: 2,
		LeafNodes:  1,
		Edges:      3,
		Roots:      1,
		MaxNodes:   DefaultMaxNodes,
	}, stats)
}

func TestHierarchy_UnknownLookupsAreEmpty(t *testing.T) {
	h := New(isIndividual)

	_, ok := h.Lookup("missing")
	assert.False(t, ok)
	assert.Nil(t, h.Parents(NodeID(3)))
	assert.Nil(t, h.Children(InvalidNode))
	assert.False(t, h.IsDescendantOf(NodeID(1), NodeID(2)))
}
