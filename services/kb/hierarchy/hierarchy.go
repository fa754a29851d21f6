// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hierarchy

import (
	"fmt"
	"log/slog"
)

// node is an arena slot. Inner and leaf nodes share the struct; leaf slots
// never populate the child sets.
type node[L comparable] struct {
	label L
	kind  Kind
	alive bool

	// parents, innerChildren and leafChildren are ordered sets.
	parents       []NodeID
	innerChildren []NodeID
	leafChildren  []NodeID

	meta *Metadata
}

// Hierarchy is a multi-parent DAG over labels of type L.
//
// Description:
//
//	Owns all nodes in an arena indexed by NodeID. A label maps to at most
//	one node. The isLeaf predicate supplied at construction decides, once
//	per label, whether it becomes an inner or a leaf node.
//
// Thread Safety:
//
//	NOT safe for concurrent mutation. Read-only methods allocate their own
//	traversal state and may run concurrently when no writer is active.
//
// Lifecycle:
//
//  1. Create with New(isLeaf, opts...)
//  2. Build with AddNode() and AddSubnode() calls
//  3. Query with IsDescendantOf(), Search(), Leaves(), etc.
//  4. Mutate freely; lazy sequences must be consumed before mutating again
type Hierarchy[L comparable] struct {
	nodes []node[L]
	index map[L]NodeID
	roots []NodeID

	innerCount int
	leafCount  int
	edgeCount  int

	isLeaf func(L) bool

	observers observerSet[L]

	// dispatching counts nested observer dispatches; mutations panic while
	// it is non-zero.
	dispatching int

	// version increments on every structural mutation. Lazy sequences
	// compare it after each yield.
	version uint64

	options Options
	logger  *slog.Logger
}

// New creates an empty hierarchy.
//
// Description:
//
//	Creates a hierarchy whose node kinds are decided by isLeaf. A nil
//	predicate makes every node an inner node.
//
// Inputs:
//
//	isLeaf - Classifies a label as leaf (true) or inner (false). Called once
//	         per label, on first insertion.
//	opts - Optional configuration options.
//
// Example:
//
//	h := hierarchy.New(func(s string) bool { return strings.HasPrefix(s, "#") },
//	    hierarchy.WithName("concepts"),
//	    hierarchy.WithMaxNodes(100_000),
//	)
func New[L comparable](isLeaf func(L) bool, opts ...Option) *Hierarchy[L] {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if isLeaf == nil {
		isLeaf = func(L) bool { return false }
	}

	return &Hierarchy[L]{
		nodes:   make([]node[L], 0),
		index:   make(map[L]NodeID),
		roots:   make([]NodeID, 0),
		isLeaf:  isLeaf,
		options: options,
		logger:  logger.With(slog.String("hierarchy", options.Name)),
	}
}

// Name returns the configured hierarchy name.
func (h *Hierarchy[L]) Name() string {
	return h.options.Name
}

// beginMutation enforces the re-entrancy rule and invalidates live sequences.
func (h *Hierarchy[L]) beginMutation() {
	if h.dispatching > 0 {
		panic(ErrReentrantMutation)
	}
	h.version++
}

// valid reports whether id references a live node.
func (h *Hierarchy[L]) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(h.nodes) && h.nodes[id].alive
}

// AddNode inserts a label as a new root, or returns its existing handle.
//
// Description:
//
//	Idempotent. When the label is absent, node-added observers are notified
//	before insertion, the label is classified as inner or leaf, and the new
//	node enters the root set.
//
// Inputs:
//
//	label - The label to insert.
//
// Outputs:
//
//	NodeID - The handle of the (possibly pre-existing) node.
//	error - ErrMaxNodesExceeded when the hierarchy is full.
func (h *Hierarchy[L]) AddNode(label L) (NodeID, error) {
	if id, ok := h.index[label]; ok {
		return id, nil
	}
	h.beginMutation()

	if len(h.index) >= h.options.MaxNodes {
		return InvalidNode, ErrMaxNodesExceeded
	}

	h.dispatchNode(NodeEvent[L]{Label: label, Node: InvalidNode, Change: Added})

	kind := KindInner
	if h.isLeaf(label) {
		kind = KindLeaf
	}

	id := NodeID(len(h.nodes))
	h.nodes = append(h.nodes, node[L]{
		label: label,
		kind:  kind,
		alive: true,
	})
	h.index[label] = id
	h.roots = append(h.roots, id)

	if kind == KindLeaf {
		h.leafCount++
	} else {
		h.innerCount++
	}
	recordStructuralEvent(h.options.Name, "node", Added)

	return id, nil
}

// Lookup returns the handle of a label.
func (h *Hierarchy[L]) Lookup(label L) (NodeID, bool) {
	id, ok := h.index[label]
	return id, ok
}

// Contains reports whether the label is in the hierarchy.
func (h *Hierarchy[L]) Contains(label L) bool {
	_, ok := h.index[label]
	return ok
}

// Label returns the label of a node.
func (h *Hierarchy[L]) Label(id NodeID) (L, bool) {
	if !h.valid(id) {
		var zero L
		return zero, false
	}
	return h.nodes[id].label, true
}

// Kind returns the structural kind of a node.
func (h *Hierarchy[L]) Kind(id NodeID) (Kind, bool) {
	if !h.valid(id) {
		return KindInner, false
	}
	return h.nodes[id].kind, true
}

// IsLeaf reports whether id is a live leaf node.
func (h *Hierarchy[L]) IsLeaf(id NodeID) bool {
	return h.valid(id) && h.nodes[id].kind == KindLeaf
}

// AddSubnode creates the edge parent -> child.
//
// Description:
//
//	Requires parent to be an inner node. Adding an existing edge is a no-op.
//	If child was a root it leaves the root set. Edge-added observers (global
//	first, then those local to parent) fire after the edge exists.
//
//	Cycle safety is the caller's responsibility unless
//	WithCycleCheckOnInsert is enabled; DetectCycle is the diagnostic.
//
// Inputs:
//
//	parent - Handle of an inner node.
//	child - Handle of any node.
//
// Outputs:
//
//	error - Non-nil on misuse.
//
// Errors:
//
//	ErrNodeNotFound - Either handle is not live
//	ErrLeafParent - Parent is a leaf node
//	ErrCycleDetected - Self edge, or (with cycle checks) child is an ancestor
func (h *Hierarchy[L]) AddSubnode(parent, child NodeID) error {
	if !h.valid(parent) {
		return fmt.Errorf("%w: parent %d", ErrNodeNotFound, parent)
	}
	if !h.valid(child) {
		return fmt.Errorf("%w: child %d", ErrNodeNotFound, child)
	}
	if h.nodes[parent].kind == KindLeaf {
		return fmt.Errorf("%w: %v", ErrLeafParent, h.nodes[parent].label)
	}
	if parent == child {
		return &CycleError[L]{Path: []L{h.nodes[parent].label, h.nodes[parent].label}}
	}
	if containsID(h.nodes[child].parents, parent) {
		return nil
	}
	if h.options.CheckCyclesOnInsert && h.IsDescendantOf(parent, child) {
		return &CycleError[L]{Path: []L{h.nodes[child].label, h.nodes[parent].label, h.nodes[child].label}}
	}

	h.beginMutation()
	h.link(parent, child)
	h.dispatchEdge(h.edgeEvent(parent, child, Added))

	return nil
}

// RemoveSubnode deletes the edge parent -> child.
//
// Description:
//
//	If child thereby loses its last parent it re-enters the root set.
//	Edge-removed observers fire after removal.
//
// Errors:
//
//	ErrNodeNotFound - Either handle is not live
//	ErrEdgeNotFound - The edge does not exist
func (h *Hierarchy[L]) RemoveSubnode(parent, child NodeID) error {
	if !h.valid(parent) {
		return fmt.Errorf("%w: parent %d", ErrNodeNotFound, parent)
	}
	if !h.valid(child) {
		return fmt.Errorf("%w: child %d", ErrNodeNotFound, child)
	}
	if !containsID(h.nodes[child].parents, parent) {
		return fmt.Errorf("%w: %v -> %v", ErrEdgeNotFound, h.nodes[parent].label, h.nodes[child].label)
	}

	h.beginMutation()
	h.unlink(parent, child)
	h.dispatchEdge(h.edgeEvent(parent, child, Removed))

	return nil
}

// RemoveNode detaches a node and splices its children onto its parents.
//
// Description:
//
//	Every child of the removed node becomes a child of each former parent
//	(edges that already exist are kept once). Children of a removed root
//	that have no other parent become roots. Edge events for every removed
//	and added edge fire after the splice completes, followed by the
//	node-removed event.
//
// Outputs:
//
//	error - ErrNodeNotFound if id is not live.
func (h *Hierarchy[L]) RemoveNode(id NodeID) error {
	if !h.valid(id) {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	h.beginMutation()

	parents := cloneIDs(h.nodes[id].parents)
	children := h.childrenOf(id)

	events := make([]EdgeEvent[L], 0, len(parents)+len(children)*(len(parents)+1))
	for _, c := range children {
		events = append(events, h.edgeEvent(id, c, Removed))
		h.unlink(id, c)
	}
	for _, p := range parents {
		events = append(events, h.edgeEvent(p, id, Removed))
		h.unlink(p, id)
	}
	for _, c := range children {
		for _, p := range parents {
			if containsID(h.nodes[c].parents, p) {
				continue
			}
			h.link(p, c)
			events = append(events, h.edgeEvent(p, c, Added))
		}
	}

	label := h.nodes[id].label
	h.kill(id)

	for _, ev := range events {
		h.dispatchEdge(ev)
	}
	h.dispatchNode(NodeEvent[L]{Label: label, Node: id, Change: Removed})

	h.logger.Debug("node removed",
		slog.Any("label", label),
		slog.Int("respliced_children", len(children)),
	)
	return nil
}

// RemoveSubtree deletes a node and every descendant left unreachable.
//
// Description:
//
//	A descendant is deleted only when all of its parents are deleted too,
//	so nodes still reachable from another root survive. Edge-removed events
//	fire for every deleted edge, then node-removed events in deletion order.
//
// Outputs:
//
//	[]L - Labels of the deleted nodes, starting with id's label.
//	error - ErrNodeNotFound if id is not live.
func (h *Hierarchy[L]) RemoveSubtree(id NodeID) ([]L, error) {
	if !h.valid(id) {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	h.beginMutation()

	removed := map[NodeID]bool{id: true}
	order := []NodeID{id}
	for queue := []NodeID{id}; len(queue) > 0; {
		x := queue[0]
		queue = queue[1:]
		for _, c := range h.childrenOf(x) {
			if removed[c] || !h.allParentsIn(c, removed) {
				continue
			}
			removed[c] = true
			order = append(order, c)
			queue = append(queue, c)
		}
	}

	var events []EdgeEvent[L]
	for _, r := range order {
		for _, p := range cloneIDs(h.nodes[r].parents) {
			events = append(events, h.edgeEvent(p, r, Removed))
			h.unlink(p, r)
		}
		for _, c := range h.childrenOf(r) {
			if removed[c] {
				continue
			}
			events = append(events, h.edgeEvent(r, c, Removed))
			h.unlink(r, c)
		}
	}

	labels := make([]L, 0, len(order))
	for _, r := range order {
		labels = append(labels, h.nodes[r].label)
		h.kill(r)
	}

	for _, ev := range events {
		h.dispatchEdge(ev)
	}
	for i, r := range order {
		h.dispatchNode(NodeEvent[L]{Label: labels[i], Node: r, Change: Removed})
	}

	return labels, nil
}

// allParentsIn reports whether every parent of id is in set.
func (h *Hierarchy[L]) allParentsIn(id NodeID, set map[NodeID]bool) bool {
	for _, p := range h.nodes[id].parents {
		if !set[p] {
			return false
		}
	}
	return true
}

// link adds parent -> child without validation or dispatch.
func (h *Hierarchy[L]) link(parent, child NodeID) {
	c := &h.nodes[child]
	if len(c.parents) == 0 {
		h.roots = removeID(h.roots, child)
	}
	c.parents = append(c.parents, parent)

	p := &h.nodes[parent]
	if c.kind == KindLeaf {
		p.leafChildren = append(p.leafChildren, child)
	} else {
		p.innerChildren = append(p.innerChildren, child)
	}
	h.edgeCount++
	recordStructuralEvent(h.options.Name, "edge", Added)
}

// unlink removes parent -> child without validation or dispatch.
func (h *Hierarchy[L]) unlink(parent, child NodeID) {
	c := &h.nodes[child]
	c.parents = removeID(c.parents, parent)
	if len(c.parents) == 0 {
		h.roots = append(h.roots, child)
	}

	p := &h.nodes[parent]
	if c.kind == KindLeaf {
		p.leafChildren = removeID(p.leafChildren, child)
	} else {
		p.innerChildren = removeID(p.innerChildren, child)
	}
	h.edgeCount--
	recordStructuralEvent(h.options.Name, "edge", Removed)
}

// kill frees an already detached node.
func (h *Hierarchy[L]) kill(id NodeID) {
	n := &h.nodes[id]
	h.roots = removeID(h.roots, id)
	delete(h.index, n.label)
	if n.kind == KindLeaf {
		h.leafCount--
	} else {
		h.innerCount--
	}
	n.alive = false
	n.parents = nil
	n.innerChildren = nil
	n.leafChildren = nil
	n.meta = nil
	recordStructuralEvent(h.options.Name, "node", Removed)
}

func (h *Hierarchy[L]) edgeEvent(parent, child NodeID, change Change) EdgeEvent[L] {
	return EdgeEvent[L]{
		Parent:   h.nodes[parent].label,
		Child:    h.nodes[child].label,
		ParentID: parent,
		ChildID:  child,
		Change:   change,
	}
}

// childrenOf returns a copy of all children, inner first.
func (h *Hierarchy[L]) childrenOf(id NodeID) []NodeID {
	n := &h.nodes[id]
	out := make([]NodeID, 0, len(n.innerChildren)+len(n.leafChildren))
	out = append(out, n.innerChildren...)
	return append(out, n.leafChildren...)
}

// Parents returns the parents of a node in insertion order.
//
// Returns nil for unknown handles. The slice is a copy.
func (h *Hierarchy[L]) Parents(id NodeID) []NodeID {
	if !h.valid(id) {
		return nil
	}
	return cloneIDs(h.nodes[id].parents)
}

// Children returns all children of a node, inner children first.
func (h *Hierarchy[L]) Children(id NodeID) []NodeID {
	if !h.valid(id) {
		return nil
	}
	return h.childrenOf(id)
}

// InnerChildren returns the inner-node children of a node.
func (h *Hierarchy[L]) InnerChildren(id NodeID) []NodeID {
	if !h.valid(id) {
		return nil
	}
	return cloneIDs(h.nodes[id].innerChildren)
}

// LeafChildren returns the leaf-node children of a node.
func (h *Hierarchy[L]) LeafChildren(id NodeID) []NodeID {
	if !h.valid(id) {
		return nil
	}
	return cloneIDs(h.nodes[id].leafChildren)
}

// HasEdge reports whether parent -> child exists.
func (h *Hierarchy[L]) HasEdge(parent, child NodeID) bool {
	if !h.valid(parent) || !h.valid(child) {
		return false
	}
	return containsID(h.nodes[child].parents, parent)
}

// Roots returns the handles of all nodes without parents.
func (h *Hierarchy[L]) Roots() []NodeID {
	return cloneIDs(h.roots)
}

// IsRoot reports whether id is a live node without parents.
func (h *Hierarchy[L]) IsRoot(id NodeID) bool {
	return h.valid(id) && len(h.nodes[id].parents) == 0
}

// Len returns the number of live nodes.
func (h *Hierarchy[L]) Len() int {
	return len(h.index)
}

// Labels returns all live labels in insertion order.
func (h *Hierarchy[L]) Labels() []L {
	out := make([]L, 0, len(h.index))
	for i := range h.nodes {
		if h.nodes[i].alive {
			out = append(out, h.nodes[i].label)
		}
	}
	return out
}

// SetMetadata attaches annotation to a node, replacing any previous value.
func (h *Hierarchy[L]) SetMetadata(id NodeID, meta Metadata) error {
	if !h.valid(id) {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if meta.IsZero() {
		h.nodes[id].meta = nil
		return nil
	}
	m := meta
	h.nodes[id].meta = &m
	return nil
}

// Metadata returns the annotation attached to a node.
func (h *Hierarchy[L]) Metadata(id NodeID) (Metadata, bool) {
	if !h.valid(id) || h.nodes[id].meta == nil {
		return Metadata{}, false
	}
	return *h.nodes[id].meta, true
}

// Stats returns statistics about the hierarchy.
func (h *Hierarchy[L]) Stats() Stats {
	return Stats{
		Nodes:      len(h.index),
		InnerNodes: h.innerCount,
		LeafNodes:  h.leafCount,
		Edges:      h.edgeCount,
		Roots:      len(h.roots),
		MaxNodes:   h.options.MaxNodes,
	}
}

func containsID(s []NodeID, id NodeID) bool {
	for _, x := range s {
		if x == id {
			return true
		}
	}
	return false
}

// removeID deletes the first occurrence of id, preserving order.
func removeID(s []NodeID, id NodeID) []NodeID {
	for i, x := range s {
		if x == id {
			copy(s[i:], s[i+1:])
			return s[:len(s)-1]
		}
	}
	return s
}

func cloneIDs(s []NodeID) []NodeID {
	out := make([]NodeID, len(s))
	copy(out, s)
	return out
}
