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
	"iter"
)

// neighbors returns the inner-node neighbors of id in the given direction.
// The returned slice aliases node storage and must not be retained across
// mutations.
func (h *Hierarchy[L]) neighbors(id NodeID, dir Direction) []NodeID {
	if dir == TowardRoots {
		return h.nodes[id].parents
	}
	return h.nodes[id].innerChildren
}

// walk visits start and every inner node reachable from it exactly once.
// visit returns false to stop the walk early. walk reports whether it was
// stopped.
func (h *Hierarchy[L]) walk(start NodeID, dir Direction, strat Strategy, visit func(NodeID) bool) bool {
	visited := map[NodeID]struct{}{start: {}}

	if strat == BreadthFirst {
		queue := []NodeID{start}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if !visit(id) {
				return true
			}
			for _, n := range h.neighbors(id, dir) {
				if _, seen := visited[n]; seen {
					continue
				}
				visited[n] = struct{}{}
				queue = append(queue, n)
			}
		}
		return false
	}

	// Pre-order DFS. Nodes are marked when popped so that a node reached
	// first through a deeper path is still visited in first-edge order.
	delete(visited, start)
	stack := []NodeID{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		if !visit(id) {
			return true
		}
		next := h.neighbors(id, dir)
		for i := len(next) - 1; i >= 0; i-- {
			if _, seen := visited[next[i]]; !seen {
				stack = append(stack, next[i])
			}
		}
	}
	return false
}

// Search returns the first node satisfying pred.
//
// Description:
//
//	Walks inner nodes from start (start itself included, whatever its kind)
//	in the given direction and strategy. Every node is tested at most once,
//	even if it is reachable through several paths.
//
// Inputs:
//
//	start - Where the walk begins.
//	dir - TowardRoots or TowardLeaves.
//	strat - BreadthFirst or DepthFirst.
//	pred - Match predicate. Must not mutate the hierarchy.
//
// Outputs:
//
//	NodeID - The first match, or InvalidNode.
//	bool - True if a match was found.
func (h *Hierarchy[L]) Search(start NodeID, dir Direction, strat Strategy, pred func(NodeID) bool) (NodeID, bool) {
	if !h.valid(start) {
		return InvalidNode, false
	}
	found := InvalidNode
	h.walk(start, dir, strat, func(id NodeID) bool {
		if pred(id) {
			found = id
			return false
		}
		return true
	})
	return found, found != InvalidNode
}

// ForEachInner calls visit once for start and every inner node reachable
// from it. Unknown handles are ignored.
func (h *Hierarchy[L]) ForEachInner(start NodeID, dir Direction, strat Strategy, visit func(NodeID)) {
	if !h.valid(start) {
		return
	}
	h.walk(start, dir, strat, func(id NodeID) bool {
		visit(id)
		return true
	})
}

// Fold accumulates over start and every inner node reachable from it.
//
// Description:
//
//	Visit order and deduplication are the same as ForEachInner. A method
//	cannot carry its own type parameter, so Fold is a function.
//
// Example:
//
//	depth := hierarchy.Fold(h, id, hierarchy.TowardRoots, hierarchy.BreadthFirst, 0,
//	    func(n int, _ hierarchy.NodeID) int { return n + 1 })
func Fold[L comparable, A any](h *Hierarchy[L], start NodeID, dir Direction, strat Strategy, init A, fn func(A, NodeID) A) A {
	acc := init
	h.ForEachInner(start, dir, strat, func(id NodeID) {
		acc = fn(acc, id)
	})
	return acc
}

// guard panics if the hierarchy changed since version v.
func (h *Hierarchy[L]) guard(v uint64) {
	if h.version != v {
		panic(ErrConcurrentModification)
	}
}

// Ancestors yields every node above start in breadth-first order, each
// once. start itself is not yielded.
//
// The sequence panics with ErrConcurrentModification if the hierarchy is
// mutated while it is being consumed.
func (h *Hierarchy[L]) Ancestors(start NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		if !h.valid(start) {
			return
		}
		v := h.version
		visited := map[NodeID]struct{}{start: {}}
		queue := cloneIDs(h.nodes[start].parents)
		for _, p := range queue {
			visited[p] = struct{}{}
		}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if !yield(id) {
				return
			}
			h.guard(v)
			for _, p := range h.nodes[id].parents {
				if _, seen := visited[p]; !seen {
					visited[p] = struct{}{}
					queue = append(queue, p)
				}
			}
		}
	}
}

// Descendants yields every node below start in breadth-first order, each
// once, leaf nodes included. start itself is not yielded.
//
// The sequence panics with ErrConcurrentModification if the hierarchy is
// mutated while it is being consumed.
func (h *Hierarchy[L]) Descendants(start NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		if !h.valid(start) {
			return
		}
		v := h.version
		visited := map[NodeID]struct{}{start: {}}
		queue := []NodeID{start}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, c := range h.childrenOf(id) {
				if _, seen := visited[c]; seen {
					continue
				}
				visited[c] = struct{}{}
				if !yield(c) {
					return
				}
				h.guard(v)
				if h.nodes[c].kind == KindInner {
					queue = append(queue, c)
				}
			}
		}
	}
}

// Leaves returns a restartable sequence of leaf labels below start.
//
// Description:
//
//	Each leaf is yielded exactly once, even when reachable through several
//	inner nodes. If start is itself a leaf, it is the only element. Each
//	iteration allocates its own visited set, so independent iterations may
//	run concurrently while no writer is active.
//
// Outputs:
//
//	iter.Seq[L] - Lazy, finite sequence. Panics with
//	              ErrConcurrentModification if the hierarchy is mutated
//	              during consumption.
func (h *Hierarchy[L]) Leaves(start NodeID) iter.Seq[L] {
	return func(yield func(L) bool) {
		if !h.valid(start) {
			return
		}
		if h.nodes[start].kind == KindLeaf {
			yield(h.nodes[start].label)
			return
		}
		v := h.version
		inner := map[NodeID]struct{}{start: {}}
		leaves := make(map[NodeID]struct{})
		queue := []NodeID{start}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, l := range h.nodes[id].leafChildren {
				if _, seen := leaves[l]; seen {
					continue
				}
				leaves[l] = struct{}{}
				if !yield(h.nodes[l].label) {
					return
				}
				h.guard(v)
			}
			for _, c := range h.nodes[id].innerChildren {
				if _, seen := inner[c]; !seen {
					inner[c] = struct{}{}
					queue = append(queue, c)
				}
			}
		}
	}
}

// LeavesRaw is Leaves without deduplication.
//
// Description:
//
//	Follows every path, so a leaf reachable through k distinct paths is
//	yielded k times. Keeps no visited state at all.
func (h *Hierarchy[L]) LeavesRaw(start NodeID) iter.Seq[L] {
	return func(yield func(L) bool) {
		if !h.valid(start) {
			return
		}
		if h.nodes[start].kind == KindLeaf {
			yield(h.nodes[start].label)
			return
		}
		v := h.version
		stack := []NodeID{start}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, l := range h.nodes[id].leafChildren {
				if !yield(h.nodes[l].label) {
					return
				}
				h.guard(v)
			}
			inner := h.nodes[id].innerChildren
			for i := len(inner) - 1; i >= 0; i-- {
				stack = append(stack, inner[i])
			}
		}
	}
}

// IsDescendantOf reports whether a is b or lies below b.
//
// Description:
//
//	Subsumption test: reflexive and transitive. Unknown handles yield false.
func (h *Hierarchy[L]) IsDescendantOf(a, b NodeID) bool {
	if !h.valid(a) || !h.valid(b) {
		return false
	}
	if a == b {
		return true
	}
	if h.nodes[b].kind == KindLeaf {
		return false
	}
	_, found := h.Search(a, TowardRoots, BreadthFirst, func(id NodeID) bool {
		return id == b
	})
	return found
}

// HaveCommonNode reports whether the walks from a and from b in direction
// dir share a node.
//
// Description:
//
//	Both walks include their start nodes. With TowardLeaves the leaf
//	children of every reached inner node take part as well, so two
//	concepts sharing only an individual still have a common node.
func (h *Hierarchy[L]) HaveCommonNode(a, b NodeID, dir Direction) bool {
	if !h.valid(a) || !h.valid(b) {
		return false
	}
	reached := make(map[NodeID]struct{})
	h.walk(a, dir, BreadthFirst, func(id NodeID) bool {
		reached[id] = struct{}{}
		if dir == TowardLeaves {
			for _, l := range h.nodes[id].leafChildren {
				reached[l] = struct{}{}
			}
		}
		return true
	})

	return h.walk(b, dir, BreadthFirst, func(id NodeID) bool {
		if _, ok := reached[id]; ok {
			return false
		}
		if dir == TowardLeaves {
			for _, l := range h.nodes[id].leafChildren {
				if _, ok := reached[l]; ok {
					return false
				}
			}
		}
		return true
	})
}
