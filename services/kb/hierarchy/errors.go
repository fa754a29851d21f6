// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hierarchy provides a multi-parent directed acyclic graph of labels.
//
// A Hierarchy owns every node in an arena and hands out integer NodeID
// handles. Each label is classified once, at insertion, as either an inner
// node (may have children) or a leaf node (always a sink). Inner nodes keep
// two ordered child sets so that large populations of cheap leaves do not
// slow down structural traversals.
//
// # Traversal State
//
// Every traversal allocates its own visited set. Read-only queries never
// mutate the hierarchy, so any number of readers may run concurrently as
// long as no writer is active.
//
// # Thread Safety
//
// Hierarchy is NOT safe for concurrent mutation. Callers serialise writers
// (one exclusive lock per Hierarchy, or confinement to one goroutine).
//
// # Observers
//
// Node-added observers fire before the node is inserted. Node-removed and
// edge observers fire after the structural change. Observers run
// synchronously on the mutating goroutine and must not mutate the
// hierarchy; doing so panics with ErrReentrantMutation.
package hierarchy

import (
	"errors"
	"fmt"
)

// Sentinel errors for hierarchy operations.
var (
	// ErrNodeNotFound is returned when a handle does not reference a live node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrLeafParent is returned when a leaf node is used as a parent.
	// Leaf nodes are DAG sinks and never have children.
	ErrLeafParent = errors.New("leaf node cannot have children")

	// ErrEdgeNotFound is returned when removing an edge that does not exist.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrMaxNodesExceeded is returned when the hierarchy has reached its
	// configured maximum node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrCycleDetected is returned by AddSubnode when the new edge would
	// close a cycle. Self edges are always rejected; longer cycles only when
	// WithCycleCheckOnInsert is enabled.
	ErrCycleDetected = errors.New("edge would introduce a cycle")

	// ErrReentrantMutation is the panic value raised when an observer
	// callback mutates the hierarchy that is dispatching to it.
	ErrReentrantMutation = errors.New("hierarchy mutated from within an observer callback")

	// ErrConcurrentModification is the panic value raised when the
	// hierarchy is mutated while a lazy sequence over it is being consumed.
	ErrConcurrentModification = errors.New("hierarchy mutated while a sequence was being consumed")
)

// CycleError provides the path of a detected cycle.
//
// The first and last elements of Path are the same label.
type CycleError[L comparable] struct {
	Path []L
}

// Error returns the cycle description.
func (e *CycleError[L]) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

// Unwrap returns ErrCycleDetected so callers can use errors.Is.
func (e *CycleError[L]) Unwrap() error {
	return ErrCycleDetected
}
