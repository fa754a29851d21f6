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
	"log/slog"
)

// DefaultMaxNodes is the default maximum number of nodes a hierarchy can hold.
const DefaultMaxNodes = 1_000_000

// NodeID is a handle to a node in a Hierarchy's arena.
//
// Handles are never reused: a removed node's handle stays invalid for the
// lifetime of the hierarchy.
type NodeID int32

// InvalidNode is the zero handle returned alongside errors.
const InvalidNode NodeID = -1

// Kind is the structural kind of a node, fixed at insertion time.
type Kind int

const (
	// KindInner marks a node that may have children.
	KindInner Kind = iota

	// KindLeaf marks a node that is always a DAG sink.
	KindLeaf
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindInner:
		return "inner"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// Direction selects which edges a traversal follows.
type Direction int

const (
	// TowardRoots follows parent edges.
	TowardRoots Direction = iota

	// TowardLeaves follows child edges.
	TowardLeaves
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case TowardRoots:
		return "toward_roots"
	case TowardLeaves:
		return "toward_leaves"
	default:
		return "unknown"
	}
}

// Strategy selects the traversal order.
type Strategy int

const (
	// BreadthFirst visits nodes level by level.
	BreadthFirst Strategy = iota

	// DepthFirst visits nodes in pre-order, following the first edge first.
	DepthFirst
)

// String returns the string representation of the Strategy.
func (s Strategy) String() string {
	switch s {
	case BreadthFirst:
		return "breadth_first"
	case DepthFirst:
		return "depth_first"
	default:
		return "unknown"
	}
}

// Change describes what happened to a node or edge.
type Change int

const (
	// Added means the node or edge was inserted.
	Added Change = iota

	// Removed means the node or edge was deleted.
	Removed
)

// String returns the string representation of the Change.
func (c Change) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// NodeEvent is dispatched to node observers.
//
// For Added events Node is InvalidNode: the observer runs before the
// node is inserted.
type NodeEvent[L comparable] struct {
	Label  L
	Node   NodeID
	Change Change
}

// EdgeEvent is dispatched to edge observers after the edge changed.
type EdgeEvent[L comparable] struct {
	Parent   L
	Child    L
	ParentID NodeID
	ChildID  NodeID
	Change   Change
}

// Metadata is optional free-form annotation attached to a label.
type Metadata struct {
	// Tags are short classification keywords.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Authors lists who defined or curated the label.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Text is free documentation.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

// IsZero reports whether no metadata field is set.
func (m Metadata) IsZero() bool {
	return len(m.Tags) == 0 && len(m.Authors) == 0 && m.Text == ""
}

// Options configures Hierarchy behavior and limits.
type Options struct {
	// Name identifies the hierarchy in logs and metrics.
	// Default: "hierarchy"
	Name string

	// MaxNodes is the maximum number of live nodes.
	// Default: 1,000,000
	MaxNodes int

	// CheckCyclesOnInsert makes AddSubnode reject edges whose child is
	// already an ancestor of the parent. Costs one upward walk per insert.
	// Default: false
	CheckCyclesOnInsert bool

	// Logger receives debug output for structural changes.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults for hierarchy configuration.
func DefaultOptions() Options {
	return Options{
		Name:     "hierarchy",
		MaxNodes: DefaultMaxNodes,
	}
}

// Option is a functional option for configuring a Hierarchy.
type Option func(*Options)

// WithName sets the name used in logs and metrics.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithMaxNodes sets the maximum number of live nodes.
//
// If n <= 0, the default is kept.
func WithMaxNodes(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxNodes = n
		}
	}
}

// WithCycleCheckOnInsert enables cycle rejection in AddSubnode.
func WithCycleCheckOnInsert(enabled bool) Option {
	return func(o *Options) {
		o.CheckCyclesOnInsert = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Stats contains statistics about a hierarchy.
type Stats struct {
	// Nodes is the number of live nodes.
	Nodes int `json:"nodes"`

	// InnerNodes is the number of live inner nodes.
	InnerNodes int `json:"inner_nodes"`

	// LeafNodes is the number of live leaf nodes.
	LeafNodes int `json:"leaf_nodes"`

	// Edges is the number of parent/child edges.
	Edges int `json:"edges"`

	// Roots is the number of nodes without parents.
	Roots int `json:"roots"`

	// MaxNodes is the configured node capacity.
	MaxNodes int `json:"max_nodes"`
}
