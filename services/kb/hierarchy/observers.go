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
	"github.com/google/uuid"
)

// SubscriptionID identifies a registered observer.
type SubscriptionID = uuid.UUID

// NodeHandler receives node events.
type NodeHandler[L comparable] func(NodeEvent[L])

// EdgeHandler receives edge events.
type EdgeHandler[L comparable] func(EdgeEvent[L])

type nodeSub[L comparable] struct {
	id SubscriptionID
	fn NodeHandler[L]
}

type edgeSub[L comparable] struct {
	id SubscriptionID
	fn EdgeHandler[L]
}

// observerSet holds copy-on-write handler slices so that a dispatch loop
// keeps iterating its snapshot even if handlers are unsubscribed.
type observerSet[L comparable] struct {
	node  []nodeSub[L]
	edge  []edgeSub[L]
	local map[NodeID][]edgeSub[L]
}

// OnNodeEvent registers a handler for node additions and removals.
//
// Description:
//
//	Added events are delivered before the node exists; Removed events after
//	it is gone. Handlers are called in registration order.
//
// Outputs:
//
//	SubscriptionID - Pass to Unsubscribe to remove the handler.
func (h *Hierarchy[L]) OnNodeEvent(fn NodeHandler[L]) SubscriptionID {
	id := uuid.New()
	next := make([]nodeSub[L], len(h.observers.node), len(h.observers.node)+1)
	copy(next, h.observers.node)
	h.observers.node = append(next, nodeSub[L]{id: id, fn: fn})
	return id
}

// OnEdgeEvent registers a handler for every edge addition and removal.
func (h *Hierarchy[L]) OnEdgeEvent(fn EdgeHandler[L]) SubscriptionID {
	id := uuid.New()
	next := make([]edgeSub[L], len(h.observers.edge), len(h.observers.edge)+1)
	copy(next, h.observers.edge)
	h.observers.edge = append(next, edgeSub[L]{id: id, fn: fn})
	return id
}

// OnLocalEdgeEvent registers a handler for edges whose parent is the given
// node.
//
// Description:
//
//	Local handlers run after the global edge handlers. They are dropped
//	when the node is removed.
//
// Outputs:
//
//	SubscriptionID - Pass to Unsubscribe to remove the handler.
//	error - ErrNodeNotFound if parent is not live.
func (h *Hierarchy[L]) OnLocalEdgeEvent(parent NodeID, fn EdgeHandler[L]) (SubscriptionID, error) {
	if !h.valid(parent) {
		return uuid.Nil, ErrNodeNotFound
	}
	if h.observers.local == nil {
		h.observers.local = make(map[NodeID][]edgeSub[L])
	}
	id := uuid.New()
	cur := h.observers.local[parent]
	next := make([]edgeSub[L], len(cur), len(cur)+1)
	copy(next, cur)
	h.observers.local[parent] = append(next, edgeSub[L]{id: id, fn: fn})
	return id, nil
}

// Unsubscribe removes a handler registered with any On* method.
//
// Returns false if the subscription was not found.
func (h *Hierarchy[L]) Unsubscribe(id SubscriptionID) bool {
	for i, s := range h.observers.node {
		if s.id == id {
			next := make([]nodeSub[L], 0, len(h.observers.node)-1)
			next = append(next, h.observers.node[:i]...)
			h.observers.node = append(next, h.observers.node[i+1:]...)
			return true
		}
	}
	if next, ok := withoutEdgeSub(h.observers.edge, id); ok {
		h.observers.edge = next
		return true
	}
	for parent, subs := range h.observers.local {
		if next, ok := withoutEdgeSub(subs, id); ok {
			if len(next) == 0 {
				delete(h.observers.local, parent)
			} else {
				h.observers.local[parent] = next
			}
			return true
		}
	}
	return false
}

func withoutEdgeSub[L comparable](subs []edgeSub[L], id SubscriptionID) ([]edgeSub[L], bool) {
	for i, s := range subs {
		if s.id == id {
			next := make([]edgeSub[L], 0, len(subs)-1)
			next = append(next, subs[:i]...)
			return append(next, subs[i+1:]...), true
		}
	}
	return subs, false
}

func (h *Hierarchy[L]) dispatchNode(ev NodeEvent[L]) {
	subs := h.observers.node
	if ev.Change == Removed && ev.Node != InvalidNode {
		delete(h.observers.local, ev.Node)
	}
	if len(subs) == 0 {
		return
	}
	h.dispatching++
	defer func() { h.dispatching-- }()
	for _, s := range subs {
		s.fn(ev)
	}
}

func (h *Hierarchy[L]) dispatchEdge(ev EdgeEvent[L]) {
	global := h.observers.edge
	local := h.observers.local[ev.ParentID]
	if len(global) == 0 && len(local) == 0 {
		return
	}
	h.dispatching++
	defer func() { h.dispatching-- }()
	for _, s := range global {
		s.fn(ev)
	}
	for _, s := range local {
		s.fn(ev)
	}
}
