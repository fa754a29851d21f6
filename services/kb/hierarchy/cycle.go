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

// DetectCycle scans the whole hierarchy for a parent chain that returns to
// its start.
//
// Description:
//
//	Depth-first walk from every root, tracking the current path. Nodes not
//	reachable from any root (only possible when a cycle exists) are scanned
//	afterwards. This is an on-demand diagnostic; mutations do not run it.
//
// Outputs:
//
//	error - nil if the hierarchy is acyclic, otherwise a *CycleError[L]
//	        whose Path starts and ends at the same label.
//
// Thread Safety:
//
//	Read-only. Safe alongside other readers.
func (h *Hierarchy[L]) DetectCycle() error {
	visited := make(map[NodeID]bool, len(h.index))
	recStack := make(map[NodeID]bool)
	path := make([]NodeID, 0)

	var dfs func(id NodeID) []NodeID
	dfs = func(id NodeID) []NodeID {
		visited[id] = true
		recStack[id] = true
		path = append(path, id)

		for _, c := range h.nodes[id].innerChildren {
			if !visited[c] {
				if cycle := dfs(c); cycle != nil {
					return cycle
				}
			} else if recStack[c] {
				start := 0
				for i, n := range path {
					if n == c {
						start = i
						break
					}
				}
				out := make([]NodeID, 0, len(path)-start+1)
				out = append(out, path[start:]...)
				return append(out, c)
			}
		}

		path = path[:len(path)-1]
		recStack[id] = false
		return nil
	}

	check := func(id NodeID) error {
		if visited[id] || !h.nodes[id].alive || h.nodes[id].kind == KindLeaf {
			return nil
		}
		if cycle := dfs(id); cycle != nil {
			labels := make([]L, len(cycle))
			for i, n := range cycle {
				labels[i] = h.nodes[n].label
			}
			return &CycleError[L]{Path: labels}
		}
		return nil
	}

	for _, r := range h.roots {
		if err := check(r); err != nil {
			return err
		}
	}
	for i := range h.nodes {
		if err := check(NodeID(i)); err != nil {
			return err
		}
	}
	return nil
}
