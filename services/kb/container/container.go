// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package container holds attribute values for one (concept, attribute)
// pair.
//
// Three variants share the Container interface:
//
//   - Single: one unconstrained value, replaced on every Add.
//   - Constrained: append-only history of (value, constraints) entries;
//     lookups scan from the newest entry backward.
//   - List: insertion-ordered entries for non-functional attributes.
//
// A lookup is a Query: the caller's requested constraints plus an optional
// comparison. An entry matches when its own constraints imply the
// requested ones and its value passes the comparison.
package container

import (
	"errors"
	"iter"

	"github.com/AleutianAI/conceptbase/services/kb/constraint"
	"github.com/AleutianAI/conceptbase/services/kb/domain"
)

// ErrAppendOnly is returned when removing from a Constrained container.
var ErrAppendOnly = errors.New("constrained container is append-only")

// Kind identifies a container variant.
type Kind int

const (
	KindSingle      Kind = iota // one unconstrained value
	KindConstrained             // append-only constrained history
	KindList                    // ordered entries
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindConstrained:
		return "constrained"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Entry is one stored value and the constraints qualifying it.
type Entry struct {
	Value       domain.Value
	Constraints constraint.List
}

// Query selects entries.
//
// The zero Query matches every entry.
type Query struct {
	// Constraints the entry's own constraints must imply.
	Constraints constraint.List

	// Op and Operand form an optional comparison "value Op Operand".
	// Ignored when Operand is nil.
	Op      domain.Operator
	Operand domain.Value
}

// Matches reports whether e satisfies q.
func (q Query) Matches(e Entry) bool {
	if !e.Constraints.Implies(q.Constraints) {
		return false
	}
	if q.Operand == nil {
		return true
	}
	return domain.Satisfies(e.Value, q.Op, q.Operand)
}

// Container is the value side of a concept's attribute map.
type Container interface {
	// Kind returns the variant.
	Kind() Kind

	// Add stores e according to the variant's rule.
	Add(e Entry)

	// First returns the winning entry matching q.
	First(q Query) (Entry, bool)

	// All yields the entries matching q. Single and Constrained yield at
	// most one entry.
	All(q Query) iter.Seq[Entry]

	// Remove deletes entries whose value equals v and reports how many
	// were removed.
	Remove(v domain.Value) (int, error)

	// Len returns the number of stored entries.
	Len() int

	// Entries returns a copy of the stored entries in insertion order.
	Entries() []Entry
}

// New returns an empty container of the given kind.
func New(kind Kind) Container {
	switch kind {
	case KindConstrained:
		return &Constrained{}
	case KindList:
		return &List{}
	default:
		return &Single{}
	}
}

// Single holds at most one unconstrained value.
type Single struct {
	entry Entry
	set   bool
}

// Kind implements Container.
func (*Single) Kind() Kind { return KindSingle }

// Add replaces the stored value. Constraints on e are dropped.
func (s *Single) Add(e Entry) {
	s.entry = Entry{Value: e.Value}
	s.set = true
}

// First implements Container.
func (s *Single) First(q Query) (Entry, bool) {
	if !s.set || !q.Matches(s.entry) {
		return Entry{}, false
	}
	return s.entry, true
}

// All implements Container.
func (s *Single) All(q Query) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		if e, ok := s.First(q); ok {
			yield(e)
		}
	}
}

// Remove implements Container.
func (s *Single) Remove(v domain.Value) (int, error) {
	if !s.set || !domain.Equal(s.entry.Value, v) {
		return 0, nil
	}
	s.entry = Entry{}
	s.set = false
	return 1, nil
}

// Len implements Container.
func (s *Single) Len() int {
	if s.set {
		return 1
	}
	return 0
}

// Entries implements Container.
func (s *Single) Entries() []Entry {
	if !s.set {
		return nil
	}
	return []Entry{s.entry}
}

// Constrained is an append-only history of constrained values.
//
// Description:
//
//	Entries are never deleted. The most recently appended entry that
//	matches a query wins, so a newer assignment under the same
//	constraints shadows an older one without erasing it.
type Constrained struct {
	entries []Entry
}

// Kind implements Container.
func (*Constrained) Kind() Kind { return KindConstrained }

// Add appends e.
func (c *Constrained) Add(e Entry) {
	c.entries = append(c.entries, e)
}

// First scans from the newest entry backward.
func (c *Constrained) First(q Query) (Entry, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if q.Matches(c.entries[i]) {
			return c.entries[i], true
		}
	}
	return Entry{}, false
}

// All yields the winning entry only.
func (c *Constrained) All(q Query) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		if e, ok := c.First(q); ok {
			yield(e)
		}
	}
}

// Remove always fails with ErrAppendOnly.
func (c *Constrained) Remove(domain.Value) (int, error) {
	return 0, ErrAppendOnly
}

// Len implements Container.
func (c *Constrained) Len() int { return len(c.entries) }

// Entries implements Container.
func (c *Constrained) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// List holds entries in insertion order. Adding an entry equal to a stored
// one (same value and constraints) is a no-op.
type List struct {
	entries []Entry
}

// Kind implements Container.
func (*List) Kind() Kind { return KindList }

// Add appends e unless an identical entry exists.
func (l *List) Add(e Entry) {
	for _, x := range l.entries {
		if sameEntry(x, e) {
			return
		}
	}
	l.entries = append(l.entries, e)
}

// First returns the earliest matching entry.
func (l *List) First(q Query) (Entry, bool) {
	for _, e := range l.entries {
		if q.Matches(e) {
			return e, true
		}
	}
	return Entry{}, false
}

// All yields every matching entry in insertion order.
func (l *List) All(q Query) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i := 0; i < len(l.entries); i++ {
			if q.Matches(l.entries[i]) && !yield(l.entries[i]) {
				return
			}
		}
	}
}

// Remove implements Container.
func (l *List) Remove(v domain.Value) (int, error) {
	kept := l.entries[:0]
	removed := 0
	for _, e := range l.entries {
		if domain.Equal(e.Value, v) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(l.entries[len(kept):])
	l.entries = kept
	return removed, nil
}

// Len implements Container.
func (l *List) Len() int { return len(l.entries) }

// Entries implements Container.
func (l *List) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func sameEntry(a, b Entry) bool {
	return domain.Equal(a.Value, b.Value) && a.Constraints.String() == b.Constraints.String()
}
