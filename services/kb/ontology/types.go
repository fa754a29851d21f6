// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ontology

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/conceptbase/services/kb/hierarchy"
)

// DefaultMaxReclassificationPasses bounds the fixpoint loops of
// RepositionConcept.
const DefaultMaxReclassificationPasses = 64

// DefaultFilterParallelism bounds concurrent filter evaluation in
// RestructureHierarchy.
const DefaultFilterParallelism = 4

// Scope governs which concepts a stored value applies to.
type Scope int

const (
	// Local values apply to the owning concept only.
	Local Scope = iota

	// Default values apply to descendants that have no value of their own.
	// They do not apply to the owning concept.
	Default

	// All values apply to the owning concept and every descendant.
	All
)

// String returns the string representation of the Scope.
func (s Scope) String() string {
	switch s {
	case Local:
		return "local"
	case Default:
		return "default"
	case All:
		return "all"
	default:
		return "unknown"
	}
}

// ParseScope parses "local", "default" or "all", case-insensitively.
// The empty string is Local.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local":
		return Local, nil
	case "default":
		return Default, nil
	case "all":
		return All, nil
	default:
		return Local, fmt.Errorf("unknown scope %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scope) UnmarshalText(b []byte) error {
	v, err := ParseScope(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// AttributeKind is the closed set of attribute variants.
type AttributeKind int

const (
	// KindData attributes store concrete domain values.
	KindData AttributeKind = iota

	// KindConcept attributes store concepts and may be reflexive,
	// symmetric, transitive or have an inverse.
	KindConcept

	// KindChain attributes follow a path of concept attributes.
	KindChain

	// KindFunction attributes compute values with a caller-supplied
	// function.
	KindFunction

	// KindAggregate attributes reduce the values of a source attribute.
	KindAggregate
)

// String returns the string representation of the AttributeKind.
func (k AttributeKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindConcept:
		return "concept"
	case KindChain:
		return "chain"
	case KindFunction:
		return "function"
	case KindAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Stored reports whether values of this kind are stored on concepts.
func (k AttributeKind) Stored() bool {
	return k == KindData || k == KindConcept
}

// Tier identifies which resolution tier produced a value.
type Tier int

const (
	TierLocal    Tier = iota // value set on the concept itself
	TierAll                  // All-scoped value on the concept or an ancestor
	TierDefault              // Default-scoped value on an ancestor
	TierComputed             // chain, function or aggregate result
)

// String returns the string representation of the Tier.
func (t Tier) String() string {
	switch t {
	case TierLocal:
		return "local"
	case TierAll:
		return "all"
	case TierDefault:
		return "default"
	case TierComputed:
		return "computed"
	default:
		return "unknown"
	}
}

// Options configures a KnowledgeBase.
type Options struct {
	// Name identifies the knowledge base in logs and metrics.
	// Default: "kb"
	Name string

	// MaxConcepts caps the concept hierarchy size.
	// Default: hierarchy.DefaultMaxNodes
	MaxConcepts int

	// CheckCyclesOnInsert rejects super-concept edges that would close a
	// cycle.
	// Default: true
	CheckCyclesOnInsert bool

	// MaxReclassificationPasses bounds each fixpoint loop in
	// RepositionConcept.
	// Default: 64
	MaxReclassificationPasses int

	// FilterParallelism bounds concurrent filter evaluation.
	// Default: 4
	FilterParallelism int

	// AutoReposition makes SetValue, RemoveValue and ClearValue call
	// RepositionConcept.
	// Default: false
	AutoReposition bool

	// Logger receives structured logs.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultOptions returns the default knowledge base options.
func DefaultOptions() Options {
	return Options{
		Name:                      "kb",
		MaxConcepts:               hierarchy.DefaultMaxNodes,
		CheckCyclesOnInsert:       true,
		MaxReclassificationPasses: DefaultMaxReclassificationPasses,
		FilterParallelism:         DefaultFilterParallelism,
	}
}

// Option is a functional option for configuring a KnowledgeBase.
type Option func(*Options)

// WithName sets the knowledge base name.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithMaxConcepts sets the concept capacity. Values <= 0 keep the default.
func WithMaxConcepts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxConcepts = n
		}
	}
}

// WithCycleCheck enables or disables insert-time cycle rejection.
func WithCycleCheck(enabled bool) Option {
	return func(o *Options) {
		o.CheckCyclesOnInsert = enabled
	}
}

// WithMaxReclassificationPasses sets the fixpoint pass cap. Values <= 0
// keep the default.
func WithMaxReclassificationPasses(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxReclassificationPasses = n
		}
	}
}

// WithFilterParallelism sets the number of concurrent filter evaluations.
// Values <= 0 keep the default.
func WithFilterParallelism(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.FilterParallelism = n
		}
	}
}

// WithAutoReposition enables repositioning after value edits.
func WithAutoReposition(enabled bool) Option {
	return func(o *Options) {
		o.AutoReposition = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}
