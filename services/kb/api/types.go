// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"time"

	"github.com/AleutianAI/conceptbase/services/kb/document"
	"github.com/AleutianAI/conceptbase/services/kb/hierarchy"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by GET /v1/kb/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Name    string `json:"name"`
}

// StatsResponse is returned by GET /v1/kb/stats.
type StatsResponse struct {
	Name       string          `json:"name"`
	Source     string          `json:"source,omitempty"`
	LoadedAt   time.Time       `json:"loaded_at"`
	Concepts   hierarchy.Stats `json:"concepts"`
	Attributes hierarchy.Stats `json:"attributes"`
	Derived    int             `json:"derived"`
}

// ConceptSummary is one entry of GET /v1/kb/concepts.
type ConceptSummary struct {
	Name       string `json:"name"`
	Individual bool   `json:"individual,omitempty"`
	Derived    bool   `json:"derived,omitempty"`
}

// ConceptResponse is returned by GET /v1/kb/concepts/:name.
type ConceptResponse struct {
	Name       string              `json:"name"`
	Individual bool                `json:"individual,omitempty"`
	Derived    bool                `json:"derived,omitempty"`
	Supers     []string            `json:"supers"`
	Subs       []string            `json:"subs"`
	Attributes []string            `json:"attributes"`
	Metadata   *hierarchy.Metadata `json:"metadata,omitempty"`
}

// CreateConceptRequest is the body of POST /v1/kb/concepts.
type CreateConceptRequest struct {
	Name       string              `json:"name" binding:"required"`
	Supers     []string            `json:"supers"`
	Individual bool                `json:"individual"`
	Metadata   *hierarchy.Metadata `json:"metadata"`
}

// SuperRequest is the body of POST /v1/kb/concepts/:name/supers.
type SuperRequest struct {
	Super string `json:"super" binding:"required"`
}

// RemoveResponse lists the concepts a DELETE removed.
type RemoveResponse struct {
	Removed []string `json:"removed"`
}

// SetValueRequest is the body of PUT /v1/kb/concepts/:name/values/:attribute.
//
// Value is a concept name for concept attributes and a JSON scalar (or a
// two-element numeric array for an interval) otherwise.
type SetValueRequest struct {
	Value       any               `json:"value"`
	Scope       string            `json:"scope"`
	Constraints []document.Clause `json:"constraints"`
}

// QueryRequest is the body of POST /v1/kb/query.
type QueryRequest struct {
	Concept     string            `json:"concept" binding:"required"`
	Attribute   string            `json:"attribute" binding:"required"`
	Op          string            `json:"op"`
	Value       any               `json:"value"`
	Constraints []document.Clause `json:"constraints"`
	Explain     bool              `json:"explain"`
}

// ExplainedValue is a resolved value with its provenance.
type ExplainedValue struct {
	Value       any               `json:"value"`
	Tier        string            `json:"tier"`
	Source      string            `json:"source"`
	Attribute   string            `json:"attribute"`
	Constraints []document.Clause `json:"constraints,omitempty"`
}

// ValuesResponse is returned by value queries.
type ValuesResponse struct {
	Concept   string           `json:"concept"`
	Attribute string           `json:"attribute"`
	Values    []any            `json:"values"`
	Explain   []ExplainedValue `json:"explain,omitempty"`
}

// ValueRemovedResponse is returned by DELETE on a value.
type ValueRemovedResponse struct {
	Removed int `json:"removed"`
}

// SubsumesResponse is returned by GET /v1/kb/subsumes.
type SubsumesResponse struct {
	General  string `json:"general"`
	Specific string `json:"specific"`
	Subsumes bool   `json:"subsumes"`
}

// IndividualsResponse is returned by GET /v1/kb/concepts/:name/individuals.
type IndividualsResponse struct {
	Concept     string   `json:"concept"`
	Individuals []string `json:"individuals"`
}

// DerivedResponse describes one derived concept.
type DerivedResponse struct {
	Name    string            `json:"name"`
	Supers  []string          `json:"supers"`
	Where   []document.Clause `json:"where,omitempty"`
	Members []string          `json:"members"`
}

// RestructureResponse reports how many concepts a restructure moved.
type RestructureResponse struct {
	Classified int `json:"classified"`
}

// RepositionResponse reports where a concept ended up.
type RepositionResponse struct {
	Concept string   `json:"concept"`
	Supers  []string `json:"supers"`
}

// ImportResponse is returned by POST /v1/kb/import and /v1/kb/reload.
type ImportResponse struct {
	Summary document.Summary `json:"summary"`
}
