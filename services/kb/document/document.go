// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package document reads and writes knowledge bases as YAML documents.
//
// A document is the flat, declarative form of a knowledge base: concept
// definitions as (name, supers) pairs, attribute definitions, value
// tuples (concept, attribute, value, scope, constraints) and derived
// concepts whose filters are lists of (attribute, operator, value)
// clauses. Apply replays a document against a KnowledgeBase; Export
// produces one from it.
//
// Thread Safety:
//
//	Decode, Encode and Validate are safe for concurrent use. Apply and
//	Export touch a KnowledgeBase and follow its single-writer rule.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/hierarchy"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
)

// MaxDocumentSize is the largest document Load accepts (4MB).
const MaxDocumentSize = 4 * 1024 * 1024

// Sentinel errors for document operations.
var (
	// ErrInvalidDocument is returned when a document fails schema validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrUnresolved is returned when a document refers to a concept or
	// attribute it has not defined (yet).
	ErrUnresolved = errors.New("unresolved reference")

	// ErrDocumentTooLarge is returned when a file exceeds MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("document too large")
)

// Document is the root of the YAML form.
type Document struct {
	Name       string           `yaml:"name,omitempty" json:"name,omitempty"`
	Concepts   []ConceptEntry   `yaml:"concepts,omitempty" json:"concepts,omitempty" validate:"dive"`
	Attributes []AttributeEntry `yaml:"attributes,omitempty" json:"attributes,omitempty" validate:"dive"`
	Derived    []DerivedEntry   `yaml:"derived,omitempty" json:"derived,omitempty" validate:"dive"`
	Values     []ValueEntry     `yaml:"values,omitempty" json:"values,omitempty" validate:"dive"`
}

// ConceptEntry defines a concept or individual and its super-concepts.
type ConceptEntry struct {
	Name       string              `yaml:"name" json:"name" validate:"required"`
	Supers     []string            `yaml:"supers,omitempty" json:"supers,omitempty" validate:"dive,required"`
	Individual bool                `yaml:"individual,omitempty" json:"individual,omitempty"`
	Meta       *hierarchy.Metadata `yaml:"meta,omitempty" json:"meta,omitempty"`
}

// AttributeEntry defines an attribute.
//
// Range is a value kind ("number", "text", ...) for data attributes and a
// concept name for concept attributes. Function attributes have no
// document form.
type AttributeEntry struct {
	Name       string   `yaml:"name" json:"name" validate:"required"`
	Kind       string   `yaml:"kind,omitempty" json:"kind,omitempty" validate:"omitempty,oneof=data concept chain aggregate"`
	Range      string   `yaml:"range,omitempty" json:"range,omitempty"`
	Domain     string   `yaml:"domain,omitempty" json:"domain,omitempty"`
	Supers     []string `yaml:"supers,omitempty" json:"supers,omitempty" validate:"dive,required"`
	Functional bool     `yaml:"functional,omitempty" json:"functional,omitempty"`
	Reflexive  bool     `yaml:"reflexive,omitempty" json:"reflexive,omitempty"`
	Symmetric  bool     `yaml:"symmetric,omitempty" json:"symmetric,omitempty"`
	Transitive bool     `yaml:"transitive,omitempty" json:"transitive,omitempty"`
	Inverse    string   `yaml:"inverse,omitempty" json:"inverse,omitempty"`
	Chain      []string `yaml:"chain,omitempty" json:"chain,omitempty" validate:"required_if=Kind chain"`
	Source     string   `yaml:"source,omitempty" json:"source,omitempty" validate:"required_if=Kind aggregate"`
	Reduce     string   `yaml:"reduce,omitempty" json:"reduce,omitempty" validate:"required_if=Kind aggregate,reducer"`
}

// Clause is one (attribute, operator, value) triple. It is used both for
// value constraints and for derived-concept filters.
type Clause struct {
	Attribute string `yaml:"attribute" json:"attribute" validate:"required"`
	Op        string `yaml:"op" json:"op" validate:"required,operator"`
	Value     any    `yaml:"value" json:"value"`
}

// ValueEntry assigns a value to a concept.
type ValueEntry struct {
	Concept     string   `yaml:"concept" json:"concept" validate:"required"`
	Attribute   string   `yaml:"attribute" json:"attribute" validate:"required"`
	Value       any      `yaml:"value" json:"value"`
	Scope       string   `yaml:"scope,omitempty" json:"scope,omitempty" validate:"scope"`
	Constraints []Clause `yaml:"constraints,omitempty" json:"constraints,omitempty" validate:"dive"`
}

// DerivedEntry defines a derived concept. Where clauses are conjunctive.
type DerivedEntry struct {
	Name   string   `yaml:"name" json:"name" validate:"required"`
	Supers []string `yaml:"supers" json:"supers" validate:"required,min=1,dive,required"`
	Where  []Clause `yaml:"where" json:"where" validate:"required,min=1,dive"`
}

// documentValidate carries the custom scope, operator and reducer tags.
var documentValidate *validator.Validate

func init() {
	documentValidate = validator.New()
	_ = documentValidate.RegisterValidation("scope", func(fl validator.FieldLevel) bool {
		_, err := ontology.ParseScope(fl.Field().String())
		return err == nil
	})
	_ = documentValidate.RegisterValidation("operator", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseOperator(fl.Field().String())
		return err == nil
	})
	_ = documentValidate.RegisterValidation("reducer", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		_, ok := ontology.Reducers[name]
		return ok || name == ""
	})
}

// Validate checks the document against its schema.
//
// Outputs:
//
//	error - Wraps ErrInvalidDocument and lists every failing field.
func (d *Document) Validate() error {
	err := documentValidate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(fields, ", "))
}

// Decode parses and validates a YAML document.
//
// Description:
//
//	Unknown keys are rejected. An empty input decodes to an empty
//	document.
//
// Outputs:
//
//	*Document - The decoded document. Never nil on success.
//	error - A YAML syntax error, ErrDocumentTooLarge, or ErrInvalidDocument.
func Decode(data []byte) (*Document, error) {
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrDocumentTooLarge, len(data), MaxDocumentSize)
	}
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshaling YAML: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode renders the document as YAML with two-space indentation.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshaling YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshaling YAML: %w", err)
	}
	return buf.Bytes(), nil
}
