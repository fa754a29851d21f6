// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/conceptbase/services/kb/document"
	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
)

// comparison parses an --op/--value pair for attribute a.
func comparison(kb *ontology.KnowledgeBase, a *ontology.Attribute, op, raw string) (domain.Operator, domain.Value, error) {
	operator, err := domain.ParseOperator(op)
	if err != nil {
		return operator, nil, err
	}
	operand, err := document.ValueFor(kb, a, document.ParseScalar(raw))
	if err != nil {
		return operator, nil, fmt.Errorf("--value: %w", err)
	}
	return operator, operand, nil
}

// parseClause parses "attribute:op:value". The value may itself contain
// colons.
func parseClause(s string) (document.Clause, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return document.Clause{}, fmt.Errorf("constraint %q: want attribute:op:value", s)
	}
	return document.Clause{
		Attribute: parts[0],
		Op:        parts[1],
		Value:     document.ParseScalar(parts[2]),
	}, nil
}

// writeFile writes data atomically through a temporary file in the same
// directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".kb-export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
