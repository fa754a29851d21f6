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
	"context"
	"errors"
	"net/http"

	"github.com/AleutianAI/conceptbase/services/kb/container"
	"github.com/AleutianAI/conceptbase/services/kb/document"
	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/hierarchy"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
)

// errBadRequest marks malformed request parameters.
var errBadRequest = errors.New("bad request")

// statusFor maps an error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ontology.ErrUnknownConcept),
		errors.Is(err, ontology.ErrUnknownAttribute),
		errors.Is(err, document.ErrUnresolved),
		errors.Is(err, hierarchy.ErrNodeNotFound),
		errors.Is(err, hierarchy.ErrEdgeNotFound):
		return http.StatusNotFound, "NOT_FOUND"

	case errors.Is(err, ontology.ErrDuplicateName),
		errors.Is(err, ontology.ErrConceptInUse),
		errors.Is(err, ontology.ErrReclassificationLimit),
		errors.Is(err, container.ErrAppendOnly):
		return http.StatusConflict, "CONFLICT"

	case errors.Is(err, hierarchy.ErrCycleDetected),
		errors.Is(err, hierarchy.ErrLeafParent),
		errors.Is(err, ontology.ErrIndividualSuper),
		errors.Is(err, ontology.ErrInvalidAttribute),
		errors.Is(err, ontology.ErrComputedAttribute),
		errors.Is(err, ontology.ErrDomainViolation),
		errors.Is(err, ontology.ErrRangeViolation),
		errors.Is(err, ontology.ErrInvalidDerived):
		return http.StatusUnprocessableEntity, "UNPROCESSABLE"

	case errors.Is(err, errBadRequest),
		errors.Is(err, document.ErrInvalidDocument),
		errors.Is(err, domain.ErrUnknownOperator),
		errors.Is(err, domain.ErrUnsupportedValue):
		return http.StatusBadRequest, "INVALID_REQUEST"

	case errors.Is(err, document.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge, "TOO_LARGE"

	case errors.Is(err, hierarchy.ErrMaxNodesExceeded):
		return http.StatusInsufficientStorage, "CAPACITY"

	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "CANCELLED"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}
