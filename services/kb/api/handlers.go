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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AleutianAI/conceptbase/services/kb/document"
	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
	"github.com/AleutianAI/conceptbase/services/kb/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ServiceVersion is the knowledge base service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the knowledge base.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID gets the request ID from header or creates one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// requestLogger returns the service logger tagged with the request ID,
// the handler name and, when otelgin started a span, its trace IDs.
func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	requestID := getOrCreateRequestID(c)
	return telemetry.LoggerWithTrace(c.Request.Context(), h.svc.logger).With(
		slog.String("request_id", requestID),
		slog.String("handler", handler),
	)
}

// fail writes the error response for err.
func fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	} else {
		logger.Debug("request rejected", slog.Int("status", status), slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// badBody writes a 400 for a body that failed to bind.
func badBody(c *gin.Context, logger *slog.Logger, err error) {
	logger.Debug("invalid request body", slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid request body",
		Code:    "INVALID_REQUEST",
		Details: err.Error(),
	})
}

func conceptByName(kb *ontology.KnowledgeBase, name string) (*ontology.Concept, error) {
	c, ok := kb.Concept(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ontology.ErrUnknownConcept, name)
	}
	return c, nil
}

func attributeByName(kb *ontology.KnowledgeBase, name string) (*ontology.Attribute, error) {
	a, ok := kb.Attribute(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ontology.ErrUnknownAttribute, name)
	}
	return a, nil
}

func derivedByName(kb *ontology.KnowledgeBase, name string) (*ontology.DerivedConcept, error) {
	c, err := conceptByName(kb, name)
	if err != nil {
		return nil, err
	}
	if c.Derived() == nil {
		return nil, fmt.Errorf("%w: %q is not a derived concept", ontology.ErrUnknownConcept, name)
	}
	return c.Derived(), nil
}

func conceptNames(cs []*ontology.Concept) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name()
	}
	return out
}

// HandleHealth handles GET /v1/kb/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	getOrCreateRequestID(c)
	var name string
	_ = h.svc.Read(func(kb *ontology.KnowledgeBase) error {
		name = kb.Name()
		return nil
	})
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Name:    name,
	})
}

// HandleStats handles GET /v1/kb/stats.
//
// Response:
//
//	200 OK: StatsResponse
func (h *Handlers) HandleStats(c *gin.Context) {
	getOrCreateRequestID(c)
	var resp StatsResponse
	_ = h.svc.Read(func(kb *ontology.KnowledgeBase) error {
		resp = StatsResponse{
			Name:       kb.Name(),
			Concepts:   kb.ConceptHierarchy().Stats(),
			Attributes: kb.AttributeHierarchy().Stats(),
			Derived:    len(kb.DerivedConcepts()),
		}
		return nil
	})
	resp.Source = h.svc.Source()
	resp.LoadedAt = h.svc.LoadedAt()
	c.JSON(http.StatusOK, resp)
}

// HandleListConcepts handles GET /v1/kb/concepts.
//
// Query Parameters:
//
//	individuals - "true" lists only individuals, "false" only classes.
//
// Response:
//
//	200 OK: []ConceptSummary
//	400 Bad Request: Malformed individuals flag
func (h *Handlers) HandleListConcepts(c *gin.Context) {
	logger := h.requestLogger(c, "HandleListConcepts")

	filter := -1
	if raw := c.Query("individuals"); raw != "" {
		want, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, logger, fmt.Errorf("%w: individuals: %v", errBadRequest, err))
			return
		}
		filter = 0
		if want {
			filter = 1
		}
	}

	out := []ConceptSummary{}
	_ = h.svc.Read(func(kb *ontology.KnowledgeBase) error {
		for _, con := range kb.Concepts() {
			if filter >= 0 && con.IsIndividual() != (filter == 1) {
				continue
			}
			out = append(out, ConceptSummary{
				Name:       con.Name(),
				Individual: con.IsIndividual(),
				Derived:    con.Derived() != nil,
			})
		}
		return nil
	})
	c.JSON(http.StatusOK, out)
}

// HandleGetConcept handles GET /v1/kb/concepts/:name.
//
// Response:
//
//	200 OK: ConceptResponse
//	404 Not Found: Unknown concept
func (h *Handlers) HandleGetConcept(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGetConcept")

	var resp ConceptResponse
	err := h.svc.Read(func(kb *ontology.KnowledgeBase) error {
		con, err := conceptByName(kb, c.Param("name"))
		if err != nil {
			return err
		}
		resp = describeConcept(kb, con)
		return nil
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func describeConcept(kb *ontology.KnowledgeBase, con *ontology.Concept) ConceptResponse {
	own := con.OwnAttributes()
	attrs := make([]string, len(own))
	for i, a := range own {
		attrs[i] = a.Name()
	}
	resp := ConceptResponse{
		Name:       con.Name(),
		Individual: con.IsIndividual(),
		Derived:    con.Derived() != nil,
		Supers:     conceptNames(kb.Supers(con)),
		Subs:       conceptNames(kb.Subs(con)),
		Attributes: attrs,
	}
	if meta, ok := kb.Metadata(con); ok && !meta.IsZero() {
		resp.Metadata = &meta
	}
	return resp
}

// HandleCreateConcept handles POST /v1/kb/concepts.
//
// Description:
//
//	Defines a concept or individual below the named supers. Defining an
//	existing concept with the same kind only adds the missing super edges.
//
// Request Body:
//
//	CreateConceptRequest
//
// Response:
//
//	201 Created: ConceptResponse
//	400 Bad Request: Validation error
//	404 Not Found: Unknown super
//	422 Unprocessable Entity: Cycle or individual super
//	507 Insufficient Storage: Concept capacity reached
func (h *Handlers) HandleCreateConcept(c *gin.Context) {
	logger := h.requestLogger(c, "HandleCreateConcept")

	var req CreateConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, logger, err)
		return
	}

	var resp ConceptResponse
	err := h.svc.Write(c.Request.Context(), "define_concept", func(kb *ontology.KnowledgeBase) error {
		supers := make([]*ontology.Concept, len(req.Supers))
		for i, name := range req.Supers {
			s, err := conceptByName(kb, name)
			if err != nil {
				return err
			}
			supers[i] = s
		}
		define := kb.DefineConcept
		if req.Individual {
			define = kb.DefineIndividual
		}
		con, err := define(req.Name, supers...)
		if err != nil {
			return err
		}
		if req.Metadata != nil {
			if err := kb.SetMetadata(con, *req.Metadata); err != nil {
				return err
			}
		}
		resp = describeConcept(kb, con)
		return nil
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	logger.Info("concept defined", slog.String("concept", resp.Name))
	c.JSON(http.StatusCreated, resp)
}

// HandleDeleteConcept handles DELETE /v1/kb/concepts/:name.
//
// Query Parameters:
//
//	subtree - "true" also removes everything only reachable through the
//	          concept. Otherwise the concept's children are spliced onto
//	          its supers.
//
// Response:
//
//	200 OK: RemoveResponse
//	404 Not Found: Unknown concept
//	409 Conflict: Concept still referenced
func (h *Handlers) HandleDeleteConcept(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDeleteConcept")

	subtree := c.Query("subtree") == "true"
	resp := RemoveResponse{Removed: []string{}}
	err := h.svc.Write(c.Request.Context(), "remove_concept", func(kb *ontology.KnowledgeBase) error {
		con, err := conceptByName(kb, c.Param("name"))
		if err != nil {
			return err
		}
		if subtree {
			removed, err := kb.RemoveConceptSubtree(con)
			if err != nil {
				return err
			}
			resp.Removed = append(resp.Removed, removed...)
			return nil
		}
		if err := kb.RemoveConcept(con); err != nil {
			return err
		}
		resp.Removed = append(resp.Removed, con.Name())
		return nil
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	logger.Info("concepts removed", slog.Int("count", len(resp.Removed)))
	c.JSON(http.StatusOK, resp)
}

// HandleAddSuper handles POST /v1/kb/concepts/:name/supers.
//
// Response:
//
//	200 OK: ConceptResponse
//	404 Not Found: Unknown concept
//	422 Unprocessable Entity: The edge would create a cycle
func (h *Handlers) HandleAddSuper(c *gin.Context) {
	logger := h.requestLogger(c, "HandleAddSuper")

	var req SuperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, logger, err)
		return
	}
	h.editSuper(c, logger, "add_super", req.Super, (*ontology.KnowledgeBase).AddSuper)
}

// HandleRemoveSuper handles DELETE /v1/kb/concepts/:name/supers/:super.
func (h *Handlers) HandleRemoveSuper(c *gin.Context) {
	logger := h.requestLogger(c, "HandleRemoveSuper")
	h.editSuper(c, logger, "remove_super", c.Param("super"), (*ontology.KnowledgeBase).RemoveSuper)
}

func (h *Handlers) editSuper(c *gin.Context, logger *slog.Logger, op, super string,
	edit func(kb *ontology.KnowledgeBase, c, super *ontology.Concept) error) {

	var resp ConceptResponse
	err := h.svc.Write(c.Request.Context(), op, func(kb *ontology.KnowledgeBase) error {
		con, err := conceptByName(kb, c.Param("name"))
		if err != nil {
			return err
		}
		sup, err := conceptByName(kb, super)
		if err != nil {
			return err
		}
		if err := edit(kb, con, sup); err != nil {
			return err
		}
		resp = describeConcept(kb, con)
		return nil
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleGetValues handles GET /v1/kb/concepts/:name/values/:attribute.
//
// Description:
//
//	Resolves the attribute on the concept through the Local, All and
//	Default tiers. For constraint contexts use POST /v1/kb/query.
//
// Query Parameters:
//
//	op - Optional comparison operator (==, !=, <, <=, >, >=, overlaps, contains).
//	value - Operand for op, parsed as a YAML scalar.
//	explain - "true" adds the tier and source of every value.
//
// Response:
//
//	200 OK: ValuesResponse
//	400 Bad Request: Unknown operator or bad operand
//	404 Not Found: Unknown concept or attribute
func (h *Handlers) HandleGetValues(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGetValues")

	req := QueryRequest{
		Concept:   c.Param("name"),
		Attribute: c.Param("attribute"),
		Op:        c.Query("op"),
		Explain:   c.Query("explain") == "true",
	}
	if raw, ok := c.GetQuery("value"); ok {
		req.Value = document.ParseScalar(raw)
	}
	h.query(c, logger, req)
}

// HandleQuery handles POST /v1/kb/query.
//
// Request Body:
//
//	QueryRequest
//
// Response:
//
//	200 OK: ValuesResponse
//	400 Bad Request: Validation error
//	404 Not Found: Unknown concept or attribute
func (h *Handlers) HandleQuery(c *gin.Context) {
	logger := h.requestLogger(c, "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, logger, err)
		return
	}
	h.query(c, logger, req)
}

func (h *Handlers) query(c *gin.Context, logger *slog.Logger, req QueryRequest) {
	var resp ValuesResponse
	err := h.svc.Read(func(kb *ontology.KnowledgeBase) error {
		con, err := conceptByName(kb, req.Concept)
		if err != nil {
			return err
		}
		a, err := attributeByName(kb, req.Attribute)
		if err != nil {
			return err
		}

		var opts []ontology.QueryOption
		if req.Op != "" {
			op, err := domain.ParseOperator(req.Op)
			if err != nil {
				return err
			}
			operand, err := document.ValueFor(kb, a, req.Value)
			if err != nil {
				return err
			}
			opts = append(opts, ontology.WithComparison(op, operand))
		}
		if len(req.Constraints) > 0 {
			cs, err := document.Constraints(req.Constraints)
			if err != nil {
				return err
			}
			opts = append(opts, ontology.WithConstraints(cs...))
		}

		resp = ValuesResponse{Concept: con.Name(), Attribute: a.Name(), Values: []any{}}
		for _, v := range kb.Values(con, a, opts...) {
			resp.Values = append(resp.Values, document.EncodeValue(v))
		}
		if req.Explain {
			for _, rv := range kb.Explain(con, a, opts...) {
				ev := ExplainedValue{
					Value:       document.EncodeValue(rv.Value),
					Tier:        rv.Tier.String(),
					Constraints: document.Clauses(rv.Constraints),
				}
				if rv.Source != nil {
					ev.Source = rv.Source.Name()
				}
				if rv.Attribute != nil {
					ev.Attribute = rv.Attribute.Name()
				}
				resp.Explain = append(resp.Explain, ev)
			}
		}
		return nil
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSetValue handles PUT /v1/kb/concepts/:name/values/:attribute.
//
// Description:
//
//	Stores a value with the given scope ("local", "all" or "default";
//	empty means local) and optional constraint context.
//
// Request Body:
//
//	SetValueRequest
//
// Response:
//
//	200 OK: ValuesResponse with the concept's resolved values
//	400 Bad Request: Bad value, scope or constraint
//	404 Not Found: Unknown concept or attribute
//	422 Unprocessable Entity: Domain or range violation, computed attribute
func (h *Handlers) HandleSetValue(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSetValue")

	var req SetValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, logger, err)
		return
	}
	scope, err := ontology.ParseScope(req.Scope)
	if err != nil {
		fail(c, logger, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	var resp ValuesResponse
	err = h.svc.Write(c.Request.Context(), "set_value", func(kb *ontology.KnowledgeBase) error {
		con, err := conceptByName(kb, c.Param("name"))
		if err != nil {
			return err
		}
		a, err := attributeByName(kb, c.Param("attribute"))
		if err != nil {
			return err
		}
		v, err := document.ValueFor(kb, a, req.Value)
		if err != nil {
			return err
		}
		cs, err := document.Constraints(req.Constraints)
		if err != nil {
			return err
		}
		if err := kb.SetValue(con, a, v, scope, cs...); err != nil {
			return err
		}
		resp = ValuesResponse{Concept: con.Name(), Attribute: a.Name(), Values: []any{}}
		for _, v := range kb.Values(con, a) {
			resp.Values = append(resp.Values, document.EncodeValue(v))
		}
		return nil
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDeleteValue handles DELETE /v1/kb/concepts/:name/values/:attribute.
//
// Query Parameters:
//
//	value - Remove only this value. Without it every value the concept
//	        stores for the attribute is cleared.
//
// Response:
//
//	200 OK: ValueRemovedResponse
//	404 Not Found: Unknown concept or attribute
func (h *Handlers) HandleDeleteValue(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDeleteValue")

	raw, one := c.GetQuery("value")
	var resp ValueRemovedResponse
	err := h.svc.Write(c.Request.Context(), "remove_value", func(kb *ontology.KnowledgeBase) error {
		con, err := conceptByName(kb, c.Param("name"))
		if err != nil {
			return err
		}
		a, err := attributeByName(kb, c.Param("attribute"))
		if err != nil {
			return err
		}
		if one {
			v, err := document.ValueFor(kb, a, document.ParseScalar(raw))
			if err != nil {
				return err
			}
			resp.Removed, err = kb.RemoveValue(con, a, v)
			return err
		}
		cleared, err := kb.ClearValue(con, a)
		if cleared {
			resp.Removed = 1
		}
		return err
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSubsumes handles GET /v1/kb/subsumes?general=&specific=.
//
// Response:
//
//	200 OK: SubsumesResponse
//	400 Bad Request: Missing parameter
//	404 Not Found: Unknown concept
func (h *Handlers) HandleSubsumes(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSubsumes")

	req := SubsumesResponse{General: c.Query("general"), Specific: c.Query("specific")}
	if req.General == "" || req.Specific == "" {
		fail(c, logger, fmt.Errorf("%w: general and specific are required", errBadRequest))
		return
	}
	err := h.svc.Read(func(kb *ontology.KnowledgeBase) error {
		g, err := conceptByName(kb, req.General)
		if err != nil {
			return err
		}
		s, err := conceptByName(kb, req.Specific)
		if err != nil {
			return err
		}
		req.Subsumes = kb.Subsumes(g, s)
		return nil
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// HandleIndividuals handles GET /v1/kb/concepts/:name/individuals.
func (h *Handlers) HandleIndividuals(c *gin.Context) {
	logger := h.requestLogger(c, "HandleIndividuals")

	resp := IndividualsResponse{Individuals: []string{}}
	err := h.svc.Read(func(kb *ontology.KnowledgeBase) error {
		con, err := conceptByName(kb, c.Param("name"))
		if err != nil {
			return err
		}
		resp.Concept = con.Name()
		for ind := range kb.Individuals(con) {
			resp.Individuals = append(resp.Individuals, ind.Name())
		}
		return nil
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func describeDerived(kb *ontology.KnowledgeBase, dc *ontology.DerivedConcept) DerivedResponse {
	resp := DerivedResponse{
		Name:    dc.Name(),
		Supers:  conceptNames(dc.Supers()),
		Members: conceptNames(kb.Members(dc)),
	}
	if where, ok := dc.FilterSource().([]document.Clause); ok {
		resp.Where = where
	}
	return resp
}

// HandleListDerived handles GET /v1/kb/derived.
func (h *Handlers) HandleListDerived(c *gin.Context) {
	getOrCreateRequestID(c)
	out := []DerivedResponse{}
	_ = h.svc.Read(func(kb *ontology.KnowledgeBase) error {
		for _, dc := range kb.DerivedConcepts() {
			out = append(out, describeDerived(kb, dc))
		}
		return nil
	})
	c.JSON(http.StatusOK, out)
}

// HandleCreateDerived handles POST /v1/kb/derived.
//
// Description:
//
//	Defines a derived concept from where clauses and, unless
//	?restructure=false, classifies the existing concepts below it.
//
// Request Body:
//
//	document.DerivedEntry
//
// Response:
//
//	201 Created: DerivedResponse
//	400 Bad Request: Validation error
//	404 Not Found: Unknown super or attribute
//	409 Conflict: Name taken or reclassification limit reached
func (h *Handlers) HandleCreateDerived(c *gin.Context) {
	logger := h.requestLogger(c, "HandleCreateDerived")

	var entry document.DerivedEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		badBody(c, logger, err)
		return
	}
	if err := (&document.Document{Derived: []document.DerivedEntry{entry}}).Validate(); err != nil {
		fail(c, logger, err)
		return
	}
	restructure := c.Query("restructure") != "false"

	ctx := c.Request.Context()
	var resp DerivedResponse
	err := h.svc.Write(ctx, "define_derived", func(kb *ontology.KnowledgeBase) error {
		dc, err := document.DefineDerived(kb, entry)
		if err != nil {
			return err
		}
		if restructure {
			if _, err := kb.RestructureHierarchy(ctx, dc); err != nil {
				return err
			}
		}
		resp = describeDerived(kb, dc)
		return nil
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	logger.Info("derived concept defined",
		slog.String("derived", resp.Name),
		slog.Int("members", len(resp.Members)),
	)
	c.JSON(http.StatusCreated, resp)
}

// HandleRestructure handles POST /v1/kb/restructure and
// POST /v1/kb/derived/:name/restructure.
//
// Response:
//
//	200 OK: RestructureResponse
//	404 Not Found: Unknown derived concept
//	409 Conflict: Reclassification limit reached
func (h *Handlers) HandleRestructure(c *gin.Context) {
	logger := h.requestLogger(c, "HandleRestructure")

	ctx := c.Request.Context()
	name := c.Param("name")
	var resp RestructureResponse
	err := h.svc.Write(ctx, "restructure", func(kb *ontology.KnowledgeBase) error {
		var err error
		if name == "" {
			resp.Classified, err = kb.RestructureAll(ctx)
			return err
		}
		dc, err := derivedByName(kb, name)
		if err != nil {
			return err
		}
		resp.Classified, err = kb.RestructureHierarchy(ctx, dc)
		return err
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleReposition handles POST /v1/kb/concepts/:name/reposition.
//
// Description:
//
//	Moves the concept into or out of derived concepts after its values
//	changed, until no derived concept claims or releases it.
//
// Response:
//
//	200 OK: RepositionResponse
//	404 Not Found: Unknown concept
//	409 Conflict: Reclassification limit reached
func (h *Handlers) HandleReposition(c *gin.Context) {
	logger := h.requestLogger(c, "HandleReposition")

	ctx := c.Request.Context()
	var resp RepositionResponse
	err := h.svc.Write(ctx, "reposition", func(kb *ontology.KnowledgeBase) error {
		con, err := conceptByName(kb, c.Param("name"))
		if err != nil {
			return err
		}
		if err := kb.RepositionConcept(ctx, con); err != nil {
			return err
		}
		resp = RepositionResponse{Concept: con.Name(), Supers: conceptNames(kb.Supers(con))}
		return nil
	})
	if err != nil {
		var limit *ontology.ReclassificationError
		if errors.As(err, &limit) {
			logger.Warn("reclassification limit reached",
				slog.String("concept", limit.Concept),
				slog.Int("passes", limit.Passes),
			)
		}
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleExport handles GET /v1/kb/export.
//
// Response:
//
//	200 OK: The knowledge base as a YAML document
func (h *Handlers) HandleExport(c *gin.Context) {
	logger := h.requestLogger(c, "HandleExport")

	var doc *document.Document
	_ = h.svc.Read(func(kb *ontology.KnowledgeBase) error {
		doc = document.Export(kb)
		return nil
	})
	data, err := document.Encode(doc)
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.Data(http.StatusOK, "application/yaml", data)
}

// HandleImport handles POST /v1/kb/import.
//
// Description:
//
//	Replaces the whole knowledge base with the YAML document in the body.
//	On any error the current knowledge base stays in place.
//
// Response:
//
//	200 OK: ImportResponse
//	400 Bad Request: Invalid document
//	413 Request Entity Too Large: Document over the size limit
func (h *Handlers) HandleImport(c *gin.Context) {
	logger := h.requestLogger(c, "HandleImport")

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, document.MaxDocumentSize+1))
	if err != nil {
		badBody(c, logger, err)
		return
	}
	doc, err := document.Decode(data)
	if err != nil {
		fail(c, logger, err)
		return
	}
	sum, err := h.svc.Import(c.Request.Context(), doc)
	if err != nil {
		fail(c, logger, err)
		return
	}
	logger.Info("knowledge base imported", slog.Int("concepts", sum.Concepts))
	c.JSON(http.StatusOK, ImportResponse{Summary: sum})
}

// HandleReload handles POST /v1/kb/reload.
//
// Description:
//
//	Reloads the document the knowledge base was loaded from.
//
// Response:
//
//	200 OK: ImportResponse
//	400 Bad Request: No source document
func (h *Handlers) HandleReload(c *gin.Context) {
	logger := h.requestLogger(c, "HandleReload")

	path := h.svc.Source()
	if path == "" {
		fail(c, logger, fmt.Errorf("%w: knowledge base has no source document", errBadRequest))
		return
	}
	sum, err := h.svc.Reload(c.Request.Context(), path)
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ImportResponse{Summary: sum})
}
