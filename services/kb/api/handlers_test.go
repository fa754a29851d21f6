// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/conceptbase/services/kb/document"
	"github.com/AleutianAI/conceptbase/services/kb/hierarchy"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const campusYAML = `
name: campus
concepts:
  - name: Person
  - name: Student
    supers: [Person]
  - name: Alice
    individual: true
    supers: [Student]
  - name: Bob
    individual: true
    supers: [Student]
attributes:
  - name: semester
    range: number
    functional: true
  - name: email
    range: text
  - name: knows
    kind: concept
    range: Person
    symmetric: true
  - name: room
    range: text
    functional: true
derived:
  - name: Freshman
    supers: [Student]
    where:
      - {attribute: semester, op: "==", value: 1}
values:
  - {concept: Alice, attribute: semester, value: 1}
  - {concept: Bob, attribute: semester, value: 3}
  - {concept: Student, attribute: email, value: office@campus.edu, scope: default}
  - {concept: Alice, attribute: email, value: alice@campus.edu}
`

func newCampusService(t *testing.T) *Service {
	t.Helper()
	doc, err := document.Decode([]byte(campusYAML))
	require.NoError(t, err)
	kb := ontology.New(ontology.WithName(doc.Name))
	_, err = document.Apply(context.Background(), kb, doc)
	require.NoError(t, err)
	svc, err := NewService(kb)
	require.NoError(t, err)
	return svc
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return NewRouter("kb-test", NewHandlers(newCampusService(t)), nil)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHandlers_HandleHealth(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/kb/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Equal(t, "campus", resp.Name)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandlers_RequestIDIsEchoed(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/kb/concepts", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestHandlers_LogsCarryTraceIDs(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	doc, err := document.Decode([]byte(campusYAML))
	require.NoError(t, err)
	kb := ontology.New(ontology.WithName(doc.Name))
	_, err = document.Apply(context.Background(), kb, doc)
	require.NoError(t, err)
	svc, err := NewService(kb, WithServiceLogger(logger))
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var traceID string
	router := gin.New()
	router.Use(func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), c.Request.URL.Path)
		defer span.End()
		traceID = span.SpanContext().TraceID().String()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))

	req := httptest.NewRequest(http.MethodGet, "/v1/kb/concepts/Nobody", nil)
	req.Header.Set("X-Request-ID", "req-7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	out := logs.String()
	assert.Contains(t, out, "trace_id="+traceID)
	assert.Contains(t, out, "request_id=req-7")
	assert.Contains(t, out, "handler=HandleGetConcept")
}

func TestHandlers_HandleStats(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/kb/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[StatsResponse](t, w)
	assert.Equal(t, 5, resp.Concepts.Nodes)
	assert.Equal(t, 2, resp.Concepts.LeafNodes)
	assert.Equal(t, 4, resp.Attributes.Nodes)
	assert.Equal(t, 1, resp.Derived)
}

func TestHandlers_HandleListConcepts(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/kb/concepts?individuals=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[[]ConceptSummary](t, w)
	require.Len(t, resp, 2)
	for _, c := range resp {
		assert.True(t, c.Individual, c.Name)
	}

	w = do(t, router, http.MethodGet, "/v1/kb/concepts?individuals=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_HandleGetConcept(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/kb/concepts/Alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ConceptResponse](t, w)
	assert.True(t, resp.Individual)
	assert.Equal(t, []string{"Freshman"}, resp.Supers)
	assert.ElementsMatch(t, []string{"semester", "email"}, resp.Attributes)

	w = do(t, router, http.MethodGet, "/v1/kb/concepts/Nobody", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, w).Code)
}

func TestHandlers_HandleCreateConcept(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodPost, "/v1/kb/concepts", CreateConceptRequest{
		Name:     "Tutor",
		Supers:   []string{"Student"},
		Metadata: &hierarchy.Metadata{Tags: []string{"staff"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[ConceptResponse](t, w)
	assert.Equal(t, []string{"Student"}, resp.Supers)
	require.NotNil(t, resp.Metadata)
	assert.Equal(t, []string{"staff"}, resp.Metadata.Tags)

	w = do(t, router, http.MethodPost, "/v1/kb/concepts", map[string]any{"supers": []string{"Person"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/v1/kb/concepts", CreateConceptRequest{Name: "X", Supers: []string{"Ghost"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/v1/kb/concepts", CreateConceptRequest{Name: "Pet", Supers: []string{"Alice"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandlers_SuperEdges(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodPost, "/v1/kb/concepts/Person/supers", SuperRequest{Super: "Student"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, "cycle must be rejected")

	w = do(t, router, http.MethodDelete, "/v1/kb/concepts/Student/supers/Person", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[ConceptResponse](t, w).Supers)

	w = do(t, router, http.MethodGet, "/v1/kb/subsumes?general=Person&specific=Alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[SubsumesResponse](t, w).Subsumes)
}

func TestHandlers_HandleDeleteConcept(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodDelete, "/v1/kb/concepts/Person", nil)
	require.Equal(t, http.StatusConflict, w.Code, "Person is the range of knows")

	w = do(t, router, http.MethodDelete, "/v1/kb/concepts/Bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Bob"}, decode[RemoveResponse](t, w).Removed)

	w = do(t, router, http.MethodGet, "/v1/kb/concepts/Bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_HandleGetValues(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/kb/concepts/Bob/values/email?explain=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ValuesResponse](t, w)
	assert.Equal(t, []any{"office@campus.edu"}, resp.Values)
	require.Len(t, resp.Explain, 1)
	assert.Equal(t, "default", resp.Explain[0].Tier)
	assert.Equal(t, "Student", resp.Explain[0].Source)

	w = do(t, router, http.MethodGet, "/v1/kb/concepts/Alice/values/email", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"alice@campus.edu"}, decode[ValuesResponse](t, w).Values)

	w = do(t, router, http.MethodGet, "/v1/kb/concepts/Bob/values/semester?op=%3E%3D&value=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{float64(3)}, decode[ValuesResponse](t, w).Values)

	w = do(t, router, http.MethodGet, "/v1/kb/concepts/Bob/values/semester?op=%3E%3D&value=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[ValuesResponse](t, w).Values)

	w = do(t, router, http.MethodGet, "/v1/kb/concepts/Bob/values/semester?op=about&value=5", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/v1/kb/concepts/Bob/values/height", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_ConstrainedValues(t *testing.T) {
	router := setupTestRouter(t)

	rooms := []struct {
		year int
		room string
	}{{2010, "A-101"}, {2020, "B-202"}}
	for _, r := range rooms {
		w := do(t, router, http.MethodPut, "/v1/kb/concepts/Bob/values/room", SetValueRequest{
			Value:       r.room,
			Constraints: []document.Clause{{Attribute: "year", Op: "==", Value: r.year}},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := do(t, router, http.MethodPost, "/v1/kb/query", QueryRequest{
		Concept:     "Bob",
		Attribute:   "room",
		Constraints: []document.Clause{{Attribute: "year", Op: "==", Value: 2010}},
		Explain:     true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ValuesResponse](t, w)
	require.NotEmpty(t, resp.Values)
	assert.Equal(t, "A-101", resp.Values[0])
	require.NotEmpty(t, resp.Explain)
	assert.Equal(t, "year", resp.Explain[0].Constraints[0].Attribute)

	w = do(t, router, http.MethodPost, "/v1/kb/query", QueryRequest{Concept: "Bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_HandleSetValue(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodPut, "/v1/kb/concepts/Alice/values/knows", SetValueRequest{Value: "Bob"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{"Bob"}, decode[ValuesResponse](t, w).Values)

	w = do(t, router, http.MethodGet, "/v1/kb/concepts/Bob/values/knows", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"Alice"}, decode[ValuesResponse](t, w).Values, "symmetric mirror")

	w = do(t, router, http.MethodPut, "/v1/kb/concepts/Alice/values/semester", SetValueRequest{Value: "first"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, router, http.MethodPut, "/v1/kb/concepts/Alice/values/semester", SetValueRequest{Value: 2, Scope: "everywhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPut, "/v1/kb/concepts/Alice/values/semester", SetValueRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_HandleDeleteValue(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodDelete, "/v1/kb/concepts/Alice/values/email?value=nobody@campus.edu", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[ValueRemovedResponse](t, w).Removed)

	w = do(t, router, http.MethodDelete, "/v1/kb/concepts/Alice/values/email", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[ValueRemovedResponse](t, w).Removed)

	w = do(t, router, http.MethodGet, "/v1/kb/concepts/Alice/values/email", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"office@campus.edu"}, decode[ValuesResponse](t, w).Values)
}

func TestHandlers_Derived(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/kb/derived", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]DerivedResponse](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"Alice"}, list[0].Members)
	require.Len(t, list[0].Where, 1)
	assert.Equal(t, "semester", list[0].Where[0].Attribute)

	w = do(t, router, http.MethodPost, "/v1/kb/derived", document.DerivedEntry{
		Name:   "Senior",
		Supers: []string{"Student"},
		Where:  []document.Clause{{Attribute: "semester", Op: ">=", Value: 3}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []string{"Bob"}, decode[DerivedResponse](t, w).Members)

	w = do(t, router, http.MethodPost, "/v1/kb/derived", document.DerivedEntry{Name: "Empty", Supers: []string{"Student"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/v1/kb/derived/Student/restructure", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/v1/kb/restructure", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[RestructureResponse](t, w).Classified)
}

func TestHandlers_HandleReposition(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodPut, "/v1/kb/concepts/Alice/values/semester", SetValueRequest{Value: 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/v1/kb/concepts/Alice/reposition", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"Student"}, decode[RepositionResponse](t, w).Supers)
}

func TestHandlers_ExportImport(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/v1/kb/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	exported := w.Body.String()
	assert.Contains(t, exported, "name: Freshman")

	other := setupTestRouter(t)
	w = do(t, other, http.MethodDelete, "/v1/kb/concepts/Bob", nil)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/kb/import", strings.NewReader(exported))
	w = httptest.NewRecorder()
	other.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[ImportResponse](t, w).Summary.Classified)

	w = do(t, other, http.MethodGet, "/v1/kb/concepts/Bob", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/kb/import", strings.NewReader("concepts: [{supers: [A]}]"))
	w = httptest.NewRecorder()
	other.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_HandleReloadWithoutSource(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodPost, "/v1/kb/reload", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_Metrics(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kb_document_loads_total")
}
