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
	"github.com/AleutianAI/conceptbase/services/kb/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers all knowledge base routes with the router.
//
// Description:
//
//	Registers all /v1/kb/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET    /v1/kb/health - Health check
//	GET    /v1/kb/stats - Hierarchy statistics
//
//	GET    /v1/kb/concepts - List concepts
//	POST   /v1/kb/concepts - Define a concept or individual
//	GET    /v1/kb/concepts/:name - Describe a concept
//	DELETE /v1/kb/concepts/:name - Remove a concept (?subtree=true)
//	POST   /v1/kb/concepts/:name/supers - Add a super-concept
//	DELETE /v1/kb/concepts/:name/supers/:super - Remove a super-concept
//	GET    /v1/kb/concepts/:name/individuals - Individuals below a concept
//	POST   /v1/kb/concepts/:name/reposition - Reclassify after edits
//
//	GET    /v1/kb/concepts/:name/values/:attribute - Resolve values
//	PUT    /v1/kb/concepts/:name/values/:attribute - Store a value
//	DELETE /v1/kb/concepts/:name/values/:attribute - Remove values
//	POST   /v1/kb/query - Resolve values in a constraint context
//	GET    /v1/kb/subsumes - Subsumption test
//
//	GET    /v1/kb/derived - List derived concepts
//	POST   /v1/kb/derived - Define a derived concept
//	POST   /v1/kb/derived/:name/restructure - Classify below one derived concept
//	POST   /v1/kb/restructure - Classify below every derived concept
//
//	GET    /v1/kb/export - YAML document of the knowledge base
//	POST   /v1/kb/import - Replace the knowledge base from a YAML document
//	POST   /v1/kb/reload - Reload the source document
//
// Example:
//
//	svc, _ := api.NewService(kb)
//	v1 := router.Group("/v1")
//	api.RegisterRoutes(v1, api.NewHandlers(svc))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	kb := rg.Group("/kb")
	{
		kb.GET("/health", handlers.HandleHealth)
		kb.GET("/stats", handlers.HandleStats)

		// Concept hierarchy
		kb.GET("/concepts", handlers.HandleListConcepts)
		kb.POST("/concepts", handlers.HandleCreateConcept)
		kb.GET("/concepts/:name", handlers.HandleGetConcept)
		kb.DELETE("/concepts/:name", handlers.HandleDeleteConcept)
		kb.POST("/concepts/:name/supers", handlers.HandleAddSuper)
		kb.DELETE("/concepts/:name/supers/:super", handlers.HandleRemoveSuper)
		kb.GET("/concepts/:name/individuals", handlers.HandleIndividuals)
		kb.POST("/concepts/:name/reposition", handlers.HandleReposition)
		kb.GET("/subsumes", handlers.HandleSubsumes)

		// Attribute values
		kb.GET("/concepts/:name/values/:attribute", handlers.HandleGetValues)
		kb.PUT("/concepts/:name/values/:attribute", handlers.HandleSetValue)
		kb.DELETE("/concepts/:name/values/:attribute", handlers.HandleDeleteValue)
		kb.POST("/query", handlers.HandleQuery)

		// Derived concepts
		kb.GET("/derived", handlers.HandleListDerived)
		kb.POST("/derived", handlers.HandleCreateDerived)
		kb.POST("/derived/:name/restructure", handlers.HandleRestructure)
		kb.POST("/restructure", handlers.HandleRestructure)

		// Documents
		kb.GET("/export", handlers.HandleExport)
		kb.POST("/import", handlers.HandleImport)
		kb.POST("/reload", handlers.HandleReload)
	}
}

// NewRouter builds a gin engine serving the knowledge base.
//
// Description:
//
//	Installs recovery, OpenTelemetry tracing (otelgin) and, when metrics
//	is non-nil, request metrics, then registers the /v1/kb routes and
//	the Prometheus scrape endpoint at /metrics.
//
// Inputs:
//
//	serviceName - Span service name for otelgin.
//	handlers - The handlers instance.
//	metrics - Request instruments; nil disables request metrics.
//
// Outputs:
//
//	*gin.Engine - Ready to serve.
func NewRouter(serviceName string, handlers *Handlers, metrics *telemetry.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	if metrics != nil {
		router.Use(telemetry.MetricsMiddleware(metrics))
	}

	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}
