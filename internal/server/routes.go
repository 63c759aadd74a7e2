package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers the annotation endpoints.
//
//	GET   /healthz
//	GET   /annotations                      - list annotations
//	PUT   /annotations/:id                  - create from a flat record
//	GET   /annotations/:id                  - current flat record
//	POST  /annotations/:id                  - apply a change-set envelope
//	PATCH /annotations/:id                  - same, without method tunnelling
//	GET   /annotations/:id/changesets       - change-set log
//	GET   /annotations/:id/graph            - projected graph (?key=&merge=)
//	GET   /annotations/:id/lineage          - fork ancestry
//	POST  /annotations/:id/fork             - fork into {"id": ...}
func RegisterRoutes(r gin.IRouter, h *Handlers) {
	r.GET("/healthz", h.HandleHealth)

	a := r.Group("/annotations")
	a.GET("", h.HandleList)
	a.PUT("/:id", h.HandleCreate)
	a.GET("/:id", h.HandleGet)
	a.POST("/:id", h.HandleApply)
	a.PATCH("/:id", h.HandleApply)
	a.GET("/:id/changesets", h.HandleChangeSets)
	a.GET("/:id/graph", h.HandleGraph)
	a.GET("/:id/lineage", h.HandleLineage)
	a.POST("/:id/fork", h.HandleFork)
}

// NewRouter builds the full gin engine, including /metrics.
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	RegisterRoutes(r, h)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
