package main

import (
	"database/sql"
	"net/http"
	"time"

	"call-insights-platform/internal/auth"
	"call-insights-platform/internal/company"
	"call-insights-platform/internal/httpapi"
	"call-insights-platform/pkg/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, companies *company.Service, adminAuth *auth.Manager, db *sql.DB, reg *prometheus.Registry) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := store.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// tenant API, API-key scoped
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAPIKey(companies))
	{
		v1.POST("/calls", h.SubmitCall)
		v1.GET("/calls", h.ListCalls)
		v1.GET("/calls/:id", h.GetCall)
		v1.GET("/calls/:id/insight", h.GetCallInsight)

		v1.POST("/reports", h.GenerateReport)
		v1.GET("/reports", h.ListReports)
		v1.GET("/reports/:id", h.GetReport)
	}

	// admin API, bearer-token scoped
	admin := r.Group("/v1/admin")
	admin.Use(auth.RequireAdminToken(adminAuth))
	{
		admin.POST("/companies", h.ProvisionCompany)
		admin.POST("/companies/:id/disable", h.DisableCompany)
		admin.POST("/companies/:id/regen-reports", h.SetCompanyRegenReports)
	}
}
