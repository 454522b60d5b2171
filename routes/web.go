package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupWebRoutes serves the landing page and the endpoint index.
func SetupWebRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Japanese Address Parser",
			"version": "1.0.0",
			"docs":    "/docs",
		})
	})

	router.GET("/docs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"api": "Japanese Address Parser API v1",
			"endpoints": map[string]string{
				"parse":            "POST /v1/addresses/parse",
				"batch":            "POST /v1/addresses/jobs",
				"job_status":       "GET /v1/addresses/jobs/:jobID/status",
				"job_results":      "GET /v1/addresses/jobs/:jobID/results?format=ndjson&gzip=1",
				"cache_invalidate": "POST /v1/admin/cache/invalidate?all=true",
				"gazetteer_seed":   "POST /v1/admin/gazetteer/seed",
				"stats":            "GET /v1/admin/stats",
				"health":           "GET /health",
				"readiness":        "GET /ready",
				"liveness":         "GET /live",
			},
		})
	})
}
