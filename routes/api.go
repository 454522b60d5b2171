package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jp-address-parser/app/controllers"
	"go.uber.org/zap"
)

// SetupAPIRoutes registers the /v1 API.
func SetupAPIRoutes(router *gin.Engine, addressController *controllers.AddressController, adminController *controllers.AdminController) {
	v1 := router.Group("/v1")
	{
		addresses := v1.Group("/addresses")
		{
			addresses.POST("/parse", addressController.ParseAddress)
			addresses.POST("/jobs", addressController.BatchParse)
			addresses.GET("/jobs/:jobID/status", addressController.GetJobStatus)
			addresses.GET("/jobs/:jobID/results", addressController.GetJobResults)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/cache/invalidate", adminController.InvalidateCache)
			admin.POST("/gazetteer/seed", adminController.SeedGazetteer)
			admin.GET("/stats", adminController.GetStats)
		}

		v1.GET("/health", addressController.HealthCheck)
	}
}

// SetupHealthRoutes registers the probe endpoints.
func SetupHealthRoutes(router *gin.Engine, addressController *controllers.AddressController, adminController *controllers.AdminController) {
	router.GET("/health", addressController.HealthCheck)
	router.GET("/live", addressController.HealthCheck)
	router.GET("/ready", adminController.Readiness)
}

// SetupAllRoutes installs middleware and every route.
func SetupAllRoutes(router *gin.Engine, addressController *controllers.AddressController, adminController *controllers.AdminController, logger *zap.Logger) {
	setupMiddleware(router, logger)

	SetupWebRoutes(router)
	SetupHealthRoutes(router, addressController, adminController)
	SetupAPIRoutes(router, addressController, adminController)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})
}

func setupMiddleware(router *gin.Engine, logger *zap.Logger) {
	router.Use(gin.Recovery())
	router.Use(controllers.RequestID())
	router.Use(controllers.RequestLogger(logger))
}
