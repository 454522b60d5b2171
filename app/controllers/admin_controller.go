package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jp-address-parser/app/requests"
	"github.com/jp-address-parser/app/responses"
	"github.com/jp-address-parser/app/services"
	"go.uber.org/zap"
)

type AdminController struct {
	adminService   *services.AdminService
	addressService *services.AddressService
	logger         *zap.Logger
}

func NewAdminController(adminService *services.AdminService, addressService *services.AddressService, logger *zap.Logger) *AdminController {
	return &AdminController{
		adminService:   adminService,
		addressService: addressService,
		logger:         logger,
	}
}

// InvalidateCache handles POST /v1/admin/cache/invalidate. Without ?all=true
// only entries from older rules are dropped.
func (ac *AdminController) InvalidateCache(c *gin.Context) {
	all := false
	if v := c.Query("all"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "all must be a boolean", nil)
			return
		}
		all = parsed
	}

	removed, err := ac.adminService.InvalidateCache(c.Request.Context(), all)
	if err != nil {
		ac.logger.Error("cache invalidation failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "CACHE_ERROR", err.Error(), nil)
		return
	}

	c.JSON(http.StatusOK, responses.InvalidateCacheResponse{
		RulesVersion: ac.addressService.RulesVersion(),
		All:          all,
		Removed:      removed,
	})
}

// SeedGazetteer handles POST /v1/admin/gazetteer/seed.
func (ac *AdminController) SeedGazetteer(c *gin.Context) {
	var req requests.SeedGazetteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error(), nil)
		return
	}

	result, err := ac.adminService.SeedGazetteer(c.Request.Context(), req.Towns(), req.Replace)
	if errors.Is(err, services.ErrSeedUnsupported) {
		abortWithError(c, http.StatusNotImplemented, "SEED_UNSUPPORTED", err.Error(), nil)
		return
	}
	if err != nil {
		ac.logger.Error("gazetteer seed failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "SEED_ERROR", err.Error(), nil)
		return
	}

	c.JSON(http.StatusOK, responses.SeedGazetteerResponse{
		RowsImported:     result.RowsImported,
		ProcessingTimeMs: result.ProcessingTimeMs,
		Message:          "gazetteer seeded, caches cleared",
	})
}

// GetStats handles GET /v1/admin/stats.
func (ac *AdminController) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "ok",
		Data:      ac.adminService.GetSystemStats(c.Request.Context()),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Readiness handles /ready: the service is ready once its cache answers.
func (ac *AdminController) Readiness(c *gin.Context) {
	stats := ac.adminService.GetSystemStats(c.Request.Context())

	status, code := "ready", http.StatusOK
	cacheState := "healthy"
	if stats.CacheError != "" {
		status, code = "degraded", http.StatusServiceUnavailable
		cacheState = stats.CacheError
	}

	c.JSON(code, responses.HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(ac.addressService.GetStartTime()).Round(time.Second).String(),
		Version:   Version,
		Services: map[string]string{
			"cache":     cacheState,
			"gazetteer": stats.GazetteerSource,
		},
	})
}
