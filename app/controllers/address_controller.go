package controllers

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/app/requests"
	"github.com/jp-address-parser/app/responses"
	"github.com/jp-address-parser/app/services"
	"github.com/jp-address-parser/internal/gazetteer"
	"github.com/jp-address-parser/internal/parser"
	"go.uber.org/zap"
)

// Version is reported by the health endpoints.
const Version = "1.0.0"

type AddressController struct {
	addressService *services.AddressService
	logger         *zap.Logger
}

func NewAddressController(addressService *services.AddressService, logger *zap.Logger) *AddressController {
	return &AddressController{
		addressService: addressService,
		logger:         logger,
	}
}

// ParseAddress handles POST /v1/addresses/parse.
func (ac *AddressController) ParseAddress(c *gin.Context) {
	var req requests.ParseAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error(), nil)
		return
	}

	startTime := time.Now()
	record, hit, err := ac.addressService.ParseAddress(c.Request.Context(), req.Address, req.CacheEnabled())
	if err != nil {
		ac.writeParseError(c, err)
		return
	}

	c.JSON(http.StatusOK, responses.ParseAddressResponse{
		RulesVersion:     ac.addressService.RulesVersion(),
		Result:           record,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
		CacheHit:         hit,
	})
}

func (ac *AddressController) writeParseError(c *gin.Context, err error) {
	var unmatched *gazetteer.UnmatchedError
	switch {
	case errors.Is(err, parser.ErrEmptyAddress):
		abortWithError(c, http.StatusBadRequest, "EMPTY_ADDRESS", err.Error(), nil)
	case errors.As(err, &unmatched):
		abortWithError(c, http.StatusUnprocessableEntity, "UNMATCHED", err.Error(), responses.UnmatchedDetails{
			Level:       string(unmatched.Level),
			Suggestions: unmatched.Suggestions,
		})
	case errors.Is(err, gazetteer.ErrUnmatched):
		abortWithError(c, http.StatusUnprocessableEntity, "UNMATCHED", err.Error(), nil)
	default:
		ac.logger.Error("address parse failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "PARSE_ERROR", err.Error(), nil)
	}
}

// BatchParse handles POST /v1/addresses/jobs.
func (ac *AddressController) BatchParse(c *gin.Context) {
	var req requests.BatchParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error(), nil)
		return
	}

	job := ac.addressService.CreateBatchJob(req.Addresses)
	c.JSON(http.StatusAccepted, responses.BatchParseResponse{
		JobID:            job.JobID,
		EstimatedSeconds: ac.addressService.EstimateBatchProcessingTime(job.Total),
		TotalAddresses:   job.Total,
		Message:          "job accepted",
	})
}

// GetJobStatus handles GET /v1/addresses/jobs/:jobID/status.
func (ac *AddressController) GetJobStatus(c *gin.Context) {
	status, err := ac.addressService.GetJobStatus(c.Param("jobID"))
	if err != nil {
		ac.writeJobError(c, err)
		return
	}

	c.JSON(http.StatusOK, responses.JobStatusResponse{
		JobID:     status.JobID,
		Status:    status.Status,
		Progress:  status.Progress(),
		Processed: status.Processed,
		Total:     status.Total,
		Message:   status.Message,
		Summary:   status.Summary,
	})
}

// GetJobResults handles GET /v1/addresses/jobs/:jobID/results. With
// ?format=ndjson the results are streamed one per line, gzipped when gzip=1.
func (ac *AddressController) GetJobResults(c *gin.Context) {
	jobID := c.Param("jobID")
	if c.Query("format") == "ndjson" {
		ac.streamNDJSONResults(c, jobID, c.Query("gzip") == "1")
		return
	}

	results, err := ac.addressService.GetJobResults(jobID)
	if err != nil {
		ac.writeJobError(c, err)
		return
	}

	out := make([]responses.ParseResultResponse, len(results))
	for i, r := range results {
		out[i] = responses.NewParseResultResponse(r)
	}
	c.JSON(http.StatusOK, responses.JobResultsResponse{
		JobID:   jobID,
		Summary: models.Summarize(results),
		Results: out,
	})
}

func (ac *AddressController) writeJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		abortWithError(c, http.StatusNotFound, "JOB_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, services.ErrJobNotFinished):
		abortWithError(c, http.StatusConflict, "JOB_NOT_FINISHED", err.Error(), nil)
	default:
		abortWithError(c, http.StatusInternalServerError, "JOB_ERROR", err.Error(), nil)
	}
}

func (ac *AddressController) streamNDJSONResults(c *gin.Context, jobID string, gzipEnabled bool) {
	resultChannel, err := ac.addressService.GetJobResultsStream(c.Request.Context(), jobID)
	if err != nil {
		ac.writeJobError(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	var writer gin.ResponseWriter = c.Writer
	if gzipEnabled {
		c.Header("Content-Encoding", "gzip")
		gzWriter := gzip.NewWriter(c.Writer)
		defer gzWriter.Close()
		writer = &gzipResponseWriter{ResponseWriter: c.Writer, gzWriter: gzWriter}
	}
	c.Status(http.StatusOK)

	encoder := json.NewEncoder(writer)
	for result := range resultChannel {
		if err := encoder.Encode(responses.NewParseResultResponse(result)); err != nil {
			ac.logger.Warn("ndjson stream aborted", zap.String("job_id", jobID), zap.Error(err))
			return
		}
		writer.Flush()
	}
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gzWriter *gzip.Writer
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	return w.gzWriter.Write(data)
}

func (w *gzipResponseWriter) Flush() {
	_ = w.gzWriter.Flush()
	w.ResponseWriter.Flush()
}

// HealthCheck handles /health and /live.
func (ac *AddressController) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, responses.HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(ac.addressService.GetStartTime()).Round(time.Second).String(),
		Version:   Version,
		Services: map[string]string{
			"address_parser": "healthy",
			"rules_version":  ac.addressService.RulesVersion(),
		},
	})
}

func abortWithError(c *gin.Context, status int, code, message string, details interface{}) {
	resp := responses.NewErrorResponse(code, message, details)
	resp.RequestID = c.GetString(RequestIDKey)
	c.AbortWithStatusJSON(status, resp)
}
