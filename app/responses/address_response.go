package responses

import (
	"time"

	"github.com/jp-address-parser/app/models"
)

// ParseAddressResponse is the result of a single parse.
type ParseAddressResponse struct {
	RulesVersion     string                `json:"rules_version"`
	Result           *models.AddressRecord `json:"result"`
	ProcessingTimeMs int64                 `json:"processing_time_ms"`
	CacheHit         bool                  `json:"cache_hit"`
}

// BatchParseResponse acknowledges a batch job.
type BatchParseResponse struct {
	JobID            string `json:"job_id"`
	EstimatedSeconds int    `json:"estimated_seconds"`
	TotalAddresses   int    `json:"total_addresses"`
	Message          string `json:"message"`
}

// JobStatusResponse reports batch job progress.
type JobStatusResponse struct {
	JobID     string               `json:"job_id"`
	Status    string               `json:"status"`
	Progress  float64              `json:"progress"`
	Processed int                  `json:"processed"`
	Total     int                  `json:"total"`
	Message   string               `json:"message,omitempty"`
	Summary   *models.BatchSummary `json:"summary,omitempty"`
}

// ParseResultResponse is one line of a batch result.
type ParseResultResponse struct {
	Index  int                   `json:"index"`
	Line   string                `json:"line"`
	Status string                `json:"status"`
	Record *models.AddressRecord `json:"record,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// NewParseResultResponse flattens a ParseResult for JSON.
func NewParseResultResponse(r models.ParseResult) ParseResultResponse {
	resp := ParseResultResponse{
		Index:  r.Index,
		Line:   r.Line,
		Status: r.Status(),
		Record: r.Record,
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}

// JobResultsResponse carries every result of a finished job.
type JobResultsResponse struct {
	JobID   string                `json:"job_id"`
	Summary models.BatchSummary   `json:"summary"`
	Results []ParseResultResponse `json:"results"`
}

// InvalidateCacheResponse reports a cache invalidation.
type InvalidateCacheResponse struct {
	RulesVersion string `json:"rules_version"`
	All          bool   `json:"all"`
	Removed      int64  `json:"removed"`
}

// SeedGazetteerResponse reports a gazetteer seed.
type SeedGazetteerResponse struct {
	RowsImported     int    `json:"rows_imported"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	Message          string `json:"message"`
}

// UnmatchedDetails explains which administrative level failed to match.
type UnmatchedDetails struct {
	Level       string   `json:"level"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp string      `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// NewErrorResponse stamps the current time.
func NewErrorResponse(code, message string, details interface{}) ErrorResponse {
	return ErrorResponse{
		Error:     code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}
