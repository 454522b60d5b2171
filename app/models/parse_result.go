package models

// Status values reported per record.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// ParseResult pairs a record with its position in the input and the error
// that stopped it, if any. A failed result still carries the original line.
type ParseResult struct {
	Index  int
	Line   string
	Record *AddressRecord
	Err    error
}

// Status reports "ok" or "failed".
func (r ParseResult) Status() string {
	if r.Err != nil {
		return StatusFailed
	}
	return StatusOK
}

// FailedRecord keeps the original line of a record that could not be parsed.
type FailedRecord struct {
	Index  int    `json:"index"`
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

// BatchSummary counts the outcome of a batch.
type BatchSummary struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Failures  []FailedRecord `json:"failures,omitempty"`
}

// Summarize builds a BatchSummary from results in input order.
func Summarize(results []ParseResult) BatchSummary {
	summary := BatchSummary{Total: len(results)}
	for _, r := range results {
		if r.Err == nil {
			summary.Succeeded++
			continue
		}
		summary.Failed++
		summary.Failures = append(summary.Failures, FailedRecord{
			Index:  r.Index,
			Line:   r.Line,
			Reason: r.Err.Error(),
		})
	}
	return summary
}
