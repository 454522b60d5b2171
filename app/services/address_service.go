package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/helpers/utils"
	"go.uber.org/zap"
)

// Job states.
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

const defaultJobChunk = 500

var (
	ErrJobNotFound    = errors.New("services: job not found")
	ErrJobNotFinished = errors.New("services: job not finished")
)

// Parser is the part of parser.AddressParser the service needs.
type Parser interface {
	Parse(ctx context.Context, raw string) (*models.AddressRecord, error)
	ParseBatch(ctx context.Context, lines []string, workers int) []models.ParseResult
	RulesVersion() string
}

// JobStatus is a snapshot of a batch job.
type JobStatus struct {
	JobID     string               `json:"job_id"`
	Status    string               `json:"status"`
	Processed int                  `json:"processed"`
	Total     int                  `json:"total"`
	Message   string               `json:"message,omitempty"`
	Summary   *models.BatchSummary `json:"summary,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Progress is the processed share in [0, 1].
func (js JobStatus) Progress() float64 {
	if js.Total == 0 {
		return 1
	}
	return float64(js.Processed) / float64(js.Total)
}

type job struct {
	status  JobStatus
	results []models.ParseResult
}

// ServiceStats counts what the service has parsed since start.
type ServiceStats struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	StartTime     string `json:"start_time"`
	RulesVersion  string `json:"rules_version"`
	Parsed        int64  `json:"parsed"`
	Failed        int64  `json:"failed"`
	CacheHits     int64  `json:"cache_hits"`
	Jobs          int    `json:"jobs"`
	RunningJobs   int    `json:"running_jobs"`
}

// AddressService parses single addresses through the cache and runs batch
// jobs in the background.
type AddressService struct {
	parser    Parser
	cache     ICacheService
	workers   int
	chunkSize int
	retention time.Duration
	logger    *zap.Logger
	startTime time.Time

	mu   sync.RWMutex
	jobs map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	parsed    atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64
}

// NewAddressService wires the parser to the cache. cache may be nil to disable
// caching. Finished jobs are kept for retention; zero keeps them forever.
func NewAddressService(parser Parser, cache ICacheService, workers int, retention time.Duration, logger *zap.Logger) *AddressService {
	ctx, cancel := context.WithCancel(context.Background())
	return &AddressService{
		parser:    parser,
		cache:     cache,
		workers:   workers,
		chunkSize: defaultJobChunk,
		retention: retention,
		logger:    logger,
		startTime: time.Now(),
		jobs:      make(map[string]*job),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// RulesVersion is the version cached entries are tagged with.
func (as *AddressService) RulesVersion() string {
	return as.parser.RulesVersion()
}

// ParseAddress parses raw, answering from the cache when useCache is set.
// The second return value reports a cache hit. Failed parses are never cached.
func (as *AddressService) ParseAddress(ctx context.Context, raw string, useCache bool) (*models.AddressRecord, bool, error) {
	version := as.parser.RulesVersion()
	if useCache && as.cache != nil {
		record, found, err := as.cache.Get(ctx, raw, version)
		if err != nil {
			as.logger.Warn("cache lookup failed", zap.Error(err))
		} else if found {
			as.cacheHits.Add(1)
			return record, true, nil
		}
	}

	record, err := as.parser.Parse(ctx, raw)
	if err != nil {
		as.failed.Add(1)
		return nil, false, err
	}
	as.parsed.Add(1)

	if useCache && as.cache != nil {
		if err := as.cache.Set(ctx, raw, version, record); err != nil {
			as.logger.Warn("cache store failed", zap.Error(err))
		}
	}
	return record, false, nil
}

// EstimateBatchProcessingTime is a rough wall-clock guess in seconds.
func (as *AddressService) EstimateBatchProcessingTime(addressCount int) int {
	return (addressCount + 999) / 1000
}

// CreateBatchJob registers a job for lines and starts it in the background.
func (as *AddressService) CreateBatchJob(lines []string) JobStatus {
	as.pruneJobs()

	now := time.Now()
	j := &job{status: JobStatus{
		JobID:     utils.GenerateUUID(),
		Status:    JobStatusPending,
		Total:     len(lines),
		CreatedAt: now,
		UpdatedAt: now,
	}}

	as.mu.Lock()
	as.jobs[j.status.JobID] = j
	as.mu.Unlock()

	as.wg.Add(1)
	go func() {
		defer as.wg.Done()
		as.ProcessBatchJob(as.ctx, j.status.JobID, lines)
	}()
	return j.status
}

// ProcessBatchJob parses lines in chunks so the job status reports progress.
// Record failures are part of the results; only cancellation fails the job.
func (as *AddressService) ProcessBatchJob(ctx context.Context, jobID string, lines []string) {
	started := time.Now()
	as.updateJob(jobID, func(s *JobStatus) {
		s.Status = JobStatusRunning
	})

	results := make([]models.ParseResult, 0, len(lines))
	for start := 0; start < len(lines); start += as.chunkSize {
		if err := ctx.Err(); err != nil {
			as.updateJob(jobID, func(s *JobStatus) {
				s.Status = JobStatusFailed
				s.Message = fmt.Sprintf("cancelled after %d records: %v", len(results), err)
			})
			as.logger.Warn("batch job cancelled", zap.String("job_id", jobID), zap.Error(err))
			return
		}

		end := min(start+as.chunkSize, len(lines))
		chunk := as.parser.ParseBatch(ctx, lines[start:end], as.workers)
		for i := range chunk {
			chunk[i].Index += start
		}
		results = append(results, chunk...)

		processed := len(results)
		as.updateJob(jobID, func(s *JobStatus) {
			s.Processed = processed
		})
	}

	summary := models.Summarize(results)
	as.parsed.Add(int64(summary.Succeeded))
	as.failed.Add(int64(summary.Failed))

	as.mu.Lock()
	if j, ok := as.jobs[jobID]; ok {
		j.results = results
		j.status.Status = JobStatusDone
		j.status.Summary = &summary
		j.status.UpdatedAt = time.Now()
	}
	as.mu.Unlock()

	as.logger.Info("batch job completed",
		zap.String("job_id", jobID),
		zap.Int("total", summary.Total),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(started)))
}

func (as *AddressService) updateJob(jobID string, fn func(*JobStatus)) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if j, ok := as.jobs[jobID]; ok {
		fn(&j.status)
		j.status.UpdatedAt = time.Now()
	}
}

// GetJobStatus returns a snapshot of the job.
func (as *AddressService) GetJobStatus(jobID string) (JobStatus, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	j, ok := as.jobs[jobID]
	if !ok {
		return JobStatus{}, ErrJobNotFound
	}
	return j.status, nil
}

// GetJobResults returns the results of a finished job in input order.
func (as *AddressService) GetJobResults(jobID string) ([]models.ParseResult, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	j, ok := as.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	if j.status.Status != JobStatusDone {
		return nil, ErrJobNotFinished
	}
	return j.results, nil
}

// GetJobResultsStream emits the results of a finished job one by one. The
// channel closes when all results are sent or ctx is done.
func (as *AddressService) GetJobResultsStream(ctx context.Context, jobID string) (<-chan models.ParseResult, error) {
	results, err := as.GetJobResults(jobID)
	if err != nil {
		return nil, err
	}

	out := make(chan models.ParseResult, 100)
	go func() {
		defer close(out)
		for _, r := range results {
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// pruneJobs drops finished jobs older than the retention window.
func (as *AddressService) pruneJobs() {
	if as.retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-as.retention)

	as.mu.Lock()
	defer as.mu.Unlock()

	for id, j := range as.jobs {
		finished := j.status.Status == JobStatusDone || j.status.Status == JobStatusFailed
		if finished && j.status.UpdatedAt.Before(cutoff) {
			delete(as.jobs, id)
		}
	}
}

func (as *AddressService) GetStartTime() time.Time {
	return as.startTime
}

func (as *AddressService) GetStats() ServiceStats {
	as.mu.RLock()
	defer as.mu.RUnlock()

	running := 0
	for _, j := range as.jobs {
		if j.status.Status == JobStatusRunning || j.status.Status == JobStatusPending {
			running++
		}
	}

	return ServiceStats{
		UptimeSeconds: int64(time.Since(as.startTime).Seconds()),
		StartTime:     as.startTime.Format(time.RFC3339),
		RulesVersion:  as.parser.RulesVersion(),
		Parsed:        as.parsed.Load(),
		Failed:        as.failed.Load(),
		CacheHits:     as.cacheHits.Load(),
		Jobs:          len(as.jobs),
		RunningJobs:   running,
	}
}

// Shutdown cancels running jobs and waits for them to stop.
func (as *AddressService) Shutdown() {
	as.cancel()
	as.wg.Wait()
}
