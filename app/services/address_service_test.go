package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jp-address-parser/app/config"
	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/internal/gazetteer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockParser struct {
	mock.Mock
}

func (m *mockParser) Parse(ctx context.Context, raw string) (*models.AddressRecord, error) {
	args := m.Called(ctx, raw)
	record, _ := args.Get(0).(*models.AddressRecord)
	return record, args.Error(1)
}

func (m *mockParser) ParseBatch(ctx context.Context, lines []string, workers int) []models.ParseResult {
	args := m.Called(ctx, lines, workers)
	return args.Get(0).([]models.ParseResult)
}

func (m *mockParser) RulesVersion() string {
	return m.Called().String(0)
}

func newEmbeddedPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := BuildPipeline(context.Background(), config.Default(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func waitForJob(t *testing.T, as *AddressService, jobID string) JobStatus {
	t.Helper()
	var status JobStatus
	require.Eventually(t, func() bool {
		var err error
		status, err = as.GetJobStatus(jobID)
		if err != nil {
			return false
		}
		return status.Status == JobStatusDone || status.Status == JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return status
}

func TestAddressService_ParseAddressUsesCache(t *testing.T) {
	ctx := context.Background()
	p := &mockParser{}
	p.On("RulesVersion").Return("v1")
	p.On("Parse", mock.Anything, "東京都中央区日本橋1-1").Return(sampleRecord("東京都中央区日本橋1-1"), nil).Once()

	cache := NewCacheService(time.Hour)
	as := NewAddressService(p, cache, 2, 0, zap.NewNop())
	defer as.Shutdown()

	record, hit, err := as.ParseAddress(ctx, "東京都中央区日本橋1-1", true)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "東京都", models.Value(record.Prefecture))

	record, hit, err = as.ParseAddress(ctx, "東京都中央区日本橋1-1", true)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "中央区", models.Value(record.City))

	p.AssertNumberOfCalls(t, "Parse", 1)
	stats := as.GetStats()
	assert.Equal(t, int64(1), stats.Parsed)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, "v1", stats.RulesVersion)
}

func TestAddressService_ParseAddressWithoutCache(t *testing.T) {
	ctx := context.Background()
	p := &mockParser{}
	p.On("RulesVersion").Return("v1")
	p.On("Parse", mock.Anything, "raw").Return(sampleRecord("raw"), nil).Twice()

	cache := NewCacheService(time.Hour)
	as := NewAddressService(p, cache, 2, 0, zap.NewNop())
	defer as.Shutdown()

	for i := 0; i < 2; i++ {
		_, hit, err := as.ParseAddress(ctx, "raw", false)
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 0, cache.Size())
	p.AssertExpectations(t)
}

func TestAddressService_FailuresAreNotCached(t *testing.T) {
	ctx := context.Background()
	unmatched := fmt.Errorf("parser: split: %w", gazetteer.ErrUnmatched)
	p := &mockParser{}
	p.On("RulesVersion").Return("v1")
	p.On("Parse", mock.Anything, "火星").Return(nil, unmatched)

	cache := NewCacheService(time.Hour)
	as := NewAddressService(p, cache, 2, 0, zap.NewNop())
	defer as.Shutdown()

	_, _, err := as.ParseAddress(ctx, "火星", true)
	assert.ErrorIs(t, err, gazetteer.ErrUnmatched)
	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, int64(1), as.GetStats().Failed)
}

func TestAddressService_CacheErrorsDoNotFailParse(t *testing.T) {
	p := &mockParser{}
	p.On("RulesVersion").Return("v1")
	p.On("Parse", mock.Anything, "raw").Return(sampleRecord("raw"), nil)

	as := NewAddressService(p, brokenCache{}, 2, 0, zap.NewNop())
	defer as.Shutdown()

	record, hit, err := as.ParseAddress(context.Background(), "raw", true)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "raw", record.FullAddress)
}

func TestAddressService_BatchJob(t *testing.T) {
	pipeline := newEmbeddedPipeline(t)
	as := NewAddressService(pipeline.Parser, nil, 4, 0, zap.NewNop())
	as.chunkSize = 7
	defer as.Shutdown()

	valid := []string{
		"東京都中央区八重洲2-1-1 YANMAR TOKYO 12F",
		"和歌山県西牟婁郡白浜町栄609-2",
		"大阪府大阪市中央区久太郎町４丁目渡辺３号",
	}
	var lines []string
	for i := 0; i < 30; i++ {
		if i%10 == 9 {
			lines = append(lines, "火星県オリンポス市1-1")
			continue
		}
		lines = append(lines, valid[i%len(valid)])
	}

	created := as.CreateBatchJob(lines)
	assert.NotEmpty(t, created.JobID)
	assert.Equal(t, len(lines), created.Total)

	status := waitForJob(t, as, created.JobID)
	assert.Equal(t, JobStatusDone, status.Status)
	assert.Equal(t, len(lines), status.Processed)
	assert.InDelta(t, 1.0, status.Progress(), 1e-9)
	require.NotNil(t, status.Summary)
	assert.Equal(t, 27, status.Summary.Succeeded)
	assert.Equal(t, 3, status.Summary.Failed)

	results, err := as.GetJobResults(created.JobID)
	require.NoError(t, err)
	require.Len(t, results, len(lines))
	for i, r := range results {
		assert.Equal(t, i, r.Index, "indexes are continuous across chunks")
		assert.Equal(t, lines[i], r.Line)
	}
	assert.ErrorIs(t, results[9].Err, gazetteer.ErrUnmatched)

	stream, err := as.GetJobResultsStream(context.Background(), created.JobID)
	require.NoError(t, err)
	n := 0
	for r := range stream {
		assert.Equal(t, n, r.Index)
		n++
	}
	assert.Equal(t, len(lines), n)
}

func TestAddressService_JobLookupErrors(t *testing.T) {
	p := &mockParser{}
	as := NewAddressService(p, nil, 1, 0, zap.NewNop())
	defer as.Shutdown()

	_, err := as.GetJobStatus("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = as.GetJobResults("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = as.GetJobResultsStream(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)

	as.jobs["running"] = &job{status: JobStatus{JobID: "running", Status: JobStatusRunning}}
	_, err = as.GetJobResults("running")
	assert.ErrorIs(t, err, ErrJobNotFinished)
}

func TestAddressService_CancelledJobFails(t *testing.T) {
	p := &mockParser{}
	as := NewAddressService(p, nil, 1, 0, zap.NewNop())
	defer as.Shutdown()
	as.jobs["j"] = &job{status: JobStatus{JobID: "j", Status: JobStatusPending, Total: 2}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	as.ProcessBatchJob(ctx, "j", []string{"a", "b"})

	status, err := as.GetJobStatus("j")
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, status.Status)
	assert.Contains(t, status.Message, "cancelled")
	p.AssertNotCalled(t, "ParseBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddressService_EmptyJob(t *testing.T) {
	p := &mockParser{}
	as := NewAddressService(p, nil, 1, 0, zap.NewNop())
	defer as.Shutdown()

	created := as.CreateBatchJob(nil)
	status := waitForJob(t, as, created.JobID)
	assert.Equal(t, JobStatusDone, status.Status)
	assert.Equal(t, 0, status.Summary.Total)
	assert.InDelta(t, 1.0, status.Progress(), 1e-9)
}

func TestAddressService_PrunesOldJobs(t *testing.T) {
	p := &mockParser{}
	as := NewAddressService(p, nil, 1, time.Minute, zap.NewNop())
	defer as.Shutdown()

	old := time.Now().Add(-time.Hour)
	as.jobs["old"] = &job{status: JobStatus{JobID: "old", Status: JobStatusDone, UpdatedAt: old}}
	as.jobs["stuck"] = &job{status: JobStatus{JobID: "stuck", Status: JobStatusRunning, UpdatedAt: old}}

	created := as.CreateBatchJob(nil)
	waitForJob(t, as, created.JobID)

	_, err := as.GetJobStatus("old")
	assert.True(t, errors.Is(err, ErrJobNotFound))
	_, err = as.GetJobStatus("stuck")
	assert.NoError(t, err, "unfinished jobs are kept")
}

func TestAddressService_EstimateBatchProcessingTime(t *testing.T) {
	as := NewAddressService(&mockParser{}, nil, 1, 0, zap.NewNop())
	defer as.Shutdown()

	assert.Equal(t, 0, as.EstimateBatchProcessingTime(0))
	assert.Equal(t, 1, as.EstimateBatchProcessingTime(1))
	assert.Equal(t, 20, as.EstimateBatchProcessingTime(20000))
}
