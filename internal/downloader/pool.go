// Package downloader is the bounded worker pool that fetches resolved media
// items to disk. Items are independent aside from the shared summary
// counters; target paths are precomputed, so ordering between workers is
// irrelevant.
package downloader

import (
	"context"
	"os"
	"sync"
	"time"

	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/ratelimit"
	"mediagrab/pkg/retry"
)

// Job is one media file to fetch: the resolved URL and the final target
// path rendered before any network call.
type Job struct {
	URL    string
	Path   string
	PostID string
}

// Result is the outcome of one job.
type Result struct {
	Job      Job
	Status   Status
	Error    error
	Size     int64
	Duration time.Duration
}

// Status classifies a job outcome.
type Status int

const (
	StatusDownloaded Status = iota
	StatusSkippedExisting
	StatusFailed
)

// WorkerPool runs download jobs on a fixed number of workers.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	fetcher     Fetcher
	rateLimiter ratelimit.Limiter
	retryCfg    *retry.Config
	summary     *models.DownloadSummary
	logger      logger.Logger
}

// NewWorkerPool creates a pool of numWorkers workers sharing one summary.
func NewWorkerPool(
	numWorkers int,
	fetcher Fetcher,
	rateLimiter ratelimit.Limiter,
	retryCfg *retry.Config,
	summary *models.DownloadSummary,
	log logger.Logger,
) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		retryCfg:    retryCfg,
		summary:     summary,
		logger:      log,
	}
}

// Start launches the workers. Cancellation of ctx stops workers from
// picking up new jobs; an in-flight transfer finishes its current write.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop signals that no more jobs will be submitted and waits for the
// workers to drain.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
}

// Submit queues a job. Returns false once ctx is cancelled.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) bool {
	select {
	case wp.jobQueue <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Results returns the result channel.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-ctx.Done():
			wp.logger.DebugWithFields("worker stopping, context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		result := wp.processJob(ctx, job, id)

		select {
		case wp.resultQueue <- result:
		case <-ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processJob(ctx context.Context, job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	// Idempotence: an existing target is never re-fetched or overwritten.
	if _, err := os.Stat(job.Path); err == nil {
		wp.summary.RecordSkippedExisting()
		result.Status = StatusSkippedExisting
		result.Duration = time.Since(start)

		wp.logger.DebugWithFields("media already downloaded", map[string]interface{}{
			"worker_id": workerID,
			"post_id":   job.PostID,
			"path":      job.Path,
		})
		return result
	}

	if wp.rateLimiter != nil {
		if err := wp.rateLimiter.Wait(ctx); err != nil {
			wp.summary.RecordFailed()
			result.Status = StatusFailed
			result.Error = err
			result.Duration = time.Since(start)
			return result
		}
	}

	retryCfg := *wp.retryCfg
	retryCfg.Context = ctx

	size, err := retry.DoWithResult(func() (int64, error) {
		return wp.fetcher.Fetch(ctx, job.URL, job.Path)
	}, &retryCfg)

	result.Size = size
	result.Duration = time.Since(start)

	if err != nil {
		// Partial-failure isolation: one exhausted item never aborts the
		// batch.
		wp.summary.RecordFailed()
		result.Status = StatusFailed
		result.Error = err

		wp.logger.ErrorWithFields("download failed", map[string]interface{}{
			"worker_id": workerID,
			"post_id":   job.PostID,
			"url":       job.URL,
			"error":     err.Error(),
		})
		return result
	}

	wp.summary.RecordDownloaded()
	result.Status = StatusDownloaded

	wp.logger.InfoWithFields("downloaded", map[string]interface{}{
		"post_id":  job.PostID,
		"path":     job.Path,
		"bytes":    size,
		"duration": result.Duration,
	})
	return result
}
