package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"linksaver/internal/domain"
)

const (
	// maxJobsPerCycle bounds how many jobs of one type a poll drains
	maxJobsPerCycle = 10

	retrySchedule = "@every 30s"

	defaultRefreshBatch = 50
)

// StaleSource lists bookmarks whose metadata should be extracted again
type StaleSource interface {
	StaleBookmarks(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Bookmark, error)
}

// Options configure the worker loops
type Options struct {
	PollInterval    time.Duration
	RefreshSchedule string
	RefreshAfter    time.Duration
	RefreshBatch    int
}

// WorkerService processes background jobs
type WorkerService struct {
	logger    *slog.Logger
	queueRepo domain.QueueRepository
	processor *JobProcessor
	stale     StaleSource
	cron      *cron.Cron
	opts      Options

	mu    sync.Mutex
	stats WorkerStats
}

// WorkerStats tracks worker performance metrics
type WorkerStats struct {
	JobsProcessed  int64
	JobsSucceeded  int64
	JobsFailed     int64
	LastJobTime    time.Time
	AverageJobTime time.Duration
}

// New creates a new worker service. stale may be nil to disable scheduled refreshes.
func New(
	logger *slog.Logger,
	queueRepo domain.QueueRepository,
	processor *JobProcessor,
	stale StaleSource,
	opts Options,
) (*WorkerService, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.RefreshBatch <= 0 {
		opts.RefreshBatch = defaultRefreshBatch
	}

	cronLog := cronLogger{logger: logger}
	w := &WorkerService{
		logger:    logger,
		queueRepo: queueRepo,
		processor: processor,
		stale:     stale,
		opts:      opts,
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}

	if _, err := w.cron.AddFunc(retrySchedule, func() { w.promoteRetries(context.Background()) }); err != nil {
		return nil, fmt.Errorf("failed to schedule retry promotion: %w", err)
	}
	if stale != nil && opts.RefreshSchedule != "" {
		if _, err := w.cron.AddFunc(opts.RefreshSchedule, func() { w.enqueueStale(context.Background()) }); err != nil {
			return nil, fmt.Errorf("failed to schedule metadata refresh %q: %w", opts.RefreshSchedule, err)
		}
	}

	return w, nil
}

// Run processes jobs until ctx is cancelled
func (w *WorkerService) Run(ctx context.Context) error {
	w.logger.Info("Starting worker service...",
		"poll_interval", w.opts.PollInterval,
		"refresh_schedule", w.opts.RefreshSchedule,
	)
	w.cron.Start()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping worker service...")
			<-w.cron.Stop().Done()
			w.logger.Info("Worker service stopped")
			return nil
		case <-ticker.C:
			w.processPendingJobs(ctx)
		}
	}
}

// processPendingJobs drains every job type once
func (w *WorkerService) processPendingJobs(ctx context.Context) {
	for _, jobType := range domain.JobTypes {
		if ctx.Err() != nil {
			return
		}
		w.processJobType(ctx, jobType)
	}
}

// processJobType processes up to maxJobsPerCycle pending jobs of a specific type
func (w *WorkerService) processJobType(ctx context.Context, jobType string) {
	pendingCount, err := w.queueRepo.GetPendingCount(ctx, jobType)
	if err != nil {
		w.logger.Error("Failed to get pending job count",
			"error", err,
			"job_type", jobType,
		)
		return
	}

	if pendingCount == 0 {
		return
	}

	w.logger.Debug("Processing pending jobs",
		"job_type", jobType,
		"count", pendingCount,
	)

	maxJobs := min(pendingCount, maxJobsPerCycle)
	for i := 0; i < maxJobs; i++ {
		job, err := w.queueRepo.Dequeue(ctx, jobType)
		if err != nil {
			w.logger.Error("Failed to dequeue job",
				"error", err,
				"job_type", jobType,
			)
			continue
		}
		if job == nil {
			break
		}

		w.processJob(ctx, job)
	}
}

// processJob processes a single job
func (w *WorkerService) processJob(ctx context.Context, job *domain.QueueJob) {
	startTime := time.Now()
	jobLogger := w.logger.With(
		"job_id", job.ID,
		"job_type", job.Type,
	)

	jobLogger.Info("Processing job")

	processingErr := w.runJob(ctx, job, jobLogger)

	if processingErr != nil {
		jobLogger.Error("Job processing failed", "error", processingErr)
		if err := w.queueRepo.Fail(ctx, job.ID, processingErr.Error()); err != nil {
			jobLogger.Error("Failed to mark job as failed", "error", err)
		}
	} else {
		jobLogger.Info("Job processed successfully")
		if err := w.queueRepo.Complete(ctx, job.ID); err != nil {
			jobLogger.Error("Failed to mark job as completed", "error", err)
		}
	}

	jobDuration := time.Since(startTime)
	w.recordJob(processingErr == nil, jobDuration)

	jobLogger.Debug("Job processing completed",
		"duration", jobDuration,
		"success", processingErr == nil,
	)
}

// runJob turns a processor panic into a job failure
func (w *WorkerService) runJob(ctx context.Context, job *domain.QueueJob, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return w.processor.Process(ctx, job, logger)
}

func (w *WorkerService) recordJob(success bool, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if success {
		w.stats.JobsSucceeded++
	} else {
		w.stats.JobsFailed++
	}
	w.stats.JobsProcessed++
	w.stats.LastJobTime = time.Now()

	// running mean
	n := time.Duration(w.stats.JobsProcessed)
	w.stats.AverageJobTime += (d - w.stats.AverageJobTime) / n
}

// promoteRetries moves due retries back onto their queues
func (w *WorkerService) promoteRetries(ctx context.Context) {
	for _, jobType := range domain.JobTypes {
		if err := w.queueRepo.ProcessRetryJobs(ctx, jobType); err != nil {
			w.logger.Error("Failed to promote retry jobs", "error", err, "job_type", jobType)
		}
	}
}

// enqueueStale schedules refreshes for bookmarks still carrying a placeholder summary
func (w *WorkerService) enqueueStale(ctx context.Context) {
	stale, err := w.stale.StaleBookmarks(ctx, w.opts.RefreshAfter, w.opts.RefreshBatch)
	if err != nil {
		w.logger.Error("Failed to list stale bookmarks", "error", err)
		return
	}

	queued := 0
	for _, b := range stale {
		payload := domain.RefreshPayload{
			BookmarkID: b.ID.String(),
			UserID:     b.UserID.String(),
			URL:        b.URL,
		}
		if err := w.queueRepo.Enqueue(ctx, domain.JobTypeRefreshMetadata, payload); err != nil {
			w.logger.Error("Failed to enqueue refresh", "error", err, "bookmark_id", b.ID)
			continue
		}
		queued++
	}

	if queued > 0 {
		w.logger.Info("Scheduled metadata refreshes", "count", queued)
	}
}

// GetStats returns current worker statistics
func (w *WorkerService) GetStats() WorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// HealthCheck performs a health check on the worker service
func (w *WorkerService) HealthCheck(ctx context.Context) error {
	if _, err := w.queueRepo.GetPendingCount(ctx, domain.JobTypeRefreshMetadata); err != nil {
		return fmt.Errorf("queue connectivity check failed: %w", err)
	}
	return nil
}

// cronLogger routes cron's logging through slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
