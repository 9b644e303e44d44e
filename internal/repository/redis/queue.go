package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"linksaver/internal/domain"
)

// Redis key layout, all under keyNamespace:
//
//	queue:<type>       list of pending job IDs
//	processing:<type>  list of job IDs taken by a worker
//	retry:<type>       zset of job IDs scored by next attempt (unix seconds)
//	dead:<type>        list of job IDs that exhausted their retries
//	job:<id>           hash holding the serialized job
//	stats:<type>       hash of counters
const keyNamespace = "linksaver:"

func queueKey(jobType string) string      { return keyNamespace + "queue:" + jobType }
func processingKey(jobType string) string { return keyNamespace + "processing:" + jobType }
func retryKey(jobType string) string      { return keyNamespace + "retry:" + jobType }
func deadKey(jobType string) string       { return keyNamespace + "dead:" + jobType }
func statsKey(jobType string) string      { return keyNamespace + "stats:" + jobType }
func jobKey(id string) string             { return keyNamespace + "job:" + id }

// Job retry configuration
const (
	maxRetries     = 5
	initialBackoff = time.Second
	maxBackoff     = 5 * time.Minute
	jobTTL         = 24 * time.Hour
	finishedJobTTL = 6 * time.Hour
)

// retryDelay is the exponential backoff before attempt number retry (1-based)
func retryDelay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	if retry > 20 {
		return maxBackoff
	}
	d := initialBackoff << (retry - 1)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// storedJob is the serialized form of a job kept under job:<id>
type storedJob struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	Status     string         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  *time.Time     `json:"updated_at,omitempty"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
	NextRetry  *time.Time     `json:"next_retry,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func (j *storedJob) toDomain() *domain.QueueJob {
	job := &domain.QueueJob{
		ID:        j.ID,
		Type:      j.Type,
		Payload:   j.Payload,
		Status:    j.Status,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
	}
	if j.UpdatedAt != nil {
		updated := j.UpdatedAt.Format(time.RFC3339)
		job.UpdatedAt = &updated
	}
	return job
}

// QueueStats are the counters and current list sizes for one job type
type QueueStats struct {
	Counters   map[string]int64 `json:"counters"`
	Pending    int64            `json:"pending"`
	Processing int64            `json:"processing"`
	Retrying   int64            `json:"retrying"`
	Dead       int64            `json:"dead"`
}

// QueueRepository implements the domain.QueueRepository interface using Redis
type QueueRepository struct {
	client       *redis.Client
	logger       *slog.Logger
	blockTimeout time.Duration
}

// NewQueueRepository creates a queue; Dequeue blocks for at most blockTimeout
func NewQueueRepository(client *redis.Client, logger *slog.Logger, blockTimeout time.Duration) *QueueRepository {
	if blockTimeout <= 0 {
		blockTimeout = 5 * time.Second
	}
	return &QueueRepository{
		client:       client,
		logger:       logger,
		blockTimeout: blockTimeout,
	}
}

// saveJob queues the writes that persist job into pipe
func saveJob(ctx context.Context, pipe redis.Pipeliner, job *storedJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	fields := map[string]any{
		"data":        string(data),
		"status":      job.Status,
		"type":        job.Type,
		"retry_count": job.RetryCount,
	}
	if job.UpdatedAt != nil {
		fields["updated_at"] = job.UpdatedAt.Unix()
	}
	if job.Error != "" {
		fields["error"] = job.Error
	}
	pipe.HSet(ctx, jobKey(job.ID), fields)
	return nil
}

func (r *QueueRepository) loadJob(ctx context.Context, jobID string) (*storedJob, error) {
	data, err := r.client.HGet(ctx, jobKey(jobID), "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job data: %w", err)
	}

	var job storedJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Enqueue adds a new job to the queue
func (r *QueueRepository) Enqueue(ctx context.Context, jobType string, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var payloadMap map[string]any
	if err := json.Unmarshal(payloadBytes, &payloadMap); err != nil {
		return fmt.Errorf("payload must encode as a JSON object: %w", err)
	}

	job := &storedJob{
		ID:         uuid.New().String(),
		Type:       jobType,
		Payload:    payloadMap,
		Status:     domain.JobStatusPending,
		CreatedAt:  time.Now(),
		MaxRetries: maxRetries,
	}

	pipe := r.client.TxPipeline()
	if err := saveJob(ctx, pipe, job); err != nil {
		return err
	}
	pipe.Expire(ctx, jobKey(job.ID), jobTTL)
	pipe.LPush(ctx, queueKey(jobType), job.ID)
	pipe.HIncrBy(ctx, statsKey(jobType), "total_enqueued", 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	r.logger.Info("Job enqueued",
		"job_id", job.ID,
		"job_type", jobType,
	)
	return nil
}

// Dequeue moves the oldest pending job onto the processing list and returns it.
// It returns nil, nil when no job arrives within the block timeout.
func (r *QueueRepository) Dequeue(ctx context.Context, jobType string) (*domain.QueueJob, error) {
	jobID, err := r.client.BRPopLPush(ctx, queueKey(jobType), processingKey(jobType), r.blockTimeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	job, err := r.loadJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("Job data expired, dropping from processing", "job_id", jobID)
			r.client.LRem(ctx, processingKey(jobType), 1, jobID)
		}
		return nil, err
	}

	now := time.Now()
	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = &now

	pipe := r.client.TxPipeline()
	if err := saveJob(ctx, pipe, job); err != nil {
		return nil, err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to update job status", "error", err, "job_id", jobID)
	}

	r.logger.Debug("Job dequeued",
		"job_id", job.ID,
		"job_type", jobType,
		"retry_count", job.RetryCount,
	)
	return job.toDomain(), nil
}

// Complete marks a job as completed and removes it from processing
func (r *QueueRepository) Complete(ctx context.Context, jobID string) error {
	job, err := r.loadJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job for completion: %w", err)
	}

	now := time.Now()
	job.Status = domain.JobStatusCompleted
	job.UpdatedAt = &now

	pipe := r.client.TxPipeline()
	if err := saveJob(ctx, pipe, job); err != nil {
		return err
	}
	pipe.LRem(ctx, processingKey(job.Type), 1, jobID)
	pipe.HIncrBy(ctx, statsKey(job.Type), "completed", 1)
	pipe.Expire(ctx, jobKey(jobID), finishedJobTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	r.logger.Info("Job completed", "job_id", jobID, "job_type", job.Type)
	return nil
}

// Fail records a failed attempt. The job is scheduled for retry with
// exponential backoff until maxRetries, then moved to the dead letter list.
func (r *QueueRepository) Fail(ctx context.Context, jobID string, errorMsg string) error {
	job, err := r.loadJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job for failure: %w", err)
	}

	now := time.Now()
	job.Error = errorMsg
	job.UpdatedAt = &now
	job.RetryCount++

	pipe := r.client.TxPipeline()

	if job.RetryCount <= job.MaxRetries {
		nextRetry := now.Add(retryDelay(job.RetryCount))
		job.NextRetry = &nextRetry
		job.Status = domain.JobStatusPending

		pipe.ZAdd(ctx, retryKey(job.Type), redis.Z{
			Score:  float64(nextRetry.Unix()),
			Member: jobID,
		})

		r.logger.Info("Job scheduled for retry",
			"job_id", jobID,
			"job_type", job.Type,
			"retry_count", job.RetryCount,
			"next_retry", nextRetry,
			"error", errorMsg,
		)
	} else {
		job.NextRetry = nil
		job.Status = domain.JobStatusFailed

		pipe.LPush(ctx, deadKey(job.Type), jobID)
		pipe.HIncrBy(ctx, statsKey(job.Type), "failed", 1)
		pipe.Expire(ctx, jobKey(jobID), jobTTL)

		r.logger.Error("Job failed permanently",
			"job_id", jobID,
			"job_type", job.Type,
			"retry_count", job.RetryCount,
			"error", errorMsg,
		)
	}

	if err := saveJob(ctx, pipe, job); err != nil {
		return err
	}
	pipe.LRem(ctx, processingKey(job.Type), 1, jobID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to handle job failure: %w", err)
	}
	return nil
}

// GetPendingCount returns the number of pending jobs for a job type
func (r *QueueRepository) GetPendingCount(ctx context.Context, jobType string) (int, error) {
	count, err := r.client.LLen(ctx, queueKey(jobType)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return int(count), nil
}

// ProcessRetryJobs moves jobs whose retry time has come back onto the main queue
func (r *QueueRepository) ProcessRetryJobs(ctx context.Context, jobType string) error {
	due, err := r.client.ZRangeByScore(ctx, retryKey(jobType), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get retry jobs: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for _, jobID := range due {
		pipe.ZRem(ctx, retryKey(jobType), jobID)
		pipe.LPush(ctx, queueKey(jobType), jobID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to process retry jobs: %w", err)
	}

	r.logger.Info("Processed retry jobs",
		"job_type", jobType,
		"count", len(due),
	)
	return nil
}

// GetQueueStats returns counters and current list sizes for a job type
func (r *QueueRepository) GetQueueStats(ctx context.Context, jobType string) (*QueueStats, error) {
	pipe := r.client.Pipeline()
	counters := pipe.HGetAll(ctx, statsKey(jobType))
	pending := pipe.LLen(ctx, queueKey(jobType))
	processing := pipe.LLen(ctx, processingKey(jobType))
	retrying := pipe.ZCard(ctx, retryKey(jobType))
	dead := pipe.LLen(ctx, deadKey(jobType))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}

	stats := &QueueStats{
		Counters:   make(map[string]int64),
		Pending:    pending.Val(),
		Processing: processing.Val(),
		Retrying:   retrying.Val(),
		Dead:       dead.Val(),
	}
	for key, value := range counters.Val() {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			stats.Counters[key] = n
		}
	}
	return stats, nil
}
