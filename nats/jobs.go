package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the execution state of a pipeline job on the work queue.
type JobStatus string

// Pipeline job states.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// PipelineJob is a unit of file-processing work. Jobs are not persisted
// relationally; they live on the files work-queue stream.
type PipelineJob struct {
	ID          uuid.UUID       `json:"id"`
	JobType     string          `json:"job_type"`
	Priority    uint8           `json:"priority"`
	Status      JobStatus       `json:"status"`
	WorkerID    string          `json:"worker_id,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// JobQueue submits pipeline jobs onto the files stream, routed by job type
// and priority so workers can subscribe selectively.
type JobQueue struct {
	publisher *EventPublisher[PipelineJob]
}

// NewJobQueue binds the files work-queue stream.
func NewJobQueue(ctx context.Context, client *Client) (*JobQueue, error) {
	publisher, err := NewEventPublisher[PipelineJob](ctx, client, FileStream)
	if err != nil {
		return nil, err
	}
	return &JobQueue{publisher: publisher}, nil
}

// Submit publishes one job. The job id doubles as the deduplication id.
func (q *JobQueue) Submit(ctx context.Context, job *PipelineJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = JobQueued
	}

	subject := fmt.Sprintf("%s.p%d", job.JobType, job.Priority)
	return q.publisher.PublishTo(ctx, subject, job.ID.String(), *job)
}

// SubmitBatch publishes jobs in order, stopping at the first failure.
func (q *JobQueue) SubmitBatch(ctx context.Context, jobs []*PipelineJob) error {
	for _, job := range jobs {
		if err := q.Submit(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// NewJobSubscriber binds a durable consumer over the files stream for
// worker pools.
func NewJobSubscriber(ctx context.Context, client *Client, durable string, maxDeliver int) (*EventSubscriber[PipelineJob], error) {
	return NewEventSubscriber[PipelineJob](ctx, client, FileStream, SubscriberConfig{
		Durable:    durable,
		MaxDeliver: maxDeliver,
	})
}
