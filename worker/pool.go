// Package worker provides the pool that consumes pipeline jobs from the
// files work-queue stream and drives the pipeline-run state machine.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvisycom/server/common"
	"github.com/nvisycom/server/db"
	"github.com/nvisycom/server/nats"
)

var log = common.Component("worker")

// Handler processes one job type. Returning an error whose chain exposes
// IsRecoverable() == true requeues the job until its retry budget is spent;
// any other error fails it permanently at once.
type Handler func(ctx context.Context, job *nats.PipelineJob) (json.RawMessage, error)

// recoverable is the error contract consulted for retry decisions.
type recoverable interface {
	IsRecoverable() bool
}

// Pool pulls pipeline jobs from the broker and dispatches them to
// registered handlers. Each job that references a pipeline run moves that
// run through Queued → Running → {Completed, Failed}.
type Pool struct {
	store      *db.Client
	subscriber *nats.EventSubscriber[nats.PipelineJob]
	handlers   map[string]Handler
	workers    int
	batchSize  int
	retryDelay time.Duration
}

// Config tunes the worker pool.
type Config struct {
	// Workers is the number of concurrent fetch loops.
	Workers int
	// BatchSize is how many jobs one fetch pulls.
	BatchSize int
	// MaxDeliver bounds redeliveries per job.
	MaxDeliver int
	// RetryDelay is the requeue delay for recoverable failures.
	RetryDelay time.Duration
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers:    4,
		BatchSize:  8,
		MaxDeliver: 5,
		RetryDelay: 15 * time.Second,
	}
}

// NewPool binds a durable consumer on the files stream.
func NewPool(ctx context.Context, store *db.Client, broker *nats.Client, cfg Config) (*Pool, error) {
	if cfg.Workers == 0 {
		cfg = DefaultConfig()
	}

	subscriber, err := nats.NewJobSubscriber(ctx, broker, "pipeline-workers", cfg.MaxDeliver)
	if err != nil {
		return nil, err
	}

	return &Pool{
		store:      store,
		subscriber: subscriber,
		handlers:   map[string]Handler{},
		workers:    cfg.Workers,
		batchSize:  cfg.BatchSize,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Register installs the handler for a job type. Must be called before Run.
func (p *Pool) Register(jobType string, handler Handler) {
	p.handlers[jobType] = handler
}

// Run starts the worker loops and blocks until the context is cancelled.
func (p *Pool) Run(ctx context.Context) {
	log.WithField("workers", p.workers).Info("worker pool started")

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()

	log.Info("worker pool stopped")
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := p.subscriber.Fetch(p.batchSize, 5*time.Second)
		if err != nil {
			log.WithError(err).WithField("worker", workerID).Warn("job fetch failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			p.handle(ctx, workerID, msg)
		}
	}
}

func (p *Pool) handle(ctx context.Context, workerID int, msg *nats.Msg[nats.PipelineJob]) {
	job := msg.Value
	entry := log.WithFields(map[string]any{
		"worker":   workerID,
		"job_id":   job.ID,
		"job_type": job.JobType,
	})

	handler, ok := p.handlers[job.JobType]
	if !ok {
		entry.Warn("no handler registered for job type, dropping")
		_ = msg.Ack()
		return
	}

	runID := p.startRun(ctx, &job)

	result, err := handler(ctx, &job)
	if err == nil {
		p.completeRun(ctx, runID, result)
		if ackErr := msg.Ack(); ackErr != nil {
			entry.WithError(ackErr).Warn("ack failed")
		}
		entry.Debug("job completed")
		return
	}

	var rec recoverable
	canRetry := errors.As(err, &rec) && rec.IsRecoverable() && msg.Deliveries() < job.MaxRetries+1

	if canRetry {
		if nakErr := msg.Nak(p.retryDelay); nakErr != nil {
			entry.WithError(nakErr).Warn("nack failed")
		}
		entry.WithError(err).Warn("job failed, will retry")
		return
	}

	p.failRun(ctx, runID, err)
	if ackErr := msg.Ack(); ackErr != nil {
		entry.WithError(ackErr).Warn("ack failed")
	}
	entry.WithError(err).Error("job failed permanently")
}

// jobRunRef extracts an optional pipeline run reference from a job payload.
type jobRunRef struct {
	RunID uuid.UUID `json:"run_id"`
}

// startRun transitions the referenced run to Running, if the job carries a
// run reference and the run is still queued.
func (p *Pool) startRun(ctx context.Context, job *nats.PipelineJob) uuid.UUID {
	ref := jobRunRef{}
	if err := json.Unmarshal(job.Payload, &ref); err != nil || ref.RunID == uuid.Nil {
		return uuid.Nil
	}
	if _, err := p.store.StartWorkspacePipelineRun(ctx, ref.RunID); err != nil {
		log.WithError(err).WithField("run_id", ref.RunID).Warn("could not start pipeline run")
		return uuid.Nil
	}
	return ref.RunID
}

func (p *Pool) completeRun(ctx context.Context, runID uuid.UUID, result json.RawMessage) {
	if runID == uuid.Nil {
		return
	}
	if _, err := p.store.CompleteWorkspacePipelineRun(ctx, runID, result); err != nil {
		log.WithError(err).WithField("run_id", runID).Warn("could not complete pipeline run")
	}
}

func (p *Pool) failRun(ctx context.Context, runID uuid.UUID, jobErr error) {
	if runID == uuid.Nil {
		return
	}
	if _, err := p.store.FailWorkspacePipelineRun(ctx, runID, fmt.Sprintf("%v", jobErr)); err != nil {
		log.WithError(err).WithField("run_id", runID).Warn("could not fail pipeline run")
	}
}
