package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/logger"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
	"github.com/cloo-solutions/lessonlens/internal/service"
	"github.com/cloo-solutions/lessonlens/internal/telemetry"
)

const (
	DefaultBatchSize   = 5
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 30 * time.Second
	DefaultStaleAfter  = 10 * time.Minute
)

// JobQueue is the claim side of the pipeline queue
type JobQueue interface {
	ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]*domain.QueuedJob, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, errMsg string) error
	Retry(ctx context.Context, id string, errMsg string, availableAt time.Time) error
}

// EmbeddingRefresher recomputes a page embedding
type EmbeddingRefresher interface {
	RefreshPageEmbedding(ctx context.Context, pageID int64) (bool, error)
}

// ConceptExtractor extracts a page's concepts
type ConceptExtractor interface {
	ExtractConcepts(ctx context.Context, pageID int64) (*service.ConceptExtractionResult, error)
}

// DispatcherConfig bounds claiming and redelivery
type DispatcherConfig struct {
	BatchSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	StaleAfter  time.Duration
}

// Dispatcher claims queued jobs and runs the matching pipeline step
type Dispatcher struct {
	queue      JobQueue
	embeddings EmbeddingRefresher
	concepts   ConceptExtractor
	cfg        DispatcherConfig
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time
}

// NewDispatcher creates a Dispatcher; zero config values take the defaults
func NewDispatcher(
	queue JobQueue,
	embeddings EmbeddingRefresher,
	concepts ConceptExtractor,
	cfg DispatcherConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	return &Dispatcher{
		queue:      queue,
		embeddings: embeddings,
		concepts:   concepts,
		cfg:        cfg,
		metrics:    m,
		log:        log.With("component", "dispatcher"),
		now:        time.Now,
	}
}

// ProcessJobs implements the JobProcessor interface
func (d *Dispatcher) ProcessJobs(ctx context.Context) error {
	jobs, err := d.queue.ClaimPending(ctx, d.cfg.BatchSize, d.cfg.StaleAfter)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	d.log.Debug("processing claimed jobs", "count", len(jobs))

	for _, job := range jobs {
		if ctx.Err() != nil {
			d.log.Warn("stopping with claimed jobs left for reclaim", "job_id", job.ID)
			return nil
		}
		if err := d.processJob(ctx, job); err != nil {
			d.log.Error("failed to record job outcome", "job_id", job.ID, "error", err)
		}
	}

	return nil
}

func (d *Dispatcher) processJob(ctx context.Context, qj *domain.QueuedJob) error {
	if qj.Job == nil {
		d.log.Error("dropping undecodable job", "job_id", qj.ID, "error", qj.Error)
		d.metrics.RecordJob("unknown", metrics.OutcomeFailed, 0)
		return d.queue.Fail(ctx, qj.ID, "undecodable payload: "+qj.Error)
	}

	kind := string(qj.Job.Kind())
	pageID := qj.Job.TargetPageID()
	ctx, span := telemetry.StartSpan(ctx, "job."+kind, telemetry.SpanAttributes{
		PageID:    pageID,
		JobKind:   kind,
		Operation: "process_job",
	})
	defer span.End()

	log := d.log.With(
		"job_id", qj.ID,
		"job_kind", kind,
		"page_id", pageID,
		"attempt", qj.Attempts+1,
	)

	start := d.now()
	outcome, jobErr := d.dispatch(ctx, qj.Job)
	elapsed := d.now().Sub(start)

	if jobErr == nil {
		d.metrics.RecordJob(kind, outcome, elapsed)
		log.Info("job completed", "outcome", outcome, "duration_ms", elapsed.Milliseconds())
		return d.queue.Complete(ctx, qj.ID)
	}

	if ctx.Err() != nil {
		log.Warn("job interrupted, left for redelivery", "error", jobErr)
		return nil
	}

	terminal := isTerminal(jobErr) || int(qj.Attempts)+1 >= d.cfg.MaxAttempts
	span.SetError(jobErr)
	telemetry.CaptureJobError(ctx, jobErr, telemetry.JobFailure{
		JobID:    qj.ID,
		JobKind:  kind,
		PageID:   pageID,
		Attempt:  qj.Attempts + 1,
		Terminal: terminal,
	})

	if terminal {
		d.metrics.RecordJob(kind, metrics.OutcomeFailed, elapsed)
		log.Error("job failed", "error", jobErr)
		return d.queue.Fail(ctx, qj.ID, jobErr.Error())
	}

	delay := d.cfg.RetryDelay * time.Duration(qj.Attempts+1)
	d.metrics.RecordJob(kind, metrics.OutcomeRetried, elapsed)
	log.Warn("job failed, will retry", "error", jobErr, "retry_in", delay.String())
	return d.queue.Retry(ctx, qj.ID, jobErr.Error(), d.now().Add(delay))
}

// dispatch runs the job body and names its successful outcome
func (d *Dispatcher) dispatch(ctx context.Context, job domain.Job) (string, error) {
	switch j := job.(type) {
	case domain.ProcessEmbedding:
		written, err := d.embeddings.RefreshPageEmbedding(ctx, j.PageID)
		if err != nil {
			return "", err
		}
		if !written {
			return metrics.OutcomeNoop, nil
		}
		return metrics.OutcomeSucceeded, nil
	case domain.ProcessConcepts:
		if _, err := d.concepts.ExtractConcepts(ctx, j.PageID); err != nil {
			return "", err
		}
		return metrics.OutcomeSucceeded, nil
	}
	return "", domain.ErrInvalidJobKind.Wrap(fmt.Errorf("%T", job))
}

// isTerminal reports errors that redelivery cannot fix
func isTerminal(err error) bool {
	switch domain.CodeOf(err) {
	case domain.ErrCodeNotFound, domain.ErrCodeEmptyContent, domain.ErrCodeValidation:
		return true
	}
	return false
}
