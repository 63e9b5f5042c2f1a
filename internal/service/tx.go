package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
)

// PageReader loads a page with its blocks
type PageReader interface {
	GetWithBlocks(ctx context.Context, id int64) (*domain.Page, error)
}

// PageRepositoryInterface defines the page writes performed inside a transaction
type PageRepositoryInterface interface {
	PageReader
	ReplaceBlocks(ctx context.Context, pageID int64, contents []domain.BlockContent) ([]domain.Block, error)
	MarkManualEdit(ctx context.Context, pageID int64) error
	SaveGeneration(ctx context.Context, pageID int64, threadID string) error
}

// ModuleReader loads a module's AI configuration
type ModuleReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Module, error)
}

// JobEnqueuer adds jobs to the pipeline queue
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *domain.QueuedJob) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Pages() PageRepositoryInterface
	Jobs() JobEnqueuer
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// enqueuePageJobs queues ProcessEmbedding and ProcessConcepts for pageID
func enqueuePageJobs(ctx context.Context, jobs JobEnqueuer, uuidGen UUIDGenerator, pageID int64) ([]*domain.QueuedJob, error) {
	return enqueueJobs(ctx, jobs, uuidGen, domain.PageJobs(pageID))
}

func enqueueJobs(ctx context.Context, jobs JobEnqueuer, uuidGen UUIDGenerator, list []domain.Job) ([]*domain.QueuedJob, error) {
	now := time.Now().UTC()
	queued := make([]*domain.QueuedJob, 0, len(list))
	for _, j := range list {
		qj := domain.NewQueuedJob(uuidGen.NewString(), j, now)
		if err := jobs.Enqueue(ctx, qj); err != nil {
			return nil, err
		}
		queued = append(queued, qj)
	}
	return queued, nil
}

// recordEnqueued counts jobs once their transaction has committed
func recordEnqueued(m *metrics.Metrics, queued []*domain.QueuedJob) {
	if m == nil {
		return
	}
	for _, qj := range queued {
		m.JobsEnqueued.WithLabelValues(string(qj.Job.Kind())).Inc()
	}
}
