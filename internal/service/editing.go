package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/logger"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
	"github.com/cloo-solutions/lessonlens/internal/telemetry"
)

// EditingService records manual content changes and queues reprocessing
type EditingService struct {
	txRunner TxRunner
	uuidGen  UUIDGenerator
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewEditingService(txRunner TxRunner, m *metrics.Metrics, log *logger.Logger) *EditingService {
	return &EditingService{
		txRunner: txRunner,
		uuidGen:  &DefaultUUIDGenerator{},
		metrics:  m,
		log:      log.With("service", "EditingService"),
	}
}

// NewEditingServiceWithUUID creates an EditingService with a custom UUID generator (for testing)
func NewEditingServiceWithUUID(txRunner TxRunner, uuidGen UUIDGenerator, m *metrics.Metrics, log *logger.Logger) *EditingService {
	s := NewEditingService(txRunner, m, log)
	s.uuidGen = uuidGen
	return s
}

// SaveManualBlocks replaces the page's blocks with hand-written content, marks
// the page as manually edited and queues both pipeline jobs. Manual content is
// not checked for consecutive TEXT blocks.
func (s *EditingService) SaveManualBlocks(ctx context.Context, pageID int64, contents []domain.BlockContent) ([]domain.Block, []*domain.QueuedJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "EditingService.SaveManualBlocks", telemetry.SpanAttributes{
		PageID:    pageID,
		Operation: "save_blocks",
	})
	defer span.End()

	for _, c := range contents {
		if c == nil {
			return nil, nil, domain.ErrMissingRequiredField
		}
	}

	var (
		stored []domain.Block
		queued []*domain.QueuedJob
	)
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		blocks, err := repos.Pages().ReplaceBlocks(ctx, pageID, contents)
		if err != nil {
			return err
		}
		if err := repos.Pages().MarkManualEdit(ctx, pageID); err != nil {
			return err
		}
		jobs, err := enqueuePageJobs(ctx, repos.Jobs(), s.uuidGen, pageID)
		if err != nil {
			return err
		}
		stored, queued = blocks, jobs
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, nil, err
	}

	recordEnqueued(s.metrics, queued)
	s.log.Info("manual blocks saved", "page_id", pageID, "blocks", len(stored))
	return stored, queued, nil
}

// RequestRefresh queues both pipeline jobs without changing the page
func (s *EditingService) RequestRefresh(ctx context.Context, pageID int64) ([]*domain.QueuedJob, error) {
	return s.RequestJobs(ctx, pageID, domain.PageJobs(pageID))
}

// RequestJobs queues the given jobs for an existing page. Every job must
// target pageID.
func (s *EditingService) RequestJobs(ctx context.Context, pageID int64, list []domain.Job) ([]*domain.QueuedJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "EditingService.RequestJobs", telemetry.SpanAttributes{
		PageID:    pageID,
		Operation: "request_jobs",
	})
	defer span.End()

	if len(list) == 0 {
		return nil, domain.ErrMissingRequiredField.Wrap(fmt.Errorf("no jobs requested"))
	}
	for _, j := range list {
		if j == nil || j.TargetPageID() != pageID {
			return nil, domain.ErrInvalidJobKind.Wrap(fmt.Errorf("job does not target page %d", pageID))
		}
	}

	var queued []*domain.QueuedJob
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if _, err := repos.Pages().GetWithBlocks(ctx, pageID); err != nil {
			return err
		}
		jobs, err := enqueueJobs(ctx, repos.Jobs(), s.uuidGen, list)
		if err != nil {
			return err
		}
		queued = jobs
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordEnqueued(s.metrics, queued)
	s.log.Info("pipeline jobs requested", "page_id", pageID, "jobs", len(queued))
	return queued, nil
}
