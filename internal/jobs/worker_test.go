package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/logger"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
	"github.com/cloo-solutions/lessonlens/internal/service"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockJobQueue is a mock implementation of JobQueue
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]*domain.QueuedJob, error) {
	args := m.Called(ctx, limit, staleAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.QueuedJob), args.Error(1)
}

func (m *MockJobQueue) Complete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockJobQueue) Fail(ctx context.Context, id string, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockJobQueue) Retry(ctx context.Context, id string, errMsg string, availableAt time.Time) error {
	args := m.Called(ctx, id, errMsg, availableAt)
	return args.Error(0)
}

// MockEmbeddingRefresher is a mock implementation of EmbeddingRefresher
type MockEmbeddingRefresher struct {
	mock.Mock
}

func (m *MockEmbeddingRefresher) RefreshPageEmbedding(ctx context.Context, pageID int64) (bool, error) {
	args := m.Called(ctx, pageID)
	return args.Bool(0), args.Error(1)
}

// MockConceptExtractor is a mock implementation of ConceptExtractor
type MockConceptExtractor struct {
	mock.Mock
}

func (m *MockConceptExtractor) ExtractConcepts(ctx context.Context, pageID int64) (*service.ConceptExtractionResult, error) {
	args := m.Called(ctx, pageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ConceptExtractionResult), args.Error(1)
}

// panicProcessor panics on its first call and counts later ones
type panicProcessor struct {
	calls atomic.Int32
}

func (p *panicProcessor) ProcessJobs(ctx context.Context) error {
	if p.calls.Add(1) == 1 {
		panic("boom")
	}
	return nil
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 50*time.Millisecond, 3, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(200 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_StopTwice(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 50*time.Millisecond, 2, logger.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Start(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)

	assert.NotPanics(t, func() {
		worker.Stop()
		worker.Stop()
	})
	<-done
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("db unavailable"))

	worker := NewWorker(mockProcessor, 50*time.Millisecond, 0, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_RecoversFromPanic(t *testing.T) {
	p := &panicProcessor{}
	worker := NewWorker(p, 20*time.Millisecond, 1, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	queue      *MockJobQueue
	embeddings *MockEmbeddingRefresher
	concepts   *MockConceptExtractor
	metrics    *metrics.Metrics
	now        time.Time
}

func newDispatcherFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		queue:      new(MockJobQueue),
		embeddings: new(MockEmbeddingRefresher),
		concepts:   new(MockConceptExtractor),
		metrics:    metrics.New(),
		now:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.dispatcher = NewDispatcher(f.queue, f.embeddings, f.concepts, DispatcherConfig{
		BatchSize:   2,
		MaxAttempts: 3,
		RetryDelay:  time.Minute,
		StaleAfter:  5 * time.Minute,
	}, f.metrics, logger.Nop())
	f.dispatcher.now = func() time.Time { return f.now }
	return f
}

func (f *dispatcherFixture) claims(jobs ...*domain.QueuedJob) {
	f.queue.On("ClaimPending", mock.Anything, 2, 5*time.Minute).Return(jobs, nil).Once()
}

func (f *dispatcherFixture) processed(kind, outcome string) float64 {
	return testutil.ToFloat64(f.metrics.JobsProcessed.WithLabelValues(kind, outcome))
}

func queued(id string, job domain.Job, attempts int32) *domain.QueuedJob {
	qj := domain.NewQueuedJob(id, job, time.Now())
	qj.Status = domain.JobStatusProcessing
	qj.Attempts = attempts
	return qj
}

func TestDispatcher_ProcessJobs_NoPendingJobs(t *testing.T) {
	f := newDispatcherFixture()
	f.claims()

	err := f.dispatcher.ProcessJobs(context.Background())

	assert.NoError(t, err)
	f.queue.AssertExpectations(t)
	f.embeddings.AssertNotCalled(t, "RefreshPageEmbedding", mock.Anything, mock.Anything)
}

func TestDispatcher_ProcessJobs_ClaimError(t *testing.T) {
	f := newDispatcherFixture()
	f.queue.On("ClaimPending", mock.Anything, 2, 5*time.Minute).Return(nil, errors.New("connection refused"))

	err := f.dispatcher.ProcessJobs(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to claim pending jobs")
}

func TestDispatcher_ProcessJobs_Success(t *testing.T) {
	f := newDispatcherFixture()
	f.claims(
		queued("job-1", domain.ProcessEmbedding{PageID: 7}, 0),
		queued("job-2", domain.ProcessConcepts{PageID: 7}, 0),
	)
	f.embeddings.On("RefreshPageEmbedding", mock.Anything, int64(7)).Return(true, nil)
	f.concepts.On("ExtractConcepts", mock.Anything, int64(7)).Return(&service.ConceptExtractionResult{}, nil)
	f.queue.On("Complete", mock.Anything, "job-1").Return(nil).Once()
	f.queue.On("Complete", mock.Anything, "job-2").Return(nil).Once()

	err := f.dispatcher.ProcessJobs(context.Background())

	assert.NoError(t, err)
	f.queue.AssertExpectations(t)
	assert.Equal(t, 1.0, f.processed("ProcessEmbedding", metrics.OutcomeSucceeded))
	assert.Equal(t, 1.0, f.processed("ProcessConcepts", metrics.OutcomeSucceeded))
}

func TestDispatcher_ProcessJobs_EmptyPageIsNoop(t *testing.T) {
	f := newDispatcherFixture()
	f.claims(queued("job-1", domain.ProcessEmbedding{PageID: 7}, 0))
	f.embeddings.On("RefreshPageEmbedding", mock.Anything, int64(7)).Return(false, nil)
	f.queue.On("Complete", mock.Anything, "job-1").Return(nil).Once()

	require.NoError(t, f.dispatcher.ProcessJobs(context.Background()))

	f.queue.AssertExpectations(t)
	assert.Equal(t, 1.0, f.processed("ProcessEmbedding", metrics.OutcomeNoop))
}

func TestDispatcher_ProcessJobs_RetriesWithBackoff(t *testing.T) {
	f := newDispatcherFixture()
	f.claims(queued("job-1", domain.ProcessEmbedding{PageID: 7}, 1))
	jobErr := domain.NewExternalServiceError("create embedding", errors.New("timeout"))
	f.embeddings.On("RefreshPageEmbedding", mock.Anything, int64(7)).Return(false, jobErr)
	f.queue.On("Retry", mock.Anything, "job-1", jobErr.Error(), f.now.Add(2*time.Minute)).Return(nil).Once()

	require.NoError(t, f.dispatcher.ProcessJobs(context.Background()))

	f.queue.AssertExpectations(t)
	f.queue.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, f.processed("ProcessEmbedding", metrics.OutcomeRetried))
}

func TestDispatcher_ProcessJobs_InterruptedJobLeftForRedelivery(t *testing.T) {
	f := newDispatcherFixture()
	f.claims(
		queued("job-1", domain.ProcessEmbedding{PageID: 7}, 0),
		queued("job-2", domain.ProcessConcepts{PageID: 7}, 0),
	)
	ctx, cancel := context.WithCancel(context.Background())
	f.embeddings.On("RefreshPageEmbedding", mock.Anything, int64(7)).
		Run(func(mock.Arguments) { cancel() }).
		Return(false, context.Canceled)

	require.NoError(t, f.dispatcher.ProcessJobs(ctx))

	f.queue.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything, mock.Anything)
	f.queue.AssertNotCalled(t, "Retry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.queue.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	f.concepts.AssertNotCalled(t, "ExtractConcepts", mock.Anything, mock.Anything)
}

func TestDispatcher_ProcessJobs_MaxAttemptsExceeded(t *testing.T) {
	f := newDispatcherFixture()
	f.claims(queued("job-1", domain.ProcessConcepts{PageID: 7}, 2))
	f.concepts.On("ExtractConcepts", mock.Anything, int64(7)).
		Return(nil, domain.NewExternalServiceError("generate", errors.New("503")))
	f.queue.On("Fail", mock.Anything, "job-1", mock.Anything).Return(nil).Once()

	require.NoError(t, f.dispatcher.ProcessJobs(context.Background()))

	f.queue.AssertExpectations(t)
	f.queue.AssertNotCalled(t, "Retry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, f.processed("ProcessConcepts", metrics.OutcomeFailed))
}

func TestDispatcher_ProcessJobs_TerminalErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"PageNotFound", domain.ErrPageNotFound.Wrap(errors.New("page 7"))},
		{"EmptyContent", domain.ErrEmptyContent},
		{"Validation", domain.ErrMissingRequiredField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture()
			f.claims(queued("job-1", domain.ProcessConcepts{PageID: 7}, 0))
			f.concepts.On("ExtractConcepts", mock.Anything, int64(7)).Return(nil, tt.err)
			f.queue.On("Fail", mock.Anything, "job-1", tt.err.Error()).Return(nil).Once()

			require.NoError(t, f.dispatcher.ProcessJobs(context.Background()))

			f.queue.AssertExpectations(t)
			f.queue.AssertNotCalled(t, "Retry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDispatcher_ProcessJobs_UndecodableJob(t *testing.T) {
	f := newDispatcherFixture()
	poison := &domain.QueuedJob{ID: "job-1", Status: domain.JobStatusProcessing, Error: "missing required field"}
	f.claims(poison, queued("job-2", domain.ProcessEmbedding{PageID: 7}, 0))
	f.queue.On("Fail", mock.Anything, "job-1", "undecodable payload: missing required field").Return(nil).Once()
	f.embeddings.On("RefreshPageEmbedding", mock.Anything, int64(7)).Return(true, nil)
	f.queue.On("Complete", mock.Anything, "job-2").Return(nil).Once()

	require.NoError(t, f.dispatcher.ProcessJobs(context.Background()))

	f.queue.AssertExpectations(t)
}

func TestDispatcher_ProcessJobs_ContinuesAfterBookkeepingError(t *testing.T) {
	f := newDispatcherFixture()
	f.claims(
		queued("job-1", domain.ProcessEmbedding{PageID: 7}, 0),
		queued("job-2", domain.ProcessEmbedding{PageID: 8}, 0),
	)
	f.embeddings.On("RefreshPageEmbedding", mock.Anything, mock.Anything).Return(true, nil)
	f.queue.On("Complete", mock.Anything, "job-1").Return(errors.New("conn reset")).Once()
	f.queue.On("Complete", mock.Anything, "job-2").Return(nil).Once()

	assert.NoError(t, f.dispatcher.ProcessJobs(context.Background()))
	f.queue.AssertExpectations(t)
}

func TestNewDispatcher_Defaults(t *testing.T) {
	d := NewDispatcher(new(MockJobQueue), new(MockEmbeddingRefresher), new(MockConceptExtractor), DispatcherConfig{}, nil, logger.Nop())

	assert.Equal(t, DefaultBatchSize, d.cfg.BatchSize)
	assert.Equal(t, DefaultMaxAttempts, d.cfg.MaxAttempts)
	assert.Equal(t, DefaultRetryDelay, d.cfg.RetryDelay)
	assert.Equal(t, DefaultStaleAfter, d.cfg.StaleAfter)
}
