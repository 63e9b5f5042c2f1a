package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/lessonlens/internal/logger"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker polls a JobProcessor from a fixed number of goroutines
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	concurrency  int
	log          *logger.Logger
	stopChan     chan struct{}
	stopOnce     sync.Once
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration, concurrency int, log *logger.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		concurrency:  concurrency,
		log:          log.With("component", "worker"),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loops and blocks until ctx is cancelled or Stop is called
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	w.log.Info("worker started",
		"poll_interval", w.pollInterval.String(),
		"concurrency", w.concurrency,
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		slot := i
		g.Go(func() error {
			w.loop(gctx, slot)
			return nil
		})
	}
	_ = g.Wait()

	w.log.Info("worker stopped")
}

func (w *Worker) loop(ctx context.Context, slot int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			if err := w.process(ctx); err != nil {
				w.log.Error("error processing jobs", "slot", slot, "error", err)
			}
		}
	}
}

// process keeps a panicking job from taking its slot down
func (w *Worker) process(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing jobs: %v", r)
		}
	}()
	return w.processor.ProcessJobs(ctx)
}

// Stop gracefully stops the worker. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
	w.log.Info("worker shutdown complete")
}
