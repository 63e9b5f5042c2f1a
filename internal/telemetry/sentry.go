// Package telemetry wires Sentry tracing and error capture into the pipeline.
package telemetry

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/logger"
)

const serverName = "lessonlensd"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry. With an empty DSN it returns a no-op flush.
func Init(cfg Config, log *logger.Logger) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:           cfg.DSN,
		Environment:   cfg.Environment,
		EnableTracing: true,
		Debug:         cfg.Debug,
		ServerName:    serverName,
		TracesSampler: sampler(cfg.TracesSampleRate),
	})
	if err != nil {
		log.Warn("sentry: failed to initialize, continuing without tracing", "error", err)
		return func() {}, nil
	}

	log.Info("sentry: tracing initialized", "environment", cfg.Environment, "sample_rate", cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// sampler drops probe traffic, keeps every job transaction and samples the rest.
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		var emptySpanID sentry.SpanID
		if ctx.Span.ParentSpanID != emptySpanID {
			if ctx.Span.Sampled.Bool() {
				return 1.0
			}
			return 0.0
		}
		switch ctx.Span.Name {
		case "GET /health", "GET /metrics":
			return 0.0
		}
		if strings.HasPrefix(ctx.Span.Name, "job.") {
			return 1.0
		}
		return rate
	}
}

// SpanAttributes are the pipeline tags attached to a span.
type SpanAttributes struct {
	PageID    int64
	ModuleID  int64
	JobKind   string
	Operation string
}

// Span wraps a sentry span. A zero Span is safe to use.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span with the status matching err's domain code.
// Capturing the error is left to CaptureJobError.
func (s *Span) SetError(err error) {
	if s.inner != nil && err != nil {
		s.inner.Status = StatusForError(err)
	}
}

// StatusForError maps a domain error code to a span status.
func StatusForError(err error) sentry.SpanStatus {
	switch domain.CodeOf(err) {
	case "":
		if err == nil {
			return sentry.SpanStatusOK
		}
		return sentry.SpanStatusInternalError
	case domain.ErrCodeNotFound:
		return sentry.SpanStatusNotFound
	case domain.ErrCodeValidation, domain.ErrCodeEmptyContent:
		return sentry.SpanStatusInvalidArgument
	case domain.ErrCodeAlreadyExists, domain.ErrCodeConstraintViolation:
		return sentry.SpanStatusAlreadyExists
	case domain.ErrCodeStructuralInvariant:
		return sentry.SpanStatusFailedPrecondition
	case domain.ErrCodeExternalService:
		return sentry.SpanStatusUnavailable
	}
	return sentry.SpanStatusInternalError
}

func setAttributes(span *sentry.Span, attrs SpanAttributes) {
	if attrs.PageID > 0 {
		span.SetTag("page_id", strconv.FormatInt(attrs.PageID, 10))
	}
	if attrs.ModuleID > 0 {
		span.SetTag("module_id", strconv.FormatInt(attrs.ModuleID, 10))
	}
	if attrs.JobKind != "" {
		span.SetTag("job_kind", attrs.JobKind)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// ctx carries none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	setAttributes(span, attrs)

	return span.Context(), &Span{inner: span}
}

// JobFailure identifies the queued job an error belongs to.
type JobFailure struct {
	JobID    string
	JobKind  string
	PageID   int64
	Attempt  int32
	Terminal bool
}

// CaptureJobError reports a job failure with the job's identity as tags.
// Retryable failures are reported as warnings.
func CaptureJobError(ctx context.Context, err error, f JobFailure) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("job_id", f.JobID)
		scope.SetTag("job_kind", f.JobKind)
		scope.SetTag("page_id", strconv.FormatInt(f.PageID, 10))
		scope.SetTag("attempt", strconv.Itoa(int(f.Attempt)))
		if code := domain.CodeOf(err); code != "" {
			scope.SetTag("error_code", code)
		}
		if f.Terminal {
			scope.SetLevel(sentry.LevelError)
		} else {
			scope.SetLevel(sentry.LevelWarning)
		}
		hub.CaptureException(err)
	})
}
