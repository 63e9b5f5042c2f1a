package middleware

import (
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
)

// SentryMiddleware opens a transaction per request on a request-scoped hub.
// Once chi has routed the request the transaction is renamed to the route
// pattern and tagged with the page id. Panics are reported and re-raised.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		options := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
		}
		if trace := r.Header.Get("sentry-trace"); trace != "" {
			options = append(options, sentry.ContinueFromHeaders(trace, r.Header.Get("baggage")))
		}

		tx := sentry.StartTransaction(r.Context(), r.Method+" "+r.URL.Path, options...)
		defer tx.Finish()

		r = r.WithContext(sentry.SetHubOnContext(tx.Context(), hub))

		scope := hub.Scope()
		scope.SetRequest(r)
		if requestID := GetRequestID(r.Context()); requestID != "" {
			scope.SetTag("request_id", requestID)
			tx.SetTag("request_id", requestID)
		}

		defer func() {
			if err := recover(); err != nil {
				tx.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), err)
				panic(err)
			}
		}()

		rec := &sentryResponseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		tx.Status = httpStatusToSpanStatus(status)
		tx.SetData("http.response.status_code", status)

		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				tx.Name = r.Method + " " + pattern
				tx.Source = sentry.SourceRoute
				tx.SetTag("route", pattern)
				if strings.HasPrefix(pattern, "/pages/") {
					if pageID := rctx.URLParam("id"); pageID != "" {
						tx.SetTag("page_id", pageID)
						scope.SetTag("page_id", pageID)
					}
				}
			}
		}

		if status >= 500 && status != http.StatusServiceUnavailable {
			hub.CaptureMessage(tx.Name + ": " + http.StatusText(status))
		}
	})
}

// httpStatusToSpanStatus mirrors the statuses the API emits
func httpStatusToSpanStatus(status int) sentry.SpanStatus {
	switch status {
	case http.StatusNotFound:
		return sentry.SpanStatusNotFound
	case http.StatusMethodNotAllowed:
		return sentry.SpanStatusUnimplemented
	case http.StatusConflict:
		return sentry.SpanStatusAlreadyExists
	case http.StatusUnprocessableEntity:
		return sentry.SpanStatusFailedPrecondition
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return sentry.SpanStatusUnavailable
	case http.StatusGatewayTimeout:
		return sentry.SpanStatusDeadlineExceeded
	}
	switch {
	case status < 400:
		return sentry.SpanStatusOK
	case status < 500:
		return sentry.SpanStatusInvalidArgument
	}
	return sentry.SpanStatusInternalError
}

type sentryResponseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *sentryResponseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *sentryResponseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
