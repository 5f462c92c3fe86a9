package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/helixir/research-assistant-service/internal/observability"
)

const (
	// correlationIDHeader carries the caller's correlation ID in both directions.
	correlationIDHeader = "X-Correlation-ID"

	// traceParentHeader is the W3C trace context header.
	traceParentHeader = "traceparent"
)

// correlationIDMiddleware ensures every request has a correlation ID and
// stores it, with the chi request ID and any incoming trace context, in the
// request context.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		correlationID := r.Header.Get(correlationIDHeader)
		if correlationID == "" {
			correlationID = requestID
		}
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		traceID, spanID := parseTraceParent(r.Header.Get(traceParentHeader))

		w.Header().Set(correlationIDHeader, correlationID)
		ctx := observability.WithRequestContextFull(r.Context(), observability.RequestContext{
			RequestID:     requestID,
			CorrelationID: correlationID,
			TraceID:       traceID,
			SpanID:        spanID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseTraceParent extracts the trace and parent span IDs from a
// "version-traceid-spanid-flags" header. Malformed values yield empty IDs.
func parseTraceParent(header string) (traceID, spanID string) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 || len(parts[1]) != 32 || len(parts[2]) != 16 {
		return "", ""
	}
	if !isLowerHex(parts[1]) || !isLowerHex(parts[2]) {
		return "", ""
	}
	if strings.Trim(parts[1], "0") == "" || strings.Trim(parts[2], "0") == "" {
		return "", ""
	}
	return parts[1], parts[2]
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// jsonContentTypeMiddleware sets Content-Type: application/json for all responses.
func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request counts and latency by route pattern.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		elapsed := time.Since(start)
		s.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), elapsed.Seconds())
		logger := observability.LoggerFromContext(r.Context(), s.logger)
		logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("request served")
	})
}
