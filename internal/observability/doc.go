// Package observability provides logging, metrics, and request context
// support for the research assistant service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger.Info().Str("source", "core").Msg("search finished")
//
// Request handlers derive a logger carrying request fields:
//
//	logger = observability.LoggerFromContext(ctx, logger)
//
// # Metrics
//
//	metrics := observability.NewMetrics("research_assistant")
//	metrics.RecordSearchCompleted("crossref", 10, 0.8)
//
// A nil *Metrics is valid and records nothing. Metrics satisfies the
// observer interfaces of the paper source clients.
//
// # Standard Fields
//
//   - request_id: per-request identifier
//   - correlation_id: client-supplied identifier shared by one wizard session
//   - trace_id, span_id: W3C trace context from the traceparent header
//   - query: search query text
//   - source: paper source (core, crossref)
//   - operation: assistant operation (generate_report, validate_papers, ...)
//   - model: LLM model name
//
// All components are safe for concurrent use from multiple goroutines.
package observability
