// Package main provides the entry point for the research assistant HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/research-assistant-service/internal/aggregator"
	"github.com/helixir/research-assistant-service/internal/assistant"
	"github.com/helixir/research-assistant-service/internal/cache"
	"github.com/helixir/research-assistant-service/internal/config"
	"github.com/helixir/research-assistant-service/internal/llm"
	"github.com/helixir/research-assistant-service/internal/observability"
	"github.com/helixir/research-assistant-service/internal/papersources"
	"github.com/helixir/research-assistant-service/internal/papersources/core"
	"github.com/helixir/research-assistant-service/internal/papersources/crossref"
	httpserver "github.com/helixir/research-assistant-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("research-assistant-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	// Create the LLM client.
	llmClient, err := llm.NewClient(llm.FactoryConfig{
		Provider:   strings.ToLower(cfg.LLM.Provider),
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	})
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	logger.Info().
		Str("provider", llmClient.Provider()).
		Str("model", llmClient.Model()).
		Msg("LLM client configured")

	registry, err := buildRegistry(cfg, metrics, logger)
	if err != nil {
		return err
	}

	pipeline := aggregator.New(registry, aggregator.Config{
		PrimaryLimit:       cfg.Aggregator.PrimaryLimit,
		CrossrefRows:       cfg.Aggregator.CrossrefRows,
		SecondaryLimit:     cfg.Aggregator.SecondaryLimit,
		SecondaryThreshold: cfg.Aggregator.SecondaryThreshold,
		MaxResults:         cfg.Aggregator.MaxResults,
	}, logger, metrics)

	assistantSvc := assistant.New(llmClient, assistant.Config{
		ChatModel:         cfg.Assistant.ChatModel,
		ReportModel:       cfg.Assistant.ReportModel,
		ChatTemperature:   cfg.Assistant.ChatTemperature,
		ReportTemperature: cfg.Assistant.ReportTemperature,
	}, logger, metrics)

	httpCfg := httpserver.Config{
		Address:            cfg.Server.HTTPAddress(),
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        2 * time.Minute,
		ShutdownTimeout:    cfg.Server.ShutdownTimeout,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	}
	httpSrv := httpserver.NewServer(httpCfg, assistantSvc, pipeline, registry, logger, metrics)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.ReadTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	// Start HTTP REST API server in background.
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Start metrics server if configured.
	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("research-assistant-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down research-assistant-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("research-assistant-service shutdown complete")
	return nil
}

// buildRegistry creates the CORE and Crossref clients and registers them.
// Disabled sources stay registered so they show up in the source listing.
func buildRegistry(cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*papersources.Registry, error) {
	var store cache.Store[[]core.Work] = cache.Noop[[]core.Work]{}
	if cfg.Cache.Enabled {
		bounded, err := cache.NewBounded[[]core.Work](cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("create query cache: %w", err)
		}
		store = bounded
	}

	coreKey := cfg.PaperSources.CORE.APIKey
	if !cfg.PaperSources.CORE.Enabled {
		coreKey = ""
	}
	coreClient := core.New(core.Config{
		BaseURL:       cfg.PaperSources.CORE.BaseURL,
		APIKey:        coreKey,
		Timeout:       cfg.PaperSources.CORE.Timeout,
		RateLimit:     cfg.PaperSources.CORE.RateLimit,
		BurstSize:     cfg.PaperSources.CORE.BurstSize,
		MaxRetries:    cfg.PaperSources.CORE.MaxRetries,
		Observer:      metrics,
		CacheObserver: metrics,
	}, store)

	crossrefClient := crossref.New(crossref.Config{
		BaseURL:    cfg.PaperSources.Crossref.BaseURL,
		Email:      cfg.PaperSources.Crossref.Email,
		Timeout:    cfg.PaperSources.Crossref.Timeout,
		RateLimit:  cfg.PaperSources.Crossref.RateLimit,
		BurstSize:  cfg.PaperSources.Crossref.BurstSize,
		MaxRetries: cfg.PaperSources.Crossref.MaxRetries,
		Enabled:    cfg.PaperSources.Crossref.Enabled,
		Observer:   metrics,
	})

	registry := papersources.NewRegistry()
	registry.Register(coreClient)
	registry.Register(crossrefClient)

	for _, src := range registry.AllSources() {
		logger.Info().
			Str("source", src.Name()).
			Bool("enabled", src.IsEnabled()).
			Msg("paper source registered")
	}
	if !coreClient.IsEnabled() {
		logger.Warn().Msg("CORE is disabled: set RESEARCH_PAPER_SOURCES_CORE_API_KEY or CORE_API_KEY")
	}

	return registry, nil
}
