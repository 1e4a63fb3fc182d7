// Package wiring builds the shared set of components both server
// surfaces (the stdio MCP server and the HTTP/SSE API) run on top of:
// Search Providers, the Chat Client, the Embedder, the Judge, the
// Synthesizer, the Orchestrator, the health checker, and the metrics
// collector. Kept as one place so cmd/research-agent and cmd/research-api
// never drift in how they assemble the same research pipeline.
package wiring

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/litagent/research-core/internal/config"
	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/mcp/health"
	"github.com/litagent/research-core/internal/research/chat"
	"github.com/litagent/research-core/internal/research/embed"
	"github.com/litagent/research-core/internal/research/judge"
	"github.com/litagent/research-core/internal/research/metrics"
	"github.com/litagent/research-core/internal/research/orchestrator"
	"github.com/litagent/research-core/internal/research/search"
	"github.com/litagent/research-core/internal/research/search/providers"
	"github.com/litagent/research-core/internal/research/synth"
)

// Components bundles everything a server surface needs to run.
type Components struct {
	Orchestrator *orchestrator.Orchestrator
	Health       *health.HealthChecker
	Metrics      *metrics.Collector
	Logger       *logrus.Logger
}

// Build assembles Components from a loaded, validated configuration.
func Build(configManager *config.Manager) (*Components, error) {
	cfg := configManager.GetConfig()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(lvl)
	}

	chatClient := chat.NewFromConfig(cfg.Chat, logger)

	var embedder interface {
		Embed(ctx context.Context, text string) ([]float32, error)
	}
	if cfg.Embedder.HuggingFaceToken != "" {
		hfEmbedder := embed.NewHuggingFaceEmbedder(cfg.Embedder)
		cacheSize := cfg.Embedder.CacheSize
		if cacheSize <= 0 {
			cacheSize = 2048
		}
		cached, err := embed.NewCached(hfEmbedder, cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to build embedder cache: %w", err)
		}
		embedder = cached
	}

	searchProviders, sources, pingers := buildProviders(cfg.Research.Providers)
	searchTimeout := time.Duration(cfg.Research.SearchTimeoutSeconds) * time.Second
	dispatcher := search.NewDispatcher(searchProviders, sources, searchTimeout)

	j := judge.New(chatClient, logger)
	sy := synth.New(chatClient, logger)

	orchCfg := orchestrator.Config{
		MaxIterations:              cfg.Research.MaxIterations,
		MaxResultsPerProvider:      cfg.Research.MaxResultsPerProvider,
		SearchTimeout:              searchTimeout,
		OverallTimeout:             time.Duration(cfg.Research.OverallTimeoutSeconds) * time.Second,
		EmergencyEvidenceThreshold: cfg.Research.EmergencyEvidenceThreshold,
		MaxEvidenceSentToJudge:     cfg.Research.MaxEvidenceSentToJudge,
	}
	orch := orchestrator.New(dispatcher, j, sy, embedder, cfg.Research.DedupSimilarityThreshold, orchCfg, logger)

	healthChecker := health.NewHealthChecker(health.HealthConfig{
		CheckInterval: 30 * time.Second,
		Timeout:       10 * time.Second,
	}, pingers, chatBackendPingAdapter{client: chatClient})

	metricsCollector := metrics.New(cfg.MCP.ServerName, nil)

	return &Components{
		Orchestrator: orch,
		Health:       healthChecker,
		Metrics:      metricsCollector,
		Logger:       logger,
	}, nil
}

// buildProviders instantiates the six Search Providers named in spec §3's
// closed Citation.source enum from their respective domain.ProviderConfig
// entries, skipping any not marked enabled.
func buildProviders(cfgs []domain.ProviderConfig) ([]search.Provider, []domain.CitationSource, []health.ProviderPinger) {
	var searchProviders []search.Provider
	var sources []domain.CitationSource
	var pingers []health.ProviderPinger

	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}

		var provider search.Provider
		var source domain.CitationSource

		switch cfg.Name {
		case string(domain.SourcePubMed):
			provider, source = providers.NewPubMed(cfg), domain.SourcePubMed
		case string(domain.SourceClinicalTrials):
			provider, source = providers.NewClinicalTrials(cfg), domain.SourceClinicalTrials
		case string(domain.SourceEuropePMC):
			provider, source = providers.NewEuropePMC(cfg), domain.SourceEuropePMC
		case string(domain.SourceOpenAlex):
			provider, source = providers.NewOpenAlex(cfg), domain.SourceOpenAlex
		case string(domain.SourcePreprint):
			provider, source = providers.NewPreprint(cfg), domain.SourcePreprint
		case string(domain.SourceWeb):
			provider, source = providers.NewWeb(cfg), domain.SourceWeb
		default:
			continue
		}

		searchProviders = append(searchProviders, provider)
		sources = append(sources, source)
		if pinger, ok := provider.(health.ProviderPinger); ok {
			pingers = append(pingers, pinger)
		}
	}

	return searchProviders, sources, pingers
}

// chatBackendPingAdapter lets the Chat Client abstraction satisfy
// health.ChatBackendPinger with a minimal one-token completion probe.
type chatBackendPingAdapter struct {
	client *chat.Client
}

func (c chatBackendPingAdapter) BackendName() string { return c.client.Name() }

func (c chatBackendPingAdapter) Ping(ctx context.Context) error {
	_, err := c.client.Complete(ctx, []chat.Message{{Role: "user", Content: "ping"}}, chat.CompletionOptions{MaxTokens: 1})
	return err
}
