package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/internal/extract"
	"github.com/finsight-labs/finsight/internal/fetchcache"
	"github.com/finsight-labs/finsight/internal/orchestrator"
	"github.com/finsight-labs/finsight/internal/pipeline"
	"github.com/finsight-labs/finsight/internal/provider"
	"github.com/finsight-labs/finsight/internal/ratelimit"
	"github.com/finsight-labs/finsight/internal/resolve"
	"github.com/finsight-labs/finsight/internal/store"
	"github.com/finsight-labs/finsight/pkg/alphavantage"
	anthropicpkg "github.com/finsight-labs/finsight/pkg/anthropic"
	"github.com/finsight-labs/finsight/pkg/fmp"
	"github.com/finsight-labs/finsight/pkg/secedgar"
)

// analysisEnv holds everything the analyze and serve commands need.
type analysisEnv struct {
	Coordinator *pipeline.Coordinator
	Registry    *provider.Registry
	Routing     *capability.Routing
	Tracker     *ratelimit.Tracker
	Audit       store.AuditStore
}

// Close releases resources held by the environment.
func (env *analysisEnv) Close() {
	if env.Audit != nil {
		_ = env.Audit.Close()
	}
}

// initEnv validates config for the mode, builds the provider registry, the
// orchestration core, and the session coordinator. Providers without
// credentials are left unregistered; the fallback chain skips them.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*analysisEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	routing := capability.DefaultRouting()
	if cfg.Routing.File != "" {
		r, err := capability.LoadRouting(cfg.Routing.File)
		if err != nil {
			return nil, eris.Wrap(err, "load routing")
		}
		routing = r
		zap.L().Info("routing loaded", zap.String("file", cfg.Routing.File))
	}

	registry := provider.NewRegistry()

	var fmpClient fmp.Client
	if cfg.FMP.Key != "" {
		fmpClient = fmp.NewClient(cfg.FMP.Key, fmp.WithBaseURL(cfg.FMP.BaseURL))
		registry.Register(provider.NewFMP(fmpClient))
	} else {
		zap.L().Warn("FINSIGHT_FMP_KEY not set, fmp provider disabled")
	}
	if cfg.AlphaVantage.Key != "" {
		avClient := alphavantage.NewClient(cfg.AlphaVantage.Key, alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL))
		registry.Register(provider.NewAlphaVantage(avClient))
	} else {
		zap.L().Warn("FINSIGHT_ALPHAVANTAGE_KEY not set, alphavantage provider disabled")
	}
	// EDGAR needs no key, only a User-Agent.
	edgarClient := secedgar.NewClient(cfg.SECEdgar.UserAgent)
	registry.Register(provider.NewSECEdgar(edgarClient))

	tracker := ratelimit.NewTracker(cfg.Fetch.ThrottleCooldown(), cfg.Fetch.UnauthorizedCooldown())
	cache := fetchcache.New[orchestrator.FetchOutcome](cfg.Fetch.CacheTTL())
	fetcher := orchestrator.NewFetcher(routing, registry, tracker, cache, nil, cfg.Fetch.CallTimeout())

	var llm extract.Extractor
	if cfg.Anthropic.Key != "" {
		llm = extract.NewLLMExtractor(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	} else {
		zap.L().Warn("FINSIGHT_ANTHROPIC_KEY not set, narrative document extraction disabled")
	}
	picker := extract.NewPicker(llm, extract.NewSpreadsheetExtractor())

	// Symbol search rides on FMP; without it only explicit tickers resolve.
	var resolver *resolve.Resolver
	if fmpClient != nil {
		resolver = resolve.NewResolver(fmpClient)
	} else {
		resolver = resolve.NewResolver(nil)
	}

	audit, err := store.NewSQLite(cfg.Audit.DatabasePath)
	if err != nil {
		return nil, eris.Wrap(err, "open audit store")
	}
	if err := audit.Migrate(ctx); err != nil {
		_ = audit.Close()
		return nil, eris.Wrap(err, "migrate audit store")
	}

	coordinator := pipeline.NewCoordinator(picker, fetcher, resolver, audit, nil)

	zap.L().Info("analysis environment ready",
		zap.Strings("providers", registry.List()),
		zap.Duration("cache_ttl", cfg.Fetch.CacheTTL()),
	)

	return &analysisEnv{
		Coordinator: coordinator,
		Registry:    registry,
		Routing:     routing,
		Tracker:     tracker,
		Audit:       audit,
	}, nil
}
