package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/scribeworks/keyword-cli/internal/config"
	"github.com/scribeworks/keyword-cli/internal/fetcher"
	"github.com/scribeworks/keyword-cli/internal/pipeline"
	"github.com/scribeworks/keyword-cli/internal/quota"
	"github.com/scribeworks/keyword-cli/internal/resilience"
	"github.com/scribeworks/keyword-cli/internal/store"
	"github.com/scribeworks/keyword-cli/pkg/autosuggest"
	"github.com/scribeworks/keyword-cli/pkg/serpapi"
	"github.com/scribeworks/keyword-cli/pkg/trends"
)

// env bundles the wired store, runner, and ledger for one command
// invocation.
type env struct {
	Store  store.Store
	Runner *pipeline.Runner
	Ledger *quota.Ledger
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "", "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func retryPolicy(fc config.FetcherConfig) resilience.Policy {
	p := resilience.DefaultPolicy()
	if fc.MaxAttempts > 0 {
		p.MaxAttempts = fc.MaxAttempts
	}
	if fc.InitialBackoffMS > 0 {
		p.InitialBackoff = time.Duration(fc.InitialBackoffMS) * time.Millisecond
	}
	if fc.MaxBackoffMS > 0 {
		p.MaxBackoff = time.Duration(fc.MaxBackoffMS) * time.Millisecond
	}
	if fc.BackoffMultiplier > 0 {
		p.Multiplier = fc.BackoffMultiplier
	}
	if fc.JitterFraction > 0 {
		p.JitterFraction = fc.JitterFraction
	}
	return p
}

func providerLimits() map[string]fetcher.ProviderLimit {
	limits := map[string]fetcher.ProviderLimit{
		serpapi.ProviderName: {RPM: cfg.SerpAPI.RPM, CostPerCall: cfg.SerpAPI.CostPerCall},
		trends.ProviderName:  {RPM: cfg.Trends.RPM, CostPerCall: cfg.Trends.CostPerCall},
	}
	for _, src := range autosuggest.Sources {
		limits[autosuggest.ProviderName(src)] = fetcher.ProviderLimit{
			RPM:         cfg.Autosuggest.RPM,
			CostPerCall: cfg.Autosuggest.CostPerCall,
		}
	}
	return limits
}

func initEnv(ctx context.Context, opts ...pipeline.RunnerOption) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	ledger := quota.NewLedger()
	fetch := fetcher.New(fetcher.Options{
		Timeout:       time.Duration(cfg.Fetcher.TimeoutSecs) * time.Second,
		MaxConcurrent: cfg.Fetcher.MaxConcurrent,
		Retry:         retryPolicy(cfg.Fetcher),
		Limits:        providerLimits(),
	}, ledger)

	serpClient := serpapi.NewClient(cfg.SerpAPI.Key, fetch, serpapi.WithBaseURL(cfg.SerpAPI.BaseURL))
	suggestClient := autosuggest.NewClient(fetch)
	trendsClient := trends.NewClient(cfg.Trends.Key, fetch, trends.WithBaseURL(cfg.Trends.BaseURL))

	modifiers, err := pipeline.LoadModifiers()
	if err != nil {
		st.Close()
		return nil, err
	}

	transforms := []pipeline.Transform{
		pipeline.NewExpander(cfg.Expansion, suggestClient, serpClient, modifiers),
		pipeline.NewSerpCollector(serpClient, cfg.Fetcher.MaxConcurrent),
		pipeline.NewMetricsEnricher(trendsClient, cfg.Fetcher.MaxConcurrent),
		pipeline.NewNormalizer(),
		pipeline.NewIntentClassifier(),
		pipeline.NewScorer(cfg.Scoring),
		pipeline.NewClusterer(cfg.Clustering),
		pipeline.NewBriefGenerator(cfg.Briefs),
	}

	opts = append([]pipeline.RunnerOption{pipeline.WithLedger(ledger)}, opts...)
	runner := pipeline.NewRunner(st, transforms, opts...)

	return &env{Store: st, Runner: runner, Ledger: ledger}, nil
}
