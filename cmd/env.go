package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/legis-analyzer/internal/analysis"
	"github.com/sells-group/legis-analyzer/internal/cost"
	"github.com/sells-group/legis-analyzer/internal/store"
	"github.com/sells-group/legis-analyzer/pkg/anthropic"
)

// env bundles the long-lived pieces every analysis command needs.
type env struct {
	Store    store.Store
	Client   anthropic.Client
	Analyzer *analysis.Analyzer
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates config for the given mode, connects the store, runs
// migrations, and wires up the analyzer.
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	client := anthropic.NewClient(cfg.Anthropic.Key)

	structured := analysis.NewStructuredClient(client, analysis.StructuredClientConfig{
		Model:                cfg.Anthropic.Model,
		MaxRetries:           cfg.Analysis.MaxRetries,
		RetryBaseDelay:       time.Duration(cfg.Analysis.RetryBaseDelayMS) * time.Millisecond,
		MaxOutputTokens:      cfg.Anthropic.MaxOutputTokens,
		Temperature:          cfg.Anthropic.Temperature,
		RequestsPerMinute:    cfg.Anthropic.RequestsPerMinute,
		ThinkingBudgetTokens: cfg.Anthropic.ThinkingBudgetTokens,
	})

	analyzer := analysis.New(st, structured, analysis.Config{
		Model:            cfg.Anthropic.Model,
		MaxContextTokens: cfg.Analysis.MaxContextTokens,
		SafetyBuffer:     cfg.Analysis.SafetyBuffer,
		HardTokenLimit:   cfg.Analysis.HardTokenLimit,
		CacheTTL:         time.Duration(cfg.Analysis.CacheTTLMinutes) * time.Minute,
		Pricing:          cost.NewCalculator(cfg.Pricing),
	})

	return &env{Store: st, Client: client, Analyzer: analyzer}, nil
}
