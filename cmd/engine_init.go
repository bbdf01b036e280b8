package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retain-cli/internal/providers"
	"github.com/sells-group/retain-cli/internal/reasoning"
	"github.com/sells-group/retain-cli/internal/store"
	"github.com/sells-group/retain-cli/internal/thresholds"
)

// engineEnv bundles the wired scoring stack for command handlers.
type engineEnv struct {
	Store      store.Store
	Calibrator *thresholds.Calibrator
	Aggregator *reasoning.Aggregator
}

// Close releases resources held by the engine environment.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "retain.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEngine builds the full scoring stack: store, calibrator,
// component providers, and the aggregator.
func initEngine(ctx context.Context) (*engineEnv, error) {
	if err := cfg.Validate("score"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cal := thresholds.New(st, time.Duration(cfg.Thresholds.TTLMinutes)*time.Minute)

	rules, err := loadRules()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	agg := reasoning.New(st, cal, reasoning.Providers{
		ML:        providers.NewML(st),
		Heuristic: providers.NewHeuristic(cal, rules),
		Stage:     providers.NewStage(cal),
		Interview: providers.NewInterviewAnalyzer(st, cal),
	}, reasoning.Weights{
		ML:             cfg.Risk.MLWeight,
		Heuristic:      cfg.Risk.HeuristicWeight,
		Stage:          cfg.Risk.StageWeight,
		InterviewClamp: cfg.Risk.InterviewClamp,
	}, time.Duration(cfg.Risk.CacheTTLMinutes)*time.Minute)

	if cfg.Batch.RatePerSecond > 0 {
		agg = agg.WithRateLimit(cfg.Batch.RatePerSecond)
	}

	return &engineEnv{Store: st, Calibrator: cal, Aggregator: agg}, nil
}

func loadRules() ([]providers.RuleConfig, error) {
	if cfg.Rules.Path == "" {
		return providers.DefaultRules(), nil
	}
	rules, err := providers.LoadRules(cfg.Rules.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "load rules %s", cfg.Rules.Path)
	}
	return rules, nil
}
