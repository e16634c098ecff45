package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cluegrid/cluegrid/internal/daily"
	"github.com/cluegrid/cluegrid/internal/grading"
	"github.com/cluegrid/cluegrid/internal/judge"
	"github.com/cluegrid/cluegrid/internal/store"
	"github.com/cluegrid/cluegrid/pkg/anthropic"
)

// newStore opens the configured store backend.
func newStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

// newGrader wires the matcher, the judge, and the event sink. Without an API
// key the judge is absent and deferred responses fail closed.
func newGrader(st store.Store) *grading.Grader {
	matcher := grading.NewMatcher(cfg.Grading.FuzzyThreshold)

	var adapter judge.Adapter
	if cfg.Anthropic.Key != "" {
		client := anthropic.NewClient(cfg.Anthropic.Key)
		timeout := time.Duration(cfg.Judge.TimeoutMS) * time.Millisecond
		adapter = judge.NewAnthropicJudge(client, cfg.Judge.Model, timeout, cfg.Judge.RequestsPerSecond)
	}

	return grading.New(matcher, adapter, st)
}

// newDailyService assembles the full daily challenge stack.
func newDailyService(st store.Store) (*daily.Service, error) {
	return daily.NewService(st, newGrader(st))
}
