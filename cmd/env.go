package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-assistant/internal/pipeline"
	"github.com/sells-group/sales-assistant/internal/store"
)

// pipelineEnv holds the store and pipeline used by the insight and serve
// commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the config for mode, opens the store and builds
// the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.NewFromConfig(ctx, cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init pipeline")
	}

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}

// initStore opens and migrates the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}
