//go:build !integration

package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/sales-assistant/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeRunner returns a fixed result and records the input it was given.
type fakeRunner struct {
	result *model.RunResult
	err    error
	got    model.SalesInput
	calls  int
}

func (f *fakeRunner) Run(_ context.Context, in model.SalesInput) (*model.RunResult, error) {
	f.calls++
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func sampleResult() *model.RunResult {
	target := model.NewProfile("https://acme.test")
	target.Name = model.Scalar("Acme Rockets", "json-ld", 0.95)
	return &model.RunResult{
		RunID: "run-001",
		Report: model.InsightReport{
			Sections: []model.ReportSection{
				{Key: "company_strategy", Title: "Company Strategy", Content: "Sell faster skates."},
				{Key: "opportunities", Title: "Opportunities", Content: "- Bundle magnets"},
			},
			Provider: "anthropic",
		},
		Context: model.SalesContext{Target: target},
	}
}
