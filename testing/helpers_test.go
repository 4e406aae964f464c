package cortextest_test

import (
	"context"
	"testing"
	"time"

	"github.com/zoobzio/cortex"
	cortextest "github.com/zoobzio/cortex/testing"
)

func TestMockProviderDrivesFullPipeline(t *testing.T) {
	provider := cortextest.NewMockProvider()
	provider.Intent = "summarize"
	provider.Output = "Summary: all systems nominal"

	cortex.SetProvider(provider)
	defer cortex.SetProvider(nil)

	archive := cortextest.NewRecordingArchive()

	engine, err := cortex.New(cortex.Config{MaxConcurrent: 2}, cortex.SynapseModules())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	engine.WithArchive(archive)
	if err := engine.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := engine.Stop(stopCtx); err != nil {
			t.Errorf("stop: %v", err)
		}
	}()

	ctx := context.Background()
	req := cortex.Request{
		Text:        "summarize the status report",
		ClientID:    "test-client",
		Tier:        cortex.TierPro,
		AutoExecute: true,
	}

	id, err := engine.Submit(ctx, req, cortex.PriorityNormal)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	result, err := engine.Result(ctx, id, 5*time.Second)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q at phase %s", result.Error, result.Phase)
	}
	if result.Output != "Summary: all systems nominal" {
		t.Errorf("unexpected output %q", result.Output)
	}
	if provider.Calls() == 0 {
		t.Error("expected provider calls")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(archive.Records()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if records := archive.Records(); len(records) != 1 || records[0].RequestID != id {
		t.Errorf("expected one archived record for %s, got %v", id, records)
	}
}

func TestMockProviderFailingQuality(t *testing.T) {
	provider := cortextest.NewMockProvider()
	provider.QualityScore = 0.2
	provider.PassesQuality = false

	cortex.SetProvider(provider)
	defer cortex.SetProvider(nil)

	engine, err := cortex.New(cortex.Config{}, cortex.SynapseModules())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := engine.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Stop(stopCtx)
	}()

	ctx := context.Background()
	id, err := engine.Submit(ctx, cortex.Request{
		Text:     "draft the announcement",
		ClientID: "test-client",
		Tier:     cortex.TierFree,
	}, cortex.PriorityNormal)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	result, err := engine.Result(ctx, id, 5*time.Second)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success after self-correction, got %q at phase %s", result.Error, result.Phase)
	}
	if _, ok := result.Metrics[cortex.PhaseCorrect+"_ms"]; !ok {
		t.Error("expected the self-correction phase to run")
	}
}
