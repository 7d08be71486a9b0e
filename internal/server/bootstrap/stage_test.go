package bootstrap

import (
	"context"
	"fmt"
	"testing"

	"architect/internal/logging"
)

func TestRunStagesFailsOnRequired(t *testing.T) {
	degraded := NewDegradedComponents()

	stages := []BootstrapStage{
		{Name: "ok", Required: true, Init: func(context.Context) error { return nil }},
		{Name: "fail", Required: true, Init: func(context.Context) error { return fmt.Errorf("boom") }},
		{Name: "unreached", Required: true, Init: func(context.Context) error {
			t.Fatal("should not be reached")
			return nil
		}},
	}

	err := RunStages(context.Background(), stages, degraded, logging.Nop())
	if err == nil {
		t.Fatal("expected error from required stage")
	}
	if !degraded.IsEmpty() {
		t.Fatal("no optional stages should have been recorded")
	}
}

func TestRunStagesRecordsDegradedForOptional(t *testing.T) {
	degraded := NewDegradedComponents()
	var reached bool

	stages := []BootstrapStage{
		{Name: "lead-store", Required: true, Init: func(context.Context) error { return nil }},
		{Name: "local-store", Required: false, Init: func(context.Context) error { return fmt.Errorf("redis: connection refused") }},
		{Name: "advisor", Required: true, Init: func(context.Context) error {
			reached = true
			return nil
		}},
	}

	if err := RunStages(context.Background(), stages, degraded, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reached {
		t.Fatal("stage after an optional failure should run")
	}
	m := degraded.Degraded()
	if len(m) != 1 || m["local-store"] != "redis: connection refused" {
		t.Fatalf("unexpected degraded map %v", m)
	}
}

func TestRunStagesStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stages := []BootstrapStage{
		{Name: "first", Init: func(context.Context) error {
			cancel()
			return nil
		}},
		{Name: "second", Init: func(context.Context) error {
			t.Fatal("should not run after cancellation")
			return nil
		}},
	}
	if err := RunStages(ctx, stages, NewDegradedComponents(), logging.Nop()); err == nil {
		t.Fatal("expected cancellation error")
	}
}
