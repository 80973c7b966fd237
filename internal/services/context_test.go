package services_test

import (
	"context"
	"testing"

	"docbatch/internal/services"
)

func TestWorkRoundTripsThroughContext(t *testing.T) {
	ctx := services.WithWork(context.Background(), services.Work{ItemID: 42, CorrelationID: "lease-1", Attempt: 2})

	w, ok := services.WorkFromContext(ctx)
	if !ok {
		t.Fatal("expected work annotation")
	}
	if w.ItemID != 42 || w.CorrelationID != "lease-1" || w.Attempt != 2 {
		t.Fatalf("unexpected work: %+v", w)
	}
	if got := services.CorrelationID(ctx); got != "lease-1" {
		t.Fatalf("CorrelationID = %q", got)
	}
}

func TestWithWorkIgnoresMissingItem(t *testing.T) {
	base := context.Background()
	if ctx := services.WithWork(base, services.Work{CorrelationID: "orphan"}); ctx != base {
		t.Fatal("expected context to be returned unchanged")
	}
	if _, ok := services.WorkFromContext(base); ok {
		t.Fatal("expected no work annotation")
	}
	if got := services.CorrelationID(base); got != "" {
		t.Fatalf("CorrelationID = %q, want empty", got)
	}
}
