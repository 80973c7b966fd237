package workflow

import (
	"testing"
	"time"

	"docbatch/internal/config"
)

func TestPollIntervalAdapts(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.MinPollIntervalMS = 100
	cfg.Workflow.MaxPollIntervalMS = 700
	m := NewManager(&cfg, nil, nil, nil)

	wait := m.minPoll
	var seen []time.Duration
	for i := 0; i < 5; i++ {
		wait = m.nextWait(wait, 0)
		seen = append(seen, wait)
	}
	want := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 700 * time.Millisecond, 700 * time.Millisecond, 700 * time.Millisecond}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("idle cycle %d: expected %s, got %s", i+1, want[i], seen[i])
		}
	}
	if got := m.nextWait(wait, 3); got != 100*time.Millisecond {
		t.Fatalf("expected reset to minimum after work, got %s", got)
	}
}

func TestBackoffScheduleClampsToLastEntry(t *testing.T) {
	cfg := config.Default()
	m := NewManager(&cfg, nil, nil, nil)
	cases := map[int]time.Duration{
		1: 60 * time.Second,
		2: 300 * time.Second,
		3: 900 * time.Second,
		7: 900 * time.Second,
	}
	for attempt, want := range cases {
		if got := m.backoffFor(attempt); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}
}
