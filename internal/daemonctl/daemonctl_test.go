package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"docbatch/internal/api"
	"docbatch/internal/daemonctl"
	"docbatch/internal/queue"
	"docbatch/internal/testsupport"
)

func TestBuildDependencySummary(t *testing.T) {
	cases := []struct {
		name     string
		deps     []api.DependencyStatus
		severity string
		detail   string
	}{
		{name: "none", severity: "info", detail: "No dependency checks configured"},
		{name: "all ok", deps: []api.DependencyStatus{{Available: true}}, severity: "ok", detail: "1/1 available"},
		{name: "optional missing", deps: []api.DependencyStatus{{Available: true}, {Optional: true}}, severity: "warn", detail: "1/2 available (missing: 0 required, 1 optional)"},
		{name: "required missing", deps: []api.DependencyStatus{{}, {Optional: true}}, severity: "error", detail: "0/2 available (missing: 1 required, 1 optional)"},
	}
	for _, tc := range cases {
		got := daemonctl.BuildDependencySummary(tc.deps)
		if got.Severity != tc.severity || got.Detail != tc.detail {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Converter.Binary = "soffice"
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustEnqueue(t, store, `{"template":{"content_id":"a"}}`, 0)

	snapshot, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Reachable || snapshot.Running {
		t.Fatalf("expected offline snapshot, got %+v", snapshot)
	}
	if snapshot.QueueStats[string(queue.StatusQueued)] != 1 || snapshot.QueueStats[string(queue.StatusFailed)] != 0 {
		t.Fatalf("unexpected queue stats: %v", snapshot.QueueStats)
	}
	if snapshot.Store.Path != cfg.Store.Path || snapshot.Store.Items != 1 || snapshot.Store.Integrity != "ok" || snapshot.Store.Error != "" {
		t.Fatalf("unexpected store status: %+v", snapshot.Store)
	}
	if snapshot.Summary.Severity != "ok" {
		t.Fatalf("expected converter available, got %+v", snapshot.Summary)
	}
}

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := daemonctl.StopAndTerminate(ctx, cfg); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if err := daemonctl.WaitForShutdown(ctx, cfg.Paths.SocketPath); err != nil {
		t.Fatalf("WaitForShutdown: %v", err)
	}
}

func TestWaitForClientTimesOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := daemonctl.WaitForClient(ctx, cfg.Paths.SocketPath); err == nil {
		t.Fatal("expected error without a daemon socket")
	}
}

func TestLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	held, err := daemonctl.LockHeld(cfg.LockPath())
	if err != nil || held {
		t.Fatalf("LockHeld without lock file = %v, %v", held, err)
	}

	lock := flock.New(cfg.LockPath())
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer lock.Unlock()
	held, err = daemonctl.LockHeld(cfg.LockPath())
	if err != nil || !held {
		t.Fatalf("LockHeld with lock taken = %v, %v", held, err)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if _, err := daemonctl.ForceKillProcess(cfg.PIDPath(), "", os.Getpid()); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if _, err := daemonctl.ForceKillProcess(cfg.PIDPath(), "", 0); err == nil {
		t.Fatal("expected error without a pid")
	}
}
