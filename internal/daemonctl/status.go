package daemonctl

import (
	"context"
	"errors"
	"fmt"

	"docbatch/internal/api"
	"docbatch/internal/config"
	"docbatch/internal/ipc"
	"docbatch/internal/preflight"
	"docbatch/internal/queue"
)

// DependencySummary aggregates dependency readiness for status output.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// StatusSnapshot is the daemon status, or an offline reconstruction of it.
type StatusSnapshot struct {
	ipc.StatusResponse
	Reachable bool
	Summary   DependencySummary
}

// BuildStatusSnapshot asks the daemon for its status. When the socket does
// not answer it reads queue counts straight from the store and probes
// dependencies locally, so status works with the daemon stopped.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &StatusSnapshot{}
	if resp, ok := remoteStatus(ctx, cfg.Paths.SocketPath); ok {
		snapshot.StatusResponse = *resp
		snapshot.Reachable = true
	} else {
		health, err := offlineHealth(ctx, cfg)
		snapshot.Store = api.FromStoreHealth(cfg.Store.Path, health, err)
		snapshot.LockFilePath = cfg.LockPath()
		snapshot.QueueStats = api.MergeQueueStats(health.Counts)
	}
	if len(snapshot.Dependencies) == 0 {
		snapshot.Dependencies = ResolveDependencies(cfg)
	}
	snapshot.Summary = BuildDependencySummary(snapshot.Dependencies)
	return snapshot, nil
}

func remoteStatus(ctx context.Context, socketPath string) (*ipc.StatusResponse, bool) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return nil, false
	}
	defer client.Close()
	resp, err := client.Status(ctx)
	return resp, err == nil
}

// offlineHealth opens the store read-side to probe it while the daemon is
// down. Errors end up in the status output rather than failing it.
func offlineHealth(ctx context.Context, cfg *config.Config) (queue.Health, error) {
	store, err := queue.Open(cfg)
	if err != nil {
		return queue.Health{}, err
	}
	defer store.Close()
	return store.Health(ctx)
}

// ResolveDependencies probes the external binaries the daemon needs.
func ResolveDependencies(cfg *config.Config) []api.DependencyStatus {
	checks := preflight.CheckSystemDeps(cfg)
	out := make([]api.DependencyStatus, len(checks))
	for i, c := range checks {
		out[i] = api.DependencyStatus{
			Name:        c.Name,
			Command:     c.Command,
			Description: c.Description,
			Optional:    c.Optional,
			Available:   c.Available,
			Detail:      c.Detail,
		}
	}
	return out
}

// BuildDependencySummary rolls deps up into a severity: "error" when a
// required dependency is missing, "warn" for optional ones, else "ok".
func BuildDependencySummary(deps []api.DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{Severity: "info", Detail: "No dependency checks configured"}
	}
	sum := DependencySummary{Total: len(deps)}
	for _, dep := range deps {
		switch {
		case dep.Available:
			sum.Available++
		case dep.Optional:
			sum.MissingOptional++
		default:
			sum.MissingRequired++
		}
	}
	switch {
	case sum.MissingRequired > 0:
		sum.Severity = "error"
	case sum.MissingOptional > 0:
		sum.Severity = "warn"
	default:
		sum.Severity = "ok"
	}
	sum.Detail = fmt.Sprintf("%d/%d available", sum.Available, sum.Total)
	if sum.Available < sum.Total {
		sum.Detail += fmt.Sprintf(" (missing: %d required, %d optional)", sum.MissingRequired, sum.MissingOptional)
	}
	return sum
}
