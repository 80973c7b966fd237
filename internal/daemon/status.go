package daemon

import (
	"context"

	"docbatch/internal/api"
	"docbatch/internal/logging"
	"docbatch/internal/preflight"
)

// Status returns a snapshot of daemon, workflow, pool, and cache state.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          d.PID(),
		LockFilePath: d.lockPath,
		ScratchRoot:  d.pool.ScratchRoot(),
		Workflow:     api.FromWorkflowStats(d.workflow.Stats()),
		Pool:         api.FromPoolStats(d.pool.Stats()),
		Cache:        api.FromCacheStats(d.loader.Cache().Stats()),
	}

	health, err := d.store.Health(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "store health unavailable", "store_health_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the store file and its permissions"))
	}
	status.Store = api.FromStoreHealth(d.store.Path(), health, err)
	status.QueueStats = api.MergeQueueStats(health.Counts)

	snapshot := d.sink.Snapshot()
	if len(snapshot.Counters) > 0 {
		status.Counters = snapshot.Counters
	}

	for _, dep := range preflight.CheckSystemDeps(d.cfg) {
		status.Dependencies = append(status.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return status
}
