// Package workflow turns queued work items into finished documents.
//
// The Manager polls the record store on an adaptive interval, claims a batch
// of lease-eligible items with a conditional lock, and processes the claimed
// items concurrently. Each item is parsed into a jobspec.Spec, rendered by the
// Renderer (template resolution through the cache loader, merge or
// merge-and-concatenate, optional PDF conversion through the pool), uploaded,
// and marked SUCCEEDED.
//
// Failure classification lives here and nowhere else. Lower layers return
// services.Error values carrying a Kind; the manager decides between a
// delayed re-queue on the configured backoff schedule and a terminal FAILED
// status. There is no heartbeat: a lease that expires mid-flight makes the
// item claimable again, and the final status update is fenced on the lease's
// correlation id so a superseded worker logs a lost lock instead of
// overwriting the newer outcome.
package workflow
