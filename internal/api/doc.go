// Package api defines wire-format types and converters shared by the IPC
// server and the CLI. It translates queue records, workflow counters, pool
// and cache statistics into transport-friendly DTOs so consumers can render
// them without coupling to internal types.
//
// # Key Types
//
// QueueItem: transport representation of a work item, including its attempt
// history and a short summary of the request payload.
//
// DaemonStatus: running state plus workflow, pool, cache, and queue counters.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Statuses are lowercase strings. Timestamps use
// RFC3339 with milliseconds.
package api
