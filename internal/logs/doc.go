// Package logs tails the daemon's JSON log file for the CLI and the IPC
// server.
//
// Tail supports negative offsets for "last N lines", forward reads from a
// saved offset, and a bounded follow wait. A Filter narrows the returned lines
// to one work item or a minimum level; offsets always advance past filtered
// lines so a follow loop never re-reads them.
package logs
