// Package daemon is the composition root of the long-running docbatch
// process.
//
// New wires configuration, the record store, the template cache and loader,
// the conversion pool, the composer, and the workflow manager into a single
// lifecycle. Start takes a flock on the data directory so two daemons never
// share one store path, runs preflight checks, and starts polling. The daemon
// also exposes the queue and content maintenance helpers the IPC server and
// CLI call.
//
// Keep orchestration here: processing belongs to the workflow, conversion to
// convert, and merging to composer.
package daemon
