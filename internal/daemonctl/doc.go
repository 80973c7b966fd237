// Package daemonctl holds the CLI-side daemon lifecycle helpers: launching a
// detached daemon, waiting for its socket, graceful stop with a forced-kill
// fallback, and status snapshots that still work when the daemon is offline.
package daemonctl
