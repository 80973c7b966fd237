// Package daemonrun runs the docbatch daemon process: logger setup, pid file,
// IPC server, and signal-driven shutdown around a daemon.Daemon.
package daemonrun
