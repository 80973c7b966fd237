// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Queue
// items, status, and content metadata reuse the api package types so the CLI
// renders the same shapes whether it talks to the daemon or opens the store
// directly.
package ipc
