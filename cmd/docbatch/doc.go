// Command docbatch is the operator CLI for the docbatch document engine.
//
// It starts and stops the daemon, inspects and edits the work queue, stores
// templates, tails daemon logs, and renders single documents synchronously
// without a daemon. Queue and content commands talk to the daemon over IPC
// when it is running and open the store directly otherwise.
package main
