// Package queue is the SQLite record store behind the batch engine: work
// items and the content blobs (templates and generated outputs) they refer
// to.
//
// The Store exposes the record-store client contract the workflow manager
// consumes: fetch lease-eligible candidates, take a lease with a single
// conditional UPDATE, apply status updates that never overwrite an
// externally canceled row, and move content in and out. Several daemon
// processes may share one database file; the conditional UPDATE is the only
// coordination between them.
//
// Schema changes ship as numbered files under migrations/ and are applied in
// order on Open, tracked by PRAGMA user_version. A database written by a newer
// build is refused with ErrSchemaMismatch.
package queue
