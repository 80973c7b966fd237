// Package convert runs DOCX to PDF conversions through an external office
// process under a bounded, FIFO-fair worker pool.
//
// Every job gets its own scratch directory and converter profile so parallel
// soffice instances never share state. Scratch directories live under a
// per-process root guarded by a file lock; roots abandoned by crashed
// processes are swept when a new pool starts.
package convert
