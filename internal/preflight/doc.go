// Package preflight provides readiness checks for the filesystem paths and
// external binaries docbatch depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll before starting the workflow and refuses to start
//     when a required check fails, so work is not claimed only to fail.
//   - The CLI reports CheckSystemDeps from "docbatch status" and
//     "docbatch config validate", which can fail on missing binaries.
package preflight
