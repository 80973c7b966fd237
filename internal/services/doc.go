// Package services defines cross-cutting helpers shared by the cache,
// composer, converter pool, and workflow manager.
//
// Key responsibilities:
//   - Context helpers that stamp work item IDs and lease correlation
//     identifiers for logging.
//   - The structured error taxonomy (Kind) that lower layers attach to every
//     failure, plus Details for logging and Retryable for the single place
//     that decides between re-queue and terminal failure.
package services
