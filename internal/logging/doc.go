// Package logging configures the slog loggers used across docbatch.
//
// It exposes Options, New, and NewFromConfig for constructing console or JSON
// output, attribute helpers with the repository's standard field names, and
// context helpers that stamp item and correlation identifiers onto every line
// emitted while a work item is processed.
package logging
