// Package templatecache keeps downloaded DOCX templates in memory under a
// byte budget with least-recently-used eviction.
//
// Cache is the raw bounded store. Loader sits in front of it and collapses
// concurrent misses for the same content id into one origin fetch, so a burst
// of work items sharing a template downloads it once.
package templatecache
