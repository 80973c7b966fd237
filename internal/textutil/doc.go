// Package textutil turns user-supplied names into safe file names for
// generated documents.
package textutil
