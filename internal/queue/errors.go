package queue

import "errors"

// ErrNotFound is returned when a work item or content blob does not exist.
var ErrNotFound = errors.New("not found")
