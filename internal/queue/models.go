package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a work item.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusSucceeded,
	StatusFailed,
	StatusCanceled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further processing happens in this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// AttemptRecord captures one failed processing attempt.
type AttemptRecord struct {
	Attempt  int        `json:"attempt"`
	Error    string     `json:"error"`
	Kind     string     `json:"kind,omitempty"`
	FailedAt time.Time  `json:"failed_at"`
	RetryAt  *time.Time `json:"retry_at,omitempty"`
}

// Item is one persisted unit of document-generation work.
type Item struct {
	ID              int64
	Status          Status
	Payload         string
	Priority        int
	Attempts        int
	CorrelationID   string
	LockExpiry      *time.Time
	ErrorMessage    string
	AttemptLog      []AttemptRecord
	OutputRef       string
	IntermediateRef string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LeaseValid reports whether the item holds an unexpired lease at now.
func (i Item) LeaseValid(now time.Time) bool {
	return i.Status == StatusProcessing && i.LockExpiry != nil && i.LockExpiry.After(now)
}

// StatusUpdate describes the fields changed by UpdateStatus. Zero values leave
// a column untouched. A non-empty LeaseOwner restricts the update to rows still
// leased under that correlation id.
type StatusUpdate struct {
	LeaseOwner      string
	Status          Status
	Attempts        *int
	LockExpiry      *time.Time
	ClearLock       bool
	ErrorMessage    *string
	AppendAttempt   *AttemptRecord
	OutputRef       string
	IntermediateRef string
}

// Content is a stored blob: a template or a generated output.
type Content struct {
	ID        string
	Name      string
	MediaType string
	Size      int64
	Data      []byte
	CreatedAt time.Time
}
