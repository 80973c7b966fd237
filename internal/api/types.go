package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a work item in a transport-friendly format.
type QueueItem struct {
	ID              int64     `json:"id"`
	Status          string    `json:"status"`
	Priority        int       `json:"priority"`
	Attempts        int       `json:"attempts"`
	Summary         string    `json:"summary"`
	CorrelationID   string    `json:"correlationId,omitempty"`
	LockExpiry      string    `json:"lockExpiry,omitempty"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	OutputRef       string    `json:"outputRef,omitempty"`
	IntermediateRef string    `json:"intermediateRef,omitempty"`
	CreatedAt       string    `json:"createdAt,omitempty"`
	UpdatedAt       string    `json:"updatedAt,omitempty"`
	AttemptLog      []Attempt `json:"attemptLog,omitempty"`
}

// Attempt is one failed processing attempt.
type Attempt struct {
	Attempt  int    `json:"attempt"`
	Kind     string `json:"kind,omitempty"`
	Error    string `json:"error"`
	FailedAt string `json:"failedAt"`
	RetryAt  string `json:"retryAt,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running    bool   `json:"running"`
	Uptime     string `json:"uptime,omitempty"`
	LastCycle  string `json:"lastCycle,omitempty"`
	QueueDepth int    `json:"queueDepth"`
	Processed  int64  `json:"processed"`
	Succeeded  int64  `json:"succeeded"`
	Failed     int64  `json:"failed"`
	Retried    int64  `json:"retried"`
	LockLost   int64  `json:"lockLost"`
	LastError  string `json:"lastError,omitempty"`
}

// PoolStatus reports conversion pool counters.
type PoolStatus struct {
	Size      int   `json:"size"`
	Active    int64 `json:"active"`
	Queued    int64 `json:"queued"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// CacheStatus reports template cache counters.
type CacheStatus struct {
	Entries   int   `json:"entries"`
	Bytes     int64 `json:"bytes"`
	MaxBytes  int64 `json:"maxBytes"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// StoreStatus describes the SQLite store. Error is set when it could not be
// read; the counts are then zero.
type StoreStatus struct {
	Path      string `json:"path"`
	Items     int    `json:"items"`
	Contents  int    `json:"contents"`
	Integrity string `json:"integrity,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Store        StoreStatus        `json:"store"`
	LockFilePath string             `json:"lockFilePath"`
	ScratchRoot  string             `json:"scratchRoot,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Pool         PoolStatus         `json:"pool"`
	Cache        CacheStatus        `json:"cache"`
	QueueStats   map[string]int     `json:"queueStats"`
	Counters     map[string]int64   `json:"counters,omitempty"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ContentInfo describes a stored blob without its bytes.
type ContentInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"createdAt,omitempty"`
}
