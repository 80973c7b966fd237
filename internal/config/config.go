package config

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	ScratchDir string `toml:"scratch_dir"`
	SocketPath string `toml:"socket_path"`
}

// Store contains configuration for the record store.
type Store struct {
	Path string `toml:"path"`
}

// Workflow contains configuration for the poller and retry policy.
type Workflow struct {
	MinPollIntervalMS  int   `toml:"min_poll_interval_ms"`
	MaxPollIntervalMS  int   `toml:"max_poll_interval_ms"`
	BatchSize          int   `toml:"batch_size"`
	LeaseTTLSeconds    int   `toml:"lease_ttl_seconds"`
	MaxAttempts        int   `toml:"max_attempts"`
	BackoffSeconds     []int `toml:"backoff_seconds"`
	ErrorRetryInterval int   `toml:"error_retry_interval"`
}

// Converter contains configuration for the external document converter.
type Converter struct {
	Binary         string   `toml:"binary"`
	MaxConcurrency int      `toml:"max_concurrency"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	ExtraArgs      []string `toml:"extra_args"`
}

// Cache contains configuration for the template cache.
type Cache struct {
	MaxBytes int64 `toml:"max_bytes"`
}

// Composer contains configuration for template merging.
type Composer struct {
	// StrictFields turns unresolved field references into merge field errors
	// instead of rendering them empty.
	StrictFields   bool     `toml:"strict_fields"`
	ImageAllowlist []string `toml:"image_allowlist"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for docbatch.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and scratch directories plus the IPC socket
//   - Store: SQLite record store location
//   - Workflow: poll cadence, batch size, lease TTL, and retry policy
//   - Converter: soffice binary, pool size, and per-job timeout
//   - Cache: template cache byte budget
//   - Composer: merge strictness and image host allowlist
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Store     Store     `toml:"store"`
	Workflow  Workflow  `toml:"workflow"`
	Converter Converter `toml:"converter"`
	Cache     Cache     `toml:"cache"`
	Composer  Composer  `toml:"composer"`
	Logging   Logging   `toml:"logging"`
}
