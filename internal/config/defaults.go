package config

const (
	defaultDataDir            = "~/.local/share/docbatch"
	defaultLogDir             = "~/.local/share/docbatch/logs"
	defaultScratchDir         = "~/.cache/docbatch/scratch"
	defaultSocketName         = "docbatch.sock"
	defaultStoreName          = "docbatch.db"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultMinPollIntervalMS  = 500
	defaultMaxPollIntervalMS  = 15000
	defaultBatchSize          = 10
	defaultLeaseTTLSeconds    = 600
	defaultMaxAttempts        = 3
	defaultErrorRetryInterval = 10
	defaultConverterBinary    = "soffice"
	defaultConverterTimeout   = 120
	defaultCacheMaxBytes      = 256 << 20
	maxPoolSize               = 8
)

var defaultBackoffSeconds = []int{60, 300, 900}

// Default returns a Config populated with repository defaults.
func Default() Config {
	backoff := make([]int, len(defaultBackoffSeconds))
	copy(backoff, defaultBackoffSeconds)
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			ScratchDir: defaultScratchDir,
		},
		Workflow: Workflow{
			MinPollIntervalMS:  defaultMinPollIntervalMS,
			MaxPollIntervalMS:  defaultMaxPollIntervalMS,
			BatchSize:          defaultBatchSize,
			LeaseTTLSeconds:    defaultLeaseTTLSeconds,
			MaxAttempts:        defaultMaxAttempts,
			BackoffSeconds:     backoff,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Converter: Converter{
			Binary:         defaultConverterBinary,
			TimeoutSeconds: defaultConverterTimeout,
		},
		Cache: Cache{
			MaxBytes: defaultCacheMaxBytes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
