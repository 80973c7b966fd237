package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"docbatch/internal/config"
)

// ConfigOption adjusts a config built by NewConfig. dir is the per-test root
// that holds every path the config references.
type ConfigOption func(t testing.TB, dir string, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp directory: data, logs,
// scratch, and the socket all live under it so parallel tests never collide.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.ScratchDir = filepath.Join(dir, "scratch")
	cfg.Paths.SocketPath = filepath.Join(dir, "docbatch.sock")
	cfg.Store.Path = filepath.Join(cfg.Paths.DataDir, "docbatch.db")
	cfg.Converter.MaxConcurrency = 2
	cfg.Converter.TimeoutSeconds = 5

	for _, opt := range opts {
		opt(t, dir, &cfg)
	}
	return &cfg
}

// BaseDir returns the temp root of a config built by NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithStrictFields makes unresolved merge fields an error.
func WithStrictFields() ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Composer.StrictFields = true
	}
}

// WithImageAllowlist restricts external image hosts to hosts.
func WithImageAllowlist(hosts ...string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Composer.ImageAllowlist = hosts
	}
}

// WithConverterScript points the converter at a shell script with body.
func WithConverterScript(body string) ConfigOption {
	return func(t testing.TB, dir string, cfg *config.Config) {
		cfg.Converter.Binary = WriteScript(t, filepath.Join(dir, "bin", "soffice"), body)
	}
}

// WithStubbedBinaries puts no-op executables named names (soffice when
// empty) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, dir string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"soffice"}
		}
		bin := filepath.Join(dir, "bin")
		for _, name := range names {
			WriteScript(t, filepath.Join(bin, name), "exit 0\n")
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
