package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"docbatch/internal/config"
	"docbatch/internal/convert"
	"docbatch/internal/daemon"
	"docbatch/internal/ipc"
	"docbatch/internal/logging"
	"docbatch/internal/testsupport"
)

// pdfRunner stands in for soffice and writes a fixed PDF.
type pdfRunner struct{}

func (pdfRunner) Run(_ context.Context, job convert.Job) error {
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(job.OutputPath(), []byte("%PDF-1.7 cli"), 0o644)
}

// cliTestEnv is a daemon serving IPC in-process plus the config file the CLI
// under test reads.
type cliTestEnv struct {
	cfg        *config.Config
	socketPath string
	configPath string
	baseDir    string
}

// newCLIConfig writes a config file under a temp HOME so the default lookup
// never reaches the real user config.
func newCLIConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Converter.Binary = "soffice"
	cfg.Workflow.MinPollIntervalMS = 5
	cfg.Workflow.MaxPollIntervalMS = 20

	home := filepath.Join(testsupport.BaseDir(cfg), "home")
	t.Setenv("HOME", home)
	t.Setenv(config.EnvConfigPath, "")

	path := filepath.Join(home, ".config", "docbatch", "config.toml")
	writeTestConfig(t, path, cfg)
	return cfg, path
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg, configPath := newCLIConfig(t)

	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger, daemon.WithRunner(pdfRunner{}), daemon.WithoutPreflight())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("unix sockets unavailable: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	return &cliTestEnv{
		cfg:        cfg,
		socketPath: cfg.Paths.SocketPath,
		configPath: configPath,
		baseDir:    testsupport.BaseDir(cfg),
	}
}

// runCLI executes the root command with args. Empty socket or configPath
// leave the matching global flag unset.
func runCLI(t *testing.T, args []string, socket, configPath string) (stdout, stderr string, err error) {
	t.Helper()
	var global []string
	if socket != "" {
		global = append(global, "--socket", socket)
	}
	if configPath != "" {
		global = append(global, "--config", configPath)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(global, args...))
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	testsupport.WriteFile(t, path, encoded)
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	testsupport.WriteFile(t, path, data)
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("output missing %q:\n%s", substr, output)
	}
}
