package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogsFallsBackToLogFile(t *testing.T) {
	cfg, configPath := newCLIConfig(t)
	lines := []string{
		`{"time":"2026-01-02T03:04:05Z","level":"INFO","msg":"item claimed","component":"workflow","item_id":7}`,
		`{"time":"2026-01-02T03:04:06Z","level":"DEBUG","msg":"cache hit","component":"templatecache","item_id":7}`,
		`{"time":"2026-01-02T03:04:07Z","level":"ERROR","msg":"conversion failed","component":"convert","item_id":8}`,
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath()), 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	if err := os.WriteFile(cfg.LogPath(), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--item", "7", "--level", "info"}, "", configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "item claimed")
	if strings.Contains(out, "cache hit") || strings.Contains(out, "conversion failed") {
		t.Fatalf("filter leaked lines:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "0", "--component", "convert"}, "", configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "conversion failed")
}

func TestLogsThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(filepath.Dir(env.cfg.LogPath()), 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	line := `{"time":"2026-01-02T03:04:05Z","level":"WARN","msg":"lease lost","component":"workflow","item_id":3}`
	if err := os.WriteFile(env.cfg.LogPath(), []byte(line+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, _, err := runCLI(t, []string{"logs"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "lease lost")
}
