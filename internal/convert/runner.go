package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"docbatch/internal/services"
)

const (
	inputName     = "input.docx"
	outputName    = "input.pdf"
	maxOutputTail = 4096
	killWaitDelay = 5 * time.Second
)

// Job describes one conversion and its scratch layout.
type Job struct {
	ID         string
	Dir        string
	InputPath  string
	OutputDir  string
	ProfileDir string
}

func newJob(id, dir string) Job {
	return Job{
		ID:         id,
		Dir:        dir,
		InputPath:  filepath.Join(dir, inputName),
		OutputDir:  filepath.Join(dir, "out"),
		ProfileDir: filepath.Join(dir, "profile"),
	}
}

// OutputPath is where the converter must leave the PDF.
func (j Job) OutputPath() string {
	return filepath.Join(j.OutputDir, outputName)
}

// Runner executes the converter for one job.
type Runner interface {
	Run(ctx context.Context, job Job) error
}

// Option configures the soffice runner.
type Option func(*SofficeRunner)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(r *SofficeRunner) {
		if strings.TrimSpace(binary) != "" {
			r.binary = binary
		}
	}
}

// WithExtraArgs appends arguments before the conversion flags.
func WithExtraArgs(args ...string) Option {
	return func(r *SofficeRunner) {
		r.extraArgs = append(r.extraArgs, args...)
	}
}

// SofficeRunner invokes LibreOffice in headless mode. The process runs in its
// own process group so a timeout kills any helpers it forked.
type SofficeRunner struct {
	binary    string
	extraArgs []string
}

// NewSofficeRunner constructs a runner using defaults.
func NewSofficeRunner(opts ...Option) *SofficeRunner {
	r := &SofficeRunner{binary: "soffice"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Binary returns the configured converter executable.
func (r *SofficeRunner) Binary() string {
	return r.binary
}

// Args builds the command line for job.
func (r *SofficeRunner) Args(job Job) []string {
	args := []string{
		"--headless",
		"--norestore",
		"-env:UserInstallation=file://" + job.ProfileDir,
	}
	args = append(args, r.extraArgs...)
	return append(args,
		"--convert-to", "pdf",
		"--outdir", job.OutputDir,
		job.InputPath,
	)
}

// Run executes soffice and waits for it to exit.
func (r *SofficeRunner) Run(ctx context.Context, job Job) error {
	const op = "convert"
	cmd := exec.CommandContext(ctx, r.binary, r.Args(job)...) //nolint:gosec
	cmd.Dir = job.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = killWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.KindConversionExecution, op, "start "+r.binary, err)
	}
	err := cmd.Wait()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("converter interrupted: %w", ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &services.Error{
			Kind:      services.KindConversionNonZeroExit,
			Operation: op,
			Message:   fmt.Sprintf("%s exited with status %d", r.binary, exitErr.ExitCode()),
			Output:    outputTail(stderr.String(), stdout.String()),
			Cause:     err,
		}
	}
	return services.Wrap(services.KindConversionExecution, op, "wait for "+r.binary, err)
}

func outputTail(stderr, stdout string) string {
	combined := strings.TrimSpace(strings.TrimSpace(stderr) + "\n" + strings.TrimSpace(stdout))
	if len(combined) > maxOutputTail {
		combined = combined[len(combined)-maxOutputTail:]
	}
	return combined
}
