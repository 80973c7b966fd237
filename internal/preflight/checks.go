package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"docbatch/internal/config"
)

// CheckDirectoryAccess passes when path is a directory the process can list
// and write into.
func CheckDirectoryAccess(name, path string) Result {
	fail := func(format string, args ...any) Result {
		return Result{Name: name, Detail: path + " (error: " + fmt.Sprintf(format, args...) + ")"}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail("does not exist")
	case err != nil:
		return fail("stat: %v", err)
	case !info.IsDir():
		return fail("is not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail("insufficient permissions: %v", err)
	}
	return Result{Name: name, Passed: true, Detail: path + " (read/write ok)"}
}

// CheckConverter passes when the converter binary resolves to an executable.
func CheckConverter(_ context.Context, binary string) Result {
	st := lookupBinary(Requirement{Name: "Converter", Command: binary})
	if !st.Available {
		return Result{Name: st.Name, Detail: st.Detail}
	}
	return Result{Name: st.Name, Passed: true, Detail: st.Command}
}

// Requirement names an external binary docbatch shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement plus the lookup outcome. Command holds the
// resolved path when Available.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// CheckSystemDeps reports on the binaries cfg points at.
func CheckSystemDeps(cfg *config.Config) []Status {
	return CheckBinaries([]Requirement{{
		Name:        "LibreOffice",
		Command:     cfg.Converter.Binary,
		Description: "Required for PDF output",
	}})
}

// CheckBinaries looks up each requirement on PATH.
func CheckBinaries(reqs []Requirement) []Status {
	out := make([]Status, len(reqs))
	for i, req := range reqs {
		out[i] = lookupBinary(req)
	}
	return out
}

func lookupBinary(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	st := Status{Requirement: req}
	if req.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return st
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		st.Detail = fmt.Sprintf("binary %q is not executable: %v", path, err)
		return st
	}
	st.Command = path
	st.Available = true
	return st
}
