package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docbatch/internal/api"
	"docbatch/internal/daemonctl"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the docbatch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			waitCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			result, err := daemonctl.EnsureStarted(waitCtx, ctx.socketPath(), exe, daemonctl.LaunchOptions{
				ConfigPath: ctx.configPath(),
				LogLevel:   ctx.logLevel(),
			})
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				fmt.Fprintln(stdout, result.Message)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the docbatch daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			graceCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			result, err := daemonctl.StopAndTerminate(graceCtx, cfg)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stopping daemon workflow...")
			} else {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, pool, cache, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd.OutOrStdout(), snapshot)
			}
			renderStatus(cmd.OutOrStdout(), snapshot, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit status as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderStatus(out io.Writer, snapshot *daemonctl.StatusSnapshot, colorize bool) {
	page := &statusPage{out: out, colorize: colorize}

	page.section("System Status")
	page.lines(systemLines(snapshot, colorize))

	page.section("Dependencies")
	page.lines(dependencyLines(snapshot.Dependencies, snapshot.Summary, colorize))

	if snapshot.Reachable {
		page.section("Counters")
		writeTable(out, []column{leftCol("Counter"), rightCol("Value")}, counterRows(snapshot))
	}

	page.section("Queue Status")
	rows := buildQueueStatusRows(snapshot.QueueStats)
	if len(rows) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	writeTable(out, []column{leftCol("Status"), rightCol("Count")}, rows)
}

func systemLines(snapshot *daemonctl.StatusSnapshot, colorize bool) []string {
	if !snapshot.Reachable {
		return []string{
			renderStatusLine("Docbatch", statusWarn, "Not running (run `docbatch start`)", colorize),
			storeLine(snapshot.Store, colorize),
		}
	}
	lines := make([]string, 0, 6)
	if snapshot.Running {
		detail := "Running"
		if snapshot.Workflow.Uptime != "" {
			detail = fmt.Sprintf("Running (pid %d, up %s)", snapshot.PID, snapshot.Workflow.Uptime)
		}
		lines = append(lines, renderStatusLine("Docbatch", statusOK, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("Docbatch", statusWarn, "Daemon idle (run `docbatch start`)", colorize))
	}
	lines = append(lines,
		storeLine(snapshot.Store, colorize),
		renderStatusLine("Pool", statusInfo, fmt.Sprintf("%d/%d active, %d waiting", snapshot.Pool.Active, snapshot.Pool.Size, snapshot.Pool.Queued), colorize),
		renderStatusLine("Template Cache", statusInfo, fmt.Sprintf("%d entries, %d/%d bytes, %d hits, %d misses",
			snapshot.Cache.Entries, snapshot.Cache.Bytes, snapshot.Cache.MaxBytes, snapshot.Cache.Hits, snapshot.Cache.Misses), colorize),
	)
	if snapshot.Workflow.LastError != "" {
		lines = append(lines, renderStatusLine("Last Error", statusError, snapshot.Workflow.LastError, colorize))
	}
	return lines
}

func storeLine(store api.StoreStatus, colorize bool) string {
	switch {
	case store.Error != "":
		return renderStatusLine("Store", statusError, store.Path+" ("+store.Error+")", colorize)
	case store.Integrity != "" && store.Integrity != "ok":
		return renderStatusLine("Store", statusError, fmt.Sprintf("%s (integrity: %s)", store.Path, store.Integrity), colorize)
	}
	detail := fmt.Sprintf("%s (%d items, %d blobs)", store.Path, store.Items, store.Contents)
	return renderStatusLine("Store", statusInfo, detail, colorize)
}

func counterRows(snapshot *daemonctl.StatusSnapshot) [][]string {
	wf := snapshot.Workflow
	rows := [][]string{
		{"Processed", fmt.Sprint(wf.Processed)},
		{"Succeeded", fmt.Sprint(wf.Succeeded)},
		{"Failed", fmt.Sprint(wf.Failed)},
		{"Retried", fmt.Sprint(wf.Retried)},
		{"Lock Lost", fmt.Sprint(wf.LockLost)},
	}
	names := make([]string, 0, len(snapshot.Counters))
	for name := range snapshot.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprint(snapshot.Counters[name])})
	}
	return rows
}

func dependencyLines(deps []api.DependencyStatus, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	return lines
}
