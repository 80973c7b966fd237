package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docbatch/internal/ipc"
	"docbatch/internal/logs"
)

type logQuery struct {
	follow    bool
	lines     int
	itemID    int64
	component string
	level     string
}

// tailFunc fetches one batch of log lines starting at offset.
type tailFunc func(ctx context.Context, offset int64, limit int) ([]string, int64, error)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var q logQuery

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if q.itemID < 0 {
				return errors.New("--item must be positive")
			}
			client, err := ipc.Dial(ctx.socketPath())
			if err == nil {
				defer client.Close()
				return streamLogs(cmd, q, ipcTail(client, q))
			}
			path := cfg.LogPath()
			if path == "" {
				return wrapDialError(err, ctx.socketPath())
			}
			return streamLogs(cmd, q, fileTail(path, q))
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&q.follow, "follow", "f", false, "Follow log output")
	flags.IntVarP(&q.lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	flags.Int64Var(&q.itemID, "item", 0, "Only show entries for this queue item")
	flags.StringVar(&q.component, "component", "", "Only show entries from this component")
	flags.StringVar(&q.level, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}

func ipcTail(client *ipc.Client, q logQuery) tailFunc {
	return func(ctx context.Context, offset int64, limit int) ([]string, int64, error) {
		resp, err := client.LogTail(ctx, ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     q.follow,
			WaitMillis: 1000,
			ItemID:     q.itemID,
			Component:  q.component,
			MinLevel:   q.level,
		})
		if err != nil {
			return nil, offset, fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return nil, offset, errors.New("log tail response missing")
		}
		return resp.Lines, resp.Offset, nil
	}
}

func fileTail(path string, q logQuery) tailFunc {
	filter := logs.Filter{ItemID: q.itemID, Component: q.component, MinLevel: q.level}
	return func(ctx context.Context, offset int64, limit int) ([]string, int64, error) {
		result, err := logs.Tail(ctx, path, logs.TailOptions{
			Offset: offset,
			Limit:  limit,
			Follow: q.follow,
			Wait:   time.Second,
			Filter: filter,
		})
		if err != nil {
			return nil, offset, fmt.Errorf("tail logs: %w", err)
		}
		return result.Lines, result.Offset, nil
	}
}

func streamLogs(cmd *cobra.Command, q logQuery, tail tailFunc) error {
	ctx := cmd.Context()
	limit := q.lines
	if limit < 0 {
		limit = 0
	}
	offset := int64(-1)
	if limit == 0 {
		offset = 0
	}
	printed := false
	for {
		lines, next, err := tail(ctx, offset, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, line := range lines {
			if line = strings.TrimRight(line, "\r\n"); line != "" {
				fmt.Fprintln(cmd.OutOrStdout(), line)
				printed = true
			}
		}
		offset = next
		limit = 0
		if !q.follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}
