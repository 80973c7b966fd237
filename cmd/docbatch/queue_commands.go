package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"docbatch/internal/api"
	"docbatch/internal/queue"
	"docbatch/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueEnqueueCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"stats"},
		Short:   "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueaccess.Access) error {
				stats, err := q.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				writeTable(cmd.OutOrStdout(), []column{leftCol("Status"), rightCol("Count")}, rows)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, status := range listStatuses {
				if _, ok := queue.ParseStatus(status); !ok {
					return fmt.Errorf("unknown status %q", status)
				}
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				items, err := q.List(cmd.Context(), listStatuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				writeTable(cmd.OutOrStdout(), []column{
					rightCol("ID"), leftCol("Status"), rightCol("Priority"),
					rightCol("Attempts"), leftCol("Request"), leftCol("Created"),
				}, buildQueueListRows(items))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit items as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a queue item with its attempt history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				item, err := q.Describe(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("queue item %d not found", ids[0])
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), item)
				}
				renderQueueItem(cmd.OutOrStdout(), *item)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the item as JSON")
	return cmd
}

func renderQueueItem(out io.Writer, item api.QueueItem) {
	fmt.Fprintf(out, "ID:          %d\n", item.ID)
	fmt.Fprintf(out, "Status:      %s\n", formatStatusLabel(item.Status))
	fmt.Fprintf(out, "Request:     %s\n", item.Summary)
	fmt.Fprintf(out, "Priority:    %d\n", item.Priority)
	fmt.Fprintf(out, "Attempts:    %d\n", item.Attempts)
	fmt.Fprintf(out, "Created:     %s\n", formatOptionalTime(item.CreatedAt))
	fmt.Fprintf(out, "Updated:     %s\n", formatOptionalTime(item.UpdatedAt))
	if item.LockExpiry != "" {
		fmt.Fprintf(out, "Lease Until: %s\n", formatOptionalTime(item.LockExpiry))
	}
	if item.OutputRef != "" {
		fmt.Fprintf(out, "Output:      %s\n", item.OutputRef)
	}
	if item.IntermediateRef != "" {
		fmt.Fprintf(out, "DOCX:        %s\n", item.IntermediateRef)
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:       %s\n", item.ErrorMessage)
	}
	if len(item.AttemptLog) == 0 {
		return
	}
	fmt.Fprintln(out)
	rows := make([][]string, 0, len(item.AttemptLog))
	for _, attempt := range item.AttemptLog {
		retry := "-"
		if attempt.RetryAt != "" {
			retry = formatDisplayTime(attempt.RetryAt)
		}
		rows = append(rows, []string{
			strconv.Itoa(attempt.Attempt),
			attempt.Kind,
			formatDisplayTime(attempt.FailedAt),
			retry,
			attempt.Error,
		})
	}
	writeTable(out, []column{
		rightCol("Attempt"), leftCol("Kind"), leftCol("Failed"),
		leftCol("Retry At"), wrappedCol("Error", 60),
	}, rows)
}

func newQueueEnqueueCommand(ctx *commandContext) *cobra.Command {
	var specPath string
	var priority int

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Submit a document request (JSON or YAML) to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd, specPath)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				item, err := q.Enqueue(cmd.Context(), payload, priority)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued item %d (%s)\n", item.ID, item.Summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&specPath, "spec", "f", "", "Request file path (use - for stdin)")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Higher priorities are processed first")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>...",
		Short: "Cancel queued or processing items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				result, err := q.Cancel(cmd.Context(), ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, item := range result.Items {
					switch item.Outcome {
					case api.CancelItemUpdated:
						if item.WasProcessing {
							fmt.Fprintf(out, "Item %d canceled (in-flight work will be discarded)\n", item.ID)
						} else {
							fmt.Fprintf(out, "Item %d canceled\n", item.ID)
						}
					case api.CancelItemNotFound:
						fmt.Fprintf(out, "Item %d not found\n", item.ID)
					case api.CancelItemAlreadyDone:
						fmt.Fprintf(out, "Item %d already %s\n", item.ID, item.PriorStatus)
					case api.CancelItemLostConcurrent:
						fmt.Fprintf(out, "Item %d finished before it could be canceled\n", item.ID)
					}
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Requeue failed items (all failed items when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				result, err := q.Retry(cmd.Context(), ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					fmt.Fprintf(out, "Requeued %d failed item(s)\n", result.UpdatedCount)
					return nil
				}
				for _, item := range result.Items {
					switch item.Outcome {
					case api.RetryItemUpdated:
						fmt.Fprintf(out, "Item %d requeued\n", item.ID)
					case api.RetryItemNotFound:
						fmt.Fprintf(out, "Item %d not found\n", item.ID)
					case api.RetryItemNotFailed:
						fmt.Fprintf(out, "Item %d is not failed\n", item.ID)
					}
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove succeeded, failed, and canceled items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueaccess.Access) error {
				removed, err := q.ClearTerminal(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s)\n", removed)
				return nil
			})
		},
	}
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("input path is required")
	}
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
