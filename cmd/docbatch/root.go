package main

import (
	"github.com/spf13/cobra"
)

const (
	groupDaemon    = "daemon"
	groupDocuments = "documents"
	groupSetup     = "setup"
)

// skipConfigAnnotation marks commands that must run before a valid
// configuration exists.
const skipConfigAnnotation = "skipConfigLoad"

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	root := &cobra.Command{
		Use:           "docbatch",
		Short:         "Batch document generation engine",
		Long:          "docbatch merges data into DOCX templates and converts the results to PDF,\neither one document at a time or from a durable work queue served by a daemon.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&ctx.opts.socket, "socket", "", "Path to the docbatch daemon socket")
	flags.StringVarP(&ctx.opts.config, "config", "c", "", "Configuration file path")
	flags.StringVar(&ctx.opts.logLevel, "log-level", "", "Override the configured log level")

	root.AddGroup(
		&cobra.Group{ID: groupDaemon, Title: "Daemon:"},
		&cobra.Group{ID: groupDocuments, Title: "Documents and queue:"},
		&cobra.Group{ID: groupSetup, Title: "Setup and diagnostics:"},
	)
	addGrouped(root, groupDaemon, newDaemonCommands(ctx)...)
	addGrouped(root, groupDaemon, newDaemonRunCommand(ctx))
	addGrouped(root, groupDocuments,
		newQueueCommand(ctx),
		newContentCommand(ctx),
		newRenderCommand(ctx),
	)
	addGrouped(root, groupSetup, newLogsCommand(ctx), newConfigCommand(ctx))

	return root
}

func addGrouped(parent *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.GroupID = group
		parent.AddCommand(cmd)
	}
}

func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}
