package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"docbatch/internal/api"
	"docbatch/internal/fileutil"
	"docbatch/internal/queueaccess"
	"docbatch/internal/textutil"
)

func newContentCommand(ctx *commandContext) *cobra.Command {
	contentCmd := &cobra.Command{
		Use:   "content",
		Short: "Store and fetch templates and generated documents",
	}
	contentCmd.AddCommand(newContentPutCommand(ctx))
	contentCmd.AddCommand(newContentGetCommand(ctx))
	contentCmd.AddCommand(newContentListCommand(ctx))
	return contentCmd
}

func newContentPutCommand(ctx *commandContext) *cobra.Command {
	var name string
	var mediaType string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Upload a template or document and print its content id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(name) == "" && args[0] != "-" {
				name = filepath.Base(args[0])
			}
			return ctx.withContent(func(content queueaccess.ContentAccess) error {
				info, err := content.Put(cmd.Context(), data, name, mediaType)
				if err != nil {
					return err
				}
				if quiet {
					fmt.Fprintln(cmd.OutOrStdout(), info.ID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s as %s (%s, %d bytes)\n", info.Name, info.ID, info.MediaType, info.Size)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the file name)")
	cmd.Flags().StringVar(&mediaType, "media-type", "", "Media type (detected when empty)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the content id")
	return cmd
}

func newContentGetCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Download a stored blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withContent(func(content queueaccess.ContentAccess) error {
				info, data, err := content.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				target := strings.TrimSpace(outputPath)
				if target == "" {
					target = textutil.SanitizeFileName(info.Name)
				}
				if target == "" {
					target = id
				}
				if target == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", target, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(data), target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (use - for stdout)")
	return cmd
}

func newContentListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored blobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withContent(func(content queueaccess.ContentAccess) error {
				contents, err := content.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), contents)
				}
				if len(contents) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored content")
					return nil
				}
				writeTable(cmd.OutOrStdout(), []column{
					leftCol("ID"), leftCol("Name"), leftCol("Type"), rightCol("Size"), leftCol("Created"),
				}, buildContentRows(contents))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit content metadata as JSON")
	return cmd
}

func buildContentRows(contents []api.ContentInfo) [][]string {
	sorted := make([]api.ContentInfo, len(contents))
	copy(sorted, contents)
	sort.SliceStable(sorted, func(i, j int) bool {
		return api.ParseTime(sorted[i].CreatedAt).After(api.ParseTime(sorted[j].CreatedAt))
	})
	rows := make([][]string, 0, len(sorted))
	for _, content := range sorted {
		rows = append(rows, []string{
			content.ID,
			truncate(content.Name, 40),
			shortMediaType(content.MediaType),
			fmt.Sprintf("%d", content.Size),
			formatDisplayTime(content.CreatedAt),
		})
	}
	return rows
}

func shortMediaType(mediaType string) string {
	switch {
	case strings.Contains(mediaType, "wordprocessingml"):
		return "docx"
	case strings.HasPrefix(mediaType, "application/pdf"):
		return "pdf"
	default:
		return mediaType
	}
}
