package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"docbatch/internal/composer"
	"docbatch/internal/config"
	"docbatch/internal/convert"
	"docbatch/internal/fileutil"
	"docbatch/internal/jobspec"
	"docbatch/internal/logging"
	"docbatch/internal/queue"
	"docbatch/internal/templatecache"
	"docbatch/internal/workflow"
)

const inlineTemplateID = "inline"

type renderOptions struct {
	specPath     string
	templatePath string
	dataPath     string
	format       string
	outputPath   string
	strict       bool
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one document synchronously without the queue",
		Long: "Render merges a template with data and writes the result.\n\n" +
			"Pass --template and --data for a single local template, or --spec\n" +
			"for a full request whose templates are read from the content store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:   firstNonEmpty(ctx.logLevel(), "warn"),
				Format:  "console",
				Outputs: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return runRender(cmd, cfg, logger, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.specPath, "spec", "", "Request file (JSON or YAML) referencing stored templates")
	flags.StringVarP(&opts.templatePath, "template", "t", "", "Local DOCX template")
	flags.StringVarP(&opts.dataPath, "data", "d", "", "Merge data file (JSON or YAML)")
	flags.StringVarP(&opts.format, "format", "f", "", "Output format: pdf or docx (defaults from the output extension)")
	flags.StringVarP(&opts.outputPath, "output", "o", "", "Destination file")
	flags.BoolVar(&opts.strict, "strict", false, "Fail on field references the data does not resolve")
	cmd.MarkFlagsMutuallyExclusive("spec", "template")
	cmd.MarkFlagsOneRequired("spec", "template")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runRender(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, opts renderOptions) error {
	spec, templates, cleanup, err := buildRenderRequest(cmd, cfg, logger, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	var converter workflow.Converter
	if spec.NeedsConversion() {
		pool, err := convert.NewPool(convert.Options{
			Size:       1,
			ScratchDir: cfg.Paths.ScratchDir,
			Timeout:    cfg.ConverterTimeout(),
		}, convert.NewSofficeRunner(
			convert.WithBinary(cfg.Converter.Binary),
			convert.WithExtraArgs(cfg.Converter.ExtraArgs...),
		), nil, logger)
		if err != nil {
			return fmt.Errorf("create conversion pool: %w", err)
		}
		defer pool.Close()
		converter = pool
	}

	comp := composer.New(composer.Options{
		StrictFields:   opts.strict || cfg.Composer.StrictFields,
		ImageAllowlist: cfg.Composer.ImageAllowlist,
	}, logger)
	renderer := workflow.NewRenderer(templates, comp, converter, cfg.ConverterTimeout())

	result, err := renderer.Render(cmd.Context(), spec)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(opts.outputPath, result.Document, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.outputPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %d bytes)\n", opts.outputPath, result.Format, len(result.Document))
	return nil
}

// buildRenderRequest resolves the request and its template source. The
// returned cleanup releases any store opened for stored templates.
func buildRenderRequest(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, opts renderOptions) (jobspec.Spec, workflow.TemplateSource, func(), error) {
	noop := func() {}
	format, err := renderFormat(opts)
	if err != nil {
		return jobspec.Spec{}, nil, noop, err
	}

	if strings.TrimSpace(opts.specPath) != "" {
		raw, err := readInput(cmd, opts.specPath)
		if err != nil {
			return jobspec.Spec{}, nil, noop, err
		}
		spec, err := jobspec.ParseAny(raw)
		if err != nil {
			return jobspec.Spec{}, nil, noop, err
		}
		if format != "" {
			spec.OutputFormat = format
		}
		if opts.dataPath != "" {
			data, err := readRenderData(cmd, opts.dataPath)
			if err != nil {
				return jobspec.Spec{}, nil, noop, err
			}
			spec.Data = data
		}
		store, err := queue.Open(cfg)
		if err != nil {
			return jobspec.Spec{}, nil, noop, fmt.Errorf("open content store: %w", err)
		}
		loader := templatecache.NewLoader(templatecache.New(cfg.Cache.MaxBytes, logger), store, nil, logger)
		return spec, loader, func() { _ = store.Close() }, nil
	}

	template, err := os.ReadFile(opts.templatePath)
	if err != nil {
		return jobspec.Spec{}, nil, noop, fmt.Errorf("read template: %w", err)
	}
	data := map[string]any{}
	if opts.dataPath != "" {
		if data, err = readRenderData(cmd, opts.dataPath); err != nil {
			return jobspec.Spec{}, nil, noop, err
		}
	}
	if format == "" {
		format = jobspec.FormatPDF
	}
	spec := jobspec.Spec{
		Template:     &jobspec.TemplateRef{ContentID: inlineTemplateID},
		OutputFormat: format,
		Data:         data,
	}
	if err := spec.Validate(); err != nil {
		return jobspec.Spec{}, nil, noop, err
	}
	return spec, workflow.StaticTemplates{inlineTemplateID: template}, noop, nil
}

func readRenderData(cmd *cobra.Command, path string) (map[string]any, error) {
	raw, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return jobspec.DecodeData(raw)
}

// renderFormat returns the explicit format, else one implied by the output
// extension, else empty.
func renderFormat(opts renderOptions) (jobspec.Format, error) {
	value := strings.ToLower(strings.TrimSpace(opts.format))
	if value == "" {
		value = strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.outputPath)), ".")
		if value != string(jobspec.FormatPDF) && value != string(jobspec.FormatDOCX) {
			return "", nil
		}
	}
	switch jobspec.Format(value) {
	case jobspec.FormatPDF, jobspec.FormatDOCX:
		return jobspec.Format(value), nil
	default:
		return "", errors.New("format must be pdf or docx")
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
