package workflow

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"docbatch/internal/composer"
	"docbatch/internal/jobspec"
	"docbatch/internal/services"
)

// Result is a rendered document.
type Result struct {
	Document []byte
	Format   jobspec.Format
	// Intermediate holds the merged DOCX when Document was converted.
	Intermediate []byte
}

// Renderer produces one document from a parsed request. It is shared by the
// manager and the synchronous CLI path.
type Renderer struct {
	templates TemplateSource
	composer  Composer
	converter Converter
	timeout   time.Duration
}

// NewRenderer wires the render pipeline. converter may be nil when only DOCX
// output is requested.
func NewRenderer(templates TemplateSource, composer Composer, converter Converter, timeout time.Duration) *Renderer {
	return &Renderer{
		templates: templates,
		composer:  composer,
		converter: converter,
		timeout:   timeout,
	}
}

// Render merges, concatenates, and converts as the request asks.
func (r *Renderer) Render(ctx context.Context, spec jobspec.Spec) (Result, error) {
	var (
		merged []byte
		err    error
	)
	switch spec.Mode() {
	case jobspec.StrategySingle, jobspec.StrategyShared:
		merged, err = r.mergeOne(ctx, spec.References()[0], spec.Data)
	case jobspec.StrategyIndependent:
		merged, err = r.mergeSections(ctx, spec)
	default:
		err = services.Wrapf(services.KindValidation, "render", "unknown strategy %q", spec.Mode())
	}
	if err != nil {
		return Result{}, err
	}

	if !spec.NeedsConversion() {
		return Result{Document: merged, Format: jobspec.FormatDOCX}, nil
	}
	if r.converter == nil {
		return Result{}, services.Wrap(services.KindConversionExecution, "render", "no converter configured for pdf output", nil)
	}
	pdf, err := r.converter.Submit(ctx, merged, r.timeout)
	if err != nil {
		return Result{}, err
	}
	return Result{Document: pdf, Format: jobspec.FormatPDF, Intermediate: merged}, nil
}

func (r *Renderer) mergeOne(ctx context.Context, ref jobspec.TemplateRef, data map[string]any) ([]byte, error) {
	tpl, err := r.templates.Load(ctx, ref.ContentID)
	if err != nil {
		return nil, err
	}
	return r.composer.Merge(ctx, tpl, data)
}

// mergeSections merges every template against its own namespace concurrently
// and joins the sections by sequence.
func (r *Renderer) mergeSections(ctx context.Context, spec jobspec.Spec) ([]byte, error) {
	refs := spec.References()
	scopes := make([]map[string]any, len(refs))
	for i, ref := range refs {
		data, ok := spec.Namespace(ref.Namespace)
		if !ok {
			return nil, services.Wrapf(services.KindValidation, "render", "data has no object for namespace %q", ref.Namespace)
		}
		scopes[i] = data
	}

	sections := make([]composer.Section, len(refs))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		group.Go(func() error {
			doc, err := r.mergeOne(groupCtx, ref, scopes[i])
			if err != nil {
				return err
			}
			sections[i] = composer.Section{Sequence: ref.Sequence, Document: doc}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return r.composer.Concat(ctx, sections)
}

// StaticTemplates serves templates from memory, keyed by content id.
type StaticTemplates map[string][]byte

// Load implements TemplateSource.
func (s StaticTemplates) Load(_ context.Context, contentID string) ([]byte, error) {
	data, ok := s[contentID]
	if !ok {
		return nil, services.Wrap(services.KindTemplateNotFound, "load template", fmt.Sprintf("template %s not found", contentID), nil)
	}
	return data, nil
}
