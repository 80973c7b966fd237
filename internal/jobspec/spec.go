// Package jobspec defines the request payload persisted with each work item:
// which template(s) to merge, how composite requests are split into
// sections, the output format, and the merge data.
package jobspec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"

	"docbatch/internal/services"
)

// Strategy selects how a request's templates are combined.
type Strategy string

const (
	// StrategySingle merges one template with the full data payload.
	StrategySingle Strategy = "single"
	// StrategyShared merges one template against the whole structured dataset
	// covering every sub-entity.
	StrategyShared Strategy = "shared"
	// StrategyIndependent merges each template with its own namespace of the
	// data and concatenates the resulting sections by sequence.
	StrategyIndependent Strategy = "independent"
)

// Format is the requested output container.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// MaxPayloadSize bounds a single request payload.
var MaxPayloadSize = 4 << 20

// ErrEmptyPayload reports a blank request payload.
var ErrEmptyPayload = errors.New("empty request payload")

// TemplateRef points at an immutable template blob.
type TemplateRef struct {
	ContentID string `json:"content_id"`
	Namespace string `json:"namespace,omitempty"`
	Sequence  int    `json:"sequence,omitempty"`
}

// Spec is the decoded request payload.
type Spec struct {
	Template            *TemplateRef   `json:"template,omitempty"`
	Strategy            Strategy       `json:"strategy,omitempty"`
	Templates           []TemplateRef  `json:"templates,omitempty"`
	OutputFormat        Format         `json:"output_format,omitempty"`
	Locale              string         `json:"locale,omitempty"`
	Timezone            string         `json:"timezone,omitempty"`
	IncludeIntermediate bool           `json:"include_intermediate,omitempty"`
	OutputName          string         `json:"output_name,omitempty"`
	Data                map[string]any `json:"data,omitempty"`
	ParentIDs           []string       `json:"parent_ids,omitempty"`
}

// Parse decodes and validates a JSON payload. Numbers inside Data are kept as
// json.Number so integers render without a decimal point.
func Parse(raw []byte) (Spec, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Spec{}, services.Wrap(services.KindValidation, "parse payload", "", ErrEmptyPayload)
	}
	if len(raw) > MaxPayloadSize {
		return Spec{}, services.Wrapf(services.KindValidation, "parse payload", "payload is %d bytes (max %d)", len(raw), MaxPayloadSize)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	var spec Spec
	if err := dec.Decode(&spec); err != nil {
		return Spec{}, services.Wrap(services.KindValidation, "parse payload", "malformed JSON", err)
	}
	if err := spec.normalize(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// ParseYAML converts a YAML document to JSON and parses it with Parse.
func ParseYAML(raw []byte) (Spec, error) {
	converted, err := yamlToJSON(raw)
	if err != nil {
		return Spec{}, err
	}
	return Parse(converted)
}

// ParseAny accepts JSON or YAML; input starting with '{' is treated as JSON.
func ParseAny(raw []byte) (Spec, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return Parse(trimmed)
	}
	return ParseYAML(trimmed)
}

// Normalize validates a JSON or YAML request and returns its canonical JSON
// form, which is what the queue stores.
func Normalize(raw []byte) ([]byte, error) {
	spec, err := ParseAny(raw)
	if err != nil {
		return nil, err
	}
	encoded, err := spec.Encode()
	if err != nil {
		return nil, services.Wrap(services.KindValidation, "encode request", "failed to normalize request", err)
	}
	return encoded, nil
}

// DecodeData parses a standalone JSON or YAML data document into the map
// form Spec.Data uses.
func DecodeData(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}
	if trimmed[0] != '{' {
		converted, err := yamlToJSON(trimmed)
		if err != nil {
			return nil, err
		}
		trimmed = converted
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, services.Wrap(services.KindValidation, "decode data", "data must be an object", err)
	}
	return data, nil
}

func yamlToJSON(raw []byte) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, services.Wrap(services.KindValidation, "parse payload", "", ErrEmptyPayload)
	}
	converted, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, services.Wrap(services.KindValidation, "parse payload", "malformed YAML", err)
	}
	return converted, nil
}

// Encode serialises the spec to JSON for storage.
func (s Spec) Encode() ([]byte, error) {
	return json.Marshal(s)
}

func (s *Spec) normalize() error {
	s.Strategy = Strategy(strings.ToLower(strings.TrimSpace(string(s.Strategy))))
	s.OutputFormat = Format(strings.ToLower(strings.TrimSpace(string(s.OutputFormat))))
	if s.OutputFormat == "" {
		s.OutputFormat = FormatPDF
	}
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	return s.Validate()
}

// Mode reports the effective strategy.
func (s Spec) Mode() Strategy {
	if s.Template != nil {
		return StrategySingle
	}
	if s.Strategy == "" && len(s.Templates) == 1 {
		return StrategySingle
	}
	return s.Strategy
}

// References lists every template the request needs, in declared order.
func (s Spec) References() []TemplateRef {
	if s.Template != nil {
		return []TemplateRef{*s.Template}
	}
	return append([]TemplateRef(nil), s.Templates...)
}

// NeedsConversion reports whether the merged DOCX must go through the converter.
func (s Spec) NeedsConversion() bool {
	return s.OutputFormat == FormatPDF
}

// Namespace returns the data subset for a namespace. The subset must be an
// object; anything else is treated as missing.
func (s Spec) Namespace(name string) (map[string]any, bool) {
	value, ok := s.Data[name]
	if !ok {
		return nil, false
	}
	subset, ok := value.(map[string]any)
	return subset, ok
}

// Validate checks structural consistency.
func (s Spec) Validate() error {
	invalid := func(format string, args ...any) error {
		return services.Wrapf(services.KindValidation, "validate payload", format, args...)
	}

	switch s.OutputFormat {
	case FormatPDF, FormatDOCX:
	default:
		return invalid("unsupported output format %q", s.OutputFormat)
	}

	if s.Template != nil && len(s.Templates) > 0 {
		return invalid("template and templates are mutually exclusive")
	}
	refs := s.References()
	if len(refs) == 0 {
		return invalid("no template reference")
	}
	for i, ref := range refs {
		if strings.TrimSpace(ref.ContentID) == "" {
			return invalid("template %d has no content_id", i)
		}
	}

	switch s.Mode() {
	case StrategySingle:
		if len(refs) != 1 {
			return invalid("single strategy takes exactly one template, got %d", len(refs))
		}
	case StrategyShared:
		if len(refs) != 1 {
			return invalid("shared strategy takes exactly one template, got %d", len(refs))
		}
	case StrategyIndependent:
		seen := make(map[string]struct{}, len(refs))
		for _, ref := range refs {
			ns := strings.TrimSpace(ref.Namespace)
			if ns == "" {
				return invalid("template %s has no namespace", ref.ContentID)
			}
			if _, dup := seen[ns]; dup {
				return invalid("namespace %q declared twice", ns)
			}
			seen[ns] = struct{}{}
		}
	default:
		return invalid("unknown strategy %q", s.Strategy)
	}
	return nil
}

// Describe renders a short human summary used in CLI listings.
func (s Spec) Describe() string {
	refs := s.References()
	switch s.Mode() {
	case StrategyIndependent:
		return fmt.Sprintf("%d sections → %s", len(refs), s.OutputFormat)
	case StrategyShared:
		return fmt.Sprintf("shared %s → %s", shortID(refs[0].ContentID), s.OutputFormat)
	default:
		if len(refs) == 0 {
			return string(s.OutputFormat)
		}
		return fmt.Sprintf("%s → %s", shortID(refs[0].ContentID), s.OutputFormat)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
