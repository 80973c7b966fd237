package jobspec_test

import (
	"encoding/json"
	"errors"
	"testing"

	"docbatch/internal/jobspec"
	"docbatch/internal/services"
)

func TestParseSingleTemplate(t *testing.T) {
	spec, err := jobspec.Parse([]byte(`{"template":{"content_id":"tpl-1"},"data":{"name":"Ada","count":3}}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if spec.Mode() != jobspec.StrategySingle {
		t.Fatalf("unexpected mode: %s", spec.Mode())
	}
	if spec.OutputFormat != jobspec.FormatPDF || !spec.NeedsConversion() {
		t.Fatalf("expected pdf default, got %q", spec.OutputFormat)
	}
	if n, ok := spec.Data["count"].(json.Number); !ok || n.String() != "3" {
		t.Fatalf("expected json.Number count, got %#v", spec.Data["count"])
	}
}

func TestParseIndependentRequiresNamespaces(t *testing.T) {
	raw := `{"strategy":"independent","templates":[{"content_id":"a","namespace":"cover","sequence":1},{"content_id":"b","sequence":2}]}`
	_, err := jobspec.Parse([]byte(raw))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !services.IsKind(err, services.KindValidation) {
		t.Fatalf("expected validation kind, got %v", err)
	}
}

func TestParseRejectsDuplicateNamespaces(t *testing.T) {
	raw := `{"strategy":"independent","templates":[{"content_id":"a","namespace":"x"},{"content_id":"b","namespace":"x"}]}`
	if _, err := jobspec.Parse([]byte(raw)); err == nil {
		t.Fatal("expected duplicate namespace error")
	}
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"not json":       "{",
		"no template":    `{"data":{}}`,
		"both forms":     `{"template":{"content_id":"a"},"templates":[{"content_id":"b"}]}`,
		"bad format":     `{"template":{"content_id":"a"},"output_format":"odt"}`,
		"unknown field":  `{"template":{"content_id":"a"},"colour":"red"}`,
		"blank id":       `{"template":{"content_id":" "}}`,
		"shared two":     `{"strategy":"shared","templates":[{"content_id":"a"},{"content_id":"b"}]}`,
		"unknown method": `{"strategy":"zip","templates":[{"content_id":"a"},{"content_id":"b"}]}`,
	}
	for name, raw := range cases {
		_, err := jobspec.Parse([]byte(raw))
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if services.KindOf(err) != services.KindValidation {
			t.Fatalf("%s: expected validation kind, got %v", name, err)
		}
	}
	if _, err := jobspec.Parse(nil); !errors.Is(err, jobspec.ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestParseYAMLSpec(t *testing.T) {
	raw := `
strategy: independent
output_format: docx
templates:
  - content_id: cover-tpl
    namespace: cover
    sequence: 10
  - content_id: body-tpl
    namespace: body
    sequence: 20
data:
  cover:
    title: Annual report
  body:
    rows:
      - name: a
      - name: b
`
	spec, err := jobspec.ParseYAML([]byte(raw))
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}
	if spec.Mode() != jobspec.StrategyIndependent || len(spec.References()) != 2 {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	cover, ok := spec.Namespace("cover")
	if !ok || cover["title"] != "Annual report" {
		t.Fatalf("unexpected cover namespace: %#v", cover)
	}
	if _, ok := spec.Namespace("missing"); ok {
		t.Fatal("expected missing namespace")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	spec, err := jobspec.Parse([]byte(`{"template":{"content_id":"tpl"},"output_format":"docx","include_intermediate":true}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	encoded, err := spec.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	again, err := jobspec.Parse(encoded)
	if err != nil {
		t.Fatalf("re-Parse failed: %v", err)
	}
	if again.OutputFormat != jobspec.FormatDOCX || !again.IncludeIntermediate {
		t.Fatalf("unexpected round trip: %+v", again)
	}
}

func TestDecodeData(t *testing.T) {
	data, err := jobspec.DecodeData([]byte("name: Ada\nitems:\n  - 1\n  - 2\n"))
	if err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}
	items, ok := data["items"].([]any)
	if data["name"] != "Ada" || !ok || len(items) != 2 {
		t.Fatalf("unexpected data: %#v", data)
	}
}

func TestNormalizeConvertsYAMLToCanonicalJSON(t *testing.T) {
	encoded, err := jobspec.Normalize([]byte("template:\n  content_id: tpl\noutput_format: DOCX\n"))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	spec, err := jobspec.Parse(encoded)
	if err != nil {
		t.Fatalf("Parse of normalized payload failed: %v", err)
	}
	if spec.OutputFormat != jobspec.FormatDOCX || spec.Data == nil {
		t.Fatalf("unexpected normalized spec: %+v", spec)
	}
	if _, err := jobspec.Normalize([]byte("{")); !services.IsKind(err, services.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
