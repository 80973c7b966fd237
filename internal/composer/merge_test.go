package composer_test

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"docbatch/internal/composer"
	"docbatch/internal/services"
	"docbatch/internal/testsupport"
)

func mergeText(t *testing.T, opts composer.Options, template []byte, data map[string]any) []string {
	t.Helper()
	out, err := composer.New(opts, nil).Merge(context.Background(), template, data)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	text, err := composer.Text(out)
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	return text
}

func assertText(t *testing.T, got []string, want ...string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected text\n got: %q\nwant: %q", got, want)
	}
}

func TestMergeFieldsAndPaths(t *testing.T) {
	tpl := testsupport.NewDocx().
		Paragraph("Dear {name},").
		Paragraph("City: {address.city}").
		Paragraph("Total: {total}").
		Build(t)
	data := map[string]any{
		"name":    "Ada",
		"address": map[string]any{"city": "London"},
		"total":   json.Number("12.50"),
	}
	assertText(t, mergeText(t, composer.Options{}, tpl, data), "Dear Ada,", "City: London", "Total: 12.50")
}

func TestMergeTagSplitAcrossRuns(t *testing.T) {
	tpl := testsupport.NewDocx().Paragraph("Hello {na", "me}", "!").Build(t)
	assertText(t, mergeText(t, composer.Options{}, tpl, map[string]any{"name": "Ada"}), "Hello Ada!")
}

func TestMergeMissingFieldRendersEmptyUnlessStrict(t *testing.T) {
	tpl := testsupport.NewDocx().Paragraph("Hi {missing}.").Build(t)
	assertText(t, mergeText(t, composer.Options{}, tpl, map[string]any{}), "Hi .")

	_, err := composer.New(composer.Options{StrictFields: true}, nil).Merge(context.Background(), tpl, map[string]any{})
	if !services.IsKind(err, services.KindMergeField) {
		t.Fatalf("expected merge field error, got %v", err)
	}
}

func TestMergeParagraphLoop(t *testing.T) {
	tpl := testsupport.NewDocx().
		Paragraph("Items:").
		Paragraph("{#items}").
		Paragraph("- {name} x{qty}").
		Paragraph("{/items}").
		Paragraph("end").
		Build(t)
	data := map[string]any{
		"items": []any{
			map[string]any{"name": "pen", "qty": json.Number("2")},
			map[string]any{"name": "ink", "qty": json.Number("1")},
		},
	}
	assertText(t, mergeText(t, composer.Options{}, tpl, data), "Items:", "- pen x2", "- ink x1", "end")
}

func TestMergeInlineLoopAndScopes(t *testing.T) {
	tpl := testsupport.NewDocx().Paragraph("{owner}: {#tags}{.}/{owner} {/tags}done").Build(t)
	data := map[string]any{"owner": "ops", "tags": []any{"a", "b"}}
	assertText(t, mergeText(t, composer.Options{}, tpl, data), "ops: a/ops b/ops done")
}

func TestMergeConditionalAndInverted(t *testing.T) {
	tpl := testsupport.NewDocx().
		Paragraph("{#vip}VIP {name}{/vip}{^vip}Regular{/vip}").
		Paragraph("{^orders}No orders{/orders}").
		Build(t)

	assertText(t, mergeText(t, composer.Options{}, tpl, map[string]any{"vip": true, "name": "Ada", "orders": []any{}}),
		"VIP Ada", "No orders")
	assertText(t, mergeText(t, composer.Options{}, tpl, map[string]any{"vip": false, "orders": []any{"x"}}),
		"Regular", "")
}

func TestMergeTableRowLoop(t *testing.T) {
	tpl := testsupport.NewDocx().
		Table(
			[]string{"Name", "Qty"},
			[]string{"{#rows}{name}", "{qty}{/rows}"},
		).
		Build(t)
	data := map[string]any{
		"rows": []any{
			map[string]any{"name": "a", "qty": json.Number("1")},
			map[string]any{"name": "b", "qty": json.Number("2")},
		},
	}
	assertText(t, mergeText(t, composer.Options{}, tpl, data), "Name", "Qty", "a", "1", "b", "2")
}

func TestMergeHeaderAndHyperlink(t *testing.T) {
	tpl := testsupport.NewDocx().
		Header("Invoice {number}").
		Hyperlink("https://example.com", "Pay {name}").
		Build(t)
	out, err := composer.New(composer.Options{}, nil).Merge(context.Background(), tpl, map[string]any{"number": json.Number("42"), "name": "Ada"})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	header, err := composer.PartText(out, "word/header1.xml")
	if err != nil {
		t.Fatalf("PartText failed: %v", err)
	}
	assertText(t, header, "Invoice 42")

	body, err := composer.Text(out)
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	assertText(t, body, "Pay Ada")
}

func TestMergeMultilineValue(t *testing.T) {
	tpl := testsupport.NewDocx().Paragraph("{address}").Build(t)
	assertText(t, mergeText(t, composer.Options{}, tpl, map[string]any{"address": "1 Main St\nSpringfield"}), "1 Main St\nSpringfield")
}

func TestMergeRejectsMalformedTags(t *testing.T) {
	cases := map[string]*testsupport.DocxBuilder{
		"unclosed inline":    testsupport.NewDocx().Paragraph("{#a}x"),
		"mismatched":         testsupport.NewDocx().Paragraph("{#a}x{/b}"),
		"stray close":        testsupport.NewDocx().Paragraph("{/a}"),
		"unclosed paragraph": testsupport.NewDocx().Paragraph("{#a}").Paragraph("x"),
		"empty tag":          testsupport.NewDocx().Paragraph("{ }"),
		"unterminated":       testsupport.NewDocx().Paragraph("{name"),
	}
	for name, builder := range cases {
		_, err := composer.New(composer.Options{}, nil).Merge(context.Background(), builder.Build(t), map[string]any{"a": true})
		if !services.IsKind(err, services.KindMergeField) {
			t.Fatalf("%s: expected merge field error, got %v", name, err)
		}
		if services.Retryable(services.KindOf(err)) {
			t.Fatalf("%s: merge field errors must not be retryable", name)
		}
	}
}

func TestMergeRejectsInvalidPackages(t *testing.T) {
	cases := map[string][]byte{
		"not zip":     []byte("plain text"),
		"no document": testsupport.Zip(t, map[string]string{"word/styles.xml": "<w:styles/>"}),
		"bad xml":     testsupport.Zip(t, map[string]string{"word/document.xml": "<w:document><w:body>"}),
	}
	for name, data := range cases {
		_, err := composer.New(composer.Options{}, nil).Merge(context.Background(), data, nil)
		if !services.IsKind(err, services.KindTemplateInvalidFormat) {
			t.Fatalf("%s: expected invalid format, got %v", name, err)
		}
	}
}

func TestMergeImageAllowlist(t *testing.T) {
	opts := composer.Options{ImageAllowlist: []string{"*.images.example.com", "static.example.org"}}
	m := composer.New(opts, nil)

	allowed := testsupport.NewDocx().
		ExternalImage("https://cdn.images.example.com/logo.png").
		ExternalImage("https://static.example.org/x.png").
		Image("local.png", []byte("png")).
		Build(t)
	if _, err := m.Merge(context.Background(), allowed, nil); err != nil {
		t.Fatalf("expected allowed hosts to merge, got %v", err)
	}

	blocked := testsupport.NewDocx().ExternalImage("https://evil.example.net/x.png").Build(t)
	_, err := m.Merge(context.Background(), blocked, nil)
	if !services.IsKind(err, services.KindValidation) {
		t.Fatalf("expected validation error for blocked host, got %v", err)
	}
	if services.Retryable(services.KindOf(err)) {
		t.Fatalf("blocked host must not be retryable: %v", err)
	}

	if _, err := composer.New(composer.Options{}, nil).Merge(context.Background(), blocked, nil); err != nil {
		t.Fatalf("expected empty allowlist to skip the check, got %v", err)
	}
}
