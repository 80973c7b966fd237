package textutil_test

import (
	"testing"

	"docbatch/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"  Q3 report ":     "Q3 report",
		"a/b\\c:d*e":       "a-b-c-d-e",
		`what?"<x>|`:       "whatx",
		"../../etc/passwd": "-..-etc-passwd",
		".hidden":          "hidden",
		"":                 "",
	}
	for in, want := range cases {
		if got := textutil.SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOutputBase(t *testing.T) {
	cases := []struct {
		name, fallback, want string
	}{
		{"invoice.PDF", "item-1", "invoice"},
		{"letter.docx", "item-1", "letter"},
		{"archive.tar", "item-1", "archive.tar"},
		{"  ", "item-7", "item-7"},
		{".pdf", "item-2", "pdf"},
	}
	for _, tc := range cases {
		if got := textutil.OutputBase(tc.name, tc.fallback); got != tc.want {
			t.Fatalf("OutputBase(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
