package textutil

import (
	"path/filepath"
	"strings"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// documentExts are stripped by OutputBase because the output format supplies
// the extension.
var documentExts = map[string]struct{}{
	".pdf":  {},
	".docx": {},
}

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. Leading dots are dropped so the result is never
// hidden or a relative path component.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
	return strings.TrimSpace(strings.TrimLeft(name, "."))
}

// OutputBase returns a sanitized base name for a generated document, without
// a trailing .pdf or .docx. fallback is used when nothing usable remains.
func OutputBase(name, fallback string) string {
	name = SanitizeFileName(name)
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := documentExts[ext]; ok {
		name = strings.TrimSpace(name[:len(name)-len(ext)])
	}
	if name == "" {
		return fallback
	}
	return name
}
