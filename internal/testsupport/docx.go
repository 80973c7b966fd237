package testsupport

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"
)

// DocxBuilder assembles minimal WordprocessingML packages for tests.
type DocxBuilder struct {
	body      []string
	rels      []string
	media     map[string][]byte
	header    string
	headerRef string
	sectPr    bool
	sectType  string
	nextRel   int
}

type docxPart struct {
	name string
	data []byte
}

// NewDocx starts an empty document.
func NewDocx() *DocxBuilder {
	return &DocxBuilder{media: make(map[string][]byte), nextRel: 1}
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func runXML(text string) string {
	return `<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">` + xmlEscaper.Replace(text) + `</w:t></w:r>`
}

func paragraphXML(runs ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, r := range runs {
		b.WriteString(runXML(r))
	}
	b.WriteString("</w:p>")
	return b.String()
}

// Paragraph appends a paragraph with one run per argument, so a tag can be
// split across runs the way Word does it.
func (b *DocxBuilder) Paragraph(runs ...string) *DocxBuilder {
	b.body = append(b.body, paragraphXML(runs...))
	return b
}

// Table appends a table; each row is a list of cell texts.
func (b *DocxBuilder) Table(rows ...[]string) *DocxBuilder {
	var sb strings.Builder
	sb.WriteString("<w:tbl><w:tblPr/><w:tblGrid/>")
	for _, row := range rows {
		sb.WriteString("<w:tr>")
		for _, cell := range row {
			sb.WriteString("<w:tc>" + paragraphXML(cell) + "</w:tc>")
		}
		sb.WriteString("</w:tr>")
	}
	sb.WriteString("</w:tbl>")
	b.body = append(b.body, sb.String())
	return b
}

// Header adds a default header containing one paragraph.
func (b *DocxBuilder) Header(text string) *DocxBuilder {
	b.header = text
	b.headerRef = b.addRel(relHeader, "header1.xml", "")
	b.sectPr = true
	return b
}

// SectionProperties adds a trailing body-level section properties element.
func (b *DocxBuilder) SectionProperties() *DocxBuilder {
	b.sectPr = true
	return b
}

// SectionType gives the body-level section properties an explicit w:type.
func (b *DocxBuilder) SectionType(typ string) *DocxBuilder {
	b.sectPr = true
	b.sectType = typ
	return b
}

// SectionBreak appends an empty paragraph that closes a section of type typ.
func (b *DocxBuilder) SectionBreak(typ string) *DocxBuilder {
	b.body = append(b.body, `<w:p><w:pPr><w:sectPr><w:type w:val="`+typ+`"/></w:sectPr></w:pPr></w:p>`)
	return b
}

func (b *DocxBuilder) addRel(typ, target, mode string) string {
	id := fmt.Sprintf("rId%d", b.nextRel)
	b.nextRel++
	rel := fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="%s"`, id, typ, xmlEscaper.Replace(target))
	if mode != "" {
		rel += fmt.Sprintf(` TargetMode="%s"`, mode)
	}
	b.rels = append(b.rels, rel+"/>")
	return id
}

func drawingXML(attr, id string) string {
	return `<w:p><w:r><w:drawing><wp:inline><a:graphic><a:graphicData><pic:pic><pic:blipFill>` +
		`<a:blip ` + attr + `="` + id + `"/></pic:blipFill></pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`
}

// Image embeds a media part and a paragraph that displays it.
func (b *DocxBuilder) Image(name string, data []byte) *DocxBuilder {
	id := b.addRel(relImage, "media/"+name, "")
	b.media["word/media/"+name] = data
	b.body = append(b.body, drawingXML("r:embed", id))
	return b
}

// ExternalImage adds a paragraph displaying a linked image at url.
func (b *DocxBuilder) ExternalImage(url string) *DocxBuilder {
	id := b.addRel(relImage, url, "External")
	b.body = append(b.body, drawingXML("r:link", id))
	return b
}

// BrokenImage adds an image paragraph whose r:embed names a relationship the
// package does not define.
func (b *DocxBuilder) BrokenImage(id string) *DocxBuilder {
	b.body = append(b.body, drawingXML("r:embed", id))
	return b
}

// Hyperlink adds a paragraph holding a hyperlink run with the given text.
func (b *DocxBuilder) Hyperlink(url, text string) *DocxBuilder {
	id := b.addRel(relHyperlink, url, "External")
	b.body = append(b.body, `<w:p><w:hyperlink r:id="`+id+`">`+runXML(text)+`</w:hyperlink></w:p>`)
	return b
}

const (
	nsDecls = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
		`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"`
	relImage     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relHyperlink = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	relHeader    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"
	relOffice    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	xmlDecl      = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

// Build returns the packaged document.
func (b *DocxBuilder) Build(t testing.TB) []byte {
	t.Helper()

	var headerRef string
	if b.header != "" {
		headerRef = `<w:headerReference w:type="default" r:id="` + b.headerRef + `"/>`
	}

	var doc strings.Builder
	doc.WriteString(xmlDecl)
	doc.WriteString(`<w:document ` + nsDecls + `><w:body>`)
	for _, block := range b.body {
		doc.WriteString(block)
	}
	if b.sectPr {
		var typ string
		if b.sectType != "" {
			typ = `<w:type w:val="` + b.sectType + `"/>`
		}
		doc.WriteString(`<w:sectPr>` + headerRef + typ + `<w:pgSz w:w="12240" w:h="15840"/></w:sectPr>`)
	}
	doc.WriteString(`</w:body></w:document>`)

	types := xmlDecl + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`
	if b.header != "" {
		types += `<Override PartName="/word/header1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"/>`
	}
	types += `</Types>`

	parts := []docxPart{
		{"[Content_Types].xml", []byte(types)},
		{"_rels/.rels", []byte(xmlDecl + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="` + relOffice + `" Target="word/document.xml"/></Relationships>`)},
		{"word/document.xml", []byte(doc.String())},
		{"word/_rels/document.xml.rels", []byte(xmlDecl + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			strings.Join(b.rels, "") + `</Relationships>`)},
	}
	if b.header != "" {
		parts = append(parts, docxPart{"word/header1.xml", []byte(xmlDecl + `<w:hdr ` + nsDecls + `>` + paragraphXML(b.header) + `</w:hdr>`)})
	}
	for name, data := range b.media {
		parts = append(parts, docxPart{name, data})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			t.Fatalf("create %s: %v", part.name, err)
		}
		if _, err := w.Write(part.data); err != nil {
			t.Fatalf("write %s: %v", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close docx: %v", err)
	}
	return buf.Bytes()
}

// Zip packages arbitrary parts, for malformed-package tests.
func Zip(t testing.TB, parts map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
