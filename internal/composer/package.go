package composer

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/beevik/etree"

	"docbatch/internal/services"
)

const (
	partDocument     = "word/document.xml"
	partContentTypes = "[Content_Types].xml"

	nsRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"
	relTypeImage    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// pkg is an unpacked OPC container. names keeps the original part order so
// rewritten packages stay byte-stable where nothing changed.
type pkg struct {
	names []string
	parts map[string][]byte
}

func readPackage(op string, data []byte) (*pkg, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, services.Wrap(services.KindTemplateInvalidFormat, op, "document is not a zip package", err)
	}
	p := &pkg{parts: make(map[string][]byte, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, services.Wrap(services.KindTemplateInvalidFormat, op, "open part "+f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, services.Wrap(services.KindTemplateInvalidFormat, op, "read part "+f.Name, err)
		}
		p.names = append(p.names, f.Name)
		p.parts[f.Name] = body
	}
	if _, ok := p.parts[partDocument]; !ok {
		return nil, services.Wrap(services.KindTemplateInvalidFormat, op, "package has no "+partDocument, nil)
	}
	return p, nil
}

func (p *pkg) parseXML(op, name string) (*etree.Document, error) {
	raw, ok := p.parts[name]
	if !ok {
		return nil, services.Wrap(services.KindTemplateInvalidFormat, op, "package has no "+name, nil)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, services.Wrap(services.KindTemplateInvalidFormat, op, "parse "+name, err)
	}
	if doc.Root() == nil {
		return nil, services.Wrap(services.KindTemplateInvalidFormat, op, name+" has no root element", nil)
	}
	return doc, nil
}

func (p *pkg) putXML(name string, doc *etree.Document) error {
	body, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serialize %s: %w", name, err)
	}
	p.put(name, body)
	return nil
}

func (p *pkg) put(name string, data []byte) {
	if _, ok := p.parts[name]; !ok {
		p.names = append(p.names, name)
	}
	p.parts[name] = data
}

// matching returns part names that match a path.Match pattern, in package order.
func (p *pkg) matching(pattern string) []string {
	var out []string
	for _, name := range p.names {
		if ok, _ := path.Match(pattern, name); ok {
			out = append(out, name)
		}
	}
	return out
}

func (p *pkg) bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range p.names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("create part %s: %w", name, err)
		}
		if _, err := w.Write(p.parts[name]); err != nil {
			return nil, fmt.Errorf("write part %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish package: %w", err)
	}
	return buf.Bytes(), nil
}

// relsPartFor maps a part name to its relationship part,
// e.g. word/document.xml -> word/_rels/document.xml.rels.
func relsPartFor(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// resolveTarget turns a relationship target into a package part name relative
// to the part that owns the relationship.
func resolveTarget(owner, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(owner), target)
}
