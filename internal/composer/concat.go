package composer

import (
	"context"
	"fmt"
	"mime"
	"path"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"docbatch/internal/logging"
	"docbatch/internal/services"
)

// Section is one merged document and its position in the combined output.
type Section struct {
	Sequence int
	Document []byte
}

// Concat joins sections in ascending sequence order (stable for ties) into
// the package of the first section. A single section is returned unchanged.
func (c *Composer) Concat(ctx context.Context, sections []Section) ([]byte, error) {
	const op = "concat"
	if len(sections) == 0 {
		return nil, services.Wrap(services.KindMerge, op, "no sections to concatenate", nil)
	}
	ordered := make([]Section, len(sections))
	copy(ordered, sections)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})
	if len(ordered) == 1 {
		return ordered[0].Document, nil
	}

	base, err := readPackage(op, ordered[0].Document)
	if err != nil {
		return nil, err
	}
	baseDoc, err := base.parseXML(op, partDocument)
	if err != nil {
		return nil, err
	}
	baseBody := baseDoc.Root().SelectElement("w:body")
	if baseBody == nil {
		return nil, services.Wrap(services.KindTemplateInvalidFormat, op, "first section has no body", nil)
	}
	baseRels, err := base.relationships(op, partDocument)
	if err != nil {
		return nil, err
	}
	baseTypes, err := base.parseXML(op, partContentTypes)
	if err != nil {
		return nil, err
	}

	content, baseSectPr := splitBody(baseBody)
	merged := withSectionBreak(content, baseSectPr)
	var final *etree.Element
	if baseSectPr != nil {
		final = baseSectPr.Copy()
	}

	for idx, sec := range ordered[1:] {
		src, err := readPackage(op, sec.Document)
		if err != nil {
			return nil, err
		}
		doc, err := src.parseXML(op, partDocument)
		if err != nil {
			return nil, err
		}
		body := doc.Root().SelectElement("w:body")
		if body == nil {
			return nil, services.Wrap(services.KindTemplateInvalidFormat, op, fmt.Sprintf("section %d has no body", sec.Sequence), nil)
		}
		rels, err := src.relationships(op, partDocument)
		if err != nil {
			return nil, err
		}
		copyNamespaces(doc.Root(), baseDoc.Root())

		imp := &importer{
			op:       op,
			src:      src,
			srcRels:  rels,
			dst:      base,
			dstRels:  baseRels,
			dstTypes: baseTypes,
			prefix:   fmt.Sprintf("s%d_", idx+2),
			seen:     make(map[string]string),
		}
		content, sectPr := splitBody(body)
		for _, tok := range content {
			if err := imp.remap(tok.(*etree.Element)); err != nil {
				return nil, err
			}
		}
		if sectPr != nil {
			stripHeaderRefs(sectPr)
		}
		if idx < len(ordered)-2 {
			content = withSectionBreak(content, sectPr)
		} else if sectPr != nil {
			final = sectPr
		}
		merged = append(merged, content...)
	}

	attach(baseBody, merged)
	if final != nil {
		setNextPage(final)
		baseBody.AddChild(final)
	}
	if err := base.putXML(partDocument, baseDoc); err != nil {
		return nil, services.Wrap(services.KindMerge, op, "write document", err)
	}
	if err := baseRels.save(base); err != nil {
		return nil, services.Wrap(services.KindMerge, op, "write relationships", err)
	}
	if err := base.putXML(partContentTypes, baseTypes); err != nil {
		return nil, services.Wrap(services.KindMerge, op, "write content types", err)
	}
	out, err := base.bytes()
	if err != nil {
		return nil, services.Wrap(services.KindMerge, op, "repack document", err)
	}
	logging.WithContext(ctx, c.logger).Debug("sections concatenated",
		logging.Int("sections", len(ordered)),
		logging.Int("bytes", len(out)),
	)
	return out, nil
}

// splitBody detaches the body children, separating the trailing section
// properties from the content blocks.
func splitBody(body *etree.Element) ([]etree.Token, *etree.Element) {
	var (
		content []etree.Token
		sectPr  *etree.Element
	)
	for _, tok := range detach(body) {
		el, ok := tok.(*etree.Element)
		if !ok {
			continue
		}
		if isW(el, "sectPr") {
			sectPr = el
			continue
		}
		content = append(content, el)
	}
	return content, sectPr
}

// withSectionBreak makes the last block of content close a section. A
// sectPr's w:type sets how the section it closes starts, so every closer,
// existing or inserted, is forced to nextPage.
func withSectionBreak(content []etree.Token, sectPr *etree.Element) []etree.Token {
	if n := len(content); n > 0 {
		if last, ok := content[n-1].(*etree.Element); ok && isW(last, "p") {
			if pPr := last.SelectElement("w:pPr"); pPr != nil {
				if existing := pPr.SelectElement("w:sectPr"); existing != nil {
					setNextPage(existing)
					return content
				}
			}
		}
	}
	var props *etree.Element
	if sectPr != nil {
		props = sectPr.Copy()
	} else {
		props = etree.NewElement("w:sectPr")
	}
	setNextPage(props)

	brk := etree.NewElement("w:p")
	brk.CreateElement("w:pPr").AddChild(props)
	return append(content, brk)
}

// setNextPage sets the section type, keeping schema order: references and
// note properties precede w:type.
func setNextPage(sectPr *etree.Element) {
	typ := sectPr.SelectElement("w:type")
	if typ == nil {
		idx := 0
		for i, tok := range sectPr.Child {
			if el, ok := tok.(*etree.Element); ok {
				switch {
				case isW(el, "headerReference"), isW(el, "footerReference"), isW(el, "footnotePr"), isW(el, "endnotePr"):
					idx = i + 1
				}
			}
		}
		typ = etree.NewElement("w:type")
		sectPr.InsertChildAt(idx, typ)
	}
	typ.CreateAttr("w:val", "nextPage")
}

func stripHeaderRefs(sectPr *etree.Element) {
	for _, el := range sectPr.ChildElements() {
		if isW(el, "headerReference") || isW(el, "footerReference") || isW(el, "titlePg") {
			sectPr.RemoveChild(el)
		}
	}
}

func copyNamespaces(from, to *etree.Element) {
	for _, attr := range from.Attr {
		if attr.Space != "xmlns" {
			continue
		}
		if to.SelectAttr(attr.FullKey()) == nil {
			to.CreateAttr(attr.FullKey(), attr.Value)
		}
	}
}

// importer copies the parts a later section references into the base package.
type importer struct {
	op       string
	src      *pkg
	srcRels  *relationships
	srcTypes *etree.Document
	dst      *pkg
	dstRels  *relationships
	dstTypes *etree.Document
	prefix   string
	seen     map[string]string
}

var relAttrKeys = map[string]bool{"id": true, "embed": true, "link": true, "pict": true}

func (imp *importer) remap(el *etree.Element) error {
	for _, sp := range el.FindElements(".//w:sectPr") {
		stripHeaderRefs(sp)
	}
	elements := append([]*etree.Element{el}, el.FindElements(".//*")...)
	for _, e := range elements {
		for i := range e.Attr {
			attr := &e.Attr[i]
			if attr.Space != "r" || !relAttrKeys[attr.Key] {
				continue
			}
			id, err := imp.relationship(attr.Value)
			if err != nil {
				return err
			}
			attr.Value = id
		}
	}
	return nil
}

func (imp *importer) relationship(oldID string) (string, error) {
	if id, ok := imp.seen[oldID]; ok {
		return id, nil
	}
	rel, ok := imp.srcRels.get(oldID)
	if !ok {
		return "", services.Wrap(services.KindTemplateInvalidFormat, imp.op, "dangling relationship "+oldID, nil)
	}
	if rel.TargetMode != "External" {
		srcPart := resolveTarget(partDocument, rel.Target)
		data, ok := imp.src.parts[srcPart]
		if !ok {
			return "", services.Wrap(services.KindMerge, imp.op, "missing part "+srcPart, nil)
		}
		dir, file := path.Split(srcPart)
		dstPart := dir + imp.prefix + file
		imp.dst.put(dstPart, data)
		if err := imp.ensureContentType(srcPart); err != nil {
			return "", err
		}
		rel.Target = strings.TrimPrefix(dstPart, "word/")
	}
	id := imp.dstRels.add(rel)
	imp.seen[oldID] = id
	return id, nil
}

// ensureContentType registers a default content type for the extension of
// srcPart in the base package when it has none yet.
func (imp *importer) ensureContentType(srcPart string) error {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(srcPart), "."))
	if ext == "" {
		return nil
	}
	root := imp.dstTypes.Root()
	for _, def := range root.SelectElements("Default") {
		if strings.EqualFold(def.SelectAttrValue("Extension", ""), ext) {
			return nil
		}
	}
	if imp.srcTypes == nil {
		doc, err := imp.src.parseXML(imp.op, partContentTypes)
		if err != nil {
			return err
		}
		imp.srcTypes = doc
	}
	contentType := ""
	for _, ov := range imp.srcTypes.Root().SelectElements("Override") {
		if ov.SelectAttrValue("PartName", "") == "/"+srcPart {
			contentType = ov.SelectAttrValue("ContentType", "")
		}
	}
	for _, def := range imp.srcTypes.Root().SelectElements("Default") {
		if contentType == "" && strings.EqualFold(def.SelectAttrValue("Extension", ""), ext) {
			contentType = def.SelectAttrValue("ContentType", "")
		}
	}
	if contentType == "" {
		contentType = mime.TypeByExtension("." + ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	def := etree.NewElement("Default")
	def.CreateAttr("Extension", ext)
	def.CreateAttr("ContentType", contentType)
	root.InsertChildAt(0, def)
	return nil
}
