package composer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"

	"docbatch/internal/logging"
	"docbatch/internal/services"
)

// Options controls merge behavior.
type Options struct {
	// StrictFields fails the merge on field references the data does not
	// resolve. Otherwise they render empty.
	StrictFields bool
	// ImageAllowlist restricts the hosts external images may point at.
	// Entries are exact host names or "*.example.com" suffix patterns. An
	// empty list disables the check.
	ImageAllowlist []string
}

// Composer merges templates and concatenates merged documents.
type Composer struct {
	opts   Options
	logger *slog.Logger
}

// New builds a Composer.
func New(opts Options, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Composer{opts: opts, logger: logging.NewComponentLogger(logger, "composer")}
}

// Merge fills template with data and returns the merged DOCX bytes.
func (c *Composer) Merge(ctx context.Context, template []byte, data map[string]any) ([]byte, error) {
	const op = "merge"
	start := time.Now()

	p, err := readPackage(op, template)
	if err != nil {
		return nil, err
	}
	if err := c.checkImages(op, p); err != nil {
		return nil, err
	}

	m := &merger{strict: c.opts.StrictFields}
	root := &scope{value: data}
	parts := []string{partDocument}
	parts = append(parts, p.matching("word/header*.xml")...)
	parts = append(parts, p.matching("word/footer*.xml")...)
	for _, name := range parts {
		doc, err := p.parseXML(op, name)
		if err != nil {
			return nil, err
		}
		if err := m.renderContainer(doc.Root(), root); err != nil {
			return nil, err
		}
		if err := p.putXML(name, doc); err != nil {
			return nil, services.Wrap(services.KindMerge, op, "write "+name, err)
		}
	}

	out, err := p.bytes()
	if err != nil {
		return nil, services.Wrap(services.KindMerge, op, "repack document", err)
	}
	logging.WithContext(ctx, c.logger).Debug("template merged",
		logging.Int("parts", len(parts)),
		logging.Int("fields", m.fields),
		logging.Int("bytes", len(out)),
		logging.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (c *Composer) checkImages(op string, p *pkg) error {
	if len(c.opts.ImageAllowlist) == 0 {
		return nil
	}
	for _, name := range p.matching("word/_rels/*.rels") {
		owner := strings.TrimSuffix(strings.Replace(name, "_rels/", "", 1), ".rels")
		rels, err := p.relationships(op, owner)
		if err != nil {
			return err
		}
		for _, rel := range rels.all() {
			if rel.Type != relTypeImage || rel.TargetMode != "External" {
				continue
			}
			u, err := url.Parse(rel.Target)
			if err != nil {
				return services.Wrap(services.KindValidation, op, "external image target "+rel.Target+" is not a url", err)
			}
			if !hostAllowed(u.Hostname(), c.opts.ImageAllowlist) {
				return services.Wrap(services.KindValidation, op, fmt.Sprintf("image host %q is not allowed", u.Hostname()), nil)
			}
		}
	}
	return nil
}

func hostAllowed(host string, allowlist []string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}
	for _, entry := range allowlist {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == host {
			return true
		}
		if suffix, ok := strings.CutPrefix(entry, "*"); ok && strings.HasPrefix(suffix, ".") && strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

type tag struct {
	op   byte // 0 for fields, otherwise '#', '^', or '/'
	name string
}

func (t tag) String() string {
	if t.op == 0 {
		return "{" + t.name + "}"
	}
	return "{" + string(t.op) + t.name + "}"
}

func (t tag) opens() bool {
	return t.op == '#' || t.op == '^'
}

func parseTag(raw string) (tag, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return tag{}, mergeFieldErr("empty tag {}")
	}
	switch body[0] {
	case '#', '^', '/':
		name := strings.TrimSpace(body[1:])
		if name == "" {
			return tag{}, mergeFieldErr("tag {%s} has no name", body)
		}
		return tag{op: body[0], name: name}, nil
	}
	return tag{name: body}, nil
}

type nodeKind int

const (
	nodeText nodeKind = iota
	nodeOpaque
	nodeField
	nodeBlock
)

type node struct {
	kind     nodeKind
	seg      segment
	tag      tag
	children []*node
}

func buildTree(segs []segment) ([]*node, error) {
	root := &node{}
	stack := []*node{root}
	for _, s := range segs {
		top := stack[len(stack)-1]
		switch s.kind {
		case segText:
			top.children = append(top.children, &node{kind: nodeText, seg: s})
		case segOpaque:
			top.children = append(top.children, &node{kind: nodeOpaque, seg: s})
		case segTag:
			t, err := parseTag(s.text)
			if err != nil {
				return nil, err
			}
			switch {
			case t.op == 0:
				top.children = append(top.children, &node{kind: nodeField, seg: s, tag: t})
			case t.opens():
				n := &node{kind: nodeBlock, seg: s, tag: t}
				top.children = append(top.children, n)
				stack = append(stack, n)
			default:
				if len(stack) == 1 {
					return nil, mergeFieldErr("%s has no matching opening tag", t)
				}
				if top.tag.name != t.name {
					return nil, mergeFieldErr("%s closes %s", t, top.tag)
				}
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) > 1 {
		return nil, mergeFieldErr("%s is never closed", stack[len(stack)-1].tag)
	}
	return root.children, nil
}

type merger struct {
	strict bool
	fields int
}

// scopes returns one scope per rendering of a block: one per list element for
// loops, one for a truthy value, none for a falsy one. Inverted blocks render
// once in the enclosing scope when the value is falsy.
func (m *merger) scopes(t tag, sc *scope) []*scope {
	v, ok := sc.lookup(t.name)
	if t.op == '^' {
		if !ok || !truthy(v) {
			return []*scope{sc}
		}
		return nil
	}
	if !ok {
		return nil
	}
	if list, isList := asList(v); isList {
		out := make([]*scope, len(list))
		for i, item := range list {
			out[i] = sc.child(item)
		}
		return out
	}
	if truthy(v) {
		return []*scope{sc.child(v)}
	}
	return nil
}

func (m *merger) render(nodes []*node, sc *scope, out []segment) ([]segment, error) {
	var err error
	for _, n := range nodes {
		switch n.kind {
		case nodeText:
			out = append(out, n.seg)
		case nodeOpaque:
			el := n.seg.el.Copy()
			if n.seg.run == nil && isRunContainer(el) {
				if err := m.renderParagraph(el, sc); err != nil {
					return nil, err
				}
			}
			out = append(out, segment{kind: segOpaque, el: el, run: n.seg.run})
		case nodeField:
			v, ok := sc.lookup(n.tag.name)
			if !ok && m.strict {
				return nil, mergeFieldErr("field %s does not resolve", n.tag)
			}
			m.fields++
			out = append(out, segment{kind: segText, text: formatValue(v), run: n.seg.run})
		case nodeBlock:
			for _, child := range m.scopes(n.tag, sc) {
				if out, err = m.render(n.children, child, out); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func (m *merger) renderParagraph(el *etree.Element, sc *scope) error {
	p, err := readParagraph(el)
	if err != nil {
		return err
	}
	if !p.hasTags() {
		return nil
	}
	nodes, err := buildTree(p.segs)
	if err != nil {
		return err
	}
	out, err := m.render(nodes, sc, nil)
	if err != nil {
		return err
	}
	p.write(out)
	return nil
}

func detach(parent *etree.Element) []etree.Token {
	kids := append([]etree.Token(nil), parent.Child...)
	for i := len(parent.Child) - 1; i >= 0; i-- {
		parent.RemoveChildAt(i)
	}
	return kids
}

func attach(parent *etree.Element, tokens []etree.Token) {
	for _, tok := range tokens {
		parent.AddChild(tok)
	}
}

func (m *merger) renderContainer(parent *etree.Element, sc *scope) error {
	out, err := m.renderBlocks(detach(parent), sc)
	if err != nil {
		return err
	}
	attach(parent, out)
	return nil
}

// renderBlocks renders a run of block-level siblings, expanding paragraph
// blocks whose tags sit alone in their own paragraphs.
func (m *merger) renderBlocks(kids []etree.Token, sc *scope) ([]etree.Token, error) {
	var out []etree.Token
	for i := 0; i < len(kids); i++ {
		el, ok := kids[i].(*etree.Element)
		if !ok {
			out = append(out, kids[i])
			continue
		}
		switch {
		case isW(el, "p"):
			t, sole, err := soleBlockTag(el)
			if err != nil {
				return nil, err
			}
			if sole {
				if !t.opens() {
					return nil, mergeFieldErr("%s has no matching opening tag", t)
				}
				end, err := matchParagraphBlock(kids, i, t)
				if err != nil {
					return nil, err
				}
				for _, child := range m.scopes(t, sc) {
					rendered, err := m.renderBlocks(copyElements(kids[i+1:end]), child)
					if err != nil {
						return nil, err
					}
					out = append(out, rendered...)
				}
				i = end
				continue
			}
			if err := m.renderParagraph(el, sc); err != nil {
				return nil, err
			}
		case isW(el, "tbl"):
			if err := m.renderTable(el, sc); err != nil {
				return nil, err
			}
		case isW(el, "sectPr"):
		case len(el.ChildElements()) > 0:
			if err := m.renderContainer(el, sc); err != nil {
				return nil, err
			}
		}
		out = append(out, el)
	}
	return out, nil
}

// soleBlockTag reports whether a paragraph holds nothing but one block tag.
func soleBlockTag(el *etree.Element) (tag, bool, error) {
	p, err := readParagraph(el)
	if err != nil {
		return tag{}, false, err
	}
	var found *segment
	for i := range p.segs {
		s := &p.segs[i]
		switch s.kind {
		case segText:
			if strings.TrimSpace(s.text) != "" {
				return tag{}, false, nil
			}
		case segOpaque:
			if !ignorable(s.el) {
				return tag{}, false, nil
			}
		case segTag:
			if found != nil {
				return tag{}, false, nil
			}
			found = s
		}
	}
	if found == nil {
		return tag{}, false, nil
	}
	t, err := parseTag(found.text)
	if err != nil {
		return tag{}, false, err
	}
	if t.op == 0 {
		return tag{}, false, nil
	}
	return t, true, nil
}

func matchParagraphBlock(kids []etree.Token, start int, open tag) (int, error) {
	stack := []tag{open}
	for j := start + 1; j < len(kids); j++ {
		el, ok := kids[j].(*etree.Element)
		if !ok || !isW(el, "p") {
			continue
		}
		t, sole, err := soleBlockTag(el)
		if err != nil {
			return 0, err
		}
		if !sole {
			continue
		}
		if t.opens() {
			stack = append(stack, t)
			continue
		}
		top := stack[len(stack)-1]
		if top.name != t.name {
			return 0, mergeFieldErr("%s closes %s", t, top)
		}
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return j, nil
		}
	}
	return 0, mergeFieldErr("%s is never closed", open)
}

func copyElements(tokens []etree.Token) []etree.Token {
	out := make([]etree.Token, 0, len(tokens))
	for _, tok := range tokens {
		if el, ok := tok.(*etree.Element); ok {
			out = append(out, el.Copy())
		}
	}
	return out
}
