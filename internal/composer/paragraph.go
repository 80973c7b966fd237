package composer

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"docbatch/internal/services"
)

type segKind int

const (
	segText segKind = iota
	segTag
	segOpaque
)

// segment is one piece of paragraph content. Text and tags remember the run
// they came from so output keeps that run's formatting; opaque segments are
// run children such as tabs and drawings (run set) or paragraph children such
// as bookmarks and hyperlinks (run nil).
type segment struct {
	kind segKind
	text string
	el   *etree.Element
	run  *etree.Element
}

type paragraph struct {
	el   *etree.Element
	pPr  *etree.Element
	segs []segment
}

func isW(el *etree.Element, tag string) bool {
	return el != nil && el.Space == "w" && el.Tag == tag
}

// readParagraph splits a paragraph (or any element whose children are runs)
// into segments. Tags may span several runs; each tag is attributed to the
// run holding its opening brace.
func readParagraph(el *etree.Element) (*paragraph, error) {
	p := &paragraph{el: el}
	var atoms []segment
	for _, child := range el.ChildElements() {
		switch {
		case isW(child, "pPr"):
			p.pPr = child
		case isW(child, "r"):
			for _, rc := range child.ChildElements() {
				switch {
				case isW(rc, "rPr"):
				case isW(rc, "t"):
					atoms = append(atoms, segment{kind: segText, text: rc.Text(), run: child})
				default:
					atoms = append(atoms, segment{kind: segOpaque, el: rc, run: child})
				}
			}
		default:
			atoms = append(atoms, segment{kind: segOpaque, el: child})
		}
	}
	segs, err := tokenize(atoms)
	if err != nil {
		return nil, err
	}
	p.segs = segs
	return p, nil
}

func tokenize(atoms []segment) ([]segment, error) {
	var (
		out    []segment
		lit    strings.Builder
		litRun *etree.Element
		tag    strings.Builder
		tagRun *etree.Element
		inTag  bool
	)
	flush := func() {
		if lit.Len() > 0 {
			out = append(out, segment{kind: segText, text: lit.String(), run: litRun})
			lit.Reset()
		}
	}
	for _, atom := range atoms {
		if atom.kind == segOpaque {
			// proofing marks and bookmarks Word drops inside a tag are discarded
			if inTag {
				continue
			}
			flush()
			out = append(out, atom)
			continue
		}
		for _, r := range atom.text {
			if inTag {
				switch r {
				case '}':
					out = append(out, segment{kind: segTag, text: tag.String(), run: tagRun})
					tag.Reset()
					inTag = false
				case '{':
					return nil, mergeFieldErr("tag {%s is missing its closing brace", tag.String())
				default:
					tag.WriteRune(r)
				}
				continue
			}
			if r == '{' {
				flush()
				inTag = true
				tagRun = atom.run
				continue
			}
			if lit.Len() > 0 && litRun != atom.run {
				flush()
			}
			litRun = atom.run
			lit.WriteRune(r)
		}
	}
	if inTag {
		return nil, mergeFieldErr("tag {%s is missing its closing brace", tag.String())
	}
	flush()
	return out, nil
}

func (p *paragraph) hasTags() bool {
	for _, s := range p.segs {
		if s.kind == segTag {
			return true
		}
		if s.kind == segOpaque && s.run == nil && isRunContainer(s.el) {
			return true
		}
	}
	return false
}

// write replaces the paragraph content with segs, keeping paragraph properties.
func (p *paragraph) write(segs []segment) {
	for i := len(p.el.Child) - 1; i >= 0; i-- {
		if el, ok := p.el.Child[i].(*etree.Element); ok && p.pPr != nil && el == p.pPr {
			continue
		}
		p.el.RemoveChildAt(i)
	}
	w := runWriter{parent: p.el}
	for _, s := range segs {
		w.write(s)
	}
	p.segs = segs
}

// removeSegment drops one segment and rewrites the paragraph.
func (p *paragraph) removeSegment(idx int) {
	segs := make([]segment, 0, len(p.segs)-1)
	segs = append(segs, p.segs[:idx]...)
	segs = append(segs, p.segs[idx+1:]...)
	p.write(segs)
}

// isRunContainer reports whether el holds runs of its own that need merging.
func isRunContainer(el *etree.Element) bool {
	return isW(el, "hyperlink") || isW(el, "smartTag") || isW(el, "ins") || isW(el, "fldSimple")
}

// ignorable reports paragraph children that carry no visible content.
func ignorable(el *etree.Element) bool {
	return isW(el, "proofErr") || isW(el, "bookmarkStart") || isW(el, "bookmarkEnd") || isW(el, "lastRenderedPageBreak")
}

type runWriter struct {
	parent *etree.Element
	cur    *etree.Element
	src    *etree.Element
}

func (w *runWriter) write(s segment) {
	switch s.kind {
	case segOpaque:
		if s.run == nil {
			w.parent.AddChild(s.el)
			w.cur, w.src = nil, nil
			return
		}
		w.ensure(s.run).AddChild(s.el)
	default:
		text := s.text
		if s.kind == segTag {
			text = "{" + text + "}"
		}
		if text == "" {
			return
		}
		appendText(w.ensure(s.run), text)
	}
}

func (w *runWriter) ensure(src *etree.Element) *etree.Element {
	if w.cur != nil && w.src == src {
		return w.cur
	}
	run := w.parent.CreateElement(src.FullTag())
	for _, attr := range src.Attr {
		run.CreateAttr(attr.FullKey(), attr.Value)
	}
	if rPr := src.SelectElement("w:rPr"); rPr != nil {
		run.AddChild(rPr.Copy())
	}
	w.cur, w.src = run, src
	return run
}

// appendText writes text into run, turning newlines into line breaks.
func appendText(run *etree.Element, text string) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			run.CreateElement("w:br")
		}
		if line == "" {
			continue
		}
		kids := run.ChildElements()
		if n := len(kids); n > 0 && isW(kids[n-1], "t") {
			kids[n-1].SetText(kids[n-1].Text() + line)
			continue
		}
		t := run.CreateElement("w:t")
		t.CreateAttr("xml:space", "preserve")
		t.SetText(line)
	}
}

func mergeFieldErr(format string, args ...any) error {
	return services.Wrap(services.KindMergeField, "merge", fmt.Sprintf(format, args...), nil)
}
