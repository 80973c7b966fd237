package composer

import (
	"github.com/beevik/etree"
)

type tagRef struct {
	tag  tag
	para *paragraph
	seg  int
	cell *etree.Element
}

type rowBlock struct {
	tag tag
	end int
}

func (m *merger) renderTable(tbl *etree.Element, sc *scope) error {
	kids := detach(tbl)
	var out []etree.Token
	for i := 0; i < len(kids); i++ {
		row, ok := kids[i].(*etree.Element)
		if !ok || !isW(row, "tr") {
			if ok {
				if err := m.renderContainer(row, sc); err != nil {
					return err
				}
			}
			out = append(out, kids[i])
			continue
		}
		blk, err := findRowBlock(kids, i)
		if err != nil {
			return err
		}
		if blk == nil {
			if err := m.renderContainer(row, sc); err != nil {
				return err
			}
			out = append(out, row)
			continue
		}
		for _, child := range m.scopes(blk.tag, sc) {
			for _, tok := range copyElements(kids[i : blk.end+1]) {
				if err := m.renderContainer(tok.(*etree.Element), child); err != nil {
					return err
				}
				out = append(out, tok)
			}
		}
		i = blk.end
	}
	attach(tbl, out)
	return nil
}

func rowTags(row *etree.Element) ([]tagRef, error) {
	var refs []tagRef
	for _, cell := range row.SelectElements("w:tc") {
		for _, pel := range cell.FindElements(".//w:p") {
			p, err := readParagraph(pel)
			if err != nil {
				return nil, err
			}
			for idx, s := range p.segs {
				if s.kind != segTag {
					continue
				}
				t, err := parseTag(s.text)
				if err != nil {
					return nil, err
				}
				refs = append(refs, tagRef{tag: t, para: p, seg: idx, cell: cell})
			}
		}
	}
	return refs, nil
}

// findRowBlock detects a block that opens with the first tag of row start and
// closes in a different cell, possibly in a later row. The opening and
// closing tags are stripped from the template rows before they are repeated.
// A nil result means the row has no row-level block.
func findRowBlock(kids []etree.Token, start int) (*rowBlock, error) {
	first, err := rowTags(kids[start].(*etree.Element))
	if err != nil {
		return nil, err
	}
	if len(first) == 0 || !first[0].tag.opens() {
		return nil, nil
	}
	open := first[0]
	stack := []tag{open.tag}
	scan := first[1:]
	for j := start; j < len(kids); j++ {
		if j > start {
			row, ok := kids[j].(*etree.Element)
			if !ok || !isW(row, "tr") {
				continue
			}
			if scan, err = rowTags(row); err != nil {
				return nil, err
			}
		}
		for _, ref := range scan {
			switch {
			case ref.tag.op == 0:
			case ref.tag.opens():
				stack = append(stack, ref.tag)
			default:
				top := stack[len(stack)-1]
				if top.name != ref.tag.name {
					return nil, mergeFieldErr("%s closes %s", ref.tag, top)
				}
				stack = stack[:len(stack)-1]
				if len(stack) > 0 {
					continue
				}
				if ref.cell == open.cell {
					return nil, nil
				}
				open.para.removeSegment(open.seg)
				ref.para.removeSegment(ref.seg)
				return &rowBlock{tag: open.tag, end: j}, nil
			}
		}
	}
	// Unclosed: the cell renderer reports it.
	return nil, nil
}
