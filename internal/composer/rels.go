package composer

import (
	"fmt"

	"github.com/beevik/etree"
)

type relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

type relationships struct {
	name string
	doc  *etree.Document
	byID map[string]*etree.Element
}

func (p *pkg) relationships(op, owner string) (*relationships, error) {
	name := relsPartFor(owner)
	r := &relationships{name: name, byID: make(map[string]*etree.Element)}
	if _, ok := p.parts[name]; !ok {
		r.doc = etree.NewDocument()
		r.doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
		root := r.doc.CreateElement("Relationships")
		root.CreateAttr("xmlns", nsRelationships)
		return r, nil
	}
	doc, err := p.parseXML(op, name)
	if err != nil {
		return nil, err
	}
	r.doc = doc
	for _, el := range doc.Root().SelectElements("Relationship") {
		r.byID[el.SelectAttrValue("Id", "")] = el
	}
	return r, nil
}

func (r *relationships) get(id string) (relationship, bool) {
	el, ok := r.byID[id]
	if !ok {
		return relationship{}, false
	}
	return relationshipFrom(el), true
}

func (r *relationships) all() []relationship {
	els := r.doc.Root().SelectElements("Relationship")
	out := make([]relationship, 0, len(els))
	for _, el := range els {
		out = append(out, relationshipFrom(el))
	}
	return out
}

// add appends rel under a fresh identifier and returns it.
func (r *relationships) add(rel relationship) string {
	id := ""
	for n := len(r.byID) + 1; ; n++ {
		id = fmt.Sprintf("rId%d", n)
		if _, taken := r.byID[id]; !taken {
			break
		}
	}
	el := r.doc.Root().CreateElement("Relationship")
	el.CreateAttr("Id", id)
	el.CreateAttr("Type", rel.Type)
	el.CreateAttr("Target", rel.Target)
	if rel.TargetMode != "" {
		el.CreateAttr("TargetMode", rel.TargetMode)
	}
	r.byID[id] = el
	return id
}

func (r *relationships) save(p *pkg) error {
	return p.putXML(r.name, r.doc)
}

func relationshipFrom(el *etree.Element) relationship {
	return relationship{
		ID:         el.SelectAttrValue("Id", ""),
		Type:       el.SelectAttrValue("Type", ""),
		Target:     el.SelectAttrValue("Target", ""),
		TargetMode: el.SelectAttrValue("TargetMode", ""),
	}
}
