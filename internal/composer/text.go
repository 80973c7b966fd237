package composer

import "strings"

// Text returns the plain text of each paragraph in the main document part.
func Text(docx []byte) ([]string, error) {
	return PartText(docx, partDocument)
}

// PartText returns the plain text of each paragraph in the named package part,
// such as word/header1.xml.
func PartText(docx []byte, part string) ([]string, error) {
	p, err := readPackage("text", docx)
	if err != nil {
		return nil, err
	}
	doc, err := p.parseXML("text", part)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, para := range doc.FindElements(".//w:p") {
		var b strings.Builder
		for _, run := range para.FindElements(".//w:r") {
			for _, el := range run.ChildElements() {
				switch {
				case isW(el, "t"):
					b.WriteString(el.Text())
				case isW(el, "br"):
					b.WriteByte('\n')
				case isW(el, "tab"):
					b.WriteByte('\t')
				}
			}
		}
		out = append(out, b.String())
	}
	return out, nil
}
