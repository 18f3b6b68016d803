package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// docxDocument accumulates WordprocessingML paragraphs. Formatting is done
// with direct run properties so no styles part is needed.
type docxDocument struct {
	body bytes.Buffer
}

func (d *docxDocument) paragraph(text string, bold bool, halfPoints int) {
	d.body.WriteString("<w:p>")
	for i, line := range strings.Split(text, "\n") {
		d.body.WriteString("<w:r>")
		if bold || halfPoints > 0 {
			d.body.WriteString("<w:rPr>")
			if bold {
				d.body.WriteString("<w:b/>")
			}
			if halfPoints > 0 {
				fmt.Fprintf(&d.body, `<w:sz w:val="%d"/>`, halfPoints)
			}
			d.body.WriteString("</w:rPr>")
		}
		if i > 0 {
			d.body.WriteString("<w:br/>")
		}
		d.body.WriteString(`<w:t xml:space="preserve">`)
		_ = xml.EscapeText(&d.body, []byte(line))
		d.body.WriteString("</w:t></w:r>")
	}
	d.body.WriteString("</w:p>")
}

func (d *docxDocument) Heading(text string)  { d.paragraph(text, true, 36) }
func (d *docxDocument) Heading2(text string) { d.paragraph(text, true, 28) }
func (d *docxDocument) Bold(text string)     { d.paragraph(text, true, 0) }
func (d *docxDocument) Text(text string)     { d.paragraph(text, false, 0) }

func (d *docxDocument) Bytes() ([]byte, error) {
	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			d.body.String() +
			`</w:body></w:document>`},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
