package oai

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jlicht/krikri/internal/domain/record"
)

// ContentType is the content type of stored OAI payloads.
const ContentType = "text/xml"

// Payload renders rec as a standalone <record> document in the OAI
// namespace. The metadata and about sections are copied byte for byte.
func Payload(rec Record) string {
	var b strings.Builder
	b.WriteString(`<record xmlns="` + Namespace + `">`)
	if rec.Header.Deleted() {
		b.WriteString(`<header status="deleted">`)
	} else {
		b.WriteString("<header>")
	}
	writeElement(&b, "identifier", rec.Header.Identifier)
	writeElement(&b, "datestamp", rec.Header.Datestamp)
	for _, set := range rec.Header.SetSpecs {
		writeElement(&b, "setSpec", set)
	}
	b.WriteString("</header>")
	if !rec.Metadata.Empty() {
		b.WriteString("<metadata>")
		b.Write(rec.Metadata.Inner)
		b.WriteString("</metadata>")
	}
	if !rec.About.Empty() {
		b.WriteString("<about>")
		b.Write(rec.About.Inner)
		b.WriteString("</about>")
	}
	b.WriteString("</record>")
	return b.String()
}

func writeElement(b *strings.Builder, name, text string) {
	b.WriteString("<" + name + ">")
	_ = xml.EscapeText(b, []byte(strings.TrimSpace(text)))
	b.WriteString("</" + name + ">")
}

// node is a parsed XML element.
type node struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	children []*node
}

// ParseMetadata maps the first element of a metadata section onto a record.
// Each child element becomes a field named by its local name; leaf elements
// become string values and elements with children become nested resources.
// Attributes other than namespace declarations are kept on the value.
func ParseMetadata(inner []byte) (*record.Record, error) {
	dec := xml.NewDecoder(bytes.NewReader(inner))
	dec.Strict = false

	var stack []*node
	var root *node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				if n.attrs == nil {
					n.attrs = make(map[string]string, len(t.Attr))
				}
				n.attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return record.New(), nil
	}
	return root.toRecord(), nil
}

func (n *node) toRecord() *record.Record {
	rec := record.New()
	for _, child := range n.children {
		rec.Add(child.name, child.toValue())
	}
	return rec
}

func (n *node) toValue() record.Value {
	var v record.Value
	if len(n.children) > 0 {
		v = record.Resource(n.toRecord())
	} else {
		v = record.String(strings.TrimSpace(n.text.String()))
	}
	for k, a := range n.attrs {
		v = v.WithAttribute(k, a)
	}
	return v
}

// headerRecord holds the normalized header fields.
func headerRecord(h Header) *record.Record {
	rec := record.New()
	rec.SetField("identifier", record.ValueArray{record.Identifier(h.Identifier)})
	if h.Datestamp != "" {
		rec.SetField("datestamp", record.Strings(h.Datestamp))
	}
	if len(h.SetSpecs) > 0 {
		rec.SetField("set_spec", record.Strings(h.SetSpecs...))
	}
	return rec
}
