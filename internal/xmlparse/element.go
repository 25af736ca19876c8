package xmlparse

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
)

// Attr is one XML attribute, preserved in document order.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Node is an algebraic representation of one XML element: its tag
// name, its attributes (in document order), its child elements (in
// document order) and any direct character data. It is the
// intermediate form that the JSON side-payload columns (comments,
// features, db_references, evidence) are serialized from. A plain
// record here, rather than reflection over typed Go structs, lets one
// decoder serve every side-payload column regardless of the shape of
// the XML subtree underneath it.
type Node struct {
	Tag      string  `json:"tag"`
	Attrs    []Attr  `json:"attrs,omitempty"`
	Children []*Node `json:"children,omitempty"`
	Text     string  `json:"text,omitempty"`
}

// Attr returns the value of the named attribute and whether it was present.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// ChildrenNamed returns every direct child whose tag matches name.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Tag == name {
			out = append(out, c)
		}
	}
	return out
}

// ChildNamed returns the first direct child whose tag matches name.
func (n *Node) ChildNamed(name string) (*Node, bool) {
	for _, c := range n.Children {
		if c.Tag == name {
			return c, true
		}
	}
	return nil, false
}

// decodeElement recursively materializes the subtree rooted at start
// into a Node. The caller owns dec and must have just consumed start
// from it. This is the one point in the pipeline where an <entry>
// subtree is fully buffered in memory; the returned Node is discarded
// once the row encoder has finished reading it.
func decodeElement(dec *xml.Decoder, start xml.StartElement) (*Node, error) {
	n := &Node{Tag: start.Name.Local}
	for _, a := range start.Attr {
		n.Attrs = append(n.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
	}

	var text bytes.Buffer
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			n.Text = collapseWhitespace(text.String())
			return n, nil
		}
	}
}

// MarshalArray serializes a slice of Nodes as a JSON array with stable
// per-element key ordering (tag, attrs, children, text), matching the
// field order declared on Node. Encoding/json already emits struct
// fields in declaration order, so this is a thin, explicit wrapper
// that documents the ordering guarantee callers rely on.
func MarshalArray(nodes []*Node) (json.RawMessage, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	return json.Marshal(nodes)
}

func collapseWhitespace(s string) string {
	var b bytes.Buffer
	lastSpace := true
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	out := bytes.TrimSpace(b.Bytes())
	return string(out)
}
