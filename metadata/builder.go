// Package metadata builds and reads the XML documents stored in a CZI file:
// the document metadata segment and the per-sub-block metadata. It also
// decodes the chunk container a sub-block attachment may carry, including the
// valid-pixel mask.
//
// Nodes are addressed with slash separated paths whose elements may be
// disambiguated by attributes:
//
//	root := metadata.NewBuilder().Root()
//	ch, _ := root.GetOrCreateChildNode("Metadata/DisplaySetting/Channels/Channel[Id=Channel:0]")
//	ch.SetAttribute("Name", "DAPI")
package metadata

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/arloliu/czi/errs"
)

// Root element names.
const (
	DocumentRootName = "ImageDocument"
	SubBlockRootName = "METADATA"
)

// Builder owns a metadata tree.
type Builder struct {
	root *Node
}

// NewBuilder creates an empty document metadata tree rooted at ImageDocument.
func NewBuilder() *Builder {
	return &Builder{root: newNode(DocumentRootName)}
}

// NewBuilderWithRoot creates an empty tree with the given root element.
func NewBuilderWithRoot(name string) *Builder {
	return &Builder{root: newNode(name)}
}

// Root returns the root element.
func (b *Builder) Root() *Node {
	return b.root
}

// XML serializes the tree. With indent, elements are placed on their own
// lines indented by two spaces and the output ends with a newline.
func (b *Builder) XML(indent bool) string {
	var sb strings.Builder
	writeNode(&sb, b.root, 0, indent)

	return sb.String()
}

func writeNode(sb *strings.Builder, n *Node, level int, indent bool) {
	if indent {
		sb.WriteString(strings.Repeat("  ", level))
	}

	sb.WriteByte('<')
	sb.WriteString(n.name)
	for _, a := range n.attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Name)
		sb.WriteString(`="`)
		escape(sb, a.Value)
		sb.WriteByte('"')
	}

	switch {
	case len(n.children) == 0 && n.value == "":
		sb.WriteString(" />")
	case len(n.children) == 0:
		sb.WriteByte('>')
		escape(sb, n.value)
		closeTag(sb, n.name)
	default:
		sb.WriteByte('>')
		escape(sb, n.value)
		if indent {
			sb.WriteByte('\n')
		}
		for _, c := range n.children {
			writeNode(sb, c, level+1, indent)
		}
		if indent {
			sb.WriteString(strings.Repeat("  ", level))
		}
		closeTag(sb, n.name)
	}

	if indent {
		sb.WriteByte('\n')
	}
}

func closeTag(sb *strings.Builder, name string) {
	sb.WriteString("</")
	sb.WriteString(name)
	sb.WriteByte('>')
}

func escape(sb *strings.Builder, s string) {
	_ = xml.EscapeText(sb, []byte(s))
}

// Parse reads an XML document into a tree. Trailing NUL bytes, which pad
// metadata in some files, are ignored. Comments and processing instructions
// are dropped; whitespace-only text is not kept.
//
// Returns:
//   - *Builder: The tree
//   - error: a ParseError with code CorruptedData if the XML is malformed
func Parse(data []byte) (*Builder, error) {
	data = bytes.TrimRight(data, "\x00")
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.NewParseError(errs.ParseCorruptedData, "metadata xml: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := newNode(qualified(t.Name))
			for _, a := range t.Attr {
				n.attrs = append(n.attrs, Attribute{Name: qualified(a.Name), Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errs.NewParseError(errs.ParseCorruptedData, "metadata xml has more than one root element")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				if text := strings.TrimSpace(string(t)); text != "" {
					stack[len(stack)-1].value += text
				}
			}
		}
	}

	if root == nil {
		return nil, errs.NewParseError(errs.ParseCorruptedData, "metadata xml has no root element")
	}

	return &Builder{root: root}, nil
}

func qualified(n xml.Name) string {
	switch n.Space {
	case "":
		return n.Local
	case "xmlns":
		return "xmlns:" + n.Local
	}

	return n.Local
}
