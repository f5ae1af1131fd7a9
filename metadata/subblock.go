package metadata

import "github.com/arloliu/czi/errs"

// Paths and values used in sub-block metadata.
const (
	TagsPath                 = "Tags"
	AttachmentDataFormatPath = "AttachmentSchema/DataFormat"
	DataFormatChunkContainer = "CHUNKCONTAINER"
)

// Tag is a name/value pair below the Tags element of sub-block metadata.
type Tag struct {
	Name  string
	Value string
}

// NewSubBlockBuilder creates sub-block metadata with the given tags.
//
//	<METADATA>
//	  <Tags>
//	    <Tag1>ABC</Tag1>
//	  </Tags>
//	</METADATA>
func NewSubBlockBuilder(tags ...Tag) *Builder {
	b := NewBuilderWithRoot(SubBlockRootName)
	if len(tags) > 0 {
		node := b.root.AppendChildNode(TagsPath)
		for _, t := range tags {
			node.AppendChildNode(t.Name).SetValue(t.Value)
		}
	}

	return b
}

// SetChunkContainer marks the sub-block attachment as a chunk container.
func SetChunkContainer(b *Builder) error {
	n, err := b.root.GetOrCreateChildNode(AttachmentDataFormatPath)
	if err != nil {
		return err
	}
	n.SetValue(DataFormatChunkContainer)

	return nil
}

// SubBlockMetadata is the parsed metadata of one sub-block.
type SubBlockMetadata struct {
	root *Node
}

// ParseSubBlockMetadata parses the metadata part of a sub-block.
//
// Returns:
//   - *SubBlockMetadata: Parsed metadata
//   - error: a ParseError if data is empty or not well-formed XML
func ParseSubBlockMetadata(data []byte) (*SubBlockMetadata, error) {
	if len(data) == 0 {
		return nil, errs.NewParseError(errs.ParseNotEnoughData, "sub-block metadata is empty")
	}

	b, err := Parse(data)
	if err != nil {
		return nil, err
	}

	return &SubBlockMetadata{root: b.root}, nil
}

// Root returns the METADATA element.
func (m *SubBlockMetadata) Root() *Node {
	return m.root
}

// AttachmentDataFormat returns the content of AttachmentSchema/DataFormat.
func (m *SubBlockMetadata) AttachmentDataFormat() (string, bool) {
	n, _ := m.root.GetChildNode(AttachmentDataFormatPath)
	if n == nil {
		return "", false
	}

	return n.Value(), true
}

// HasChunkContainer reports whether the sub-block attachment is declared to
// be a chunk container.
func (m *SubBlockMetadata) HasChunkContainer() bool {
	f, ok := m.AttachmentDataFormat()
	return ok && f == DataFormatChunkContainer
}

// Tags returns the elements below Tags in document order.
func (m *SubBlockMetadata) Tags() []Tag {
	n, _ := m.root.GetChildNode(TagsPath)
	if n == nil {
		return nil
	}

	tags := make([]Tag, 0, len(n.children))
	for _, c := range n.children {
		tags = append(tags, Tag{Name: c.name, Value: c.value})
	}

	return tags
}
