package metadata

import (
	"testing"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func mustNode(t *testing.T, n *Node, path string) *Node {
	t.Helper()

	c, err := n.GetOrCreateChildNode(path)
	require.NoError(t, err)

	return c
}

func TestBuilder_XML(t *testing.T) {
	t.Run("nested paths", func(t *testing.T) {
		b := NewBuilder()
		root := b.Root()
		mustNode(t, root, "Metadata/Information/Image/SizeX").SetValueInt(1024)
		mustNode(t, root, "Metadata/Information/Image/SizeY").SetValueInt(768)
		mustNode(t, root, "Metadata/DisplaySetting/Channels/Channel[Id=Channel:0]/PixelType").SetValue("Bgr24")
		mustNode(t, root, "Metadata/DisplaySetting/Channels/Channel[Id=Channel:0]/BitCountRange").SetValueInt(16)

		expected := "<ImageDocument>\n" +
			"  <Metadata>\n" +
			"    <Information>\n" +
			"      <Image>\n" +
			"        <SizeX>1024</SizeX>\n" +
			"        <SizeY>768</SizeY>\n" +
			"      </Image>\n" +
			"    </Information>\n" +
			"    <DisplaySetting>\n" +
			"      <Channels>\n" +
			"        <Channel Id=\"Channel:0\">\n" +
			"          <PixelType>Bgr24</PixelType>\n" +
			"          <BitCountRange>16</BitCountRange>\n" +
			"        </Channel>\n" +
			"      </Channels>\n" +
			"    </DisplaySetting>\n" +
			"  </Metadata>\n" +
			"</ImageDocument>\n"
		require.Equal(t, expected, b.XML(true))
	})

	t.Run("attribute disambiguation", func(t *testing.T) {
		b := NewBuilder()
		root := b.Root()
		mustNode(t, root, "Channels/Channel[Id=Channel:0,Name=1st]/PixelType").SetValue("Bgr24")
		mustNode(t, root, "Channels/Channel[Id=Channel:1,Name=2nd]/PixelType").SetValue("Bgr48")
		mustNode(t, root, "Channels/Channel[Id=Channel:0,Name=1st]/BitCountRange").SetValueInt(16)

		require.Equal(t, "<ImageDocument><Channels>"+
			`<Channel Id="Channel:0" Name="1st"><PixelType>Bgr24</PixelType><BitCountRange>16</BitCountRange></Channel>`+
			`<Channel Id="Channel:1" Name="2nd"><PixelType>Bgr48</PixelType></Channel>`+
			"</Channels></ImageDocument>", b.XML(false))
	})

	t.Run("unicode and escaping", func(t *testing.T) {
		b := NewBuilder()
		n := b.Root().AppendChildNode("TESTNODE")
		n.SetValue("火车站 <&>")
		n.SetAttribute("数量", "通り")

		require.Equal(t, "<ImageDocument>\n  <TESTNODE 数量=\"通り\">火车站 &lt;&amp;&gt;</TESTNODE>\n</ImageDocument>\n", b.XML(true))
	})

	t.Run("empty sub-block metadata", func(t *testing.T) {
		require.Equal(t, "<METADATA />\n", NewSubBlockBuilder().XML(true))
	})

	t.Run("sub-block tags", func(t *testing.T) {
		b := NewSubBlockBuilder(Tag{"Tag1", "ABC"}, Tag{"Tag2", "XYZ"})
		mustNode(t, b.Root(), "DataSchema/ValidBitsPerPixel").SetValueInt(16)

		expected := "<METADATA>\n" +
			"  <Tags>\n" +
			"    <Tag1>ABC</Tag1>\n" +
			"    <Tag2>XYZ</Tag2>\n" +
			"  </Tags>\n" +
			"  <DataSchema>\n" +
			"    <ValidBitsPerPixel>16</ValidBitsPerPixel>\n" +
			"  </DataSchema>\n" +
			"</METADATA>\n"
		require.Equal(t, expected, b.XML(true))
	})
}

func TestNode_Paths(t *testing.T) {
	root := NewBuilder().Root()

	for _, path := range []string{
		"Metadata/DisplaySetting/Channels/Channel[=Channel:0",
		"Metadata/DisplaySetting/Channels/Channel[Id=Channel:0,Name",
		"Metadata//Channels",
		"",
		"[Id=1]",
		"A/B]",
	} {
		t.Run(path, func(t *testing.T) {
			_, err := root.GetOrCreateChildNode(path)
			require.ErrorIs(t, err, errs.ErrMetadataPath)
		})
	}

	t.Run("get existing and missing", func(t *testing.T) {
		created := mustNode(t, root, "A/B[K=x/y]/C")
		got, err := root.GetChildNode("A/B[K=x/y]/C")
		require.NoError(t, err)
		require.Same(t, created, got)

		got, err = root.GetChildNode("A/B[K=z]/C")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("set attribute overwrites", func(t *testing.T) {
		n := root.AppendChildNode("N")
		n.SetAttribute("a", "1")
		n.SetAttribute("a", "2")
		v, ok := n.Attribute("a")
		require.True(t, ok)
		require.Equal(t, "2", v)
		require.Len(t, n.Attributes(), 1)
	})

	t.Run("typed values", func(t *testing.T) {
		n := root.AppendChildNode("V")
		n.SetValueFloat(0.25)
		f, err := n.ValueFloat()
		require.NoError(t, err)
		require.InDelta(t, 0.25, f, 0)

		n.SetValueBool(true)
		require.Equal(t, "true", n.Value())

		n.SetValueInt(-7)
		i, err := n.ValueInt()
		require.NoError(t, err)
		require.Equal(t, int64(-7), i)
	})
}

func TestParse(t *testing.T) {
	b := NewBuilder()
	mustNode(t, b.Root(), "Metadata/Information/Image/SizeX").SetValueInt(1024)
	mustNode(t, b.Root(), "Metadata/Channels/Channel[Id=Channel:0]").SetValue("x")

	parsed, err := Parse(append([]byte(`<?xml version="1.0"?>`+b.XML(true)), 0, 0))
	require.NoError(t, err)
	require.Equal(t, b.XML(true), parsed.XML(true))

	n, err := parsed.Root().GetChildNode("Metadata/Information/Image/SizeX")
	require.NoError(t, err)
	require.NotNil(t, n)
	v, err := n.ValueInt()
	require.NoError(t, err)
	require.Equal(t, int64(1024), v)

	_, err = Parse([]byte("<a><b></a>"))
	require.ErrorIs(t, err, errs.ErrCorruptedData)
	_, err = Parse([]byte("   "))
	require.ErrorIs(t, err, errs.ErrParse)
}

func TestSubBlockMetadata(t *testing.T) {
	b := NewSubBlockBuilder(Tag{"StageXPosition", "12.5"})
	require.NoError(t, SetChunkContainer(b))

	md, err := ParseSubBlockMetadata([]byte(b.XML(false)))
	require.NoError(t, err)
	require.True(t, md.HasChunkContainer())
	require.Equal(t, []Tag{{"StageXPosition", "12.5"}}, md.Tags())

	f, ok := md.AttachmentDataFormat()
	require.True(t, ok)
	require.Equal(t, DataFormatChunkContainer, f)

	md, err = ParseSubBlockMetadata([]byte("<METADATA />"))
	require.NoError(t, err)
	require.False(t, md.HasChunkContainer())
	require.Empty(t, md.Tags())

	_, err = ParseSubBlockMetadata(nil)
	require.ErrorIs(t, err, errs.ErrNotEnoughData)
}

func TestChunkContainer(t *testing.T) {
	other := uuid.MustParse("01234567-89AB-CDEF-0123-456789ABCDEF")

	mask := bitmap.NewBitonal(6, 6)
	for y := range 6 {
		for x := range 6 {
			mask.Set(x, y, (x+y)%2 == 0)
		}
	}

	var container []byte
	container = AppendChunk(container, other, []byte{1, 2, 3})
	container = AppendChunk(container, MaskChunkGUID, EncodeMask(mask))

	t.Run("enumerate", func(t *testing.T) {
		var chunks []Chunk
		require.NoError(t, EnumerateChunks(container, func(_ int, c Chunk) bool {
			chunks = append(chunks, c)
			return true
		}))
		require.Len(t, chunks, 2)
		require.Equal(t, Chunk{GUID: other, Offset: 20, Size: 3}, chunks[0])
		require.Equal(t, MaskChunkGUID, chunks[1].GUID)
		require.Equal(t, 43, chunks[1].Offset)
	})

	t.Run("mask", func(t *testing.T) {
		got, err := ValidPixelMask(container)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, 6, got.Width)
		require.Equal(t, 6, got.Height)
		for y := range 6 {
			for x := range 6 {
				require.Equal(t, mask.Get(x, y), got.Get(x, y))
			}
		}
	})

	t.Run("no mask", func(t *testing.T) {
		got, err := ValidPixelMask(AppendChunk(nil, other, []byte{9}))
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("too short", func(t *testing.T) {
		err := EnumerateChunks(make([]byte, 20), func(int, Chunk) bool { return true })
		require.ErrorIs(t, err, errs.ErrChunkContainer)
	})

	t.Run("chunk exceeds data", func(t *testing.T) {
		bad := AppendChunk(nil, other, make([]byte, 10))
		_, err := ValidPixelMask(bad[:25])
		require.ErrorIs(t, err, errs.ErrChunkContainer)
	})

	t.Run("unknown representation", func(t *testing.T) {
		payload := EncodeMask(mask)
		payload[8] = 1
		_, err := DecodeMask(payload)
		require.ErrorIs(t, err, errs.ErrChunkContainer)
	})
}
