package hash

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestAttachmentKey(t *testing.T) {
	require.Equal(t, AttachmentKey("JPG", "Thumbnail"), AttachmentKey("JPG", "Thumbnail"))
	require.NotEqual(t, AttachmentKey("JPG", "Thumbnail"), AttachmentKey("CZTIMS", "Thumbnail"))
	// the separator keeps "AB"+"C" apart from "A"+"BC"
	require.NotEqual(t, AttachmentKey("AB", "C"), AttachmentKey("A", "BC"))
	require.Equal(t, xxhash.Sum64String("JPG\x00Thumbnail"), AttachmentKey("JPG", "Thumbnail"))
}

func BenchmarkAttachmentKey(b *testing.B) {
	for b.Loop() {
		AttachmentKey("CZTIMS", "TimeStamps")
	}
}
