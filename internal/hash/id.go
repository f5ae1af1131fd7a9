// Package hash computes the identity keys used to detect duplicate entries.
package hash

import "github.com/cespare/xxhash/v2"

// AttachmentKey hashes the (content file type, name) pair of an attachment.
// The two parts are separated by a zero byte, which cannot occur inside the
// fixed-size zero-terminated strings of an attachment entry.
func AttachmentKey(contentFileType, name string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(contentFileType)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(name)

	return d.Sum64()
}
