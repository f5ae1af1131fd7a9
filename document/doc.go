// Package document reads, writes and edits CZI documents.
//
// A document is a sequence of 32-byte aligned segments in a stream: the file
// header at offset 0, one segment per sub-block and attachment, an optional
// metadata segment and two directories listing the sub-blocks and
// attachments. Three entry points share that model:
//
//   - Writer creates a new document. Segments are appended; the directories
//     are written by Close.
//   - Reader opens an existing document through its directories. Reads may be
//     issued from several goroutines.
//   - ReaderWriter opens or creates a document and edits it in place. Changed
//     segments are overwritten when they fit and relocated to the end of the
//     file otherwise; Close writes fresh directories.
//
// Writer and ReaderWriter are not safe for concurrent use. After Close every
// method fails with errs.ErrNotOperational.
//
// Example:
//
//	w, err := document.NewWriter(out, document.WithReserveSubBlockDirectory(0))
//	if err != nil {
//		return err
//	}
//	_, err = w.AddSubBlock(document.AddSubBlockInfo{
//		Coordinate:   coord,
//		LogicalRect:  geom.IntRect{W: 256, H: 256},
//		PhysicalSize: geom.IntSize{W: 256, H: 256},
//		PixelType:    format.PixelTypeGray8,
//		Data:         document.BytesPayload(pixels),
//	})
//	if err != nil {
//		return err
//	}
//
//	return w.Close()
package document
