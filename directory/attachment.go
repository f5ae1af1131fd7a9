package directory

import (
	"fmt"
	"slices"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/internal/collision"
	"github.com/arloliu/czi/internal/hash"
	"github.com/arloliu/czi/section"
	"github.com/google/uuid"
)

// AttachmentEntry describes one attachment.
type AttachmentEntry struct {
	ContentGUID uuid.UUID
	// ContentFileType is at most 8 bytes, e.g. "JPG" or "CZTIMS".
	ContentFileType string
	// Name is at most 80 bytes.
	Name         string
	FilePosition int64
	FilePart     int32
}

// ToA1 converts the entry into its on-disk A1 form.
func (e *AttachmentEntry) ToA1() section.AttachmentEntryA1 {
	return section.AttachmentEntryA1{
		FilePosition:    e.FilePosition,
		FilePart:        e.FilePart,
		ContentGUID:     e.ContentGUID,
		ContentFileType: e.ContentFileType,
		Name:            e.Name,
	}
}

// AttachmentEntryFromA1 converts an on-disk A1 entry.
func AttachmentEntryFromA1(a1 *section.AttachmentEntryA1) AttachmentEntry {
	return AttachmentEntry{
		ContentGUID:     a1.ContentGUID,
		ContentFileType: a1.ContentFileType,
		Name:            a1.Name,
		FilePosition:    a1.FilePosition,
		FilePart:        a1.FilePart,
	}
}

func (e *AttachmentEntry) identity() (string, uint64) {
	return e.ContentFileType + "/" + e.Name, hash.AttachmentKey(e.ContentFileType, e.Name)
}

// AttachmentDirectory is an index-addressed, insertion-ordered set of
// attachment entries. With uniqueness enabled, Add rejects a second entry
// with the same content file type and name.
type AttachmentDirectory struct {
	entries map[int]AttachmentEntry
	order   []int
	next    int
	unique  bool
	tracker *collision.Tracker
}

// NewAttachmentDirectory creates an empty attachment directory.
func NewAttachmentDirectory(unique bool) *AttachmentDirectory {
	return &AttachmentDirectory{
		entries: make(map[int]AttachmentEntry),
		unique:  unique,
		tracker: collision.NewTracker(),
	}
}

func normalizeAttachment(e *AttachmentEntry) {
	e.ContentFileType = section.FixedString(e.ContentFileType, section.ContentFileTypeSize)
	e.Name = section.FixedString(e.Name, section.AttachmentNameSize)
}

// Add appends e. The strings are truncated to their on-disk sizes first.
//
// Returns:
//   - int: Index of the new entry
//   - error: ErrAddAttachmentAlreadyExisting if uniqueness is enabled and an
//     entry with the same content file type and name exists
func (d *AttachmentDirectory) Add(e AttachmentEntry) (int, error) {
	normalizeAttachment(&e)

	key, h := e.identity()
	if d.unique && d.tracker.Contains(key, h) {
		return -1, fmt.Errorf("%w: %s", errs.ErrAddAttachmentAlreadyExisting, key)
	}

	return d.Append(e), nil
}

// Append adds e without the uniqueness check. It is used when loading an
// existing directory, which is taken as is.
func (d *AttachmentDirectory) Append(e AttachmentEntry) int {
	normalizeAttachment(&e)

	idx := d.next
	d.next++
	d.entries[idx] = e
	d.order = append(d.order, idx)
	_ = d.tracker.Track(e.identity())

	return idx
}

// Replace overwrites the entry at index.
func (d *AttachmentDirectory) Replace(index int, e AttachmentEntry) error {
	old, ok := d.entries[index]
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrInvalidAttachmentID, index)
	}
	normalizeAttachment(&e)

	oldKey, oldHash := old.identity()
	key, h := e.identity()
	if d.unique && key != oldKey && d.tracker.Contains(key, h) {
		return fmt.Errorf("%w: %s", errs.ErrAddAttachmentAlreadyExisting, key)
	}

	d.tracker.Untrack(oldKey, oldHash)
	_ = d.tracker.Track(key, h)
	d.entries[index] = e

	return nil
}

// Update changes the entry at index in place, e.g. after its segment moved.
func (d *AttachmentDirectory) Update(index int, fn func(e *AttachmentEntry)) error {
	e, ok := d.entries[index]
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrInvalidAttachmentID, index)
	}
	fn(&e)
	d.entries[index] = e

	return nil
}

// Remove deletes the entry at index.
func (d *AttachmentDirectory) Remove(index int) error {
	e, ok := d.entries[index]
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrInvalidAttachmentID, index)
	}

	key, h := e.identity()
	d.tracker.Untrack(key, h)
	delete(d.entries, index)
	d.order = slices.DeleteFunc(d.order, func(i int) bool { return i == index })

	return nil
}

// Get returns the entry at index.
func (d *AttachmentDirectory) Get(index int) (AttachmentEntry, bool) {
	e, ok := d.entries[index]
	return e, ok
}

// Count returns the number of entries.
func (d *AttachmentDirectory) Count() int {
	return len(d.order)
}

// EnumerateAll calls fn for every entry in addition order until fn returns false.
func (d *AttachmentDirectory) EnumerateAll(fn func(index int, e *AttachmentEntry) bool) {
	for _, idx := range d.order {
		e := d.entries[idx]
		if !fn(idx, &e) {
			return
		}
	}
}

// EnumerateSubset calls fn for the entries whose content file type and name
// match. An empty filter matches anything.
func (d *AttachmentDirectory) EnumerateSubset(contentFileType, name string, fn func(index int, e *AttachmentEntry) bool) {
	d.EnumerateAll(func(index int, e *AttachmentEntry) bool {
		if contentFileType != "" && e.ContentFileType != contentFileType {
			return true
		}
		if name != "" && e.Name != name {
			return true
		}

		return fn(index, e)
	})
}
