// Package collision tracks attachment identities by hash and tells true
// duplicates apart from hash collisions.
package collision

import (
	"slices"

	"github.com/arloliu/czi/errs"
)

// Tracker maps identity hashes to the keys that produced them. Two different
// keys with the same hash are a collision, which is recorded but allowed;
// the same key twice is a duplicate and is rejected.
type Tracker struct {
	keys         map[uint64][]string
	count        int
	hasCollision bool
}

// NewTracker creates a new collision tracker.
func NewTracker() *Tracker {
	return &Tracker{keys: make(map[uint64][]string)}
}

// Track records key under hash.
//
// Returns:
//   - error: ErrInvalidArgument for an empty key, ErrAddAttachmentAlreadyExisting
//     if key was already tracked
func (t *Tracker) Track(key string, hash uint64) error {
	if key == "" {
		return errs.ErrInvalidArgument
	}

	bucket := t.keys[hash]
	if slices.Contains(bucket, key) {
		return errs.ErrAddAttachmentAlreadyExisting
	}
	if len(bucket) > 0 {
		t.hasCollision = true
	}

	t.keys[hash] = append(bucket, key)
	t.count++

	return nil
}

// Contains reports whether key is tracked under hash.
func (t *Tracker) Contains(key string, hash uint64) bool {
	return slices.Contains(t.keys[hash], key)
}

// Untrack removes key. It reports whether the key was tracked.
func (t *Tracker) Untrack(key string, hash uint64) bool {
	bucket := t.keys[hash]
	i := slices.Index(bucket, key)
	if i < 0 {
		return false
	}

	bucket = slices.Delete(bucket, i, i+1)
	if len(bucket) == 0 {
		delete(t.keys, hash)
	} else {
		t.keys[hash] = bucket
	}
	t.count--

	return true
}

// HasCollision returns true if two different keys ever shared a hash.
func (t *Tracker) HasCollision() bool {
	return t.hasCollision
}

// Count returns the number of tracked keys.
func (t *Tracker) Count() int {
	return t.count
}

// Reset clears all tracked keys and the collision flag.
func (t *Tracker) Reset() {
	clear(t.keys)
	t.count = 0
	t.hasCollision = false
}
