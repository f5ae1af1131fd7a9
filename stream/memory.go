package stream

import "sync"

// Memory is an in-memory InputOutputStream. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

var _ InputOutputStream = (*Memory)(nil)

// NewMemory creates an empty memory stream.
func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryFrom creates a memory stream initialized with a copy of data.
func NewMemoryFrom(data []byte) *Memory {
	return &Memory{data: append([]byte(nil), data...)}
}

// Read implements InputStream.
func (m *Memory) Read(offset int64, p []byte) (int, error) {
	if err := checkOffset(offset); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	if offset < int64(len(m.data)) {
		n = copy(p, m.data[offset:])
	}
	clear(p[n:])

	return n, nil
}

// Write implements OutputStream.
func (m *Memory) Write(offset int64, p []byte) (int, error) {
	if err := checkOffset(offset); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	end := offset + int64(len(p))
	if end > int64(len(m.data)) {
		if end > int64(cap(m.data)) {
			grown := make([]byte, end, max(end, 2*int64(cap(m.data))))
			copy(grown, m.data)
			m.data = grown
		} else {
			m.data = m.data[:end]
		}
	}

	return copy(m.data[offset:], p), nil
}

// Size returns the current stream size.
func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.data))
}

// Bytes returns a copy of the stream contents.
func (m *Memory) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]byte(nil), m.data...)
}
