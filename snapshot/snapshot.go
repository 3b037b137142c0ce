// Package snapshot remembers the most recent formatter output per buffer
// path so redundant subprocess runs can be skipped: saving an already
// formatted buffer, or re-saving unchanged content, hits the cache instead
// of the formatter. Formatted text is held brotli-compressed, since the
// daemon may sit on snapshots of many large buffers for a long time.
package snapshot

import (
	"bytes"
	"hash/fnv"
	"io"
	"sync"

	"github.com/andybalholm/brotli"

	"nvfmt/logger"
)

// DefaultLimit is the default number of buffer paths retained.
const DefaultLimit = 64

type entry struct {
	origSum    uint64 // FNV-1a of the original text the output was produced from
	outSum     uint64 // FNV-1a of the output itself
	compressed []byte
}

// Store is a bounded, mutex-guarded map of path -> last formatted output.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string // insertion order, oldest first, for eviction
	limit   int
}

// NewStore creates a Store retaining at most limit paths (DefaultLimit when
// limit <= 0).
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		entries: make(map[string]*entry),
		limit:   limit,
	}
}

// Get returns the cached formatter output for path when original is either
// the exact text the output was produced from or the output itself. The
// latter makes saving an already formatted buffer a hit.
func (s *Store) Get(path, original string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[path]
	if !ok {
		return "", false
	}
	sum := checksum(original)
	if sum != e.origSum && sum != e.outSum {
		return "", false
	}

	formatted, err := decompress(e.compressed)
	if err != nil {
		// A corrupt entry is just a miss; drop it.
		logger.Warn("snapshot for %s unreadable, dropping: %v", path, err)
		s.remove(path)
		return "", false
	}
	return formatted, true
}

// Put records formatted as the formatter output for original at path,
// evicting the oldest path when the store is full.
func (s *Store) Put(path, original, formatted string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[path]; ok {
		s.remove(path)
	}
	for len(s.entries) >= s.limit && len(s.order) > 0 {
		s.remove(s.order[0])
	}

	s.entries[path] = &entry{
		origSum:    checksum(original),
		outSum:     checksum(formatted),
		compressed: compress(formatted),
	}
	s.order = append(s.order, path)
}

// Len reports how many paths are cached.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// remove expects s.mu held.
func (s *Store) remove(path string) {
	delete(s.entries, path)
	for i, p := range s.order {
		if p == path {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func checksum(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// compress uses the fastest brotli level; the point is footprint, not ratio.
func compress(s string) []byte {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, 1)
	w.Write([]byte(s))
	w.Close()
	return buf.Bytes()
}

func decompress(data []byte) (string, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
