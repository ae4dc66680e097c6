package h1

import "strings"

// Headers holds message headers in insertion order. Lookup is
// case-insensitive and last-write-wins when a name appears more than once.
type Headers struct {
	entries [][2]string
	index   map[string]int
}

// Set sets a header value, replacing any existing value.
// Names are stored lowercase.
func (h *Headers) Set(name, value string) {
	lower := strings.ToLower(name)
	h.ensureIndex()
	if idx, ok := h.index[lower]; ok {
		h.entries[idx][1] = value
		return
	}
	h.index[lower] = len(h.entries)
	h.entries = append(h.entries, [2]string{lower, value})
}

// Add appends a header entry without replacing earlier ones with the same
// name. Lookup sees the entry added last.
func (h *Headers) Add(name, value string) {
	lower := strings.ToLower(name)
	h.ensureIndex()
	h.index[lower] = len(h.entries)
	h.entries = append(h.entries, [2]string{lower, value})
}

// Get retrieves a header value by name, or "" if absent.
func (h *Headers) Get(name string) string {
	if h.index == nil {
		return ""
	}
	if idx, ok := h.index[strings.ToLower(name)]; ok {
		return h.entries[idx][1]
	}
	return ""
}

// Has reports whether a header with the given name is present.
func (h *Headers) Has(name string) bool {
	if h.index == nil {
		return false
	}
	_, ok := h.index[strings.ToLower(name)]
	return ok
}

// Len returns the number of header entries, duplicates included.
func (h *Headers) Len() int {
	return len(h.entries)
}

// All returns the header entries in insertion order. The slice is shared;
// callers must not modify it.
func (h *Headers) All() [][2]string {
	return h.entries
}

// Reset clears all entries for reuse.
func (h *Headers) Reset() {
	h.entries = h.entries[:0]
	for k := range h.index {
		delete(h.index, k)
	}
}

func (h *Headers) ensureIndex() {
	if h.index == nil {
		h.index = make(map[string]int, 8)
	}
}
