// Package mutator provides the deterministic mutation libraries behind the
// fuzzable field primitives. Every library is an ordered, duplicate-free list,
// so a field's mutant index always maps to the same value and any test case
// can be replayed from its index alone.
package mutator

import (
	"sort"
	"sync"
)

// Library is a named family of byte-string payloads
type Library struct {
	Name        string
	Description string
	Payloads    []string
}

// Registry stores payload libraries by name
type Registry struct {
	mu        sync.RWMutex
	libraries map[string]*Library
}

// NewRegistry creates a registry preloaded with the built-in payload families
func NewRegistry() *Registry {
	r := &Registry{
		libraries: make(map[string]*Library),
	}

	r.Register(&Library{Name: "sqli", Description: "SQL injection", Payloads: sqlInjectionPayloads})
	r.Register(&Library{Name: "cmdi", Description: "Command injection", Payloads: commandInjectionPayloads})
	r.Register(&Library{Name: "traversal", Description: "Path traversal", Payloads: pathTraversalPayloads})
	r.Register(&Library{Name: "format", Description: "Format strings", Payloads: formatStringPayloads})
	r.Register(&Library{Name: "url", Description: "URL and scheme confusion", Payloads: urlPayloads})
	r.Register(&Library{Name: "boundary", Description: "Encoding and boundary strings", Payloads: boundaryStringPayloads})

	return r
}

// Register adds or replaces a library
func (r *Registry) Register(l *Library) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.libraries[l.Name] = l
}

// Get retrieves a library by name
func (r *Registry) Get(name string) (*Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, exists := r.libraries[name]
	return l, exists
}

// Names returns all registered library names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.libraries))
	for name := range r.libraries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Payloads concatenates the payloads of the named libraries in the given order.
// Unknown names are skipped.
func (r *Registry) Payloads(names ...string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, name := range names {
		if l, ok := r.libraries[name]; ok {
			out = append(out, l.Payloads...)
		}
	}
	return out
}

// dedupe keeps the first occurrence of every value and drops the original
func dedupe(values []string, original string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == original || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
