package primitive

import (
	"github.com/fluxfuzzer/statefuzz/internal/mutator"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// Bytes is a fuzzable byte-string field walking a fixed mutation library.
// String, Delim and RandomData differ only in the library they are built with.
type Bytes struct {
	name     string
	fuzzable bool
	original []byte
	value    []byte
	library  [][]byte
	index    int
}

func newBytes(name string, fuzzable bool, original []byte, library [][]byte) *Bytes {
	if !fuzzable {
		library = nil
	}
	return &Bytes{
		name:     name,
		fuzzable: fuzzable,
		original: original,
		value:    original,
		library:  library,
	}
}

func toLibrary(values []string) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out
}

// NewString creates a fuzzable string field
func NewString(value string, opts ...Option) *Bytes {
	o := newOptions(true, opts)
	return newBytes(o.name, o.fuzzable, []byte(value), toLibrary(mutator.StringLibrary(value, o.extra...)))
}

// NewDelim creates a fuzzable delimiter field
func NewDelim(value string, opts ...Option) *Bytes {
	o := newOptions(true, opts)
	return newBytes(o.name, o.fuzzable, []byte(value), toLibrary(mutator.DelimLibrary(value)))
}

// NewRandomData creates a field rendering seeded random blobs with lengths in [min, max]
func NewRandomData(value string, min, max int, opts ...Option) *Bytes {
	o := newOptions(true, opts)
	count := o.count
	if count <= 0 {
		count = mutator.DefaultRandomMutations
	}
	return newBytes(o.name, o.fuzzable, []byte(value), mutator.RandomLibrary(o.seed, min, max, count))
}

func (b *Bytes) Name() string          { return b.name }
func (b *Bytes) Kind() types.FieldKind { return types.KindFuzzable }
func (b *Bytes) Fuzzable() bool        { return b.fuzzable }
func (b *Bytes) MutantIndex() int      { return b.index }
func (b *Bytes) NumMutations() int     { return len(b.library) }
func (b *Bytes) Len() int              { return len(b.value) }

// Render returns a copy of the current value
func (b *Bytes) Render() []byte {
	return append([]byte(nil), b.value...)
}

// Mutate moves to the next library entry. When the library is exhausted the
// value reverts to the original and the index stays put.
func (b *Bytes) Mutate() bool {
	if !b.fuzzable || b.index >= len(b.library) {
		b.value = b.original
		return false
	}
	b.value = b.library[b.index]
	b.index++
	return true
}

// Reset returns to the original value
func (b *Bytes) Reset() {
	b.index = 0
	b.value = b.original
}
