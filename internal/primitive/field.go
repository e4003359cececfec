// Package primitive defines the contract every request field implements and
// the field kinds built on it: static literals, library-backed fuzzable
// primitives, and stateful headers rendered from live session state.
package primitive

import (
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// Field is the capability a mutation engine needs to enumerate and render a
// field uniformly, whatever its kind.
type Field interface {
	// Name returns the optional identifier, unique within a template when set
	Name() string

	// Kind returns which field variant this is
	Kind() types.FieldKind

	// Fuzzable reports whether the field ever renders a mutation
	Fuzzable() bool

	// MutantIndex is the position within the mutation enumeration; 0 is canonical
	MutantIndex() int

	// Render returns the current bytes. It has no side effects and never panics.
	Render() []byte

	// Mutate advances to the next mutation and reports whether one was applied.
	// Once exhausted it keeps returning false.
	Mutate() bool

	// NumMutations is the size of the enumeration
	NumMutations() int

	// Reset returns the field to index 0 and its canonical rendering
	Reset()

	// Len is the byte length of the current rendering
	Len() int
}

// OutputFormat selects how numeric fields are written on the wire
type OutputFormat int

const (
	OutputASCII  OutputFormat = iota // Decimal text
	OutputBinary                     // Fixed-width integer
)

// Endian selects the byte order of binary numeric fields
type Endian int

const (
	BigEndian Endian = iota
	LittleEndian
)

// options holds construction parameters shared by all primitives
type options struct {
	name     string
	fuzzable bool
	width    int
	signed   bool
	output   OutputFormat
	endian   Endian
	seed     int64
	count    int
	extra    []string
}

// Option configures a primitive at construction time
type Option func(*options)

// WithName sets the field name
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithFuzzable sets whether the field participates in mutation
func WithFuzzable(fuzzable bool) Option {
	return func(o *options) {
		o.fuzzable = fuzzable
	}
}

// WithWidth sets the bit width of numeric fields
func WithWidth(bits int) Option {
	return func(o *options) {
		o.width = bits
	}
}

// WithSigned renders and mutates numeric fields as two's complement
func WithSigned(signed bool) Option {
	return func(o *options) {
		o.signed = signed
	}
}

// WithOutput sets the numeric wire encoding
func WithOutput(format OutputFormat) Option {
	return func(o *options) {
		o.output = format
	}
}

// WithEndian sets the byte order for binary numeric output
func WithEndian(e Endian) Option {
	return func(o *options) {
		o.endian = e
	}
}

// WithSeed sets the seed of random data fields
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithMutations sets how many blobs a random data field generates
func WithMutations(n int) Option {
	return func(o *options) {
		o.count = n
	}
}

// WithExtraPayloads appends payloads to a string field's library
func WithExtraPayloads(payloads ...string) Option {
	return func(o *options) {
		o.extra = append(o.extra, payloads...)
	}
}

func newOptions(fuzzable bool, opts []Option) *options {
	o := &options{
		fuzzable: fuzzable,
		width:    32,
		output:   OutputASCII,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
