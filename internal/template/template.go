// Package template assembles request templates from field primitives.
// A template is built once, sealed with Build, and from then on only its
// fields' mutation state changes; the field sequence itself is fixed.
package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fluxfuzzer/statefuzz/internal/primitive"
)

var (
	ErrUnknownBlock   = errors.New("unknown block")
	ErrDuplicateBlock = errors.New("duplicate block")
	ErrDuplicateField = errors.New("duplicate field name")
	ErrRecursiveSize  = errors.New("size field inside the block it measures")
	ErrSizeCycle      = errors.New("blocks measure each other")
	ErrTemplateSealed = errors.New("template is sealed")
	ErrEmptyTemplate  = errors.New("template has no fields")
)

// Request is an ordered sequence of fields rendered by plain concatenation.
// Builder methods return the request so calls can be chained; the first
// builder error is kept and returned by Build.
type Request struct {
	name   string
	fields []primitive.Field
	blocks map[string]*Block
	order  []string
	sizes  []*Size
	open   []*Block
	sealed bool
	err    error
}

// New creates an empty request template
func New(name string) *Request {
	return &Request{
		name:   name,
		blocks: make(map[string]*Block),
	}
}

// Name returns the template name
func (r *Request) Name() string { return r.name }

// Sealed reports whether Build has succeeded
func (r *Request) Sealed() bool { return r.sealed }

// Err returns the first builder error, if any
func (r *Request) Err() error { return r.err }

func (r *Request) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("template '%s': %w", r.name, err)
	}
}

// Push appends any field to the innermost open block, or to the template itself
func (r *Request) Push(f primitive.Field) *Request {
	if r.sealed {
		r.fail(ErrTemplateSealed)
		return r
	}
	if f == nil {
		return r
	}
	if n := len(r.open); n > 0 {
		r.open[n-1].fields = append(r.open[n-1].fields, f)
	} else {
		r.fields = append(r.fields, f)
	}
	return r
}

// Static appends a literal that is never mutated
func (r *Request) Static(value string, opts ...primitive.Option) *Request {
	return r.Push(primitive.NewStatic(value, opts...))
}

// String appends a fuzzable string
func (r *Request) String(value string, opts ...primitive.Option) *Request {
	return r.Push(primitive.NewString(value, opts...))
}

// Delim appends a fuzzable delimiter
func (r *Request) Delim(value string, opts ...primitive.Option) *Request {
	return r.Push(primitive.NewDelim(value, opts...))
}

// Byte appends an 8-bit integer
func (r *Request) Byte(value uint64, opts ...primitive.Option) *Request {
	return r.Push(primitive.NewByte(value, opts...))
}

// Word appends a 16-bit integer
func (r *Request) Word(value uint64, opts ...primitive.Option) *Request {
	return r.Push(primitive.NewWord(value, opts...))
}

// DWord appends a 32-bit integer
func (r *Request) DWord(value uint64, opts ...primitive.Option) *Request {
	return r.Push(primitive.NewDWord(value, opts...))
}

// QWord appends a 64-bit integer
func (r *Request) QWord(value uint64, opts ...primitive.Option) *Request {
	return r.Push(primitive.NewQWord(value, opts...))
}

// Random appends a random data field yielding blobs of min..max bytes
func (r *Request) Random(value string, min, max int, opts ...primitive.Option) *Request {
	return r.Push(primitive.NewRandomData(value, min, max, opts...))
}

// Block appends a named contiguous group of fields. Fields added inside build
// land in the block; blocks may nest.
func (r *Request) Block(name string, build func(*Request)) *Request {
	if r.sealed {
		r.fail(ErrTemplateSealed)
		return r
	}
	if name == "" {
		r.fail(errors.New("block name is required"))
		return r
	}
	if _, exists := r.blocks[name]; exists {
		r.fail(fmt.Errorf("%w: '%s'", ErrDuplicateBlock, name))
		return r
	}

	b := &Block{name: name}
	r.Push(b)
	r.blocks[name] = b
	r.order = append(r.order, name)

	r.open = append(r.open, b)
	if build != nil {
		build(r)
	}
	r.open = r.open[:len(r.open)-1]
	return r
}

// Size appends a field rendering the byte length of the named block. The
// block may be declared later in the template.
func (r *Request) Size(block string, opts ...primitive.Option) *Request {
	enclosing := make([]string, len(r.open))
	for i, b := range r.open {
		enclosing[i] = b.name
	}
	s := newSize(block, r.Lookup, enclosing, opts...)
	if !r.sealed {
		r.sizes = append(r.sizes, s)
	}
	return r.Push(s)
}

// ContentLength appends a "Content-Length: <n>\r\n" header sized from block
func (r *Request) ContentLength(block string, opts ...primitive.Option) *Request {
	return r.Static("Content-Length: ").Size(block, opts...).Static("\r\n")
}

// Build validates and seals the template
func (r *Request) Build() error {
	if r.err != nil {
		return r.err
	}
	if r.sealed {
		return nil
	}
	if len(r.open) > 0 {
		return fmt.Errorf("template '%s': block '%s' not closed", r.name, r.open[len(r.open)-1].name)
	}
	if len(r.fields) == 0 {
		return fmt.Errorf("template '%s': %w", r.name, ErrEmptyTemplate)
	}

	for _, s := range r.sizes {
		if _, ok := r.blocks[s.block]; !ok {
			return fmt.Errorf("template '%s': size field: %w: '%s'", r.name, ErrUnknownBlock, s.block)
		}
		for _, name := range s.enclosing {
			if name == s.block {
				return fmt.Errorf("template '%s': %w: '%s'", r.name, ErrRecursiveSize, s.block)
			}
		}
	}

	if cycle := r.sizeCycle(); cycle != "" {
		return fmt.Errorf("template '%s': %w: %s", r.name, ErrSizeCycle, cycle)
	}

	names := make(map[string]bool)
	for _, f := range r.Leaves() {
		name := f.Name()
		if name == "" {
			continue
		}
		if names[name] {
			return fmt.Errorf("template '%s': %w: '%s'", r.name, ErrDuplicateField, name)
		}
		names[name] = true
	}

	r.sealed = true
	return nil
}

// sizeCycle looks for blocks whose lengths depend on each other: a block
// depends on every block measured by a size field nested anywhere inside it.
// It returns the cycle as "a -> b -> a", or "" when there is none.
func (r *Request) sizeCycle() string {
	deps := make(map[string][]string)
	for _, s := range r.sizes {
		for _, name := range s.enclosing {
			deps[name] = append(deps[name], s.block)
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	mark := make(map[string]int)
	var stack []string

	var visit func(name string) string
	visit = func(name string) string {
		switch mark[name] {
		case visited:
			return ""
		case visiting:
			for i, n := range stack {
				if n == name {
					return strings.Join(append(append([]string(nil), stack[i:]...), name), " -> ")
				}
			}
		}
		mark[name] = visiting
		stack = append(stack, name)
		for _, dep := range deps[name] {
			if cycle := visit(dep); cycle != "" {
				return cycle
			}
		}
		stack = stack[:len(stack)-1]
		mark[name] = visited
		return ""
	}

	for _, name := range r.order {
		if cycle := visit(name); cycle != "" {
			return cycle
		}
	}
	return ""
}

// MustBuild is Build for templates defined in code; it panics on error
func (r *Request) MustBuild() *Request {
	if err := r.Build(); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns a block by name
func (r *Request) Lookup(name string) (*Block, bool) {
	b, ok := r.blocks[name]
	return b, ok
}

// Blocks returns block names in declaration order
func (r *Request) Blocks() []string {
	return append([]string(nil), r.order...)
}

// Fields returns the top-level fields; blocks appear as single entries
func (r *Request) Fields() []primitive.Field {
	return append([]primitive.Field(nil), r.fields...)
}

// Leaves returns every non-block field in template order
func (r *Request) Leaves() []primitive.Field {
	var out []primitive.Field
	flatten(r.fields, &out)
	return out
}

// Mutable returns the leaves that have mutations to enumerate
func (r *Request) Mutable() []primitive.Field {
	var out []primitive.Field
	for _, f := range r.Leaves() {
		if f.Fuzzable() && f.NumMutations() > 0 {
			out = append(out, f)
		}
	}
	return out
}

// NumMutations is the total number of mutations across all mutable leaves
func (r *Request) NumMutations() int {
	total := 0
	for _, f := range r.Mutable() {
		total += f.NumMutations()
	}
	return total
}

// Render concatenates every field's current rendering
func (r *Request) Render() []byte {
	out := make([]byte, 0, 256)
	for _, f := range r.fields {
		out = append(out, f.Render()...)
	}
	return out
}

// Len is the sum of field lengths
func (r *Request) Len() int {
	n := 0
	for _, f := range r.fields {
		n += f.Len()
	}
	return n
}

// Reset rewinds every leaf to its canonical rendering
func (r *Request) Reset() {
	for _, f := range r.Leaves() {
		f.Reset()
	}
}

func flatten(fields []primitive.Field, out *[]primitive.Field) {
	for _, f := range fields {
		if b, ok := f.(*Block); ok {
			flatten(b.fields, out)
			continue
		}
		*out = append(*out, f)
	}
}
