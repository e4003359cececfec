package template

import (
	"strconv"

	"github.com/fluxfuzzer/statefuzz/internal/primitive"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// Block is a named contiguous group of fields that can be measured as a unit.
// Its children are enumerated individually through Request.Mutable, so a
// block never mutates by itself.
type Block struct {
	name   string
	fields []primitive.Field
}

func (b *Block) Name() string          { return b.name }
func (b *Block) Kind() types.FieldKind { return types.KindBlock }
func (b *Block) Fuzzable() bool        { return false }
func (b *Block) MutantIndex() int      { return 0 }
func (b *Block) Mutate() bool          { return false }
func (b *Block) NumMutations() int     { return 0 }

// Fields returns the block's direct children
func (b *Block) Fields() []primitive.Field {
	return append([]primitive.Field(nil), b.fields...)
}

func (b *Block) Render() []byte {
	var out []byte
	for _, f := range b.fields {
		out = append(out, f.Render()...)
	}
	if out == nil {
		return []byte{}
	}
	return out
}

func (b *Block) Len() int {
	n := 0
	for _, f := range b.fields {
		n += f.Len()
	}
	return n
}

func (b *Block) Reset() {
	for _, f := range b.fields {
		f.Reset()
	}
}

// Size renders the decimal byte length of a block's current rendering. The
// length is measured on every render, so it follows whatever mutation the
// block's fields carry at that moment. A fuzzable Size also enumerates
// integer mutations of its own, which replace the measured value while active.
type Size struct {
	name      string
	block     string
	enclosing []string
	lookup    func(string) (*Block, bool)
	fuzzable  bool
	inner     *primitive.BitField
	done      bool
}

func newSize(block string, lookup func(string) (*Block, bool), enclosing []string, opts ...primitive.Option) *Size {
	s := &Size{
		block:     block,
		enclosing: enclosing,
		lookup:    lookup,
	}

	// size fields are not fuzzable unless asked
	opts = append([]primitive.Option{primitive.WithFuzzable(false)}, opts...)
	s.inner = primitive.NewBitField(0, append(opts, primitive.WithOutput(primitive.OutputASCII))...)
	s.fuzzable = s.inner.Fuzzable()
	s.name = s.inner.Name()
	return s
}

func (s *Size) Name() string          { return s.name }
func (s *Size) Kind() types.FieldKind { return types.KindSize }
func (s *Size) Fuzzable() bool        { return s.fuzzable }
func (s *Size) MutantIndex() int      { return s.inner.MutantIndex() }
func (s *Size) NumMutations() int     { return s.inner.NumMutations() }

// Block returns the name of the measured block
func (s *Size) Block() string { return s.block }

func (s *Size) Mutate() bool {
	more := s.inner.Mutate()
	s.done = !more
	return more
}

func (s *Size) Reset() {
	s.inner.Reset()
	s.done = false
}

// Measured is the current byte length of the target block
func (s *Size) Measured() int {
	if s.lookup == nil {
		return 0
	}
	b, ok := s.lookup(s.block)
	if !ok {
		return 0
	}
	return b.Len()
}

func (s *Size) Render() []byte {
	if s.fuzzable && s.inner.MutantIndex() != 0 && !s.done {
		return s.inner.Render()
	}
	return []byte(strconv.Itoa(s.Measured()))
}

func (s *Size) Len() int { return len(s.Render()) }
