package primitive

import (
	"encoding/binary"
	"strconv"

	"github.com/fluxfuzzer/statefuzz/internal/mutator"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// BitField is a fuzzable integer of a fixed bit width
type BitField struct {
	name     string
	fuzzable bool
	width    int
	signed   bool
	output   OutputFormat
	endian   Endian
	original uint64
	value    uint64
	library  []uint64
	index    int
}

// NewBitField creates an integer field; width defaults to 32 bits
func NewBitField(value uint64, opts ...Option) *BitField {
	o := newOptions(true, opts)
	if o.width <= 0 || o.width > 64 {
		o.width = 32
	}

	original := value & mutator.MaxValue(o.width)
	var library []uint64
	if o.fuzzable {
		library = mutator.IntegerLibrary(o.width, o.signed, original)
	}

	return &BitField{
		name:     o.name,
		fuzzable: o.fuzzable,
		width:    o.width,
		signed:   o.signed,
		output:   o.output,
		endian:   o.endian,
		original: original,
		value:    original,
		library:  library,
	}
}

// NewByte creates an 8-bit integer field
func NewByte(value uint64, opts ...Option) *BitField {
	return NewBitField(value, append(opts, WithWidth(8))...)
}

// NewWord creates a 16-bit integer field
func NewWord(value uint64, opts ...Option) *BitField {
	return NewBitField(value, append(opts, WithWidth(16))...)
}

// NewDWord creates a 32-bit integer field
func NewDWord(value uint64, opts ...Option) *BitField {
	return NewBitField(value, append(opts, WithWidth(32))...)
}

// NewQWord creates a 64-bit integer field
func NewQWord(value uint64, opts ...Option) *BitField {
	return NewBitField(value, append(opts, WithWidth(64))...)
}

func (f *BitField) Name() string          { return f.name }
func (f *BitField) Kind() types.FieldKind { return types.KindFuzzable }
func (f *BitField) Fuzzable() bool        { return f.fuzzable }
func (f *BitField) MutantIndex() int      { return f.index }
func (f *BitField) NumMutations() int     { return len(f.library) }
func (f *BitField) Width() int            { return f.width }
func (f *BitField) Value() uint64         { return f.value }
func (f *BitField) Len() int              { return len(f.Render()) }

// Mutate moves to the next library value, reverting to the original once exhausted
func (f *BitField) Mutate() bool {
	if !f.fuzzable || f.index >= len(f.library) {
		f.value = f.original
		return false
	}
	f.value = f.library[f.index]
	f.index++
	return true
}

// Reset returns to the original value
func (f *BitField) Reset() {
	f.index = 0
	f.value = f.original
}

// Render encodes the current value
func (f *BitField) Render() []byte {
	if f.output == OutputASCII {
		return []byte(f.decimal())
	}

	size := (f.width + 7) / 8
	buf := make([]byte, 8)
	if f.endian == LittleEndian {
		binary.LittleEndian.PutUint64(buf, f.value)
		return buf[:size]
	}
	binary.BigEndian.PutUint64(buf, f.value)
	return buf[8-size:]
}

func (f *BitField) decimal() string {
	if !f.signed || f.width >= 64 {
		if f.signed {
			return strconv.FormatInt(int64(f.value), 10)
		}
		return strconv.FormatUint(f.value, 10)
	}

	// sign-extend from width
	shift := uint(64 - f.width)
	return strconv.FormatInt(int64(f.value<<shift)>>shift, 10)
}
