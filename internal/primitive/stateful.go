package primitive

import (
	"strconv"

	"github.com/fluxfuzzer/statefuzz/internal/state"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

const crlf = "\r\n"

// StatefulField is a protocol header whose canonical value comes from session
// state at render time rather than from construction. It wraps a fuzzable
// inner primitive of matching shape and renders either the canonical header or
// the inner primitive's mutation framed as the same header.
//
// A field renders its mutated form only while it is fuzzable, its inner
// primitive sits on a non-zero index and that enumeration has not been
// exhausted. Index 0 and a just-exhausted enumeration both render canonically.
type StatefulField struct {
	kind     types.FieldKind
	name     string
	header   string
	fuzzable bool
	reader   state.Reader
	inner    Field

	mutantIndex  int
	fuzzComplete bool
}

// NewCounterField creates a header rendering the session sequence counter in
// decimal. The inner primitive is an ASCII bit field, 32 bits unless WithWidth
// says otherwise. Stateful fields are not fuzzable unless WithFuzzable(true).
func NewCounterField(reader state.Reader, header string, opts ...Option) *StatefulField {
	o := newOptions(false, opts)
	return &StatefulField{
		kind:     types.KindStatefulCounter,
		name:     o.name,
		header:   header,
		fuzzable: o.fuzzable,
		reader:   reader,
		inner:    NewBitField(0, WithWidth(o.width), WithOutput(OutputASCII), WithFuzzable(o.fuzzable)),
	}
}

// NewTokenField creates a header echoing the captured session token. With no
// token captured it renders nothing at all.
func NewTokenField(reader state.Reader, header string, opts ...Option) *StatefulField {
	o := newOptions(false, opts)
	return &StatefulField{
		kind:     types.KindStatefulToken,
		name:     o.name,
		header:   header,
		fuzzable: o.fuzzable,
		reader:   reader,
		inner:    NewString("", WithFuzzable(o.fuzzable), WithExtraPayloads(o.extra...)),
	}
}

func (f *StatefulField) Name() string          { return f.name }
func (f *StatefulField) Kind() types.FieldKind { return f.kind }
func (f *StatefulField) Fuzzable() bool        { return f.fuzzable }
func (f *StatefulField) Header() string        { return f.header }
func (f *StatefulField) Inner() Field          { return f.inner }
func (f *StatefulField) NumMutations() int     { return f.inner.NumMutations() }

// MutantIndex counts Mutate calls over the field's life. It only grows; Reset
// rewinds the inner primitive, not this counter.
func (f *StatefulField) MutantIndex() int { return f.mutantIndex }

// FuzzComplete reports whether the inner enumeration has been exhausted
func (f *StatefulField) FuzzComplete() bool { return f.fuzzComplete }

// Present is always true: a stateful field holds its slot in the template
// even when it renders zero bytes.
func (f *StatefulField) Present() bool { return true }

// Mutate advances the inner primitive
func (f *StatefulField) Mutate() bool {
	f.mutantIndex++
	more := f.inner.Mutate()
	f.fuzzComplete = !more
	return more
}

// Reset rewinds the inner primitive. fuzzComplete is kept until the next Mutate
// reports on a fresh enumeration.
func (f *StatefulField) Reset() {
	f.inner.Reset()
}

// Mutating reports whether Render currently yields the mutated form
func (f *StatefulField) Mutating() bool {
	return f.fuzzable && f.inner.MutantIndex() != 0 && !f.fuzzComplete
}

// Render returns the mutated header while mutating, the canonical one otherwise
func (f *StatefulField) Render() []byte {
	if f.Mutating() {
		return f.frame(f.inner.Render())
	}
	return f.Canonical()
}

// Canonical renders the header from session state
func (f *StatefulField) Canonical() []byte {
	if f.reader == nil {
		return []byte{}
	}

	switch f.kind {
	case types.KindStatefulCounter:
		return f.frame([]byte(strconv.FormatUint(f.reader.Sequence(), 10)))
	case types.KindStatefulToken:
		token, ok := f.reader.Token()
		if !ok || len(token) == 0 {
			return []byte{}
		}
		return f.frame(token)
	default:
		return []byte{}
	}
}

// Len is the byte length of the current rendering, possibly zero
func (f *StatefulField) Len() int {
	return len(f.Render())
}

func (f *StatefulField) frame(value []byte) []byte {
	out := make([]byte, 0, len(f.header)+2+len(value)+len(crlf))
	out = append(out, f.header...)
	out = append(out, ':', ' ')
	out = append(out, value...)
	return append(out, crlf...)
}
