package primitive

import (
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// Static is a literal that always renders the same bytes
type Static struct {
	name  string
	value []byte
}

// NewStatic creates a literal field
func NewStatic(value string, opts ...Option) *Static {
	o := newOptions(false, opts)
	return &Static{
		name:  o.name,
		value: []byte(value),
	}
}

func (s *Static) Name() string          { return s.name }
func (s *Static) Kind() types.FieldKind { return types.KindStatic }
func (s *Static) Fuzzable() bool        { return false }
func (s *Static) MutantIndex() int      { return 0 }
func (s *Static) Mutate() bool          { return false }
func (s *Static) NumMutations() int     { return 0 }
func (s *Static) Reset()                {}
func (s *Static) Len() int              { return len(s.value) }

// Render returns a copy of the literal
func (s *Static) Render() []byte {
	return append([]byte(nil), s.value...)
}
