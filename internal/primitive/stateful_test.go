package primitive

import (
	"bytes"
	"testing"

	"github.com/fluxfuzzer/statefuzz/internal/state"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

func TestCounterField_Canonical(t *testing.T) {
	s := state.NewSession()
	s.Reset(1)
	f := NewCounterField(s, "CSeq")

	if got := string(f.Render()); got != "CSeq: 1\r\n" {
		t.Errorf("Expected 'CSeq: 1\\r\\n', got %q", got)
	}

	s.Advance()
	s.Advance()
	if got := string(f.Render()); got != "CSeq: 3\r\n" {
		t.Errorf("Expected 'CSeq: 3\\r\\n', got %q", got)
	}

	if f.Kind() != types.KindStatefulCounter {
		t.Errorf("Unexpected kind %v", f.Kind())
	}
}

func TestCounterField_NeverWritesState(t *testing.T) {
	s := state.NewSession()
	s.Reset(5)
	f := NewCounterField(s, "CSeq", WithFuzzable(true))

	for i := 0; i < 10; i++ {
		f.Mutate()
		f.Render()
		f.Len()
	}
	f.Reset()
	f.Render()

	if s.Sequence() != 5 {
		t.Errorf("Rendering must not change session state, sequence is %d", s.Sequence())
	}
}

func TestTokenField_Absent(t *testing.T) {
	s := state.NewSession()
	f := NewTokenField(s, "Session")

	out := f.Render()
	if out == nil || len(out) != 0 {
		t.Errorf("Expected empty non-nil rendering, got %q", out)
	}
	if f.Len() != 0 {
		t.Errorf("Expected Len 0, got %d", f.Len())
	}
	if !f.Present() {
		t.Error("A zero-length stateful field is still present")
	}
}

func TestTokenField_Present(t *testing.T) {
	s := state.NewSession()
	s.SetToken([]byte("abc123"))
	f := NewTokenField(s, "Session")

	if got := string(f.Render()); got != "Session: abc123\r\n" {
		t.Errorf("Expected 'Session: abc123\\r\\n', got %q", got)
	}

	s.SetToken([]byte{})
	if f.Len() != 0 {
		t.Errorf("Empty token must render nothing, got %q", f.Render())
	}
}

func TestStatefulField_NilReader(t *testing.T) {
	f := NewCounterField(nil, "CSeq")
	if f.Len() != 0 {
		t.Errorf("Expected empty rendering without state, got %q", f.Render())
	}
}

func TestStatefulField_RenderPolicy(t *testing.T) {
	s := state.NewSession()
	s.Reset(1)

	t.Run("not fuzzable stays canonical", func(t *testing.T) {
		f := NewCounterField(s, "CSeq", WithFuzzable(false))
		f.Mutate()
		if f.Mutating() {
			t.Error("Non-fuzzable field must never mutate")
		}
		if string(f.Render()) != "CSeq: 1\r\n" {
			t.Errorf("Unexpected render %q", f.Render())
		}
	})

	t.Run("index zero is canonical", func(t *testing.T) {
		f := NewCounterField(s, "CSeq", WithFuzzable(true))
		if f.Mutating() {
			t.Error("Fresh field must not be mutating")
		}
		if string(f.Render()) != "CSeq: 1\r\n" {
			t.Errorf("Unexpected render %q", f.Render())
		}
	})

	t.Run("mutating renders inner framed", func(t *testing.T) {
		f := NewCounterField(s, "CSeq", WithFuzzable(true))
		if !f.Mutate() {
			t.Fatal("Expected first mutation to apply")
		}
		want := append(append([]byte("CSeq: "), f.Inner().Render()...), "\r\n"...)
		if !bytes.Equal(f.Render(), want) {
			t.Errorf("Expected %q, got %q", want, f.Render())
		}
		if bytes.Equal(f.Render(), f.Canonical()) {
			t.Error("Mutated rendering must differ from canonical")
		}
	})

	t.Run("exhausted is canonical", func(t *testing.T) {
		f := NewTokenField(s, "Session", WithFuzzable(true))
		for f.Mutate() {
			if !f.Mutating() {
				t.Fatal("Expected mutated rendering during enumeration")
			}
		}
		if !f.FuzzComplete() {
			t.Fatal("Expected fuzzComplete after exhaustion")
		}
		if f.Mutating() {
			t.Error("Exhausted field must render canonically")
		}
		if f.Len() != 0 {
			t.Errorf("Expected canonical (empty) token header, got %q", f.Render())
		}
	})
}

func TestStatefulField_MutationCount(t *testing.T) {
	s := state.NewSession()
	f := NewCounterField(s, "CSeq", WithFuzzable(true), WithWidth(8))

	if f.NumMutations() != f.Inner().NumMutations() {
		t.Errorf("NumMutations must delegate: %d vs %d", f.NumMutations(), f.Inner().NumMutations())
	}

	applied := drain(f)
	if applied != f.NumMutations() {
		t.Errorf("Expected %d mutations, got %d", f.NumMutations(), applied)
	}

	// mutant index keeps counting past exhaustion
	before := f.MutantIndex()
	f.Mutate()
	if f.MutantIndex() != before+1 {
		t.Errorf("Expected monotonic mutant index, got %d after %d", f.MutantIndex(), before)
	}
}

func TestStatefulField_ResetKeepsFuzzComplete(t *testing.T) {
	s := state.NewSession()
	s.Reset(1)
	f := NewCounterField(s, "CSeq", WithFuzzable(true), WithWidth(8))

	drain(f)
	f.Reset()

	if f.Inner().MutantIndex() != 0 {
		t.Errorf("Reset must rewind the inner primitive, index %d", f.Inner().MutantIndex())
	}
	if !f.FuzzComplete() {
		t.Error("Reset must not clear fuzzComplete")
	}
	if string(f.Render()) != "CSeq: 1\r\n" {
		t.Errorf("Expected canonical after reset, got %q", f.Render())
	}

	// a fresh enumeration after reset mutates again
	if !f.Mutate() {
		t.Fatal("Expected Mutate to apply after reset")
	}
	if f.FuzzComplete() || !f.Mutating() {
		t.Error("Mutate after reset must start a new enumeration")
	}
}

func TestStatefulField_ResetRestoresCanonical(t *testing.T) {
	s := state.NewSession()
	s.Reset(1)
	s.SetToken([]byte("XYZ"))
	f := NewTokenField(s, "Session", WithFuzzable(true))

	canonical := f.Render()
	f.Mutate()
	f.Mutate()
	f.Reset()

	if !bytes.Equal(f.Render(), canonical) {
		t.Errorf("Expected %q after reset, got %q", canonical, f.Render())
	}
	if f.FuzzComplete() {
		t.Error("Partial enumeration must not mark the field complete")
	}
}

func TestStatefulField_RenderIdempotent(t *testing.T) {
	s := state.NewSession()
	s.Reset(9)
	f := NewCounterField(s, "CSeq", WithFuzzable(true))
	f.Mutate()

	if !bytes.Equal(f.Render(), f.Render()) {
		t.Error("Render must be idempotent")
	}
}
