package state

import (
	"bytes"
	"testing"
)

func TestSession_ZeroValue(t *testing.T) {
	s := NewSession()

	if s.Sequence() != 0 {
		t.Errorf("Expected sequence 0 before reset, got %d", s.Sequence())
	}
	if _, ok := s.Token(); ok {
		t.Error("Expected no token before any capture")
	}
}

func TestSession_ResetAndAdvance(t *testing.T) {
	s := NewSession()
	s.SetToken([]byte("abc"))
	s.Reset(DefaultInitialSequence)

	if s.Sequence() != 1 {
		t.Fatalf("Expected sequence 1 after reset, got %d", s.Sequence())
	}
	if _, ok := s.Token(); ok {
		t.Error("Expected token cleared by reset")
	}

	for i := 0; i < 5; i++ {
		s.Advance()
	}
	if s.Sequence() != 6 {
		t.Errorf("Expected sequence 6 after 5 advances, got %d", s.Sequence())
	}
	if s.Resets() != 1 {
		t.Errorf("Expected 1 reset, got %d", s.Resets())
	}
}

func TestSession_TokenIsCopied(t *testing.T) {
	s := NewSession()
	src := []byte("XYZ")
	s.SetToken(src)
	src[0] = 'Q'

	tok, ok := s.Token()
	if !ok || !bytes.Equal(tok, []byte("XYZ")) {
		t.Fatalf("Expected token XYZ, got %q (present=%v)", tok, ok)
	}

	tok[0] = 'Q'
	again, _ := s.Token()
	if !bytes.Equal(again, []byte("XYZ")) {
		t.Errorf("Token must not be mutable through a returned slice, got %q", again)
	}
}

func TestSession_OverwriteToken(t *testing.T) {
	s := NewSession()
	s.SetToken([]byte("first-long-token"))
	s.SetToken([]byte("b"))

	tok, _ := s.Token()
	if string(tok) != "b" {
		t.Errorf("Expected 'b', got %q", tok)
	}
}

func TestSession_ImplementsReader(t *testing.T) {
	var r Reader = NewSession()
	if r.Sequence() != 0 {
		t.Error("unexpected sequence")
	}
}
