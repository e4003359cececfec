// Package state holds the per-run session state shared by stateful fields and
// graph callbacks, and the rules that pull new state out of raw responses.
package state

// DefaultInitialSequence is the sequence number a path starts from
const DefaultInitialSequence = 1

// Reader is the read-only view of session state given to stateful fields.
// Rendering code only ever sees a Reader, so it cannot write state.
type Reader interface {
	// Sequence returns the current sequence counter
	Sequence() uint64

	// Token returns the captured session token and whether one is present
	Token() ([]byte, bool)
}

// Session is the state threaded across the exchanges of one path.
// It is owned by a single fuzzing run and is not safe for concurrent use;
// execution is strictly sequential, so callbacks always finish writing before
// the next render reads.
type Session struct {
	sequence uint64
	token    []byte
	hasToken bool
	resets   int
}

// NewSession creates an empty session. Sequence is zero until the first Reset.
func NewSession() *Session {
	return &Session{}
}

// Sequence returns the current sequence counter
func (s *Session) Sequence() uint64 {
	return s.sequence
}

// Token returns a copy of the session token and whether one has been captured
func (s *Session) Token() ([]byte, bool) {
	if !s.hasToken {
		return nil, false
	}
	return append([]byte(nil), s.token...), true
}

// Reset puts the session back to its path-start values: the counter becomes
// initial and the token is cleared.
func (s *Session) Reset(initial uint64) {
	s.sequence = initial
	s.ClearToken()
	s.resets++
}

// Advance increments the sequence counter and returns the new value
func (s *Session) Advance() uint64 {
	s.sequence++
	return s.sequence
}

// SetToken overwrites the session token
func (s *Session) SetToken(token []byte) {
	s.token = append(s.token[:0], token...)
	s.hasToken = true
}

// ClearToken removes the session token
func (s *Session) ClearToken() {
	s.token = s.token[:0]
	s.hasToken = false
}

// Resets returns how many times the session has been reset
func (s *Session) Resets() int {
	return s.resets
}
