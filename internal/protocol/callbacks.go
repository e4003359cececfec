package protocol

import (
	"log/slog"

	"github.com/fluxfuzzer/statefuzz/internal/graph"
	"github.com/fluxfuzzer/statefuzz/internal/state"
)

// CaptureObserver is told after every update callback whether a token was captured
type CaptureObserver func(captured bool)

// ResetCallback returns the pre-send callback putting the session back to
// its path-start values: the counter becomes initial and the token is cleared.
func ResetCallback(initial uint64) graph.PreSend {
	return func(s *state.Session) {
		s.Reset(initial)
	}
}

// UpdateCallback returns the edge callback run after each exchange. The
// sequence counter always advances. The token is overwritten only when the
// response carries one; a miss keeps the previously captured token.
func UpdateCallback(ext *state.Extractor, logger *slog.Logger, observe CaptureObserver) graph.Callback {
	if logger == nil {
		logger = slog.Default()
	}

	return func(s *state.Session, lastRecv []byte) {
		seq := s.Advance()

		captured := false
		if len(lastRecv) > 0 && ext != nil {
			if token, ok := ext.First(lastRecv, state.SessionTokenName); ok {
				s.SetToken([]byte(token))
				captured = true
			}
		}

		if !captured {
			logger.Debug("no session token in response",
				slog.Int("response_bytes", len(lastRecv)),
				slog.Uint64("sequence", seq),
			)
		}
		if observe != nil {
			observe(captured)
		}
	}
}
