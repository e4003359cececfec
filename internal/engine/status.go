package engine

import (
	"bytes"
	"strconv"

	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// classify maps a response to a case status. Responses whose status line
// carries a 5xx code count as protocol errors.
func classify(resp []byte) types.CaseStatus {
	if len(resp) == 0 {
		return types.StatusNoResponse
	}
	if code, ok := StatusCode(resp); ok && code >= 500 {
		return types.StatusProtocolError
	}
	return types.StatusOK
}

// StatusCode parses "PROTO/VERSION CODE ..." from the first response line
func StatusCode(resp []byte) (int, bool) {
	line := resp
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	fields := bytes.Fields(line)
	if len(fields) < 2 || !bytes.Contains(fields[0], []byte("/")) {
		return 0, false
	}
	code, err := strconv.Atoi(string(fields[1]))
	if err != nil || code < 100 || code > 999 {
		return 0, false
	}
	return code, true
}
