// Package types defines common data structures used across statefuzz components.
package types

import (
	"time"
)

// FieldKind identifies the variant of a template field
type FieldKind int

const (
	KindStatic          FieldKind = iota // Literal bytes, never mutated
	KindFuzzable                         // Generic primitive backed by a mutation library
	KindStatefulCounter                  // Header rendered from the session sequence counter
	KindStatefulToken                    // Header rendered from the captured session token
	KindBlock                            // Named group of fields
	KindSize                             // Byte length of a block
)

func (k FieldKind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindFuzzable:
		return "fuzzable"
	case KindStatefulCounter:
		return "stateful_counter"
	case KindStatefulToken:
		return "stateful_token"
	case KindBlock:
		return "block"
	case KindSize:
		return "size"
	default:
		return "unknown"
	}
}

// CaseStatus is the outcome of a single test case
type CaseStatus string

const (
	StatusOK             CaseStatus = "ok"
	StatusNoResponse     CaseStatus = "no_response"     // Target accepted the request but sent nothing back
	StatusTransportError CaseStatus = "transport_error" // Connect, send or receive failed
	StatusProtocolError  CaseStatus = "protocol_error"  // Target answered with a server error status
)

// CaseResult describes one executed test case
type CaseResult struct {
	Index       int           // Global 1-based test case index
	Path        []string      // Node names walked, target last
	Field       string        // Name of the mutated field
	MutantIndex int           // Position within the field's mutation enumeration
	Request     []byte        // Bytes sent for the target node
	Response    []byte        // Bytes received after the target node
	Status      CaseStatus    // Outcome
	Error       error         // Transport error, if any
	Duration    time.Duration // Wall time of the whole case
}
