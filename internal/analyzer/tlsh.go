package analyzer

import (
	"errors"

	"github.com/glaslos/tlsh"
)

// MinDigestSize is the smallest input TLSH can hash meaningfully
const MinDigestSize = 50

// ErrTooSmall is returned for content shorter than MinDigestSize
var ErrTooSmall = errors.New("content too small for TLSH computation")

// Digest is a TLSH locality-sensitive hash of a response
type Digest struct {
	hash *tlsh.TLSH
	raw  string
}

// ComputeDigest hashes content
func ComputeDigest(content []byte) (*Digest, error) {
	if len(content) < MinDigestSize {
		return nil, ErrTooSmall
	}

	hash, err := tlsh.HashBytes(content)
	if err != nil {
		return nil, err
	}

	return &Digest{
		hash: hash,
		raw:  hash.String(),
	}, nil
}

// String returns the hash string representation
func (d *Digest) String() string {
	if d == nil || d.hash == nil {
		return ""
	}
	return d.raw
}

// Distance calculates the distance between two digests; -1 if either is missing
func (d *Digest) Distance(other *Digest) int {
	if d == nil || other == nil || d.hash == nil || other.hash == nil {
		return -1
	}
	return d.hash.Diff(other.hash)
}

// SimilarityLevel represents categorized similarity levels
type SimilarityLevel int

const (
	Identical       SimilarityLevel = iota // Distance 0
	NearlySame                             // Distance 1-10
	VerySimilar                            // Distance 11-30
	Similar                                // Distance 31-100
	SomewhatSimilar                        // Distance 101-200
	Different                              // Distance 201+
)

func (l SimilarityLevel) String() string {
	switch l {
	case Identical:
		return "identical"
	case NearlySame:
		return "nearly_same"
	case VerySimilar:
		return "very_similar"
	case Similar:
		return "similar"
	case SomewhatSimilar:
		return "somewhat_similar"
	case Different:
		return "different"
	default:
		return "unknown"
	}
}

// ClassifyDistance categorizes a TLSH distance into similarity levels
func ClassifyDistance(distance int) SimilarityLevel {
	switch {
	case distance == 0:
		return Identical
	case distance <= 10:
		return NearlySame
	case distance <= 30:
		return VerySimilar
	case distance <= 100:
		return Similar
	case distance <= 200:
		return SomewhatSimilar
	default:
		return Different
	}
}
