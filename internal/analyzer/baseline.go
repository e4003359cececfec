// Package analyzer flags responses that deviate from what a path normally
// answers: a status code never seen before, a body far longer or shorter than
// usual, or content whose TLSH digest has drifted away from the first answer.
package analyzer

import (
	"fmt"
	"strings"
	"sync"
)

// Config holds the deviation thresholds
type Config struct {
	// MinSamples is how many responses a path needs before deviations are reported
	MinSamples int

	// LengthMultiplier flags responses longer or shorter than the average by this factor
	LengthMultiplier float64

	// DistanceThreshold flags digests further than this from the first response
	DistanceThreshold int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		MinSamples:        5,
		LengthMultiplier:  2.0,
		DistanceThreshold: 100,
	}
}

// DeviationType names one way a response can deviate
type DeviationType int

const (
	UnexpectedStatus DeviationType = iota
	LongResponse
	ShortResponse
	ContentShift
)

func (d DeviationType) String() string {
	switch d {
	case UnexpectedStatus:
		return "unexpected_status"
	case LongResponse:
		return "long_response"
	case ShortResponse:
		return "short_response"
	case ContentShift:
		return "content_shift"
	default:
		return "unknown"
	}
}

// Sample is one observed response
type Sample struct {
	StatusCode int // 0 when the response has no parseable status line
	Body       []byte
}

// Deviation is the result of checking a sample against a baseline
type Deviation struct {
	Types      []DeviationType
	LengthSkew float64 // Response length over the learned average
	Distance   int     // TLSH distance from the reference digest, -1 if not computed
	Digest     string
	Reason     string
}

// IsDeviation reports whether anything unusual was found
func (d *Deviation) IsDeviation() bool {
	return d != nil && len(d.Types) > 0
}

// Baseline learns what one path normally answers
type Baseline struct {
	config    *Config
	mu        sync.Mutex
	samples   int
	totalLen  int
	statuses  map[int]int
	reference *Digest
}

// NewBaseline creates an empty baseline
func NewBaseline(config *Config) *Baseline {
	if config == nil {
		config = DefaultConfig()
	}
	return &Baseline{
		config:   config,
		statuses: make(map[int]int),
	}
}

// Learned reports whether enough samples have been seen
func (b *Baseline) Learned() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samples >= b.config.MinSamples
}

// Observe checks a sample against what has been learned so far, then learns it
func (b *Baseline) Observe(s Sample) *Deviation {
	b.mu.Lock()
	defer b.mu.Unlock()

	digest, _ := ComputeDigest(s.Body)
	d := &Deviation{Distance: -1, Digest: digest.String()}

	if b.samples >= b.config.MinSamples {
		b.check(s, digest, d)
	}

	b.samples++
	b.totalLen += len(s.Body)
	b.statuses[s.StatusCode]++
	if b.reference == nil && digest != nil {
		b.reference = digest
	}
	return d
}

func (b *Baseline) check(s Sample, digest *Digest, d *Deviation) {
	if _, seen := b.statuses[s.StatusCode]; !seen {
		d.Types = append(d.Types, UnexpectedStatus)
	}

	avg := float64(b.totalLen) / float64(b.samples)
	if avg > 0 {
		d.LengthSkew = float64(len(s.Body)) / avg
		if d.LengthSkew > b.config.LengthMultiplier {
			d.Types = append(d.Types, LongResponse)
		} else if d.LengthSkew < 1.0/b.config.LengthMultiplier {
			d.Types = append(d.Types, ShortResponse)
		}
	}

	if b.reference != nil && digest != nil {
		d.Distance = b.reference.Distance(digest)
		if d.Distance > b.config.DistanceThreshold {
			d.Types = append(d.Types, ContentShift)
		}
	}

	if len(d.Types) > 0 {
		d.Reason = buildReason(s, d)
	}
}

func buildReason(s Sample, d *Deviation) string {
	parts := make([]string, 0, len(d.Types))
	for _, t := range d.Types {
		switch t {
		case UnexpectedStatus:
			parts = append(parts, fmt.Sprintf("status %d not seen before", s.StatusCode))
		case LongResponse, ShortResponse:
			parts = append(parts, fmt.Sprintf("length %.1fx average", d.LengthSkew))
		case ContentShift:
			parts = append(parts, fmt.Sprintf("content %s (TLSH distance %d)", ClassifyDistance(d.Distance), d.Distance))
		}
	}
	return strings.Join(parts, "; ")
}

// Analyzer keeps one baseline per key, typically a path
type Analyzer struct {
	config    *Config
	mu        sync.Mutex
	baselines map[string]*Baseline
}

// New creates an Analyzer
func New(config *Config) *Analyzer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Analyzer{
		config:    config,
		baselines: make(map[string]*Baseline),
	}
}

// Observe checks and learns a sample under key
func (a *Analyzer) Observe(key string, s Sample) *Deviation {
	a.mu.Lock()
	b, ok := a.baselines[key]
	if !ok {
		b = NewBaseline(a.config)
		a.baselines[key] = b
	}
	a.mu.Unlock()

	return b.Observe(s)
}

// Keys returns the number of baselines
func (a *Analyzer) Keys() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.baselines)
}
