package report

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fluxfuzzer/statefuzz/internal/analyzer"
	"github.com/fluxfuzzer/statefuzz/internal/engine"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// Collector turns executed test cases into report findings and statistics
type Collector struct {
	mu       sync.Mutex
	report   *Report
	analyzer *analyzer.Analyzer
	excerpt  int
	start    time.Time
	stats    Statistics
	caseTime time.Duration
}

// CollectorOption configures a Collector
type CollectorOption func(*Collector)

// WithAnalyzer enables response deviation findings
func WithAnalyzer(a *analyzer.Analyzer) CollectorOption {
	return func(c *Collector) { c.analyzer = a }
}

// WithExcerpt limits how many request/response bytes each finding keeps
func WithExcerpt(n int) CollectorOption {
	return func(c *Collector) { c.excerpt = n }
}

// NewCollector creates a collector filling r
func NewCollector(r *Report, opts ...CollectorOption) *Collector {
	c := &Collector{
		report:  r,
		excerpt: 4096,
		start:   time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report finalizes statistics and returns the report
func (c *Collector) Report() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Duration = time.Since(c.start)
	if stats.TotalCases > 0 {
		stats.AvgCaseTime = c.caseTime / time.Duration(stats.TotalCases)
	}
	if secs := stats.Duration.Seconds(); secs > 0 {
		stats.CasesPerSec = float64(stats.TotalCases) / secs
	}
	c.report.SetStatistics(stats)
	return c.report
}

// Findings returns a copy of the findings so far
func (c *Collector) Findings() []Finding {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Finding, len(c.report.Findings))
	copy(out, c.report.Findings)
	return out
}

// OnCase records one test case
func (c *Collector) OnCase(res *types.CaseResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count(res)

	code, _ := engine.StatusCode(res.Response)
	f := Finding{
		Index:       res.Index,
		Path:        strings.Join(res.Path, " -> "),
		Field:       res.Field,
		MutantIndex: res.MutantIndex,
		StatusCode:  code,
		Request:     truncate(string(res.Request), c.excerpt),
		Response:    truncate(string(res.Response), c.excerpt),
		Timestamp:   time.Now(),
	}

	switch res.Status {
	case types.StatusTransportError:
		f.Type = FindingTransportError
		f.Severity = SeverityHigh
		f.Description = "transport failed while running the case"
		if res.Error != nil {
			f.Details.Error = res.Error.Error()
			f.Description = res.Error.Error()
		}
	case types.StatusProtocolError:
		f.Type = FindingProtocolError
		f.Severity = SeverityMedium
		f.Description = fmt.Sprintf("target answered with server error %d", code)
	case types.StatusNoResponse:
		f.Type = FindingNoResponse
		f.Severity = SeverityLow
		f.Description = "target sent no response"
	default:
		if !c.deviation(res, code, &f) {
			return
		}
	}

	c.report.AddFinding(f)
}

func (c *Collector) deviation(res *types.CaseResult, code int, f *Finding) bool {
	if c.analyzer == nil {
		return false
	}

	d := c.analyzer.Observe(f.Path, analyzer.Sample{StatusCode: code, Body: res.Response})
	if !d.IsDeviation() {
		return false
	}

	f.Type = FindingDeviation
	f.Severity = SeverityInfo
	for _, t := range d.Types {
		if t == analyzer.UnexpectedStatus || t == analyzer.ContentShift {
			f.Severity = SeverityMedium
		}
		f.Details.Deviations = append(f.Details.Deviations, t.String())
	}
	f.Description = d.Reason
	f.Details.LengthSkew = d.LengthSkew
	f.Details.Distance = d.Distance
	f.Details.Digest = d.Digest
	return true
}

func (c *Collector) count(res *types.CaseResult) {
	c.stats.TotalCases++
	switch res.Status {
	case types.StatusOK:
		c.stats.OKCount++
	case types.StatusNoResponse:
		c.stats.NoResponseCount++
	case types.StatusTransportError:
		c.stats.TransportErrors++
	case types.StatusProtocolError:
		c.stats.ProtocolErrors++
	}

	c.caseTime += res.Duration
	if c.stats.MinCaseTime == 0 || res.Duration < c.stats.MinCaseTime {
		c.stats.MinCaseTime = res.Duration
	}
	if res.Duration > c.stats.MaxCaseTime {
		c.stats.MaxCaseTime = res.Duration
	}
}
