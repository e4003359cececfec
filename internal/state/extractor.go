package state

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractorType selects how a rule locates its value in a response
type ExtractorType int

const (
	ExtractorRegex    ExtractorType = iota // Pattern matched against the whole message
	ExtractorJSONPath                      // gjson path into the message body
	ExtractorHeader                        // Header line looked up by name
)

var extractorNames = map[ExtractorType]string{
	ExtractorRegex:    "regex",
	ExtractorJSONPath: "jsonpath",
	ExtractorHeader:   "header",
}

func (t ExtractorType) String() string {
	if name, ok := extractorNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseExtractorType maps a rule type name to its ExtractorType. The empty
// name means regex.
func ParseExtractorType(s string) (ExtractorType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return ExtractorRegex, nil
	}
	for t, n := range extractorNames {
		if n == name {
			return t, nil
		}
	}
	return ExtractorRegex, fmt.Errorf("unknown extractor type: %s", s)
}

// ExtractionRule pulls one named value out of a response
type ExtractionRule struct {
	Name      string        `json:"name" yaml:"name"`
	Type      ExtractorType `json:"type" yaml:"type"`
	Pattern   string        `json:"pattern" yaml:"pattern"`                         // Regex, JSON path or header name
	Group     int           `json:"group,omitempty" yaml:"group,omitempty"`         // Regex capture group
	Transform string        `json:"transform,omitempty" yaml:"transform,omitempty"` // Registered transform name

	re *regexp.Regexp
}

type ExtractionResult struct {
	Name   string
	Value  string
	Found  bool
	Source string // message, body or header
}

type TransformFunc func(string) string

// Extractor applies an ordered rule list to raw responses
type Extractor struct {
	rules      []*ExtractionRule
	transforms map[string]TransformFunc
}

func NewExtractor() *Extractor {
	return &Extractor{
		transforms: map[string]TransformFunc{
			"trim":      strings.TrimSpace,
			"lower":     strings.ToLower,
			"upper":     strings.ToUpper,
			"urldecode": queryUnescape,
		},
	}
}

// AddRule appends a rule. Regex rules are compiled here so a bad pattern
// fails while the protocol is being built, never in the middle of a run.
func (e *Extractor) AddRule(rule *ExtractionRule) error {
	if rule.Type == ExtractorRegex {
		if rule.Pattern == "" {
			return fmt.Errorf("regex rule %s has an empty pattern", rule.Name)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("regex rule %s: %w", rule.Name, err)
		}
		rule.re = re
	}
	e.rules = append(e.rules, rule)
	return nil
}

func (e *Extractor) RegisterTransform(name string, fn TransformFunc) {
	e.transforms[name] = fn
}

func (e *Extractor) Rules() []*ExtractionRule {
	return e.rules
}

// Extract applies every rule in order. Malformed or truncated input is not
// an error; the affected results just have Found unset.
func (e *Extractor) Extract(response []byte) []ExtractionResult {
	results := make([]ExtractionResult, len(e.rules))
	for i, rule := range e.rules {
		results[i] = e.apply(response, rule)
	}
	return results
}

// First returns the value of the first rule named name that hits
func (e *Extractor) First(response []byte, name string) (string, bool) {
	for _, rule := range e.rules {
		if rule.Name != name {
			continue
		}
		if r := e.apply(response, rule); r.Found {
			return r.Value, true
		}
	}
	return "", false
}

func (e *Extractor) apply(response []byte, rule *ExtractionRule) ExtractionResult {
	res := ExtractionResult{Name: rule.Name}

	var value string
	switch rule.Type {
	case ExtractorRegex:
		res.Source = "message"
		value, res.Found = matchGroup(rule.re, rule.Group, response)
	case ExtractorJSONPath:
		res.Source = "body"
		value, res.Found = jsonValue(messageBody(response), rule.Pattern)
	case ExtractorHeader:
		res.Source = "header"
		value, res.Found = headerValue(response, rule.Pattern)
	}

	if res.Found {
		res.Value = value
		if fn, ok := e.transforms[rule.Transform]; ok {
			res.Value = fn(value)
		}
	}
	return res
}

// matchGroup returns the requested capture group, falling back to the first
// group and then the whole match.
func matchGroup(re *regexp.Regexp, group int, response []byte) (string, bool) {
	if re == nil {
		return "", false
	}
	m := re.FindSubmatch(response)
	if m == nil {
		return "", false
	}
	if group <= 0 || group >= len(m) {
		group = min(1, len(m)-1)
	}
	return string(m[group]), true
}

func jsonValue(body []byte, path string) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	r := gjson.GetBytes(body, path)
	return r.String(), r.Exists()
}

// headerValue scans the "Name: value" lines before the blank line, matching
// names case-insensitively.
func headerValue(response []byte, name string) (string, bool) {
	head, _, _ := bytes.Cut(response, []byte("\r\n\r\n"))
	for _, line := range bytes.Split(head, []byte("\n")) {
		key, value, ok := bytes.Cut(bytes.TrimRight(line, "\r"), []byte(":"))
		if !ok || len(key) == 0 {
			continue
		}
		if strings.EqualFold(string(bytes.TrimSpace(key)), name) {
			return string(bytes.TrimSpace(value)), true
		}
	}
	return "", false
}

func messageBody(response []byte) []byte {
	for _, sep := range []string{"\r\n\r\n", "\n\n"} {
		if _, body, ok := bytes.Cut(response, []byte(sep)); ok {
			return body
		}
	}
	return response
}

// queryUnescape leaves the input untouched when it is not valid escaping
func queryUnescape(s string) string {
	if out, err := url.QueryUnescape(s); err == nil {
		return out
	}
	return s
}

// SessionTokenName is the rule name the session token is stored under
const SessionTokenName = "session_token"

// TokenCharset is the character class a session token may contain
const TokenCharset = `[A-Za-z0-9$_.+-]*`

// SessionTokenPattern builds the regex matching a "<header>: <token>" line
func SessionTokenPattern(header string) string {
	return `(?:^|\n)` + regexp.QuoteMeta(header) + `: (` + TokenCharset + `)`
}

// SessionTokenRule captures the session token from a header line
func SessionTokenRule(header string) *ExtractionRule {
	return &ExtractionRule{
		Name:    SessionTokenName,
		Type:    ExtractorRegex,
		Pattern: SessionTokenPattern(header),
		Group:   1,
	}
}
