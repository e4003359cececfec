// Package protocol loads protocol definitions from YAML and compiles them into
// session graphs of request templates wired with state-propagating callbacks.
package protocol

import (
	"fmt"
	"strings"

	"github.com/fluxfuzzer/statefuzz/internal/state"
)

// Definition describes a stateful protocol: its requests, how they connect
// and which named paths through them can be fuzzed.
type Definition struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string            `yaml:"version,omitempty" json:"version,omitempty"`
	Variables   map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`
	State       StateConfig       `yaml:"state" json:"state"`
	Requests    []RequestDef      `yaml:"requests" json:"requests"`
	Edges       []EdgeDef         `yaml:"edges" json:"edges"`
	Paths       []PathDef         `yaml:"paths,omitempty" json:"paths,omitempty"`
}

// StateConfig names the headers carrying session state
type StateConfig struct {
	SequenceHeader string  `yaml:"sequence_header" json:"sequence_header"`
	Initial        *uint64 `yaml:"initial,omitempty" json:"initial,omitempty"`
	TokenHeader    string  `yaml:"token_header" json:"token_header"`
	TokenPattern   string  `yaml:"token_pattern,omitempty" json:"token_pattern,omitempty"`
	// TokenSource is regex (default), header or jsonpath
	TokenSource    string  `yaml:"token_source,omitempty" json:"token_source,omitempty"`
	TokenTransform string  `yaml:"token_transform,omitempty" json:"token_transform,omitempty"`
}

// RequestDef is one request template
type RequestDef struct {
	Name   string       `yaml:"name" json:"name"`
	Line   *RequestLine `yaml:"line,omitempty" json:"line,omitempty"`
	Fields []FieldDef   `yaml:"fields" json:"fields"`
}

// RequestLine expands to "METHOD scheme://host:port/path VERSION\r\n"
// followed by the sequence header.
type RequestLine struct {
	Method  string `yaml:"method" json:"method"`
	Scheme  string `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	Host    string `yaml:"host,omitempty" json:"host,omitempty"`
	Port    string `yaml:"port,omitempty" json:"port,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
	Fuzz    bool   `yaml:"fuzz,omitempty" json:"fuzz,omitempty"` // Mutate the request line and sequence header too
}

// FieldType identifies the kind of field a FieldDef produces
type FieldType string

const (
	FieldStatic        FieldType = "static"
	FieldString        FieldType = "string"
	FieldDelim         FieldType = "delim"
	FieldByte          FieldType = "byte"
	FieldWord          FieldType = "word"
	FieldDWord         FieldType = "dword"
	FieldQWord         FieldType = "qword"
	FieldRandom        FieldType = "random"
	FieldSequence      FieldType = "sequence"       // Sequence counter header
	FieldToken         FieldType = "token"          // Session token header
	FieldSize          FieldType = "size"           // Bare block length
	FieldContentLength FieldType = "content_length" // "Content-Length: <n>\r\n"
	FieldBlock         FieldType = "block"
)

var knownFieldTypes = map[FieldType]bool{
	FieldStatic: true, FieldString: true, FieldDelim: true,
	FieldByte: true, FieldWord: true, FieldDWord: true, FieldQWord: true,
	FieldRandom: true, FieldSequence: true, FieldToken: true,
	FieldSize: true, FieldContentLength: true, FieldBlock: true,
}

// FieldDef is one field of a request
type FieldDef struct {
	Type      FieldType  `yaml:"type" json:"type"`
	Name      string     `yaml:"name,omitempty" json:"name,omitempty"`
	Value     string     `yaml:"value,omitempty" json:"value,omitempty"`
	Fuzzable  *bool      `yaml:"fuzzable,omitempty" json:"fuzzable,omitempty"`
	Format    string     `yaml:"format,omitempty" json:"format,omitempty"` // ascii, binary
	Endian    string     `yaml:"endian,omitempty" json:"endian,omitempty"` // big, little
	Signed    bool       `yaml:"signed,omitempty" json:"signed,omitempty"`
	Width     int        `yaml:"width,omitempty" json:"width,omitempty"`
	Min       int        `yaml:"min,omitempty" json:"min,omitempty"`
	Max       int        `yaml:"max,omitempty" json:"max,omitempty"`
	Mutations int        `yaml:"mutations,omitempty" json:"mutations,omitempty"`
	Seed      int64      `yaml:"seed,omitempty" json:"seed,omitempty"`
	Payloads  []string   `yaml:"payloads,omitempty" json:"payloads,omitempty"` // Extra payload libraries for strings
	Block     string     `yaml:"block,omitempty" json:"block,omitempty"`
	Fields    []FieldDef `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// EdgeDef connects two requests. An empty From means the root.
type EdgeDef struct {
	From     string `yaml:"from,omitempty" json:"from,omitempty"`
	To       string `yaml:"to" json:"to"`
	Callback string `yaml:"callback,omitempty" json:"callback,omitempty"` // update, none
}

const (
	CallbackUpdate = "update"
	CallbackNone   = "none"
)

// PathDef is a named ordered list of requests
type PathDef struct {
	Name  string   `yaml:"name" json:"name"`
	Nodes []string `yaml:"nodes" json:"nodes"`
}

// Validate checks the definition for structural errors
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("definition name is required")
	}
	if len(d.Requests) == 0 {
		return fmt.Errorf("definition must have at least one request")
	}

	requests := make(map[string]bool)
	for i, req := range d.Requests {
		if req.Name == "" {
			return fmt.Errorf("request %d: name is required", i+1)
		}
		if requests[req.Name] {
			return fmt.Errorf("request %d: duplicate request name '%s'", i+1, req.Name)
		}
		requests[req.Name] = true

		if err := req.Validate(); err != nil {
			return fmt.Errorf("request '%s': %w", req.Name, err)
		}
	}

	source, err := state.ParseExtractorType(d.State.TokenSource)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	if source == state.ExtractorJSONPath && d.State.TokenPattern == "" {
		return fmt.Errorf("state: jsonpath token source requires token_pattern")
	}

	for i, edge := range d.Edges {
		if edge.From != "" && !requests[edge.From] {
			return fmt.Errorf("edge %d: unknown request '%s'", i+1, edge.From)
		}
		if !requests[edge.To] {
			return fmt.Errorf("edge %d: unknown request '%s'", i+1, edge.To)
		}
		switch edge.Callback {
		case "", CallbackUpdate, CallbackNone:
		default:
			return fmt.Errorf("edge %d: unknown callback '%s'", i+1, edge.Callback)
		}
	}

	paths := make(map[string]bool)
	for i, path := range d.Paths {
		if path.Name == "" {
			return fmt.Errorf("path %d: name is required", i+1)
		}
		if paths[path.Name] {
			return fmt.Errorf("path %d: duplicate path name '%s'", i+1, path.Name)
		}
		paths[path.Name] = true

		if len(path.Nodes) == 0 {
			return fmt.Errorf("path '%s': at least one node is required", path.Name)
		}
		for _, node := range path.Nodes {
			if !requests[node] {
				return fmt.Errorf("path '%s': unknown request '%s'", path.Name, node)
			}
		}
	}

	return nil
}

// Validate checks a single request definition
func (r *RequestDef) Validate() error {
	if r.Line == nil && len(r.Fields) == 0 {
		return fmt.Errorf("request line or fields are required")
	}
	if r.Line != nil && strings.TrimSpace(r.Line.Method) == "" {
		return fmt.Errorf("request line: method is required")
	}
	return validateFields(r.Fields)
}

func validateFields(fields []FieldDef) error {
	for i, f := range fields {
		if !knownFieldTypes[f.Type] {
			return fmt.Errorf("field %d: unknown type '%s'", i+1, f.Type)
		}

		switch f.Type {
		case FieldBlock:
			if f.Name == "" {
				return fmt.Errorf("field %d: block name is required", i+1)
			}
			if err := validateFields(f.Fields); err != nil {
				return fmt.Errorf("block '%s': %w", f.Name, err)
			}
		case FieldSize, FieldContentLength:
			if f.Block == "" {
				return fmt.Errorf("field %d: %s requires a block", i+1, f.Type)
			}
		case FieldRandom:
			if f.Max < f.Min {
				return fmt.Errorf("field %d: random max %d is below min %d", i+1, f.Max, f.Min)
			}
		}

		switch f.Format {
		case "", "ascii", "binary":
		default:
			return fmt.Errorf("field %d: unknown format '%s'", i+1, f.Format)
		}
		switch f.Endian {
		case "", "big", "little":
		default:
			return fmt.Errorf("field %d: unknown endian '%s'", i+1, f.Endian)
		}
	}
	return nil
}

// Request returns a request definition by name
func (d *Definition) Request(name string) (*RequestDef, bool) {
	for i := range d.Requests {
		if d.Requests[i].Name == name {
			return &d.Requests[i], true
		}
	}
	return nil, false
}

// PathNames returns path names in declaration order
func (d *Definition) PathNames() []string {
	names := make([]string, len(d.Paths))
	for i, p := range d.Paths {
		names[i] = p.Name
	}
	return names
}

// InitialSequence returns the configured initial sequence value
func (s StateConfig) InitialSequence() uint64 {
	if s.Initial == nil {
		return 1
	}
	return *s.Initial
}
