package protocol

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fluxfuzzer/statefuzz/internal/state"
)

//go:embed rtsp.yaml
var rtspDefinition []byte

// Parser handles parsing of protocol definition files
type Parser struct {
	strictMode bool
}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{
		strictMode: false,
	}
}

// NewStrictParser creates a parser that fails on unknown fields
func NewStrictParser() *Parser {
	return &Parser{
		strictMode: true,
	}
}

// ParseFile reads and parses a definition from a YAML file
func (p *Parser) ParseFile(path string) (*Definition, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return p.Parse(data)
}

// Parse parses a definition from YAML bytes
func (p *Parser) Parse(data []byte) (*Definition, error) {
	var def Definition

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if p.strictMode {
		decoder.KnownFields(true)
	}

	if err := decoder.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	p.applyDefaults(&def)

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &def, nil
}

// applyDefaults sets default values for optional fields
func (p *Parser) applyDefaults(d *Definition) {
	if d.Version == "" {
		d.Version = "1.0"
	}
	if d.Variables == nil {
		d.Variables = make(map[string]string)
	}

	if d.State.SequenceHeader == "" {
		d.State.SequenceHeader = "CSeq"
	}
	if d.State.Initial == nil {
		initial := uint64(state.DefaultInitialSequence)
		d.State.Initial = &initial
	}
	if d.State.TokenHeader == "" {
		d.State.TokenHeader = "Session"
	}
	if d.State.TokenPattern == "" {
		d.State.TokenPattern = state.SessionTokenPattern(d.State.TokenHeader)
	}

	for i := range d.Requests {
		line := d.Requests[i].Line
		if line == nil {
			continue
		}
		line.Method = strings.ToUpper(strings.TrimSpace(line.Method))
		if line.Scheme == "" {
			line.Scheme = "rtsp"
		}
		if line.Host == "" {
			line.Host = "{{host}}"
		}
		if line.Port == "" {
			line.Port = "{{port}}"
		}
		if line.Path == "" {
			line.Path = "{{path}}"
		}
		if line.Version == "" {
			line.Version = "RTSP/1.0"
		}
	}

	// Edges out of a request propagate state unless told otherwise
	for i := range d.Edges {
		edge := &d.Edges[i]
		if edge.Callback != "" {
			continue
		}
		if edge.From == "" {
			edge.Callback = CallbackNone
		} else {
			edge.Callback = CallbackUpdate
		}
	}
}

// RTSP returns the built-in RTSP definition
func RTSP() (*Definition, error) {
	return NewStrictParser().Parse(rtspDefinition)
}

// Builtin returns a built-in definition by name
func Builtin(name string) (*Definition, error) {
	switch strings.ToLower(name) {
	case "", "rtsp":
		return RTSP()
	default:
		return nil, fmt.Errorf("unknown built-in definition '%s'", name)
	}
}

// Load returns the definition at path, or the built-in RTSP definition when
// path is empty
func Load(path string) (*Definition, error) {
	if path == "" {
		return RTSP()
	}
	return NewStrictParser().ParseFile(path)
}
