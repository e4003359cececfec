package protocol

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fluxfuzzer/statefuzz/internal/graph"
	"github.com/fluxfuzzer/statefuzz/internal/mutator"
	"github.com/fluxfuzzer/statefuzz/internal/primitive"
	"github.com/fluxfuzzer/statefuzz/internal/state"
	"github.com/fluxfuzzer/statefuzz/internal/template"
)

// Protocol is a compiled definition: the graph to walk and the session state
// its stateful fields read from.
type Protocol struct {
	Definition *Definition
	Graph      *graph.Graph
	Session    *state.Session
	Extractor  *state.Extractor
	Variables  *Variables
}

// Paths returns the named paths of the protocol
func (p *Protocol) Paths() []string {
	return p.Graph.Paths()
}

// BuildOption configures Build
type BuildOption func(*buildConfig)

type buildConfig struct {
	logger   *slog.Logger
	registry *mutator.Registry
	seed     int64
	observe  CaptureObserver
}

// WithLogger sets the logger for the graph and its callbacks
func WithLogger(logger *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = logger
	}
}

// WithRegistry sets the payload registry string fields draw extra payloads from
func WithRegistry(r *mutator.Registry) BuildOption {
	return func(c *buildConfig) {
		c.registry = r
	}
}

// WithSeed sets the seed of random fields that do not set their own
func WithSeed(seed int64) BuildOption {
	return func(c *buildConfig) {
		c.seed = seed
	}
}

// WithCaptureObserver is called after every update callback
func WithCaptureObserver(fn CaptureObserver) BuildOption {
	return func(c *buildConfig) {
		c.observe = fn
	}
}

// Build compiles a definition into a session graph. vars override the
// definition's variables. Any structural problem is reported here, before a
// single request is sent.
func Build(def *Definition, vars map[string]string, opts ...BuildOption) (*Protocol, error) {
	cfg := &buildConfig{
		logger:   slog.Default(),
		registry: mutator.NewRegistry(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}

	p := &Protocol{
		Definition: def,
		Graph:      graph.New(graph.WithLogger(cfg.logger)),
		Session:    state.NewSession(),
		Extractor:  state.NewExtractor(),
		Variables:  NewVariables(def.Variables, vars),
	}

	if err := p.Extractor.AddRule(tokenRule(def)); err != nil {
		return nil, fmt.Errorf("token pattern: %w", err)
	}

	b := &builder{cfg: cfg, def: def, session: p.Session, vars: p.Variables}
	for i := range def.Requests {
		req, err := b.request(&def.Requests[i])
		if err != nil {
			return nil, fmt.Errorf("request '%s': %w", def.Requests[i].Name, err)
		}
		if err := p.Graph.AddNode(req); err != nil {
			return nil, err
		}
	}

	p.Graph.AddPreSend(ResetCallback(def.State.InitialSequence()))
	update := UpdateCallback(p.Extractor, cfg.logger, cfg.observe)

	for _, edge := range def.Edges {
		var cb graph.Callback
		if edge.Callback == CallbackUpdate || (edge.Callback == "" && edge.From != "") {
			cb = update
		}
		if err := p.Graph.Connect(edge.From, edge.To, cb); err != nil {
			return nil, err
		}
	}

	for _, path := range def.Paths {
		if err := p.Graph.AddPath(path.Name, path.Nodes...); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func sequenceHeader(def *Definition) string {
	if def.State.SequenceHeader == "" {
		return "CSeq"
	}
	return def.State.SequenceHeader
}

func tokenHeader(def *Definition) string {
	if def.State.TokenHeader == "" {
		return "Session"
	}
	return def.State.TokenHeader
}

type builder struct {
	cfg     *buildConfig
	def     *Definition
	session *state.Session
	vars    *Variables
}

func (b *builder) request(rd *RequestDef) (*template.Request, error) {
	r := template.New(rd.Name)

	if rd.Line != nil {
		if err := b.line(r, rd.Line); err != nil {
			return nil, fmt.Errorf("request line: %w", err)
		}
	}
	if err := b.fields(r, rd.Fields); err != nil {
		return nil, err
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

// line appends "METHOD scheme://host:port/path VERSION\r\n" and the sequence header
func (b *builder) line(r *template.Request, l *RequestLine) error {
	var parts [4]string
	for i, raw := range []string{l.Scheme, l.Host, l.Port, l.Path} {
		v, err := b.vars.Substitute(raw)
		if err != nil {
			return err
		}
		parts[i] = v
	}
	scheme, host, port, path := parts[0], parts[1], parts[2], parts[3]
	if scheme == "" {
		scheme = "rtsp"
	}
	version := l.Version
	if version == "" {
		version = "RTSP/1.0"
	}

	fz := primitive.WithFuzzable(l.Fuzz)
	r.Static(strings.ToUpper(l.Method)).
		Delim(" ", fz).
		String(scheme, fz).
		Delim(":", fz).
		Delim("/", fz).
		Delim("/", fz).
		String(host, fz).
		Delim(":", fz).
		String(port, fz).
		Static("/").
		String(path, fz).
		Static(" " + version + "\r\n").
		Push(primitive.NewCounterField(b.session, sequenceHeader(b.def), fz))
	return nil
}

func (b *builder) fields(r *template.Request, defs []FieldDef) error {
	for i := range defs {
		if err := b.field(r, &defs[i]); err != nil {
			label := defs[i].Name
			if label == "" {
				label = strconv.Itoa(i + 1)
			}
			return fmt.Errorf("field %s: %w", label, err)
		}
	}
	return nil
}

func (b *builder) field(r *template.Request, fd *FieldDef) error {
	value, err := b.vars.Substitute(fd.Value)
	if err != nil {
		return err
	}

	opts, err := b.options(fd)
	if err != nil {
		return err
	}

	switch fd.Type {
	case FieldStatic:
		r.Static(value, opts...)
	case FieldString:
		r.String(value, opts...)
	case FieldDelim:
		r.Delim(value, opts...)
	case FieldByte, FieldWord, FieldDWord, FieldQWord:
		n, err := parseInteger(value)
		if err != nil {
			return err
		}
		switch fd.Type {
		case FieldByte:
			r.Byte(n, opts...)
		case FieldWord:
			r.Word(n, opts...)
		case FieldDWord:
			r.DWord(n, opts...)
		default:
			r.QWord(n, opts...)
		}
	case FieldRandom:
		r.Random(value, fd.Min, fd.Max, opts...)
	case FieldSequence:
		header := value
		if header == "" {
			header = sequenceHeader(b.def)
		}
		r.Push(primitive.NewCounterField(b.session, header, opts...))
	case FieldToken:
		header := value
		if header == "" {
			header = tokenHeader(b.def)
		}
		r.Push(primitive.NewTokenField(b.session, header, opts...))
	case FieldSize:
		r.Size(fd.Block, opts...)
	case FieldContentLength:
		r.ContentLength(fd.Block, opts...)
	case FieldBlock:
		var inner error
		r.Block(fd.Name, func(r *template.Request) {
			inner = b.fields(r, fd.Fields)
		})
		if inner != nil {
			return fmt.Errorf("block '%s': %w", fd.Name, inner)
		}
	default:
		return fmt.Errorf("unknown type '%s'", fd.Type)
	}
	return nil
}

func (b *builder) options(fd *FieldDef) ([]primitive.Option, error) {
	var opts []primitive.Option

	// blocks carry their name themselves
	if fd.Name != "" && fd.Type != FieldBlock {
		opts = append(opts, primitive.WithName(fd.Name))
	}
	if fd.Fuzzable != nil {
		opts = append(opts, primitive.WithFuzzable(*fd.Fuzzable))
	}
	if fd.Width > 0 {
		opts = append(opts, primitive.WithWidth(fd.Width))
	}
	if fd.Signed {
		opts = append(opts, primitive.WithSigned(true))
	}
	if fd.Format == "binary" {
		opts = append(opts, primitive.WithOutput(primitive.OutputBinary))
	}
	if fd.Endian == "little" {
		opts = append(opts, primitive.WithEndian(primitive.LittleEndian))
	}
	if fd.Mutations > 0 {
		opts = append(opts, primitive.WithMutations(fd.Mutations))
	}

	seed := fd.Seed
	if seed == 0 {
		seed = b.cfg.seed
	}
	opts = append(opts, primitive.WithSeed(seed))

	if len(fd.Payloads) > 0 {
		for _, name := range fd.Payloads {
			if _, ok := b.cfg.registry.Get(name); !ok {
				return nil, fmt.Errorf("unknown payload library '%s'", name)
			}
		}
		opts = append(opts, primitive.WithExtraPayloads(b.cfg.registry.Payloads(fd.Payloads...)...))
	}

	return opts, nil
}

func parseInteger(value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if strings.HasPrefix(value, "-") {
		n, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer '%s': %w", value, err)
		}
		return uint64(n), nil
	}
	n, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer '%s': %w", value, err)
	}
	return n, nil
}

// tokenRule builds the extraction rule for the session token. Without an
// explicit pattern a regex source matches "<token_header>: <token>" and a
// header source reads the token header itself.
func tokenRule(def *Definition) *state.ExtractionRule {
	source, _ := state.ParseExtractorType(def.State.TokenSource)
	rule := &state.ExtractionRule{
		Name:      state.SessionTokenName,
		Type:      source,
		Pattern:   def.State.TokenPattern,
		Transform: def.State.TokenTransform,
	}
	switch {
	case rule.Pattern != "":
	case source == state.ExtractorHeader:
		rule.Pattern = tokenHeader(def)
	default:
		rule.Pattern = state.SessionTokenPattern(tokenHeader(def))
	}
	if source == state.ExtractorRegex {
		rule.Group = 1
	}
	return rule
}
