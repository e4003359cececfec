package template

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/fluxfuzzer/statefuzz/internal/primitive"
	"github.com/fluxfuzzer/statefuzz/internal/state"
)

func newGetParameter(s *state.Session) *Request {
	r := New("get_parameter")
	r.Static("GET_PARAMETER rtsp://127.0.0.1:554/test.mp3 RTSP/1.0\r\n").
		Push(primitive.NewCounterField(s, "CSeq")).
		Push(primitive.NewTokenField(s, "Session")).
		ContentLength("body").
		Static("Content-Type: ").String("text/parameters").Static("\r\n").
		Static("\r\n").
		Block("body", func(r *Request) {
			r.String("packets_received").Delim("\n").String("jitter")
		})
	return r
}

func TestRequest_RenderConcatenates(t *testing.T) {
	r := New("options")
	r.Static("OPTIONS").Delim(" ").String("rtsp").Static("\r\n")
	if err := r.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := string(r.Render()); got != "OPTIONS rtsp\r\n" {
		t.Errorf("Unexpected render %q", got)
	}
	if r.Len() != len("OPTIONS rtsp\r\n") {
		t.Errorf("Len %d does not match render length", r.Len())
	}
}

func TestRequest_ContentLength(t *testing.T) {
	s := state.NewSession()
	s.Reset(1)
	r := newGetParameter(s)
	if err := r.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	out := string(r.Render())
	if !strings.Contains(out, "Content-Length: 23\r\n") {
		t.Errorf("Expected 'Content-Length: 23', got:\n%s", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\npackets_received\njitter") {
		t.Errorf("Unexpected body in:\n%s", out)
	}
	if strings.Contains(out, "Session:") {
		t.Error("Session header must be absent without a token")
	}
	if !strings.Contains(out, "CSeq: 1\r\n") {
		t.Errorf("Expected CSeq 1 in:\n%s", out)
	}
}

func TestRequest_SizeTracksMutation(t *testing.T) {
	s := state.NewSession()
	r := newGetParameter(s)
	if err := r.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	body, _ := r.Lookup("body")
	for _, f := range body.Fields() {
		if !f.Fuzzable() {
			continue
		}
		for f.Mutate() {
			out := r.Render()
			want := "Content-Length: " + strconv.Itoa(body.Len()) + "\r\n"
			if !bytes.Contains(out, []byte(want)) {
				t.Fatalf("Size out of sync at index %d: want %q", f.MutantIndex(), want)
			}
			if !bytes.HasSuffix(out, body.Render()) {
				t.Fatalf("Body is not at the end of the request")
			}
		}
		f.Reset()
	}
}

func TestRequest_SizeBeforeAndAfterBlock(t *testing.T) {
	r := New("sized")
	r.Block("payload", func(r *Request) {
		r.Static("abcd")
	}).Static("|").Size("payload")
	if err := r.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := string(r.Render()); got != "abcd|4" {
		t.Errorf("Expected 'abcd|4', got %q", got)
	}
}

func TestRequest_RoundTrip(t *testing.T) {
	s := state.NewSession()
	s.Reset(1)
	s.SetToken([]byte("XYZ"))
	r := newGetParameter(s)
	if err := r.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	canonical := r.Render()
	for _, f := range r.Mutable() {
		f.Mutate()
		f.Mutate()
	}
	r.Reset()

	if got := r.Render(); !bytes.Equal(got, canonical) {
		t.Errorf("Render after reset differs:\nwant %q\ngot  %q", canonical, got)
	}
	if !bytes.Equal(r.Render(), r.Render()) {
		t.Error("Render must be idempotent")
	}
}

func TestRequest_Mutable(t *testing.T) {
	s := state.NewSession()
	r := New("pause")
	r.Static("PAUSE ").
		Push(primitive.NewCounterField(s, "CSeq")).
		Push(primitive.NewTokenField(s, "Session", primitive.WithFuzzable(true))).
		String("x", primitive.WithFuzzable(false)).
		Block("b", func(r *Request) {
			r.Delim(":")
		})
	if err := r.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	mutable := r.Mutable()
	if len(mutable) != 2 {
		t.Fatalf("Expected 2 mutable leaves, got %d", len(mutable))
	}
	if _, ok := mutable[0].(*primitive.StatefulField); !ok {
		t.Errorf("Expected stateful token first, got %T", mutable[0])
	}

	want := mutable[0].NumMutations() + mutable[1].NumMutations()
	if r.NumMutations() != want {
		t.Errorf("Expected %d mutations, got %d", want, r.NumMutations())
	}
	if len(r.Leaves()) != 5 {
		t.Errorf("Expected 5 leaves, got %d", len(r.Leaves()))
	}
}

func TestRequest_ChainedSizes(t *testing.T) {
	r := New("x").
		Block("head", func(r *Request) { r.Static("len=").Size("body") }).
		Block("body", func(r *Request) { r.Static("hello") }).
		Size("head")
	if err := r.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := string(r.Render()); got != "len=5hello5" {
		t.Errorf("Render() = %q", got)
	}
}

func TestRequest_BuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Request
		want  error
	}{
		{
			name: "unknown block",
			build: func() *Request {
				return New("x").Static("a").Size("missing")
			},
			want: ErrUnknownBlock,
		},
		{
			name: "duplicate block",
			build: func() *Request {
				return New("x").Block("b", nil).Block("b", nil)
			},
			want: ErrDuplicateBlock,
		},
		{
			name: "duplicate field name",
			build: func() *Request {
				return New("x").String("a", primitive.WithName("f")).String("b", primitive.WithName("f"))
			},
			want: ErrDuplicateField,
		},
		{
			name: "size inside its block",
			build: func() *Request {
				return New("x").Block("b", func(r *Request) { r.Size("b") })
			},
			want: ErrRecursiveSize,
		},
		{
			name: "blocks sizing each other",
			build: func() *Request {
				return New("x").
					Block("x", func(r *Request) { r.Static("a").Size("y") }).
					Block("y", func(r *Request) { r.Static("b").Size("x") })
			},
			want: ErrSizeCycle,
		},
		{
			name: "cycle through a nested size",
			build: func() *Request {
				return New("x").
					Block("outer", func(r *Request) {
						r.Block("inner", func(r *Request) { r.Size("tail") })
					}).
					Block("tail", func(r *Request) { r.Size("outer") })
			},
			want: ErrSizeCycle,
		},
		{
			name:  "empty",
			build: func() *Request { return New("x") },
			want:  ErrEmptyTemplate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Build()
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRequest_Sealed(t *testing.T) {
	r := New("x").Static("a")
	if err := r.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	r.Static("b")
	if string(r.Render()) != "a" {
		t.Errorf("Sealed template must not grow, got %q", r.Render())
	}
	if !errors.Is(r.Err(), ErrTemplateSealed) {
		t.Errorf("Expected ErrTemplateSealed, got %v", r.Err())
	}
}

func TestSize_Fuzzable(t *testing.T) {
	r := New("x")
	r.Size("b", primitive.WithFuzzable(true)).Static("|").Block("b", func(r *Request) { r.Static("abc") })
	if err := r.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	fields := r.Mutable()
	if len(fields) != 1 {
		t.Fatalf("Expected the size field to be mutable, got %d fields", len(fields))
	}
	size := fields[0]
	for size.Mutate() {
	}
	if got := string(r.Render()); got != "3|abc" {
		t.Errorf("Expected measured size after exhaustion, got %q", got)
	}
}
