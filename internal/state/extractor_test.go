package state

import (
	"strings"
	"testing"
)

const setupReply = "RTSP/1.0 200 OK\r\n" +
	"CSeq: 1\r\n" +
	"Session: 12345678;timeout=60\r\n" +
	"Transport: RTP/AVP;unicast;client_port=55808-55809\r\n" +
	"\r\n"

func TestExtractor_SessionTokenRule(t *testing.T) {
	e := NewExtractor()
	if err := e.AddRule(SessionTokenRule("Session")); err != nil {
		t.Fatalf("Failed to add rule: %v", err)
	}

	results := e.Extract([]byte(setupReply))

	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if !results[0].Found {
		t.Fatal("Expected session token to be found")
	}
	if results[0].Value != "12345678" {
		t.Errorf("Expected '12345678', got '%s'", results[0].Value)
	}
}

func TestExtractor_SessionTokenCharset(t *testing.T) {
	e := NewExtractor()
	e.AddRule(SessionTokenRule("Session"))

	tests := []struct {
		name     string
		response string
		expected string
		found    bool
	}{
		{"alnum", "RTSP/1.0 200 OK\r\nSession: abc123\r\n\r\n", "abc123", true},
		{"punctuation", "RTSP/1.0 200 OK\r\nSession: a$b_c.d+e-f\r\n", "a$b_c.d+e-f", true},
		{"stops at separator", "RTSP/1.0 200 OK\r\nSession: XYZ;timeout=5\r\n", "XYZ", true},
		{"start of buffer", "Session: first\r\n", "first", true},
		{"empty token", "RTSP/1.0 200 OK\r\nSession: \r\n", "", true},
		{"missing", "RTSP/1.0 200 OK\r\nCSeq: 2\r\n\r\n", "", false},
		{"mid line is ignored", "RTSP/1.0 200 OK\r\nX-Session: nope\r\n", "", false},
		{"garbage", "\x00\xff\xfe", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, found := e.First([]byte(tt.response), SessionTokenName)
			if found != tt.found {
				t.Fatalf("Expected found=%v, got %v", tt.found, found)
			}
			if value != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, value)
			}
		})
	}
}

func TestExtractor_HeaderExtraction(t *testing.T) {
	e := NewExtractor()
	e.AddRule(&ExtractionRule{
		Name:    "transport",
		Type:    ExtractorHeader,
		Pattern: "transport",
	})

	results := e.Extract([]byte(setupReply))

	if !results[0].Found {
		t.Fatal("Expected header to be found")
	}
	if results[0].Value != "RTP/AVP;unicast;client_port=55808-55809" {
		t.Errorf("Unexpected value '%s'", results[0].Value)
	}
	if results[0].Source != "header" {
		t.Errorf("Expected source 'header', got '%s'", results[0].Source)
	}
}

func TestExtractor_HeaderIgnoresBody(t *testing.T) {
	e := NewExtractor()
	e.AddRule(&ExtractionRule{Name: "x", Type: ExtractorHeader, Pattern: "X-Body"})

	response := "RTSP/1.0 200 OK\r\nCSeq: 3\r\n\r\nX-Body: value\r\n"
	if _, found := e.First([]byte(response), "x"); found {
		t.Error("Expected header lookup to stop at the end of the header section")
	}
}

func TestExtractor_JSONPathExtraction(t *testing.T) {
	e := NewExtractor()
	e.AddRule(&ExtractionRule{
		Name:    "token",
		Type:    ExtractorJSONPath,
		Pattern: "session.id",
	})

	response := "RTSP/1.0 200 OK\r\nContent-Type: application/json\r\n\r\n{\"session\": {\"id\": \"s-42\"}}"
	value, found := e.First([]byte(response), "token")

	if !found {
		t.Fatal("Expected value to be found")
	}
	if value != "s-42" {
		t.Errorf("Expected 's-42', got '%s'", value)
	}
}

func TestExtractor_JSONPathInvalidBody(t *testing.T) {
	e := NewExtractor()
	e.AddRule(&ExtractionRule{Name: "token", Type: ExtractorJSONPath, Pattern: "id"})

	if _, found := e.First([]byte("RTSP/1.0 200 OK\r\n\r\n{not json"), "token"); found {
		t.Error("Expected no value from an invalid JSON body")
	}
}

func TestExtractor_Transform(t *testing.T) {
	e := NewExtractor()
	e.AddRule(&ExtractionRule{
		Name:      "upper_value",
		Type:      ExtractorHeader,
		Pattern:   "Server",
		Transform: "upper",
	})
	e.AddRule(&ExtractionRule{
		Name:      "decoded",
		Type:      ExtractorHeader,
		Pattern:   "Location",
		Transform: "urldecode",
	})

	response := "RTSP/1.0 200 OK\r\nServer: gst-rtsp\r\nLocation: rtsp%3A%2F%2Fhost\r\n\r\n"
	results := e.Extract([]byte(response))

	if results[0].Value != "GST-RTSP" {
		t.Errorf("Expected 'GST-RTSP', got '%s'", results[0].Value)
	}
	if results[1].Value != "rtsp://host" {
		t.Errorf("Expected 'rtsp://host', got '%s'", results[1].Value)
	}
}

func TestExtractor_InvalidRegex(t *testing.T) {
	e := NewExtractor()

	err := e.AddRule(&ExtractionRule{Name: "bad", Type: ExtractorRegex, Pattern: "(unclosed"})
	if err == nil {
		t.Error("Expected error for invalid regex")
	}

	err = e.AddRule(&ExtractionRule{Name: "empty", Type: ExtractorRegex})
	if err == nil {
		t.Error("Expected error for empty regex pattern")
	}
}

func TestParseExtractorType(t *testing.T) {
	tests := []struct {
		input    string
		expected ExtractorType
		wantErr  bool
	}{
		{"regex", ExtractorRegex, false},
		{"", ExtractorRegex, false},
		{"JSONPath", ExtractorJSONPath, false},
		{"header", ExtractorHeader, false},
		{"xpath", ExtractorRegex, true},
	}

	for _, tt := range tests {
		got, err := ParseExtractorType(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseExtractorType(%q): unexpected error state %v", tt.input, err)
			continue
		}
		if !tt.wantErr && got != tt.expected {
			t.Errorf("ParseExtractorType(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestQueryUnescape(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello%20world", "hello world"},
		{"test%2B123", "test+123"},
		{"foo+bar", "foo bar"},
		{"no%encoding", "no%encoding"},
		{"%3Cscript%3E", "<script>"},
	}

	for _, tt := range tests {
		result := queryUnescape(tt.input)
		if result != tt.expected {
			t.Errorf("queryUnescape(%s): expected '%s', got '%s'", tt.input, tt.expected, result)
		}
	}
}

func BenchmarkExtractor_SessionToken(b *testing.B) {
	e := NewExtractor()
	e.AddRule(SessionTokenRule("Session"))
	response := []byte(setupReply)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Extract(response)
	}
}

func TestExtractor_RegisterTransform(t *testing.T) {
	e := NewExtractor()
	e.RegisterTransform("strip_params", func(s string) string {
		if i := strings.IndexByte(s, ';'); i >= 0 {
			return s[:i]
		}
		return s
	})
	e.AddRule(&ExtractionRule{Name: "session", Type: ExtractorHeader, Pattern: "Session", Transform: "strip_params"})
	e.AddRule(&ExtractionRule{Name: "cseq", Type: ExtractorHeader, Pattern: "CSeq", Transform: "missing"})

	if n := len(e.Rules()); n != 2 {
		t.Fatalf("Expected 2 rules, got %d", n)
	}

	results := e.Extract([]byte(setupReply))
	if results[0].Value != "12345678" {
		t.Errorf("Expected params stripped, got %q", results[0].Value)
	}
	if results[1].Value != "1" {
		t.Errorf("Unknown transforms must leave the value alone, got %q", results[1].Value)
	}
}
