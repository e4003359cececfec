package mutator

import (
	"bytes"
	"strings"
	"testing"
)

func TestIntegerLibrary_ExcludesOriginal(t *testing.T) {
	for _, width := range []int{8, 16, 32, 64} {
		lib := IntegerLibrary(width, false, 0)
		if len(lib) == 0 {
			t.Fatalf("width=%d: expected non-empty library", width)
		}
		for _, v := range lib {
			if v == 0 {
				t.Errorf("width=%d: library contains original value 0", width)
			}
			if v > MaxValue(width) {
				t.Errorf("width=%d: value %d exceeds max %d", width, v, MaxValue(width))
			}
		}
	}
}

func TestIntegerLibrary_NoDuplicates(t *testing.T) {
	lib := IntegerLibrary(32, true, 1)
	seen := make(map[uint64]bool)
	for _, v := range lib {
		if seen[v] {
			t.Fatalf("duplicate value %d", v)
		}
		seen[v] = true
	}
}

func TestIntegerLibrary_Boundaries(t *testing.T) {
	lib := IntegerLibrary(8, false, 1)

	want := map[uint64]bool{0: false, 255: false, 127: false, 128: false}
	for _, v := range lib {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for v, found := range want {
		if !found {
			t.Errorf("expected boundary %d in 8-bit library", v)
		}
	}
}

func TestIntegerLibrary_Deterministic(t *testing.T) {
	a := IntegerLibrary(32, false, 7)
	b := IntegerLibrary(32, false, 7)
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("index %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestIntegerLibrary_InvalidWidth(t *testing.T) {
	if lib := IntegerLibrary(0, false, 0); lib != nil {
		t.Errorf("expected nil library for width 0, got %d values", len(lib))
	}
}

func TestMaxValue(t *testing.T) {
	tests := []struct {
		width    int
		expected uint64
	}{
		{0, 0},
		{1, 1},
		{8, 255},
		{16, 65535},
		{32, 4294967295},
		{64, 18446744073709551615},
	}

	for _, tt := range tests {
		if got := MaxValue(tt.width); got != tt.expected {
			t.Errorf("MaxValue(%d) = %d, expected %d", tt.width, got, tt.expected)
		}
	}
}

func TestStringLibrary(t *testing.T) {
	lib := StringLibrary("rtsp")

	if len(lib) == 0 {
		t.Fatal("expected non-empty string library")
	}

	seen := make(map[string]bool)
	for _, v := range lib {
		if v == "rtsp" {
			t.Error("library contains the original value")
		}
		if seen[v] {
			t.Errorf("duplicate value %q", v)
		}
		seen[v] = true
	}

	if !seen[strings.Repeat("rtsp", 10)] {
		t.Error("expected repeated original in library")
	}
	if !seen[""] {
		t.Error("expected empty string in library")
	}
}

func TestStringLibrary_EmptyOriginal(t *testing.T) {
	lib := StringLibrary("")
	for _, v := range lib {
		if v == "" {
			t.Fatal("empty original must not appear in its own library")
		}
	}
}

func TestStringLibrary_Extra(t *testing.T) {
	lib := StringLibrary("x", "custom-payload")
	if lib[len(lib)-1] != "custom-payload" {
		t.Errorf("expected extra payload last, got %q", lib[len(lib)-1])
	}
}

func TestDelimLibrary(t *testing.T) {
	lib := DelimLibrary(":")

	found := false
	for _, v := range lib {
		if v == ":" {
			t.Error("library contains the original delimiter")
		}
		if v == strings.Repeat(":", 1000) {
			found = true
		}
	}
	if !found {
		t.Error("expected long repetition of the delimiter")
	}
}

func TestRandomLibrary(t *testing.T) {
	a := RandomLibrary(42, 0, 64, DefaultRandomMutations)
	b := RandomLibrary(42, 0, 64, DefaultRandomMutations)

	if len(a) != DefaultRandomMutations {
		t.Fatalf("expected %d blobs, got %d", DefaultRandomMutations, len(a))
	}

	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			t.Fatalf("blob %d differs for the same seed", i)
		}
		if len(a[i]) > 64 {
			t.Errorf("blob %d too long: %d", i, len(a[i]))
		}
	}
}

func TestRandomLibrary_FixedLength(t *testing.T) {
	for _, blob := range RandomLibrary(1, 16, 16, 5) {
		if len(blob) != 16 {
			t.Errorf("expected length 16, got %d", len(blob))
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Get("sqli"); !ok {
		t.Error("expected built-in sqli library")
	}

	r.Register(&Library{Name: "rtsp", Payloads: []string{"RTSP/9.9"}})
	payloads := r.Payloads("rtsp", "missing")
	if len(payloads) != 1 || payloads[0] != "RTSP/9.9" {
		t.Errorf("unexpected payloads: %v", payloads)
	}

	names := r.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}
