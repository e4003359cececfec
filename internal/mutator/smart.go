package mutator

import (
	"strings"
)

// Common payloads for protocol fuzzing
var (
	// SQL Injection payloads
	sqlInjectionPayloads = []string{
		"'",
		"\"",
		"' OR '1'='1",
		"' OR 1=1--",
		"'; DROP TABLE users;--",
		"' UNION SELECT NULL--",
		"admin'--",
		"1' AND SLEEP(5)--",
	}

	// Command Injection payloads
	commandInjectionPayloads = []string{
		"; ls",
		"| ls",
		"&& ls",
		"; cat /etc/passwd",
		"`id`",
		"$(id)",
		"| sleep 5",
		"\n/bin/sh",
	}

	// Path Traversal payloads
	pathTraversalPayloads = []string{
		"../",
		"..\\",
		"....//",
		"..%2f",
		"%2e%2e%2f",
		"../../../../../../etc/passwd",
		"..\\..\\..\\windows\\win.ini",
		"/etc/passwd",
		"..;/",
	}

	// Format string payloads
	formatStringPayloads = []string{
		"%n%n%n%n%n",
		"%s%s%s%s%s",
		"%x%x%x%x%x",
		"%p%p%p%p%p",
		"%99999999999s",
		"%08x.%08x.%08x.%08x",
		"%.1024d",
		strings.Repeat("%n", 100),
		strings.Repeat("%s", 100),
	}

	// URL payloads
	urlPayloads = []string{
		"http://localhost",
		"http://127.0.0.1",
		"http://[::1]",
		"file:///etc/passwd",
		"rtsp://0.0.0.0:0/",
		"//evil.com",
	}

	// Encoding and boundary payloads
	boundaryStringPayloads = []string{
		"\x00",
		"\x00\x00\x00\x00",
		"\xff\xfe",
		"\r\n",
		"\r\n\r\n",
		"\n\n\n\n",
		"\\x00",
		"%00",
		"\xc0\xaf",
		"\xef\xbb\xbf",
		"‮",
		"-1",
		"0",
		"4294967296",
		"18446744073709551616",
		"NaN",
	}
)

// longStringLengths drives the repetition-based long string cases
var longStringLengths = []int{128, 255, 256, 257, 511, 512, 513, 1023, 1024, 1025, 2048, 4096, 8192, 16384, 32768, 65535, 65536}

// StringLibrary returns the ordered mutation values for a string field.
// Extra payload families (already resolved from a Registry) are appended last.
func StringLibrary(original string, extra ...string) []string {
	values := []string{""}

	for _, n := range longStringLengths {
		values = append(values, strings.Repeat("A", n))
	}
	for _, n := range []int{128, 1024, 65536} {
		values = append(values, strings.Repeat("\xfe", n))
		values = append(values, strings.Repeat("\x00", n))
	}
	if original != "" {
		values = append(values, strings.Repeat(original, 2), strings.Repeat(original, 10), strings.Repeat(original, 100))
		values = append(values, original+"\x00", original+"\r\n", original+strings.Repeat("A", 1024))
	}

	values = append(values, formatStringPayloads...)
	values = append(values, boundaryStringPayloads...)
	values = append(values, sqlInjectionPayloads...)
	values = append(values, commandInjectionPayloads...)
	values = append(values, pathTraversalPayloads...)
	values = append(values, urlPayloads...)
	values = append(values, extra...)

	return dedupe(values, original)
}

// alternateDelims are substituted for a delimiter
var alternateDelims = []string{
	" ", "\t", "\t\t", "\r", "\n", "\r\n", "\r\n\r\n", "\n\r",
	"!", "@", "#", "$", "%", "^", "&", "*", "(", ")", "-", "_", "+", "=",
	":", ": ", ":7", ";", "'", "\"", "/", "\\", "?", "<", ">", ".", ",",
	"\x00", "\xff",
}

// DelimLibrary returns the ordered mutation values for a delimiter field
func DelimLibrary(original string) []string {
	values := []string{""}

	if original != "" {
		for _, n := range []int{2, 5, 10, 25, 100, 500, 1000} {
			values = append(values, strings.Repeat(original, n))
		}
	}
	values = append(values, alternateDelims...)

	return dedupe(values, original)
}
