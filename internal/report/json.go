package report

import (
	"encoding/json"
	"io"
)

// JSONGenerator writes the report as a single JSON document. Raw request and
// response excerpts keep '<' and '&' unescaped so they stay readable.
type JSONGenerator struct {
	Indent bool
}

func (g *JSONGenerator) Generate(report *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if g.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}

func (g *JSONGenerator) Extension() string { return "json" }
