// Package output renders command results as text, YAML or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"latex-workbench/internal/types"
)

// Format defines the output format for CLI commands.
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Texter is implemented by results with a human readable rendering.
type Texter interface {
	Text() string
}

// ParseFormat validates a --output value. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown output format", s, nil)
	}
}

// IsStructured reports whether format is machine readable.
func (f Format) IsStructured() bool {
	return f == FormatJSON || f == FormatYAML
}

// To writes data to w in the given format. Text output uses Texter,
// strings and string slices directly and falls back to YAML otherwise.
func To(w io.Writer, format Format, data any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	case FormatText, "":
		return text(w, data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func text(w io.Writer, data any) error {
	var s string
	switch v := data.(type) {
	case Texter:
		s = v.Text()
	case string:
		s = v
	case []string:
		s = strings.Join(v, "\n")
	case nil:
		return nil
	default:
		return To(w, FormatYAML, data)
	}
	if s == "" {
		return nil
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, err := io.WriteString(w, s)
	return err
}
