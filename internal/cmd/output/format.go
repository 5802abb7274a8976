// Package output renders command results as text, tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
)

// Format names an output encoding selected with --format.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a --format value. The empty string is accepted and
// means the command picks.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatText, FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("invalid format %q: must be one of: text, table, json, yaml", s)
}

// DetectFormat returns the explicit format when given. Otherwise it returns
// fallback on a terminal and JSON when stdout is piped.
func DetectFormat(explicit string, fallback Format) Format {
	if explicit != "" {
		return Format(strings.ToLower(explicit))
	}
	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return fallback
	}
	return FormatJSON
}

// Liner is implemented by results that read best as plain lines.
type Liner interface {
	Lines() []string
}

// Print writes data to w in format. Text falls back to a table for values
// that are not a Liner, and tables fall back to JSON for values that have no
// tabular shape.
func Print(w io.Writer, format Format, data any) error {
	var err error
	switch format {
	case FormatJSON:
		err = writeJSON(w, data)
	case FormatYAML:
		err = writeYAML(w, data)
	case FormatText:
		if liner, ok := data.(Liner); ok {
			err = writeLines(w, liner.Lines())
			break
		}
		err = writeTable(w, data)
	default:
		err = writeTable(w, data)
	}
	if err != nil {
		return fmt.Errorf("write %s output: %w", format, err)
	}
	return nil
}

func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeYAML(w io.Writer, data any) error {
	b, err := yaml.MarshalWithOptions(data, yaml.Indent(2), yaml.IndentSequence(false))
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}
