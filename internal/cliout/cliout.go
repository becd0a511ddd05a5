// Package cliout formats cmd/fxmqd's command output as a table, JSON, or
// YAML document, selected by the --output flag.
package cliout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format selects how Printer renders values.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a --output flag value, defaulting to FormatTable for
// anything unrecognized.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatTable
	}
}

// Printer renders values in the configured Format.
type Printer struct {
	format  Format
	writer  io.Writer
	noColor bool
}

// NewPrinter returns a Printer writing to stdout in format. Color is
// disabled when NO_COLOR is set, per https://no-color.org.
func NewPrinter(format Format) *Printer {
	return &Printer{
		format:  format,
		writer:  os.Stdout,
		noColor: os.Getenv("NO_COLOR") != "",
	}
}

// SetWriter redirects output, for tests.
func (p *Printer) SetWriter(w io.Writer) {
	p.writer = w
}

// Print renders data as JSON or YAML per the configured format.
func (p *Printer) Print(data interface{}) error {
	switch p.format {
	case FormatYAML:
		enc := yaml.NewEncoder(p.writer)
		enc.SetIndent(2)
		return enc.Encode(data)
	default:
		enc := json.NewEncoder(p.writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
}

// Color codes used by Colorize.
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"
)

// Colorize wraps text in color unless NO_COLOR is set.
func (p *Printer) Colorize(color, text string) string {
	if p.noColor {
		return text
	}
	return color + text + Reset
}

func (p *Printer) tableWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
}

// MessageRow is one row of `fxmqd stats --output table` output.
type MessageRow struct {
	ID    string `json:"id" yaml:"id"`
	State string `json:"state" yaml:"state"`
}

// PrintMessage prints a single message's lifecycle state.
func (p *Printer) PrintMessage(row MessageRow) error {
	if p.format != FormatTable {
		return p.Print(row)
	}

	w := p.tableWriter()
	fmt.Fprintln(w, p.Colorize(Bold, "ID\tSTATE"))
	fmt.Fprintf(w, "%s\t%s\n", row.ID, p.colorizeState(row.State))
	return w.Flush()
}

func (p *Printer) colorizeState(state string) string {
	switch state {
	case "succeeded":
		return p.Colorize(Green, state)
	case "dead", "failed":
		return p.Colorize(Red, state)
	case "missing", "in_progress":
		return p.Colorize(Yellow, state)
	default:
		return state
	}
}

// Success prints a green success line.
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintln(p.writer, p.Colorize(Green, "✓ ")+fmt.Sprintf(format, args...))
}

// Error prints a red error line.
func (p *Printer) Error(format string, args ...interface{}) {
	fmt.Fprintln(p.writer, p.Colorize(Red, "✗ ")+fmt.Sprintf(format, args...))
}
