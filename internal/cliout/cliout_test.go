package cliout

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"json":    FormatJSON,
		"JSON":    FormatJSON,
		"yaml":    FormatYAML,
		"yml":     FormatYAML,
		"table":   FormatTable,
		"bogus":   FormatTable,
		"":        FormatTable,
	}
	for in, want := range cases {
		if got := ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrintMessageTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(FormatTable)
	p.noColor = true
	p.SetWriter(&buf)

	if err := p.PrintMessage(MessageRow{ID: "abc", State: "succeeded"}); err != nil {
		t.Fatalf("PrintMessage: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "abc") || !strings.Contains(out, "succeeded") {
		t.Errorf("table output missing fields: %q", out)
	}
}

func TestPrintMessageJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(FormatJSON)
	p.SetWriter(&buf)

	if err := p.PrintMessage(MessageRow{ID: "abc", State: "pending"}); err != nil {
		t.Fatalf("PrintMessage: %v", err)
	}

	var row MessageRow
	if err := json.Unmarshal(buf.Bytes(), &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if row.ID != "abc" || row.State != "pending" {
		t.Errorf("got %+v", row)
	}
}

func TestColorizeRespectsNoColor(t *testing.T) {
	p := NewPrinter(FormatTable)
	p.noColor = true
	if got := p.Colorize(Red, "x"); got != "x" {
		t.Errorf("expected no color codes, got %q", got)
	}

	p.noColor = false
	if got := p.Colorize(Red, "x"); got == "x" {
		t.Error("expected color codes when noColor is false")
	}
}
