package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/choplin/deckcheck/internal/rules"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	validLabel   = color.New(color.FgGreen, color.Bold)
	invalidLabel = color.New(color.FgRed, color.Bold)
	errorLabel   = color.New(color.FgRed)
	warningLabel = color.New(color.FgYellow)
)

func checkOutputFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("invalid output: %s (valid values: table, json)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// truncate shortens s to width display columns, counting wide runes twice.
func truncate(s string, width int) string {
	s = strings.TrimSpace(s)
	if width <= 3 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func verdict(valid bool) string {
	if valid {
		return validLabel.Sprint("VALID")
	}
	return invalidLabel.Sprint("INVALID")
}

func severityLabel(s rules.Severity) string {
	switch s {
	case rules.SeverityError:
		return errorLabel.Sprint(string(s))
	case rules.SeverityWarning:
		return warningLabel.Sprint(string(s))
	default:
		return string(s)
	}
}
