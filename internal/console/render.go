/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// maxRenderWidth keeps wide tables readable on large terminals
const maxRenderWidth = 120

// Renderer prints markdown to a terminal, or as plain text when the output
// is not a terminal or rendering is disabled
type Renderer struct {
	out      io.Writer
	markdown bool
	noColor  bool
}

// NewRenderer creates a renderer writing to out. Markdown is rendered only
// when out is a terminal.
func NewRenderer(out io.Writer, noColor bool) *Renderer {
	return &Renderer{out: out, markdown: isTerminal(out), noColor: noColor}
}

// NewPlainRenderer creates a renderer that never styles its output
func NewPlainRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// Print renders text and writes it
func (r *Renderer) Print(text string) {
	fmt.Fprint(r.out, r.Render(text))
}

// Render returns text styled for the terminal, or text unchanged
func (r *Renderer) Render(text string) string {
	if !r.markdown {
		return ensureNewline(text)
	}

	style := "dark"
	if r.noColor {
		style = "notty"
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(r.width()),
	)
	if err != nil {
		return ensureNewline(text)
	}
	rendered, err := tr.Render(text)
	if err != nil {
		return ensureNewline(text)
	}
	return rendered
}

func (r *Renderer) width() int {
	f, ok := r.out.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	if width > 2 {
		width -= 2
	}
	if width > maxRenderWidth {
		width = maxRenderWidth
	}
	return width
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func ensureNewline(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}

// FormatResult turns a query result into markdown. A JSON array of flat
// objects becomes a table with columns in result order; anything else is
// shown verbatim.
func FormatResult(result string) string {
	columns, rows, ok := parseRows(result)
	if !ok {
		return result
	}
	if len(rows) == 0 {
		return "_No rows._"
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(escapeCells(columns), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = row[col]
		}
		b.WriteString("| " + strings.Join(escapeCells(cells), " | ") + " |\n")
	}
	fmt.Fprintf(&b, "\n_%d row(s)._", len(rows))
	return b.String()
}

// parseRows decodes an array of objects keeping the key order of the
// first object
func parseRows(result string) ([]string, []map[string]string, bool) {
	dec := json.NewDecoder(strings.NewReader(result))
	dec.UseNumber()

	if tok, err := dec.Token(); err != nil || tok != json.Delim('[') {
		return nil, nil, false
	}

	var columns []string
	seen := make(map[string]bool)
	var rows []map[string]string
	for dec.More() {
		if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
			return nil, nil, false
		}
		row := make(map[string]string)
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, nil, false
			}
			key, ok := tok.(string)
			if !ok {
				return nil, nil, false
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, nil, false
			}
			row[key] = cellText(raw)
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
		if _, err := dec.Token(); err != nil {
			return nil, nil, false
		}
		rows = append(rows, row)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, false
	}
	return columns, rows, true
}

func cellText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if string(trimmed) == "null" {
		return "NULL"
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err == nil {
		return compact.String()
	}
	return string(trimmed)
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "|", `\|`)
		out[i] = strings.ReplaceAll(c, "\n", " ")
	}
	return out
}
