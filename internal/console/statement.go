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

import "strings"

// StatementBuffer collects input lines until one ends with ';'
type StatementBuffer struct {
	lines []string
}

// Feed adds a line. When the line completes a statement, the statement is
// returned without its terminating ';' and the buffer is cleared.
func (b *StatementBuffer) Feed(line string) (string, bool) {
	trimmed := strings.TrimRight(line, " \t\r")
	if len(b.lines) == 0 && strings.TrimSpace(trimmed) == "" {
		return "", false
	}
	b.lines = append(b.lines, trimmed)

	if !strings.HasSuffix(trimmed, ";") {
		return "", false
	}

	stmt := strings.Join(b.lines, "\n")
	b.Reset()

	stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	if stmt == "" {
		return "", false
	}
	return stmt, true
}

// Pending reports whether a statement is partially entered
func (b *StatementBuffer) Pending() bool {
	return len(b.lines) > 0
}

// Reset discards the partial statement
func (b *StatementBuffer) Reset() {
	b.lines = nil
}
