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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"bq-data-agent/internal/executor"
)

func TestStatementBuffer(t *testing.T) {
	var b StatementBuffer

	_, ok := b.Feed("   ")
	assert.False(t, ok)
	assert.False(t, b.Pending())

	_, ok = b.Feed("SELECT id,")
	assert.False(t, ok)
	assert.True(t, b.Pending())

	_, ok = b.Feed("")
	assert.False(t, ok)

	stmt, ok := b.Feed("  name FROM t;  ")
	assert.True(t, ok)
	assert.Equal(t, "SELECT id,\n\n  name FROM t", stmt)
	assert.False(t, b.Pending())

	_, ok = b.Feed(";")
	assert.False(t, ok, "an empty statement is dropped")
	assert.False(t, b.Pending())
}

func TestStatementBufferReset(t *testing.T) {
	var b StatementBuffer
	b.Feed("SELECT")
	b.Reset()
	stmt, ok := b.Feed("SELECT 2;")
	assert.True(t, ok)
	assert.Equal(t, "SELECT 2", stmt)
}

func TestFormatResultTable(t *testing.T) {
	result := "[\n  {\n    \"zeta\": 1,\n    \"alpha\": \"a|b\",\n    \"missing\": null\n  },\n  {\n    \"zeta\": 2.5,\n    \"alpha\": {\"x\": [1, 2]},\n    \"missing\": true\n  }\n]"

	assert.Equal(t,
		"| zeta | alpha | missing |\n"+
			"| --- | --- | --- |\n"+
			"| 1 | a\\|b | NULL |\n"+
			"| 2.5 | {\"x\":[1,2]} | true |\n"+
			"\n_2 row(s)._",
		FormatResult(result))
}

func TestFormatResultEmptyAndErrors(t *testing.T) {
	assert.Equal(t, "_No rows._", FormatResult("[]"))

	failure := executor.ErrorPrefix + "Not found: Table p.d.t"
	assert.Equal(t, failure, FormatResult(failure))
	assert.Equal(t, "[1, 2]", FormatResult("[1, 2]"))
}

func TestPlainRendererAddsNewline(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true)
	r.Print("**bold**")
	assert.Equal(t, "**bold**\n", buf.String(), "non-terminal output is not styled")

	buf.Reset()
	NewPlainRenderer(&buf).Print("done\n")
	assert.Equal(t, "done\n", buf.String())
}

type fakeAgent struct{ instruction string }

func (f fakeAgent) Execute(context.Context, string, *executor.DelegatedToken) string { return "[]" }

func (f fakeAgent) Instruction() string { return f.instruction }

func TestCommands(t *testing.T) {
	var buf bytes.Buffer
	c := New(fakeAgent{instruction: "THE INSTRUCTION"}, NewPlainRenderer(&buf), Config{Scope: "p.d (Tables: All)"})

	quit, handled := c.command(`\instructions`)
	assert.False(t, quit)
	assert.True(t, handled)
	assert.Contains(t, buf.String(), "THE INSTRUCTION")

	buf.Reset()
	c.command(`\scope`)
	assert.Equal(t, "p.d (Tables: All)\n", buf.String())

	buf.Reset()
	_, handled = c.command(`\bogus`)
	assert.True(t, handled)
	assert.Contains(t, buf.String(), "Unknown command")

	quit, handled = c.command(`\q`)
	assert.True(t, quit)
	assert.True(t, handled)

	_, handled = c.command("SELECT 1;")
	assert.False(t, handled)
}
