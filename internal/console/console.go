/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package console is an interactive SQL prompt running statements through
// the agent's query executor
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"bq-data-agent/internal/executor"
)

const (
	prompt             = "bq> "
	continuationPrompt = " -> "
)

const helpText = `Statements end with ';' and may span several lines.

Commands:
  \instructions   show the assembled instruction
  \scope          show the dataset scope
  \help           show this help
  \q              quit`

// Agent is what the console needs from the agent
type Agent interface {
	Execute(ctx context.Context, sql string, token *executor.DelegatedToken) string
	Instruction() string
}

// Config configures a console session
type Config struct {
	// HistoryFile keeps readline history between sessions
	HistoryFile string
	// Token is the delegated token used for every statement, or nil
	Token *executor.DelegatedToken
	// Scope is printed by \scope
	Scope string
}

// Console runs statements typed by the user
type Console struct {
	agent    Agent
	cfg      Config
	renderer *Renderer
	buffer   StatementBuffer
}

// New creates a console
func New(agent Agent, renderer *Renderer, cfg Config) *Console {
	return &Console{agent: agent, cfg: cfg, renderer: renderer}
}

// Run reads statements until EOF, interrupt, \q or ctx cancellation
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       c.cfg.HistoryFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         `\q`,
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	c.renderer.Print(`Connected to ` + c.cfg.Scope + `. Type \help for help.`)

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) && c.buffer.Pending() {
				c.buffer.Reset()
				rl.SetPrompt(prompt)
				continue
			}
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		if !c.buffer.Pending() {
			if quit, handled := c.command(strings.TrimSpace(line)); handled {
				if quit {
					return nil
				}
				continue
			}
		}

		stmt, complete := c.buffer.Feed(line)
		if !complete {
			if c.buffer.Pending() {
				rl.SetPrompt(continuationPrompt)
			}
			continue
		}
		rl.SetPrompt(prompt)

		c.renderer.Print(FormatResult(c.agent.Execute(ctx, stmt, c.cfg.Token)))
	}
}

// command handles backslash commands. quit is true for \q.
func (c *Console) command(line string) (quit, handled bool) {
	switch line {
	case `\q`, "exit", "quit":
		return true, true
	case `\help`, `\?`:
		c.renderer.Print(helpText)
	case `\instructions`:
		c.renderer.Print(c.agent.Instruction())
	case `\scope`:
		c.renderer.Print(c.cfg.Scope)
	default:
		if strings.HasPrefix(line, `\`) {
			c.renderer.Print(fmt.Sprintf(`Unknown command: %s (type \help for help)`, line))
			return false, true
		}
		return false, false
	}
	return false, true
}
