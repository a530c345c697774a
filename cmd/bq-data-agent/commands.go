/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bq-data-agent/internal/agent"
	"bq-data-agent/internal/console"
)

func newInstructionsCmd(opts *rootOptions) *cobra.Command {
	var render, noColor bool
	cmd := &cobra.Command{
		Use:   "instructions",
		Short: "Assemble and print the agent instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a := agent.New(cfg)
			defer a.Close()
			if err := a.Build(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if render {
				console.NewRenderer(out, noColor).Print(a.Instruction())
				return nil
			}
			console.NewPlainRenderer(out).Print(a.Instruction())
			return nil
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "Render the markdown for the terminal")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors when rendering")
	return cmd
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var table bool
	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run one SQL statement through the query executor (reads stdin without an argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readSQL(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg, err := opts.load(cmd)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			// The query path needs no instruction.
			a := agent.New(cfg)
			defer a.Close()

			result := a.Execute(cmd.Context(), sql, opts.delegatedToken(cmd.Context(), cfg))
			if table {
				result = console.FormatResult(result)
			}
			console.NewPlainRenderer(cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&table, "table", false, "Print rows as a markdown table")
	return cmd
}

// readSQL takes the statement from args, or from in when none is given
func readSQL(args []string, in io.Reader) (string, error) {
	var sql string
	if len(args) == 1 {
		sql = args[0]
	} else {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read SQL from stdin: %w", err)
		}
		sql = string(data)
	}
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", fmt.Errorf("no SQL given")
	}
	return sql, nil
}

func newConsoleCmd(opts *rootOptions) *cobra.Command {
	var noColor bool
	var history string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive SQL console over the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a := agent.New(cfg)
			defer a.Close()
			if err := a.Build(cmd.Context()); err != nil {
				return err
			}

			if history == "" {
				if home, err := os.UserHomeDir(); err == nil {
					history = filepath.Join(home, ".bq-data-agent-history")
				}
			}

			c := console.New(a, console.NewRenderer(cmd.OutOrStdout(), noColor), console.Config{
				HistoryFile: history,
				Token:       opts.delegatedToken(cmd.Context(), cfg),
				Scope:       cfg.Scope().String(),
			})
			return c.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&history, "history", "", "History file (default: ~/.bq-data-agent-history)")
	return cmd
}
