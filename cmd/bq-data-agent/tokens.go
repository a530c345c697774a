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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bq-data-agent/internal/auth"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens for HTTP mode",
	}
	cmd.PersistentFlags().StringVar(&opts.tokenFile, "token-file", "", "Path to API token file (default: "+auth.DefaultTokenFileName+" next to the binary)")

	var annotation, expires string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a new API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := tokenFilePath(opts)
			if err != nil {
				return err
			}
			t := &tokenCommand{out: cmd.OutOrStdout(), in: bufio.NewReader(cmd.InOrStdin()), path: path}
			return t.add(annotation, expires, cmd.Flags().Changed("expires"))
		},
	}
	add.Flags().StringVar(&annotation, "annotation", "", "Note stored with the token")
	add.Flags().StringVar(&expires, "expires", "", "Expiry such as 30d, 2w, 1y or never")

	list := &cobra.Command{
		Use:   "list",
		Short: "List API tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := tokenFilePath(opts)
			if err != nil {
				return err
			}
			t := &tokenCommand{out: cmd.OutOrStdout(), path: path}
			return t.list()
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id-or-hash-prefix>",
		Short: "Remove an API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := tokenFilePath(opts)
			if err != nil {
				return err
			}
			t := &tokenCommand{out: cmd.OutOrStdout(), path: path}
			return t.remove(args[0])
		},
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}

func tokenFilePath(opts *rootOptions) (string, error) {
	if opts.tokenFile != "" {
		return opts.tokenFile, nil
	}
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return auth.GetDefaultTokenPath(execPath), nil
}

type tokenCommand struct {
	out  io.Writer
	in   *bufio.Reader
	path string
}

func (t *tokenCommand) ask(question string) string {
	fmt.Fprint(t.out, question)
	if t.in == nil {
		return ""
	}
	input, _ := t.in.ReadString('\n')
	return strings.TrimSpace(input)
}

// add creates a token, prompting for whatever the flags left out
func (t *tokenCommand) add(annotation, expires string, expiresSet bool) error {
	if _, err := os.Stat(t.path); os.IsNotExist(err) {
		fmt.Fprintf(t.out, "Creating new token file: %s\n", t.path)
	}
	store, err := auth.OpenTokenStore(t.path)
	if err != nil {
		return fmt.Errorf("failed to load token file: %w", err)
	}

	token, err := auth.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	hash := auth.HashToken(token)

	if annotation == "" {
		annotation = t.ask("Enter annotation/note for this token (optional): ")
	}
	if !expiresSet {
		expires = t.ask("Enter expiry duration (e.g., '30d', '1y', or 'never'): ")
	}

	var expiresAt *time.Time
	if expires != "" && expires != "never" {
		d, err := parseDuration(expires)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		expiry := time.Now().Add(d)
		expiresAt = &expiry
	}

	tokenID := fmt.Sprintf("token-%d", time.Now().UnixNano())
	if err := store.AddToken(tokenID, hash, annotation, expiresAt); err != nil {
		return fmt.Errorf("failed to add token: %w", err)
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("failed to save token file: %w", err)
	}

	rule := strings.Repeat("=", 70)
	fmt.Fprintln(t.out, "\n"+rule)
	fmt.Fprintln(t.out, "Token created successfully!")
	fmt.Fprintln(t.out, rule)
	fmt.Fprintf(t.out, "\nToken: %s\n", token)
	fmt.Fprintf(t.out, "Hash:  %s...\n", hash[:16])
	fmt.Fprintf(t.out, "ID:    %s\n", tokenID)
	if annotation != "" {
		fmt.Fprintf(t.out, "Note:  %s\n", annotation)
	}
	if expiresAt != nil {
		fmt.Fprintf(t.out, "Expires: %s\n", expiresAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(t.out, "Expires: Never")
	}
	fmt.Fprintln(t.out, rule)
	fmt.Fprintln(t.out, "\nIMPORTANT: Save this token securely - it will not be shown again!")
	fmt.Fprintln(t.out, "Use it in API requests with: Authorization: Bearer <token>")
	fmt.Fprintln(t.out, rule)
	return nil
}

func (t *tokenCommand) remove(identifier string) error {
	store, err := auth.LoadTokenStore(t.path)
	if err != nil {
		return fmt.Errorf("failed to load token file: %w", err)
	}
	if !store.RemoveToken(identifier) {
		return fmt.Errorf("token not found: %s", identifier)
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("failed to save token file: %w", err)
	}
	fmt.Fprintf(t.out, "Token removed successfully: %s\n", identifier)
	return nil
}

func (t *tokenCommand) list() error {
	store, err := auth.OpenTokenStore(t.path)
	if err != nil {
		return fmt.Errorf("failed to load token file: %w", err)
	}

	tokens := store.ListTokens()
	if len(tokens) == 0 {
		fmt.Fprintln(t.out, "No tokens found.")
		return nil
	}

	fmt.Fprintln(t.out, "\nAPI Tokens:")
	fmt.Fprintln(t.out, strings.Repeat("=", 80))
	fmt.Fprintf(t.out, "%-24s %-14s %-18s %-8s %s\n", "ID", "Hash Prefix", "Expires", "Status", "Annotation")
	fmt.Fprintln(t.out, strings.Repeat("-", 80))
	for _, token := range tokens {
		status := "Active"
		if token.Expired {
			status = "EXPIRED"
		}
		expiry := "Never"
		if token.ExpiresAt != nil {
			expiry = token.ExpiresAt.Format("2006-01-02 15:04")
		}
		annotation := token.Annotation
		if len(annotation) > 20 {
			annotation = annotation[:17] + "..."
		}
		fmt.Fprintf(t.out, "%-24s %-14s %-18s %-8s %s\n", token.ID, token.HashPrefix, expiry, status, annotation)
	}
	fmt.Fprintln(t.out, strings.Repeat("=", 80))
	return nil
}

// parseDuration parses durations like "30d", "1y", "2w", "12h"
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration format")
	}

	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || num <= 0 {
		return 0, fmt.Errorf("invalid number in duration: %q", s[:len(s)-1])
	}

	const day = 24 * time.Hour
	switch s[len(s)-1] {
	case 'h':
		return time.Duration(num) * time.Hour, nil
	case 'd':
		return time.Duration(num) * day, nil
	case 'w':
		return time.Duration(num) * 7 * day, nil
	case 'm':
		return time.Duration(num) * 30 * day, nil
	case 'y':
		return time.Duration(num) * 365 * day, nil
	default:
		return 0, fmt.Errorf("invalid duration unit: %c (use h, d, w, m, or y)", s[len(s)-1])
	}
}
