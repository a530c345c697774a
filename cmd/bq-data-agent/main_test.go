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
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bq-data-agent/internal/auth"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "12h", want: 12 * time.Hour},
		{in: "30d", want: 30 * 24 * time.Hour},
		{in: "2w", want: 14 * 24 * time.Hour},
		{in: "1m", want: 30 * 24 * time.Hour},
		{in: "1y", want: 365 * 24 * time.Hour},
		{in: "d", wantErr: true},
		{in: "xd", wantErr: true},
		{in: "0d", wantErr: true},
		{in: "5s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCLIFlagsRecordOnlyChangedFlags(t *testing.T) {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)

	require.NoError(t, serve.ParseFlags([]string{
		"--http", "--no-auth", "--dataset", "sales", "--sample-rows", "5", "--tables", "a,b",
	}))
	f := opts.cliFlags(serve.Flags())

	assert.True(t, f.HTTPEnabledSet)
	assert.True(t, f.HTTPEnabled)
	assert.True(t, f.AuthEnabledSet)
	assert.False(t, f.AuthEnabled, "--no-auth disables auth")
	assert.True(t, f.DatasetSet)
	assert.Equal(t, "sales", f.Dataset)
	assert.True(t, f.SampleRowsSet)
	assert.Equal(t, 5, f.SampleRows)
	assert.Equal(t, "a,b", f.Tables)

	assert.False(t, f.ProjectIDSet)
	assert.False(t, f.TLSEnabledSet)
	assert.False(t, f.ConfigFileSet)
}

func TestReadSQL(t *testing.T) {
	sql, err := readSQL([]string{"  SELECT 1  "}, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)

	sql, err = readSQL(nil, strings.NewReader("SELECT 2\n"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", sql)

	_, err = readSQL(nil, strings.NewReader(" \n"))
	assert.Error(t, err)
}

func TestTokenCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	var out bytes.Buffer
	tc := &tokenCommand{out: &out, path: path}

	require.NoError(t, tc.add("ci runner", "never", true))
	assert.Contains(t, out.String(), "Token created successfully!")
	assert.Contains(t, out.String(), "Expires: Never")

	store, err := auth.LoadTokenStore(path)
	require.NoError(t, err)
	tokens := store.ListTokens()
	require.Len(t, tokens, 1)
	assert.Equal(t, "ci runner", tokens[0].Annotation)

	out.Reset()
	require.NoError(t, tc.list())
	assert.Contains(t, out.String(), tokens[0].ID)
	assert.Contains(t, out.String(), "Active")

	out.Reset()
	assert.Error(t, tc.remove("token-missing"))
	require.NoError(t, tc.remove(tokens[0].ID))
	assert.Contains(t, out.String(), "Token removed successfully")

	out.Reset()
	require.NoError(t, tc.list())
	assert.Equal(t, "No tokens found.\n", out.String())
}

func TestTokenAddPromptsForMissingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	var out bytes.Buffer
	tc := &tokenCommand{
		out:  &out,
		in:   bufio.NewReader(strings.NewReader("prompted note\n7d\n")),
		path: path,
	}

	require.NoError(t, tc.add("", "", false))

	store, err := auth.LoadTokenStore(path)
	require.NoError(t, err)
	tokens := store.ListTokens()
	require.Len(t, tokens, 1)
	assert.Equal(t, "prompted note", tokens[0].Annotation)
	require.NotNil(t, tokens[0].ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), *tokens[0].ExpiresAt, time.Minute)
}
