/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bq-data-agent/internal/logging"
)

// clearEnv unsets every variable the loader reads and restores them after
// the test. An empty value is not the same as unset for envconfig.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{EnvFileVariable}
	typ := reflect.TypeOf(envOverrides{})
	for i := 0; i < typ.NumField(); i++ {
		keys = append(keys, typ.Field(i).Tag.Get("envconfig"))
	}
	for _, key := range keys {
		if old, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { os.Setenv(key, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func isolated(flags CLIFlags) CLIFlags {
	if !flags.EnvFileSet {
		flags.EnvFile = filepath.Join(os.TempDir(), "bq-data-agent-missing.env")
		flags.EnvFileSet = false
	}
	return flags
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.False(t, cfg.HTTP.Enabled)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.False(t, cfg.HTTP.TLS.Enabled)
	assert.True(t, cfg.HTTP.Auth.Enabled)
	assert.Equal(t, DefaultDisplayName, cfg.Agent.DisplayName)
	assert.Equal(t, DefaultDescription, cfg.Agent.Description)
	assert.Equal(t, DefaultLocation, cfg.BigQuery.Location)
	assert.Equal(t, DefaultSampleRows, cfg.Context.SampleRows)
	assert.Equal(t, float64(DefaultMaxPercentNull), cfg.Context.MaxPercentNull)
	assert.Equal(t, MetadataSourceDataplex, cfg.Context.MetadataSource)
}

func TestLoadConfigWithoutScopeIsValid(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("", isolated(CLIFlags{}))
	require.NoError(t, err)
	assert.False(t, cfg.Scope().Configured())
	assert.True(t, cfg.Scope().AllTables())
}

func TestLoadConfigPrecedence(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "agent.yaml", `
agent:
  display_name: FILE_AGENT
bigquery:
  project_id: file-project
  dataset: file_dataset
  tables: [a, b]
context:
  sample_rows: 5
`)

	t.Setenv("PROJECT_ID", "env-project")
	t.Setenv("TABLE_NAMES", " orders, ,customers ")

	cfg, err := LoadConfig(path, isolated(CLIFlags{
		ConfigFileSet: true,
		DatasetSet:    true,
		Dataset:       "flag_dataset",
	}))
	require.NoError(t, err)

	assert.Equal(t, "FILE_AGENT", cfg.Agent.DisplayName, "file overrides default")
	assert.Equal(t, "env-project", cfg.BigQuery.ProjectID, "env overrides file")
	assert.Equal(t, []string{"orders", "customers"}, cfg.BigQuery.Tables)
	assert.Equal(t, "flag_dataset", cfg.BigQuery.Dataset, "flag overrides file")
	assert.Equal(t, 5, cfg.Context.SampleRows)
}

func TestEmptyTableNamesMeansAllTables(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "agent.yaml", "bigquery:\n  tables: [a]\n")
	t.Setenv("TABLE_NAMES", "")

	cfg, err := LoadConfig(path, isolated(CLIFlags{ConfigFileSet: true}))
	require.NoError(t, err)
	assert.True(t, cfg.Scope().AllTables())
}

func TestExplicitConfigFileMustExist(t *testing.T) {
	clearEnv(t)

	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := LoadConfig(missing, isolated(CLIFlags{ConfigFileSet: true}))
	require.Error(t, err)

	_, err = LoadConfig(missing, isolated(CLIFlags{}))
	require.NoError(t, err, "default path may be absent")
}

func TestEnvFileDoesNotOverrideProcessEnv(t *testing.T) {
	clearEnv(t)

	envFile := writeFile(t, "agent.env", `
# comment
export DATASET_NAME="from_file"
PROJECT_ID='file-project'
AUTH_ID=bq-auth
`)
	t.Setenv("PROJECT_ID", "process-project")

	cfg, err := LoadConfig("", CLIFlags{EnvFile: envFile, EnvFileSet: true})
	require.NoError(t, err)

	assert.Equal(t, "process-project", cfg.BigQuery.ProjectID)
	assert.Equal(t, "from_file", cfg.BigQuery.Dataset)
	assert.Equal(t, "bq-auth", cfg.Agent.AuthID)
}

func TestInvalidEnvironmentValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("BQ_AGENT_SAMPLE_ROWS", "three")

	_, err := LoadConfig("", isolated(CLIFlags{}))
	require.Error(t, err)
}

func TestBlankEnvironmentValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	for _, key := range []string{
		"BQ_AGENT_SAMPLE_ROWS", "BQ_AGENT_MAX_PERCENT_NULL",
		"BQ_AGENT_HTTP_ENABLED", "BQ_AGENT_TLS_ENABLED", "BQ_AGENT_AUTH_ENABLED",
	} {
		t.Setenv(key, " ")
	}

	path := writeFile(t, "agent.yaml", "context:\n  sample_rows: 7\n")
	cfg, err := LoadConfig(path, isolated(CLIFlags{}))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Context.SampleRows, "file value survives a blank variable")
	assert.Equal(t, float64(DefaultMaxPercentNull), cfg.Context.MaxPercentNull)
	assert.False(t, cfg.HTTP.Enabled)
	assert.False(t, cfg.HTTP.TLS.Enabled)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tls without http", func(c *Config) { c.HTTP.TLS.Enabled = true }},
		{"tls without cert", func(c *Config) {
			c.HTTP.Enabled = true
			c.HTTP.Auth.Enabled = false
			c.HTTP.TLS.Enabled = true
			c.HTTP.TLS.CertFile = ""
		}},
		{"auth without token file", func(c *Config) { c.HTTP.Enabled = true }},
		{"zero sample rows", func(c *Config) { c.Context.SampleRows = 0 }},
		{"too many sample rows", func(c *Config) { c.Context.SampleRows = 101 }},
		{"unknown metadata source", func(c *Config) { c.Context.MetadataSource = "hive" }},
		{"percent null over 100", func(c *Config) { c.Context.MaxPercentNull = 120 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	require.NoError(t, validateConfig(defaultConfig()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestScopeIsACopy(t *testing.T) {
	cfg := defaultConfig()
	cfg.BigQuery.ProjectID = "p"
	cfg.BigQuery.Dataset = "d"
	cfg.BigQuery.Tables = []string{"a"}

	scope := cfg.Scope()
	scope.TableNames[0] = "changed"
	assert.Equal(t, "a", cfg.BigQuery.Tables[0])
	assert.Equal(t, "p.d (Tables: a)", cfg.Scope().String())
}

func TestLevel(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, logging.LevelInfo, cfg.Level())
	cfg.LogLevel = "debug"
	assert.Equal(t, logging.LevelDebug, cfg.Level())
}

func TestDefaultTokenFileAppliesOnlyToHTTP(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("", isolated(CLIFlags{
		HTTPEnabled:      true,
		HTTPEnabledSet:   true,
		DefaultTokenFile: "/opt/agent/tokens.yaml",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/opt/agent/tokens.yaml", cfg.HTTP.Auth.TokenFile)

	cfg, err = LoadConfig("", isolated(CLIFlags{DefaultTokenFile: "/opt/agent/tokens.yaml"}))
	require.NoError(t, err)
	assert.Empty(t, cfg.HTTP.Auth.TokenFile)

	_, err = LoadConfig("", isolated(CLIFlags{HTTPEnabled: true, HTTPEnabledSet: true}))
	assert.Error(t, err, "HTTP auth without any token file")
}
