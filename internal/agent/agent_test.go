/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package agent

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bq-data-agent/internal/config"
	"bq-data-agent/internal/dataset"
	"bq-data-agent/internal/executor"
	"bq-data-agent/internal/instructions"
	"bq-data-agent/internal/logging"
)

type staticDescription string

func (s staticDescription) DatasetDescription(context.Context) string { return string(s) }

type recordingEngine struct {
	mu    sync.Mutex
	creds []executor.Credentials
}

func (e *recordingEngine) Query(_ context.Context, _ string, creds executor.Credentials, _ string) ([]dataset.Row, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.creds = append(e.creds, creds)
	return []dataset.Row{dataset.NewRow([]string{"n"}, []interface{}{int64(1)})}, nil
}

func quiet(t *testing.T) {
	t.Helper()
	var buf bytes.Buffer
	prev := logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(prev) })
}

func testConfig(templatePath string) *config.Config {
	return &config.Config{
		Agent: config.AgentConfig{
			Model:       config.DefaultModel,
			DisplayName: "TEST_AGENT",
			Description: config.DefaultDescription,
			AuthID:      "bq-auth",
		},
		BigQuery: config.BigQueryConfig{ProjectID: "proj", Dataset: "sales"},
		Context: config.ContextConfig{
			TemplatePath:   templatePath,
			MetadataSource: config.MetadataSourceBigQuery,
			SampleRows:     3,
			MaxPercentNull: 90,
		},
	}
}

func template(marker string) string {
	return "overall_workflow: \"" + marker + "\"\n" +
		"bigquery_data_schema_and_context: \"{dataset_description}\\n{table_metadata}\"\n" +
		"critical_joining_logic_and_context: \"Join carefully.\"\n" +
		"data_profile_information: \"{data_profiles}\\n{samples}\"\n" +
		"few_shot_examples: \"{few_shot_examples}\"\n"
}

func writeTemplate(t *testing.T, path, marker string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(template(marker)), 0600))
}

func TestBuildUsesEmbeddedTemplate(t *testing.T) {
	quiet(t)
	a := NewWithSources(testConfig(""), instructions.Sources{
		Description: staticDescription("Web shop orders."),
	}, &recordingEngine{})

	assert.False(t, a.Ready())
	require.NoError(t, a.Build(context.Background()))
	assert.True(t, a.Ready())
	assert.Contains(t, a.Instruction(), "Web shop orders.")
	assert.Contains(t, a.Instruction(), instructions.NoTableMetadata)
}

func TestBuildFailsOnMissingTemplate(t *testing.T) {
	quiet(t)
	a := NewWithSources(testConfig(filepath.Join(t.TempDir(), "absent.yaml")), instructions.Sources{}, &recordingEngine{})

	err := a.Build(context.Background())
	assert.ErrorIs(t, err, instructions.ErrTemplateNotFound)
	assert.False(t, a.Ready())
}

func TestRebuildKeepsPreviousInstructionOnFailure(t *testing.T) {
	quiet(t)
	path := filepath.Join(t.TempDir(), "template.yaml")
	writeTemplate(t, path, "first version")

	a := NewWithSources(testConfig(path), instructions.Sources{}, &recordingEngine{})
	require.NoError(t, a.Build(context.Background()))
	assert.True(t, strings.HasPrefix(a.Instruction(), "first version"))

	require.NoError(t, os.WriteFile(path, []byte("overall_workflow: \"{unknown}\"\n"), 0600))
	assert.Error(t, a.Rebuild(context.Background()))
	assert.True(t, strings.HasPrefix(a.Instruction(), "first version"))

	writeTemplate(t, path, "second version")
	require.NoError(t, a.Rebuild(context.Background()))
	assert.True(t, strings.HasPrefix(a.Instruction(), "second version"))
}

func TestWatchTemplateRebuildsOnChange(t *testing.T) {
	quiet(t)
	path := filepath.Join(t.TempDir(), "template.yaml")
	writeTemplate(t, path, "before edit")

	a := NewWithSources(testConfig(path), instructions.Sources{}, &recordingEngine{})
	require.NoError(t, a.Build(context.Background()))
	require.NoError(t, a.WatchTemplate(context.Background()))
	defer a.Close()

	writeTemplate(t, path, "after edit")
	assert.Eventually(t, func() bool {
		return strings.HasPrefix(a.Instruction(), "after edit")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatchTemplateWithoutPathIsNoop(t *testing.T) {
	a := NewWithSources(testConfig(""), instructions.Sources{}, &recordingEngine{})
	require.NoError(t, a.WatchTemplate(context.Background()))
	assert.NotPanics(t, a.Close)
}

func TestExecuteResolvesDelegation(t *testing.T) {
	quiet(t)
	engine := &recordingEngine{}
	a := NewWithSources(testConfig(""), instructions.Sources{}, engine)

	assert.Equal(t, "bq-auth", a.AuthID())
	assert.Equal(t, "[\n  {\n    \"n\": 1\n  }\n]", a.Execute(context.Background(), "SELECT 1", nil))
	a.Execute(context.Background(), "SELECT 1", &executor.DelegatedToken{AuthID: "bq-auth", AccessToken: "tok"})
	a.Execute(context.Background(), "SELECT 1", &executor.DelegatedToken{AuthID: "other", AccessToken: "tok"})

	require.Len(t, engine.creds, 3)
	assert.False(t, engine.creds[0].Delegated())
	assert.Equal(t, "tok", engine.creds[1].AccessToken)
	assert.False(t, engine.creds[2].Delegated())
}

func TestIdentity(t *testing.T) {
	a := NewWithSources(testConfig(""), instructions.Sources{}, &recordingEngine{})
	assert.Equal(t, "TEST_AGENT", a.Name())
	assert.Equal(t, config.DefaultDescription, a.Description())
	assert.Equal(t, config.DefaultModel, a.Model())
	assert.Equal(t, dataset.Scope{ProjectID: "proj", DatasetID: "sales"}, a.Scope())
}
