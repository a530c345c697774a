/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package instructions builds the system instruction handed to the model.
// Each data source is optional: a source that returns nothing is replaced
// by a fixed sentence, so the instruction is always complete.
package instructions

import (
	"context"
	"fmt"
	"strings"

	"bq-data-agent/internal/dataset"
	"bq-data-agent/internal/logging"
)

// Separator joins the blocks of one section
const Separator = "\n\n---\n\n"

// Placeholder sentences used when a source yields nothing
const (
	NoDatasetDescription = "Dataset description is not available."
	NoTableMetadata      = "Table metadata information is not available."
	NoDataProfiles       = "Data profile information is not available. Please refer to the sample data below."
	SamplesSuperseded    = "Full data profiles are provided; sample data section is omitted for brevity."
	NoFewShotExamples    = "Few-shot examples are not available for this dataset."
)

// NoSampleData names the scope whose samples could not be fetched
func NoSampleData(scope dataset.Scope) string {
	return fmt.Sprintf("Could not fetch sample data for the target scope: %s.", scope)
}

// DescriptionSource returns the dataset description, or "" when absent
type DescriptionSource interface {
	DatasetDescription(ctx context.Context) string
}

// MetadataSource returns one record per table in scope
type MetadataSource interface {
	TableMetadata(ctx context.Context) []dataset.TableMetadata
}

// ProfileSource returns one record per profiled column
type ProfileSource interface {
	DataProfiles(ctx context.Context) []dataset.DataProfile
}

// SampleSource returns up to limit rows per table
type SampleSource interface {
	SampleRows(ctx context.Context, limit int) []dataset.SampleRowSet
}

// ExampleSource returns pre-formatted few-shot examples
type ExampleSource interface {
	FewShotExamples(ctx context.Context) []string
}

// Sources groups the fetchers. A nil source counts as empty.
type Sources struct {
	Description DescriptionSource
	Metadata    MetadataSource
	Profiles    ProfileSource
	Samples     SampleSource
	Examples    ExampleSource
}

// Options configures an Assembler
type Options struct {
	// TemplatePath overrides the embedded template
	TemplatePath string
	// SampleRows bounds the rows shown per table
	SampleRows int
	// DisplayName tags log lines
	DisplayName string
}

// Assembler produces the Assembled Instruction for one scope
type Assembler struct {
	scope   dataset.Scope
	sources Sources
	opts    Options
}

// NewAssembler creates an assembler
func NewAssembler(scope dataset.Scope, sources Sources, opts Options) *Assembler {
	if opts.SampleRows <= 0 {
		opts.SampleRows = 3
	}
	return &Assembler{scope: scope, sources: sources, opts: opts}
}

// Assemble fetches every source in order and renders the template. Only
// template problems are returned as errors.
func (a *Assembler) Assemble(ctx context.Context) (string, error) {
	tmpl, err := LoadTemplate(a.opts.TemplatePath)
	if err != nil {
		logging.Error("instruction_template_invalid",
			"agent", a.opts.DisplayName,
			"path", a.opts.TemplatePath,
			"error", err,
		)
		return "", err
	}

	values := a.Values(ctx)
	out, err := tmpl.Render(values)
	if err != nil {
		return "", err
	}

	logging.Info("instruction_assembled",
		"agent", a.opts.DisplayName,
		"scope", a.scope.String(),
		"length", len(out),
	)
	return out, nil
}

// Values computes the five placeholder texts
func (a *Assembler) Values(ctx context.Context) Values {
	var v Values

	v.DatasetDescription = NoDatasetDescription
	if a.sources.Description != nil {
		if desc := strings.TrimSpace(a.sources.Description.DatasetDescription(ctx)); desc != "" {
			v.DatasetDescription = desc
		}
	}

	v.TableMetadata = NoTableMetadata
	if a.sources.Metadata != nil {
		if records := a.sources.Metadata.TableMetadata(ctx); len(records) > 0 {
			v.TableMetadata = a.formatMetadata(records)
		}
	}

	var profiles []dataset.DataProfile
	if a.sources.Profiles != nil {
		profiles = a.sources.Profiles.DataProfiles(ctx)
	}
	if len(profiles) > 0 {
		// Profiles are the denser source; samples are not fetched at all
		v.DataProfiles = a.formatProfiles(profiles)
		v.Samples = SamplesSuperseded
	} else {
		logging.Info("data_profiles_absent", "agent", a.opts.DisplayName)
		v.DataProfiles = NoDataProfiles

		var samples []dataset.SampleRowSet
		if a.sources.Samples != nil {
			samples = a.sources.Samples.SampleRows(ctx, a.opts.SampleRows)
		}
		if len(samples) > 0 {
			v.Samples = a.formatSamples(samples)
		} else {
			v.Samples = NoSampleData(a.scope)
			logging.Warn("sample_rows_absent",
				"agent", a.opts.DisplayName,
				"scope", a.scope.String(),
			)
		}
	}

	v.FewShotExamples = NoFewShotExamples
	if a.sources.Examples != nil {
		if examples := a.sources.Examples.FewShotExamples(ctx); len(examples) > 0 {
			v.FewShotExamples = strings.Join(examples, Separator)
		}
	}

	return v
}

func (a *Assembler) formatMetadata(records []dataset.TableMetadata) string {
	blocks := make([]string, 0, len(records))
	for _, rec := range records {
		body, err := dataset.MarshalPretty(rec)
		if err != nil {
			logging.Warn("table_metadata_unserializable",
				"agent", a.opts.DisplayName,
				"table", rec.TableName,
				"error", err,
			)
			blocks = append(blocks, "Table metadata contains non-serializable data.")
			continue
		}
		blocks = append(blocks, "**Table Entry Metadata:**\n```json\n"+body+"\n```")
	}
	return strings.Join(blocks, Separator)
}

func (a *Assembler) formatProfiles(profiles []dataset.DataProfile) string {
	blocks := make([]string, 0, len(profiles))
	for _, p := range profiles {
		body, err := dataset.MarshalPretty(p.Record)
		if err != nil {
			logging.Warn("data_profile_unserializable",
				"agent", a.opts.DisplayName,
				"table", p.SourceTableID,
				"column", p.ColumnName,
				"error", err,
			)
			body = fmt.Sprintf("Profile for column '%s' in table '%s' contains non-serializable data.",
				p.ColumnName, p.SourceTableID)
		}
		blocks = append(blocks, fmt.Sprintf("Data profile for column '%s' in table '%s':\n%s",
			p.ColumnName, p.SourceTableID, body))
	}
	return strings.Join(blocks, Separator)
}

func (a *Assembler) formatSamples(sets []dataset.SampleRowSet) string {
	blocks := make([]string, 0, len(sets))
	for _, set := range sets {
		rows := set.Rows
		if len(rows) > a.opts.SampleRows {
			rows = rows[:a.opts.SampleRows]
		}
		if rows == nil {
			rows = []dataset.Row{}
		}
		body, err := dataset.MarshalPretty(rows)
		if err != nil {
			logging.Warn("sample_rows_unserializable",
				"agent", a.opts.DisplayName,
				"table", set.TableName,
				"error", err,
			)
			body = fmt.Sprintf("Sample rows for table %s contain non-serializable data.", set.TableName)
		}
		blocks = append(blocks, fmt.Sprintf("**Sample Data for table `%s` (first %d rows):**\n```json\n%s\n```",
			set.TableName, len(rows), body))
	}
	return strings.Join(blocks, Separator)
}
