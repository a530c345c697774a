/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package instructions

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed instructions.yaml
var defaultTemplate []byte

// Template errors. All of them are fatal: no instruction can be built.
var (
	ErrTemplateNotFound    = errors.New("instruction template not found")
	ErrTemplateMalformed   = errors.New("instruction template is not valid YAML")
	ErrTemplateEmpty       = errors.New("instruction template is empty")
	ErrTemplateSection     = errors.New("instruction template is missing a required section")
	ErrTemplatePlaceholder = errors.New("instruction template has an invalid placeholder")
)

// Section is one named part of the template document
type Section struct {
	Key      string
	Required bool
}

// Sections lists the template sections in the order they are joined
var Sections = []Section{
	{Key: "overall_workflow", Required: true},
	{Key: "bigquery_data_schema_and_context", Required: true},
	{Key: "table_schema_and_join_information"},
	{Key: "critical_joining_logic_and_context", Required: true},
	{Key: "data_profile_information", Required: true},
	{Key: "sample_data"},
	{Key: "few_shot_examples", Required: true},
}

// Template is a validated instruction template
type Template struct {
	text string
}

// LoadTemplate reads the template at path, or the embedded default when
// path is empty
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return ParseTemplate(defaultTemplate)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return nil, fmt.Errorf("failed to read instruction template %s: %w", path, err)
	}
	tmpl, err := ParseTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tmpl, nil
}

// ParseTemplate validates a template document. Present sections are joined
// with a newline in the order of Sections, and every placeholder must be
// one of the known names.
func ParseTemplate(data []byte) (*Template, error) {
	var doc map[string]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateMalformed, err)
	}

	var parts []string
	var missing []string
	for _, s := range Sections {
		text := doc[s.Key]
		if strings.TrimSpace(text) == "" {
			if s.Required {
				missing = append(missing, s.Key)
			}
			continue
		}
		parts = append(parts, text)
	}

	text := strings.Join(parts, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, ErrTemplateEmpty
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrTemplateSection, strings.Join(missing, ", "))
	}

	tmpl := &Template{text: text}
	if _, err := render(text, func(name string) (string, bool) {
		return "", isPlaceholder(name)
	}); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// Text returns the joined template before substitution
func (t *Template) Text() string {
	return t.text
}

// Render substitutes values into the template
func (t *Template) Render(values Values) (string, error) {
	pairs := values.Pairs()
	return render(t.text, func(name string) (string, bool) {
		for _, p := range pairs {
			if p.Name == name {
				return p.Value, true
			}
		}
		return "", false
	})
}
