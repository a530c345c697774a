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
	"fmt"
	"strings"
)

// Placeholder names
const (
	PlaceholderDatasetDescription = "dataset_description"
	PlaceholderTableMetadata      = "table_metadata"
	PlaceholderDataProfiles       = "data_profiles"
	PlaceholderSamples            = "samples"
	PlaceholderFewShotExamples    = "few_shot_examples"
)

// Values holds the computed text for each placeholder
type Values struct {
	DatasetDescription string
	TableMetadata      string
	DataProfiles       string
	Samples            string
	FewShotExamples    string
}

// Pair is one placeholder and its substitution
type Pair struct {
	Name  string
	Value string
}

// Pairs returns the substitutions in their fixed order
func (v Values) Pairs() []Pair {
	return []Pair{
		{PlaceholderDatasetDescription, v.DatasetDescription},
		{PlaceholderTableMetadata, v.TableMetadata},
		{PlaceholderDataProfiles, v.DataProfiles},
		{PlaceholderSamples, v.Samples},
		{PlaceholderFewShotExamples, v.FewShotExamples},
	}
}

func isPlaceholder(name string) bool {
	for _, p := range (Values{}).Pairs() {
		if p.Name == name {
			return true
		}
	}
	return false
}

// render walks text once, replacing {name} with lookup(name) and {{ / }}
// with literal braces. Substituted text is written straight to the output
// and never rescanned, so braces inside values need no escaping.
func render(text string, lookup func(name string) (string, bool)) (string, error) {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d", ErrTemplatePlaceholder, i)
			}
			name := text[i+1 : i+1+end]
			value, ok := lookup(name)
			if !ok {
				return "", fmt.Errorf("%w: unknown placeholder {%s}", ErrTemplatePlaceholder, name)
			}
			b.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' at offset %d", ErrTemplatePlaceholder, i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
