/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package richtext normalises catalog descriptions for inclusion in the
// model context. Descriptions edited through the catalog UI are stored as
// HTML; the model reads markdown.
package richtext

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// ContainsHTML reports whether text has at least one HTML element. Plain
// text with stray angle brackets (e.g. "a < b") is not HTML.
func ContainsHTML(text string) bool {
	if !strings.Contains(text, "<") {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return false
	}
	return doc.Find("body").Children().Length() > 0 || doc.Find("body *").Length() > 0
}

// ToMarkdown converts HTML text to markdown. Text without HTML elements is
// returned trimmed but otherwise unchanged.
func ToMarkdown(text string) (string, error) {
	text = strings.TrimSpace(text)
	if !ContainsHTML(text) {
		return text, nil
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(text)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML description: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// Normalize is ToMarkdown that falls back to the original text on failure
func Normalize(text string) string {
	out, err := ToMarkdown(text)
	if err != nil {
		return strings.TrimSpace(text)
	}
	return out
}
