// Package parser turns raw markdown into a structured document: YAML front
// matter is decoded into well-known fields, everything else is carried as
// body content. Validation is a separate capability so doc-type rules can
// be swapped without touching the parse step.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// ParsedDocument is the result of a successful parse.
type ParsedDocument struct {
	Title     string
	Summary   string
	DocType   string
	Promotion string          // requested promotion level, "" when absent
	Content   string          // full raw text, front matter included
	Body      string          // text after the front matter block
	Metadata  json.RawMessage // custom front-matter fields, JSON-encoded
}

// ParseError reports content that could not be parsed. Field carries the
// offending front-matter key when one is known.
type ParseError struct {
	Field   string
	Message string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse error in %q: %s", e.Field, e.Message)
	}
	return "parse error: " + e.Message
}

// ValidationError reports a parsed document that was rejected by a
// validator, with field-level detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Message)
}

// Parser maps raw text to a structured document.
type Parser interface {
	Parse(rawText string) (*ParsedDocument, error)
}

// Validator is the capability interface for doc-type rules. Implementations
// return a *ValidationError to reject a document.
type Validator interface {
	Validate(doc *ParsedDocument) error
}

// frontMatter is the set of well-known keys. Unknown keys are preserved in
// Metadata.
type frontMatter struct {
	Title     string `yaml:"title"`
	Summary   string `yaml:"summary"`
	Type      string `yaml:"type"`
	Promotion string `yaml:"promotion"`
}

// MarkdownParser parses markdown documents with optional YAML front matter.
type MarkdownParser struct{}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// Parse decodes the front-matter block when present. Documents without
// front matter are accepted; the title falls back to the first heading.
func (p *MarkdownParser) Parse(rawText string) (*ParsedDocument, error) {
	fmBlock, body, hasFM := extractFrontMatter(rawText)

	doc := &ParsedDocument{
		Content: rawText,
		Body:    body,
		DocType: "note",
	}

	if hasFM {
		var fm frontMatter
		if err := yaml.Unmarshal([]byte(fmBlock), &fm); err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("invalid front matter: %v", err)}
		}

		var all map[string]any
		if err := yaml.Unmarshal([]byte(fmBlock), &all); err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("invalid front matter: %v", err)}
		}

		doc.Title = fm.Title
		doc.Summary = fm.Summary
		doc.Promotion = fm.Promotion
		if fm.Type != "" {
			doc.DocType = fm.Type
		}

		// Everything that isn't a well-known key becomes metadata.
		delete(all, "title")
		delete(all, "summary")
		delete(all, "type")
		delete(all, "promotion")
		if len(all) > 0 {
			raw, err := json.Marshal(all)
			if err != nil {
				return nil, &ParseError{Message: fmt.Sprintf("front matter not representable as JSON: %v", err)}
			}
			doc.Metadata = raw
		}
	}

	if doc.Title == "" {
		doc.Title = firstHeading(body)
	}

	return doc, nil
}

// extractFrontMatter returns the front-matter block (without delimiters),
// the remaining body, and whether a block was found. A block must start on
// the very first line.
func extractFrontMatter(rawText string) (string, string, bool) {
	if !strings.HasPrefix(rawText, frontMatterDelimiter+"\n") &&
		rawText != frontMatterDelimiter {
		return "", rawText, false
	}

	rest := strings.TrimPrefix(rawText, frontMatterDelimiter+"\n")
	idx := strings.Index(rest, "\n"+frontMatterDelimiter)
	if idx < 0 {
		return "", rawText, false
	}

	block := rest[:idx]
	body := rest[idx+len("\n"+frontMatterDelimiter):]
	body = strings.TrimPrefix(body, "\n")

	return block, body, true
}

// firstHeading returns the title of the first ATX heading, or "".
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			title := strings.TrimLeft(trimmed, "#")
			if strings.HasPrefix(title, " ") {
				return strings.TrimSpace(title)
			}
		}
	}
	return ""
}

// RuleValidator is the default Validator: a title must be present and the
// doc type must be one of the allowed set (any type when the set is empty).
type RuleValidator struct {
	AllowedTypes []string
}

func NewRuleValidator(allowedTypes ...string) *RuleValidator {
	return &RuleValidator{AllowedTypes: allowedTypes}
}

func (v *RuleValidator) Validate(doc *ParsedDocument) error {
	if strings.TrimSpace(doc.Title) == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}

	switch doc.Promotion {
	case "", "standard", "important", "critical":
	default:
		return &ValidationError{
			Field:   "promotion",
			Message: fmt.Sprintf("unknown promotion level %q", doc.Promotion),
		}
	}

	if len(v.AllowedTypes) == 0 {
		return nil
	}
	for _, t := range v.AllowedTypes {
		if doc.DocType == t {
			return nil
		}
	}
	return &ValidationError{
		Field:   "type",
		Message: fmt.Sprintf("unknown doc type %q (allowed: %s)", doc.DocType, strings.Join(v.AllowedTypes, ", ")),
	}
}
