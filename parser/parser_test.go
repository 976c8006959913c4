package parser

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParse_FrontMatter(t *testing.T) {
	raw := `---
title: Release Checklist
summary: Steps for cutting a release
type: runbook
owner: platform
---

# Release Checklist

1. Tag the commit
`
	p := NewMarkdownParser()
	doc, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if doc.Title != "Release Checklist" {
		t.Errorf("expected title from front matter, got %q", doc.Title)
	}
	if doc.Summary != "Steps for cutting a release" {
		t.Errorf("unexpected summary: %q", doc.Summary)
	}
	if doc.DocType != "runbook" {
		t.Errorf("expected doc type 'runbook', got %q", doc.DocType)
	}
	if doc.Content != raw {
		t.Error("Content must carry the full raw text")
	}
	if strings.HasPrefix(doc.Body, "---") {
		t.Error("Body must not include the front-matter block")
	}

	var meta map[string]any
	if err := json.Unmarshal(doc.Metadata, &meta); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}
	if meta["owner"] != "platform" {
		t.Errorf("custom front-matter keys must survive in metadata, got %v", meta)
	}
}

func TestParse_NoFrontMatter(t *testing.T) {
	raw := "# Just a Heading\n\nsome text\n"
	doc, err := NewMarkdownParser().Parse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if doc.Title != "Just a Heading" {
		t.Errorf("title must fall back to first heading, got %q", doc.Title)
	}
	if doc.DocType != "note" {
		t.Errorf("expected default doc type 'note', got %q", doc.DocType)
	}
	if doc.Metadata != nil {
		t.Errorf("expected no metadata, got %s", doc.Metadata)
	}
}

func TestParse_InvalidFrontMatter(t *testing.T) {
	raw := "---\ntitle: [unclosed\n---\nbody\n"
	_, err := NewMarkdownParser().Parse(raw)

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestParse_UnterminatedFrontMatter(t *testing.T) {
	raw := "---\ntitle: x\nno closing delimiter\n"
	doc, err := NewMarkdownParser().Parse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	// Without a closing delimiter the whole text is body.
	if doc.Body != raw {
		t.Error("unterminated front matter must be treated as body")
	}
}

func TestRuleValidator(t *testing.T) {
	v := NewRuleValidator("note", "runbook")

	if err := v.Validate(&ParsedDocument{Title: "ok", DocType: "note"}); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}

	err := v.Validate(&ParsedDocument{Title: "", DocType: "note"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "title" {
		t.Errorf("expected title validation error, got %v", err)
	}

	err = v.Validate(&ParsedDocument{Title: "x", DocType: "bogus"})
	if !errors.As(err, &verr) || verr.Field != "type" {
		t.Errorf("expected type validation error, got %v", err)
	}
}

func TestParse_PromotionFrontMatter(t *testing.T) {
	raw := `---
title: Incident Playbook
promotion: critical
---

Steps here.
`
	p := NewMarkdownParser()
	doc, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.Promotion != "critical" {
		t.Errorf("expected promotion 'critical', got %q", doc.Promotion)
	}
	if doc.Metadata != nil {
		t.Errorf("promotion must not leak into metadata, got %s", doc.Metadata)
	}
}

func TestRuleValidator_Promotion(t *testing.T) {
	v := NewRuleValidator()

	for _, level := range []string{"", "standard", "important", "critical"} {
		if err := v.Validate(&ParsedDocument{Title: "x", Promotion: level}); err != nil {
			t.Errorf("promotion %q rejected: %v", level, err)
		}
	}

	err := v.Validate(&ParsedDocument{Title: "x", Promotion: "urgent"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "promotion" {
		t.Errorf("expected promotion validation error, got %v", err)
	}
}

func TestRuleValidator_EmptyAllowedTypes(t *testing.T) {
	v := NewRuleValidator()
	if err := v.Validate(&ParsedDocument{Title: "x", DocType: "anything"}); err != nil {
		t.Errorf("empty allowed set must accept any type: %v", err)
	}
}
