// Package splitter breaks markdown content into sections along heading
// boundaries. The split is a pure function of the input: identical content
// always produces identical sections, which is what makes re-chunking a
// document idempotent.
package splitter

import (
	"strings"
)

// Section is one contiguous span of a markdown document.
type Section struct {
	// HeaderPath is the breadcrumb of enclosing headings, e.g.
	// "Setup > Installation". Empty for content before the first heading
	// or for documents without headings.
	HeaderPath string
	Content    string
	StartLine  int // 1-based, inclusive
	EndLine    int // 1-based, inclusive
}

// headerPathSeparator joins heading levels in a breadcrumb.
const headerPathSeparator = " > "

// Split divides content into sections at ATX headings (#, ##, ...).
// Headings inside fenced code blocks are ignored. When the content has no
// headings at all, a single section spanning the whole document is
// returned. Non-empty input always yields at least one section; only the
// empty string yields none.
func Split(content string) []Section {
	if content == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	boundaries := headingLines(lines)

	if len(boundaries) == 0 {
		return []Section{{
			HeaderPath: "",
			Content:    content,
			StartLine:  1,
			EndLine:    len(lines),
		}}
	}

	var sections []Section

	// Preamble before the first heading.
	if boundaries[0].line > 0 {
		pre := strings.Join(lines[:boundaries[0].line], "\n")
		if strings.TrimSpace(pre) != "" {
			sections = append(sections, Section{
				HeaderPath: "",
				Content:    pre,
				StartLine:  1,
				EndLine:    boundaries[0].line,
			})
		}
	}

	// trail tracks the current heading breadcrumb by level.
	trail := make(map[int]string)

	for i, b := range boundaries {
		trail[b.level] = b.title
		for lvl := b.level + 1; lvl <= 6; lvl++ {
			delete(trail, lvl)
		}

		end := len(lines)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].line
		}

		body := strings.Join(lines[b.line:end], "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}

		sections = append(sections, Section{
			HeaderPath: breadcrumb(trail, b.level),
			Content:    body,
			StartLine:  b.line + 1,
			EndLine:    end,
		})
	}

	// All-heading edge case: headings with empty bodies produced nothing.
	if len(sections) == 0 {
		return []Section{{
			HeaderPath: "",
			Content:    content,
			StartLine:  1,
			EndLine:    len(lines),
		}}
	}

	return sections
}

type heading struct {
	line  int // 0-based index into lines
	level int
	title string
}

// headingLines finds ATX headings outside fenced code blocks.
func headingLines(lines []string) []heading {
	var found []heading
	inFence := false
	fenceMarker := ""

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if inFence {
			if strings.HasPrefix(trimmed, fenceMarker) {
				inFence = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = true
			fenceMarker = trimmed[:3]
			continue
		}

		level, title, ok := parseHeading(line)
		if ok {
			found = append(found, heading{line: i, level: level, title: title})
		}
	}

	return found
}

// parseHeading returns the level and title of an ATX heading line. A valid
// heading is 1-6 '#' characters followed by a space and a non-empty title.
func parseHeading(line string) (int, string, bool) {
	s := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(s, "#") {
		return 0, "", false
	}

	level := 0
	for level < len(s) && s[level] == '#' {
		level++
	}
	if level > 6 || level == len(s) || s[level] != ' ' {
		return 0, "", false
	}

	title := strings.TrimSpace(s[level+1:])
	title = strings.TrimRight(title, "# ")
	if title == "" {
		return 0, "", false
	}

	return level, title, true
}

// breadcrumb assembles the heading trail up to and including level.
func breadcrumb(trail map[int]string, level int) string {
	var parts []string
	for lvl := 1; lvl <= level; lvl++ {
		if title, ok := trail[lvl]; ok {
			parts = append(parts, title)
		}
	}
	return strings.Join(parts, headerPathSeparator)
}
