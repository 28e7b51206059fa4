package prd

import (
	"fmt"
	"regexp"
	"strings"
)

// Recognized story header shapes, case-insensitive on the ID prefix:
//   #### US-1.1: Title        (Markdown heading, levels 2-6)
//   **US-1.1: Title**
//   **US-1.1:** Title
var (
	headingStoryRe = regexp.MustCompile(`(?i)^#{2,6}\s*([A-Z]+-[\w.]+)\s*:\s*(.+)$`)
	boldStoryRe    = regexp.MustCompile(`(?i)^\*\*([A-Z]+-[\w.]+)\s*:\s*(.+?)\*\*\s*$`)
	boldColonRe    = regexp.MustCompile(`(?i)^\*\*([A-Z]+-[\w.]+)\s*:\*\*\s*(.+)$`)

	topLevelSectionRe   = regexp.MustCompile(`^##\s+(.+)$`)
	acceptanceHeadingRe = regexp.MustCompile(`(?i)^#{2,6}\s*Acceptance Criteria\s*$`)
	acceptanceBoldRe    = regexp.MustCompile(`(?i)^\*\*Acceptance Criteria:?\*\*\s*(.*)$`)
	checkboxRe          = regexp.MustCompile(`^\s*-\s*\[([ xX])\]\s*(.+)$`)
)

// ParseMarkdown turns a Markdown PRD document into Story records. If no
// recognized story headers are found, it falls back to treating top-level
// "## " sections as task-N stories, skipping a section literally titled
// "Overview". Duplicate IDs are deduplicated with first-occurrence-wins.
func ParseMarkdown(doc string) []Story {
	lines := strings.Split(doc, "\n")

	type block struct {
		id    string
		title string
		start int // index of first body line (after header)
	}

	var blocks []block
	for i, line := range lines {
		if m := headingStoryRe.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, block{id: m[1], title: strings.TrimSpace(m[2]), start: i + 1})
			continue
		}
		if m := boldStoryRe.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, block{id: m[1], title: strings.TrimSpace(m[2]), start: i + 1})
			continue
		}
		if m := boldColonRe.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, block{id: m[1], title: strings.TrimSpace(m[2]), start: i + 1})
			continue
		}
	}

	if len(blocks) == 0 {
		return parseFallbackSections(lines)
	}

	seen := make(map[string]bool, len(blocks))
	var stories []Story
	for i, b := range blocks {
		if seen[b.id] {
			continue
		}
		seen[b.id] = true

		end := len(lines)
		if i+1 < len(blocks) {
			// The next block's header line is one before its body start.
			end = blocks[i+1].start - 1
		}
		body := lines[b.start:end]

		desc, acceptance := splitBody(body)
		stories = append(stories, Story{
			ID:                 b.id,
			Title:              b.title,
			Description:        desc,
			AcceptanceCriteria: acceptance,
		})
	}
	return stories
}

// parseFallbackSections treats each top-level "## " section as a
// "task-N" story when no recognized story headers were found anywhere in
// the document.
func parseFallbackSections(lines []string) []Story {
	type section struct {
		title string
		start int
	}
	var sections []section
	for i, line := range lines {
		if m := topLevelSectionRe.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[1])
			if strings.EqualFold(title, "Overview") {
				continue
			}
			sections = append(sections, section{title: title, start: i + 1})
		}
	}

	var stories []Story
	for i, s := range sections {
		end := len(lines)
		if i+1 < len(sections) {
			end = sections[i+1].start - 1
		}
		desc, acceptance := splitBody(lines[s.start:end])
		stories = append(stories, Story{
			ID:                 fmt.Sprintf("task-%d", i+1),
			Title:              s.title,
			Description:        desc,
			AcceptanceCriteria: acceptance,
		})
	}
	return stories
}

// splitBody separates a story's body into free-text description and
// acceptance criteria, preferring an explicit "Acceptance Criteria"
// sub-section and otherwise collecting any "- [ ]" checkbox lines found
// anywhere in the body.
func splitBody(body []string) (description string, acceptance []string) {
	acceptanceStart := -1
	headerAt := -1
	for i, line := range body {
		if acceptanceHeadingRe.MatchString(line) {
			headerAt = i
			acceptanceStart = i + 1
			break
		}
		if m := acceptanceBoldRe.FindStringSubmatch(line); m != nil {
			headerAt = i
			if strings.TrimSpace(m[1]) != "" {
				acceptance = append(acceptance, strings.TrimSpace(m[1]))
			}
			acceptanceStart = i + 1
			break
		}
	}

	var descLines []string
	if acceptanceStart >= 0 {
		descLines = body[:headerAt]
		for _, line := range body[acceptanceStart:] {
			if m := checkboxRe.FindStringSubmatch(line); m != nil {
				acceptance = append(acceptance, strings.TrimSpace(m[2]))
				continue
			}
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				acceptance = append(acceptance, trimmed)
			}
		}
	} else {
		descLines = body
		for _, line := range body {
			if m := checkboxRe.FindStringSubmatch(line); m != nil {
				acceptance = append(acceptance, strings.TrimSpace(m[2]))
			}
		}
	}

	description = strings.TrimSpace(strings.Join(descLines, "\n"))
	return description, acceptance
}

// ToMarkdown renders a PRD back into the heading-story shape ParseMarkdown
// recognizes, so the two round-trip for stories that don't use the
// fallback top-level-section form.
func (p *PRD) ToMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", p.Description)
	}
	for _, s := range p.UserStories {
		fmt.Fprintf(&b, "#### %s: %s\n\n", s.ID, s.Title)
		if s.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", s.Description)
		}
		if len(s.AcceptanceCriteria) > 0 {
			b.WriteString("**Acceptance Criteria:**\n\n")
			for _, a := range s.AcceptanceCriteria {
				fmt.Fprintf(&b, "- [ ] %s\n", a)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
