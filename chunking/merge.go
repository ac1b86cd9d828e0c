package chunking

import (
	"fmt"
	"strings"

	"github.com/ragent-io/ragent/types"
)

// Section delimiters for image descriptions merged into page text
const (
	visualSectionOpen  = "--- Visual Content on This Page ---"
	visualSectionClose = "--- End Visual Content ---"
)

// MergePages folds per-page image descriptions into each page's text,
// chunks every page, and reindexes the chunks densely across the whole
// document. Pages with descriptions but no text become vision-only
// chunks; empty pages are dropped.
func (c *Chunker) MergePages(pages []*types.PageContent, descriptions map[int][]string) []Chunk {
	all := []Chunk{}

	for _, page := range pages {
		pageText := Sanitize(strings.TrimSpace(page.Text))
		pageDescriptions := descriptions[page.PageNumber]

		var combined string
		var kind types.ContentKind

		if len(pageDescriptions) > 0 {
			section := visualSection(pageDescriptions)
			if pageText != "" {
				combined = pageText + section
				kind = types.ContentKindMerged
			} else {
				combined = fmt.Sprintf("[Page %d - Visual Content Only]%s", page.PageNumber, section)
				kind = types.ContentKindVision
			}
		} else {
			combined = pageText
			kind = types.ContentKindText
		}

		if strings.TrimSpace(combined) == "" {
			continue
		}

		pageNumber := page.PageNumber
		all = append(all, c.ChunkText(combined, &pageNumber, kind)...)
	}

	for i := range all {
		all[i].Index = i
	}
	return all
}

// visualSection renders image descriptions as a delimited block,
// labeling each when a page carries more than one
func visualSection(descriptions []string) string {
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(visualSectionOpen)
	b.WriteString("\n")
	for i, desc := range descriptions {
		clean := Sanitize(desc)
		if len(descriptions) > 1 {
			fmt.Fprintf(&b, "\n[Image %d]\n%s\n", i+1, clean)
		} else {
			fmt.Fprintf(&b, "\n%s\n", clean)
		}
	}
	b.WriteString(visualSectionClose)
	b.WriteString("\n")
	return b.String()
}
