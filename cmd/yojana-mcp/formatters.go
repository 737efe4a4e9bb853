package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/yojana/internal/models"
)

// formatAnswer formats a pipeline response as markdown
func formatAnswer(resp *models.QueryResponse) string {
	var sb strings.Builder

	if !resp.Success {
		sb.WriteString(fmt.Sprintf("**Could not answer** (%s)\n\n", resp.Error.Type))
		sb.WriteString(resp.Error.Message)
		sb.WriteString("\n")
		if resp.Error.FallbackURL != "" {
			sb.WriteString(fmt.Sprintf("\n**Official portal:** %s\n", resp.Error.FallbackURL))
		}
		if resp.Error.RetryAfterMs != nil {
			sb.WriteString(fmt.Sprintf("**Retry after:** %s\n", time.Duration(*resp.Error.RetryAfterMs)*time.Millisecond))
		}
		return sb.String()
	}

	data := resp.Data
	sb.WriteString(data.Answer)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("**Confidence:** %s", data.Confidence))
	if data.Cached {
		sb.WriteString(" (cached)")
	}
	sb.WriteString("\n")

	if len(data.Citations) > 0 {
		sb.WriteString("\n## Sources\n\n")
		for _, c := range data.Citations {
			sb.WriteString(fmt.Sprintf("[%d] **%s**", c.Number, c.DocumentTitle))
			if c.Section != "" {
				sb.WriteString(fmt.Sprintf(", %s", c.Section))
			}
			if c.Page > 0 {
				sb.WriteString(fmt.Sprintf(", page %d", c.Page))
			}
			if c.ReferenceNumber != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", c.ReferenceNumber))
			}
			sb.WriteString("\n")
			if c.SourceURL != "" {
				sb.WriteString(fmt.Sprintf("%s\n", c.SourceURL))
			}
			sb.WriteString(fmt.Sprintf("> %s\n\n", c.Excerpt))
		}
	}

	return sb.String()
}

// formatSchemes formats scheme matches as markdown
func formatSchemes(query string, resp *models.SchemeSearchResponse) string {
	var sb strings.Builder

	if !resp.Success {
		sb.WriteString(fmt.Sprintf("**Search failed** (%s): %s\n", resp.Error.Type, resp.Error.Message))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("## Schemes matching \"%s\" (%d results)\n\n", query, len(resp.Schemes)))
	if len(resp.Schemes) == 0 {
		sb.WriteString("No matching schemes found.\n")
		return sb.String()
	}

	for i, s := range resp.Schemes {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, s.Title))
		sb.WriteString(fmt.Sprintf("**ID:** %s | **Type:** %s | **Score:** %.2f | **Matching passages:** %d\n", s.DocumentID, s.Type, s.Score, s.Matches))
		if s.SourceURL != "" {
			sb.WriteString(fmt.Sprintf("**URL:** %s\n", s.SourceURL))
		}
		sb.WriteString(fmt.Sprintf("\n> %s\n\n---\n\n", s.Excerpt))
	}

	return sb.String()
}

// formatDocument formats a document and its chunks as markdown
func formatDocument(doc *models.Document, chunks []*models.Chunk) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", doc.Title))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", doc.ID))
	sb.WriteString(fmt.Sprintf("**Type:** %s\n", doc.Type))
	if doc.SourceURL != "" {
		sb.WriteString(fmt.Sprintf("**URL:** %s\n", doc.SourceURL))
	}
	if doc.ReferenceNumber != "" {
		sb.WriteString(fmt.Sprintf("**Reference:** %s\n", doc.ReferenceNumber))
	}
	if doc.ReferenceDate != nil {
		sb.WriteString(fmt.Sprintf("**Reference date:** %s\n", doc.ReferenceDate.Format("2006-01-02")))
	}
	sb.WriteString(fmt.Sprintf("**Language:** %s | **Pages:** %d | **Extraction:** %s\n", doc.Language, doc.PageCount, doc.ExtractionMethod))
	if !doc.Active {
		sb.WriteString("**Status:** archived\n")
	}
	sb.WriteString(fmt.Sprintf("**Created:** %s\n\n", doc.CreatedAt.Format(time.RFC3339)))

	if len(chunks) > 0 {
		sb.WriteString(fmt.Sprintf("## Content (%d chunks)\n\n", len(chunks)))
		for _, c := range chunks {
			if c.Section != "" {
				sb.WriteString(fmt.Sprintf("### %s\n", c.Section))
			}
			sb.WriteString(c.Text)
			sb.WriteString("\n\n")
		}
	}

	return sb.String()
}
