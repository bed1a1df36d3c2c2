package rag

import (
	"github.com/insidelm/backend/internal/models"
)

const previewLength = 100

// ExtractCitations derives one citation record per chunk actually used for
// context. Pure function over the matches; missing attribution falls back to
// Unknown Book/Unknown Author and "?" pages.
func ExtractCitations(matches []models.ChunkMatch) []models.Citation {
	citations := make([]models.Citation, 0, len(matches))
	for _, m := range matches {
		title := m.BookTitle
		if title == "" {
			title = unknownBookTitle
		}
		author := m.BookAuthor
		if author == "" {
			author = unknownBookAuthor
		}
		citations = append(citations, models.Citation{
			BookTitle:      title,
			BookAuthor:     author,
			PageStart:      pageLabel(m.Chunk.PageStart),
			PageEnd:        pageLabel(m.Chunk.PageEnd),
			ContentPreview: preview(m.Chunk.Content),
		})
	}
	return citations
}

// preview truncates content to the first 100 characters with an ellipsis
// marker; content at or under the limit passes through unchanged. Counted
// in runes so multibyte text is never cut mid-sequence.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}
