package rag

import (
	"fmt"
	"strings"

	"github.com/insidelm/backend/internal/models"
)

const (
	unknownBookTitle  = "Unknown Book"
	unknownBookAuthor = "Unknown Author"
)

// BuildContext formats retrieved chunks into the prompt context: one labeled
// block per chunk in input order, tagged with its source book and page range,
// blocks separated by a blank line. No dedup, no re-ranking.
func BuildContext(matches []models.ChunkMatch) string {
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		title := m.BookTitle
		if title == "" {
			title = unknownBookTitle
		}
		blocks = append(blocks, fmt.Sprintf("[From %s, pages %s-%s]\n%s",
			title, pageLabel(m.Chunk.PageStart), pageLabel(m.Chunk.PageEnd), m.Chunk.Content))
	}
	return strings.Join(blocks, "\n\n")
}

func pageLabel(page int) string {
	if page <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d", page)
}
