package ingestion

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// ChunkRecord is one text segment ready for embedding: content plus page
// provenance and its position within the whole document and within its page.
type ChunkRecord struct {
	Content    string
	PageStart  int
	PageEnd    int
	ChunkIndex int
	Metadata   map[string]any
}

// Chunker splits page text into overlapping segments. Pages are split
// independently; a chunk never spans pages. The splitter tries the largest
// separator first (paragraph, line, sentence end, space, character) that
// keeps each piece at or under the target size.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	sp := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}),
	)
	return &Chunker{splitter: sp}
}

// ChunkPages turns extracted pages into chunk records. ChunkIndex increments
// across the whole document, not per page. A page at or under the target
// size yields exactly one chunk; a page that splits into zero non-empty
// pieces contributes nothing.
func (c *Chunker) ChunkPages(pages []Page) ([]ChunkRecord, error) {
	var out []ChunkRecord
	chunkIndex := 0

	for _, page := range pages {
		pieces, err := c.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", page.Number, err)
		}

		kept := pieces[:0]
		for _, p := range pieces {
			if p != "" {
				kept = append(kept, p)
			}
		}

		for i, piece := range kept {
			out = append(out, ChunkRecord{
				Content:    piece,
				PageStart:  page.Number,
				PageEnd:    page.Number,
				ChunkIndex: chunkIndex,
				Metadata: map[string]any{
					"page_number":          page.Number,
					"chunk_in_page":        i,
					"total_chunks_in_page": len(kept),
				},
			})
			chunkIndex++
		}
	}
	return out, nil
}
