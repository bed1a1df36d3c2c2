package ingestion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkPagesSmallPage(t *testing.T) {
	c := NewChunker(1000, 100)

	chunks, err := c.ChunkPages([]Page{{Text: "A short page of text.", Number: 3}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "A short page of text.", chunks[0].Content)
	assert.Equal(t, 3, chunks[0].PageStart)
	assert.Equal(t, 3, chunks[0].PageEnd)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 3, chunks[0].Metadata["page_number"])
	assert.Equal(t, 0, chunks[0].Metadata["chunk_in_page"])
	assert.Equal(t, 1, chunks[0].Metadata["total_chunks_in_page"])
}

func TestChunkPagesGlobalIndexing(t *testing.T) {
	c := NewChunker(200, 20)

	long := longText(5) // splits into multiple chunks
	chunks, err := c.ChunkPages([]Page{
		{Text: long, Number: 1},
		{Text: "A tiny second page.", Number: 2},
	})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2, "first page should split")

	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex, "indices are contiguous across pages")
	}

	last := chunks[len(chunks)-1]
	assert.Equal(t, 2, last.PageStart)
	assert.Equal(t, "A tiny second page.", last.Content)

	for _, ch := range chunks[:len(chunks)-1] {
		assert.Equal(t, 1, ch.PageStart, "chunks never span pages")
		assert.Equal(t, 1, ch.PageEnd)
	}
}

func TestChunkPagesSizeAndOverlap(t *testing.T) {
	c := NewChunker(200, 20)

	chunks, err := c.ChunkPages([]Page{{Text: longText(8), Number: 1}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 200)
	}

	for i := 0; i+1 < len(chunks); i++ {
		shared := sharedOverlap(chunks[i].Content, chunks[i+1].Content)
		assert.LessOrEqual(t, shared, 20,
			"adjacent chunks %d/%d share more than the configured overlap", i, i+1)
	}
}

// sharedOverlap returns the length of the longest suffix of a that is a
// prefix of b.
func sharedOverlap(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(a, b[:n]) {
			return n
		}
	}
	return 0
}

func TestChunkPagesEmptyPageContributesNothing(t *testing.T) {
	c := NewChunker(1000, 100)

	chunks, err := c.ChunkPages([]Page{
		{Text: "Page one content.", Number: 1},
		{Text: "", Number: 2},
		{Text: "Page three content.", Number: 3},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 3, chunks[1].PageStart)
	assert.Equal(t, []int{0, 1}, []int{chunks[0].ChunkIndex, chunks[1].ChunkIndex})
}

// longText builds non-repetitive multi-sentence text so splitting behavior
// is observable.
func longText(sentences int) string {
	var sb strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&sb, "Sentence number %d talks about a different subject entirely with plenty of words to fill space. ", i)
	}
	return strings.TrimSpace(sb.String())
}
