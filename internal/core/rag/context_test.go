package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insidelm/backend/internal/models"
)

func match(title string, pageStart, pageEnd int, content string) models.ChunkMatch {
	return models.ChunkMatch{
		Chunk: models.DocumentChunk{
			Content:   content,
			PageStart: pageStart,
			PageEnd:   pageEnd,
		},
		BookTitle:  title,
		BookAuthor: "Someone",
	}
}

func TestBuildContextFormat(t *testing.T) {
	blob := BuildContext([]models.ChunkMatch{
		match("Roman History", 12, 12, "The empire expanded."),
		match("Quantum Basics", 3, 4, "Particles behave oddly."),
	})

	blocks := strings.Split(blob, "\n\n")
	require.Len(t, blocks, 2)
	assert.Equal(t, "[From Roman History, pages 12-12]\nThe empire expanded.", blocks[0])
	assert.Equal(t, "[From Quantum Basics, pages 3-4]\nParticles behave oddly.", blocks[1])
}

func TestBuildContextUnknownAttribution(t *testing.T) {
	blob := BuildContext([]models.ChunkMatch{
		{Chunk: models.DocumentChunk{Content: "orphan text", PageStart: 0, PageEnd: 0}},
	})
	assert.Equal(t, "[From Unknown Book, pages ?-?]\norphan text", blob)
}

func TestBuildContextEmpty(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil))
}

func TestBuildContextPreservesOrder(t *testing.T) {
	blob := BuildContext([]models.ChunkMatch{
		match("B1", 1, 1, "first"),
		match("B2", 2, 2, "second"),
		match("B3", 3, 3, "third"),
	})
	assert.Less(t, strings.Index(blob, "first"), strings.Index(blob, "second"))
	assert.Less(t, strings.Index(blob, "second"), strings.Index(blob, "third"))
}
