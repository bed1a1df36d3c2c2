package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insidelm/backend/internal/config"
	"github.com/insidelm/backend/internal/core/coretest"
)

func TestUpdateSummaryReplaces(t *testing.T) {
	llm := &coretest.FakeLLM{Response: "User asked about Rome; the empire expanded."}
	m := NewMemoryManager(llm, config.KeyFactsPerTurn, nil)

	updated, err := m.UpdateSummary(context.Background(), "old summary", "What about Rome?", "It expanded.")
	require.NoError(t, err)
	assert.Equal(t, "User asked about Rome; the empire expanded.", updated)

	require.Len(t, llm.Prompts, 1)
	assert.Contains(t, llm.Prompts[0], "Current summary: old summary")
	assert.Contains(t, llm.Prompts[0], "Question: What about Rome?")
}

func TestUpdateSummaryUnchangedOnFailure(t *testing.T) {
	llm := &coretest.FakeLLM{Err: errors.New("model down")}
	m := NewMemoryManager(llm, config.KeyFactsPerTurn, nil)

	updated, err := m.UpdateSummary(context.Background(), "old summary", "q", "a")
	assert.Error(t, err)
	assert.Equal(t, "old summary", updated)
}

func TestExtractKeyFactsParsesBullets(t *testing.T) {
	llm := &coretest.FakeLLM{Response: "Here are the key facts:\n- Rome expanded\nnot a bullet\n• Trajan ruled\n  - indented bullet\n"}
	m := NewMemoryManager(llm, config.KeyFactsPerTurn, nil)

	facts := m.ExtractKeyFacts(context.Background(), "q", "a", nil)
	assert.Equal(t, []string{"- Rome expanded", "• Trajan ruled", "- indented bullet"}, facts)
}

func TestExtractKeyFactsCap(t *testing.T) {
	llm := &coretest.FakeLLM{Response: "- f1\n- f2\n- f3\n- f4\n- f5\n- f6\n- f7"}
	m := NewMemoryManager(llm, config.KeyFactsPerTurn, nil)

	facts := m.ExtractKeyFacts(context.Background(), "q", "a", nil)
	assert.Len(t, facts, 5)
	assert.Equal(t, "- f1", facts[0])
}

func TestExtractKeyFactsPerTurnIgnoresExisting(t *testing.T) {
	llm := &coretest.FakeLLM{Response: "- new fact"}
	m := NewMemoryManager(llm, config.KeyFactsPerTurn, nil)

	facts := m.ExtractKeyFacts(context.Background(), "q", "a", []string{"- old fact"})
	assert.Equal(t, []string{"- new fact"}, facts)
}

func TestExtractKeyFactsCumulativeMergesNewestFirst(t *testing.T) {
	llm := &coretest.FakeLLM{Response: "- new fact\n- shared fact"}
	m := NewMemoryManager(llm, config.KeyFactsCumulative, nil)

	facts := m.ExtractKeyFacts(context.Background(), "q", "a", []string{"- shared fact", "- old fact"})
	assert.Equal(t, []string{"- new fact", "- shared fact", "- old fact"}, facts)
}

func TestExtractKeyFactsFailurePolicies(t *testing.T) {
	t.Run("per-turn drops facts", func(t *testing.T) {
		llm := &coretest.FakeLLM{Err: errors.New("model down")}
		m := NewMemoryManager(llm, config.KeyFactsPerTurn, nil)
		assert.Nil(t, m.ExtractKeyFacts(context.Background(), "q", "a", []string{"- old"}))
	})
	t.Run("cumulative keeps existing", func(t *testing.T) {
		llm := &coretest.FakeLLM{Err: errors.New("model down")}
		m := NewMemoryManager(llm, config.KeyFactsCumulative, nil)
		assert.Equal(t, []string{"- old"}, m.ExtractKeyFacts(context.Background(), "q", "a", []string{"- old"}))
	})
}
