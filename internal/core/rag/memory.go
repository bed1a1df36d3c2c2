package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/config"
	"github.com/insidelm/backend/internal/core"
)

const (
	summarySystemPrompt = "You are a helpful assistant that creates concise summaries."
	factsSystemPrompt   = "You are a helpful assistant that extracts key facts."

	maxKeyFacts = 5
)

// MemoryManager maintains a notebook's rolling summary and key facts.
// The summary is replaced, never appended, on every successful turn. Key
// facts follow the configured policy: per-turn reflects only the latest
// question/answer pair; cumulative merges with the existing facts.
type MemoryManager struct {
	llm    core.LLMProvider
	policy string
	logger *zap.Logger
}

func NewMemoryManager(llm core.LLMProvider, policy string, logger *zap.Logger) *MemoryManager {
	if policy == "" {
		policy = config.KeyFactsPerTurn
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryManager{llm: llm, policy: policy, logger: logger}
}

// UpdateSummary asks the LLM for a replacement summary covering the prior
// summary plus the new turn. On failure the prior summary is returned
// unchanged along with the error.
func (m *MemoryManager) UpdateSummary(ctx context.Context, current, question, answer string) (string, error) {
	prompt := fmt.Sprintf(`Current summary: %s

New conversation:
Question: %s
Answer: %s

Please update the summary to include key points from this new conversation. Keep it concise but comprehensive.`,
		current, question, answer)

	updated, err := m.llm.Complete(ctx, summarySystemPrompt, []core.ChatTurn{
		{Role: core.RoleUser, Content: prompt},
	})
	if err != nil {
		m.logger.Error("memory summary update failed", zap.Error(err))
		return current, err
	}
	return updated, nil
}

// ExtractKeyFacts derives 3-5 bullet facts from the current turn. Model
// output is filtered to bullet-marker lines and capped at 5 entries. Under
// the cumulative policy the new facts are merged ahead of the existing ones
// with duplicates removed; on extraction failure the existing facts are
// kept under cumulative and dropped under per-turn, matching each policy's
// view of what the list represents.
func (m *MemoryManager) ExtractKeyFacts(ctx context.Context, question, answer string, existing []string) []string {
	prompt := fmt.Sprintf(`From this conversation, extract 3-5 key facts or insights:

Question: %s
Answer: %s

Please list the key facts as bullet points.`, question, answer)

	resp, err := m.llm.Complete(ctx, factsSystemPrompt, []core.ChatTurn{
		{Role: core.RoleUser, Content: prompt},
	})
	if err != nil {
		m.logger.Error("key fact extraction failed", zap.Error(err))
		if m.policy == config.KeyFactsCumulative {
			return existing
		}
		return nil
	}

	facts := parseBulletLines(resp)
	if m.policy == config.KeyFactsCumulative {
		facts = mergeFacts(facts, existing)
	}
	if len(facts) > maxKeyFacts {
		facts = facts[:maxKeyFacts]
	}
	return facts
}

func parseBulletLines(text string) []string {
	var facts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") {
			facts = append(facts, line)
		}
	}
	return facts
}

// mergeFacts keeps newest facts first and drops duplicates.
func mergeFacts(newFacts, existing []string) []string {
	seen := make(map[string]bool, len(newFacts)+len(existing))
	var out []string
	for _, f := range append(append([]string{}, newFacts...), existing...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
