package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/core"
)

const systemPrompt = `You are an intelligent assistant that helps users understand books and documents.
You can only answer questions based on the information provided in the context.
Always cite your sources by mentioning the book title and page numbers.
If you don't have enough information to answer a question, say so clearly.
Be helpful, accurate, and concise in your responses.`

// FallbackAnswer is returned verbatim whenever answer generation fails, so
// the user-facing turn is always well-formed.
const FallbackAnswer = "I apologize, but I encountered an error while processing your request. Please try again."

// maxHistoryTurns bounds how much conversation history is replayed to the
// model on each turn.
const maxHistoryTurns = 5

// Generator produces a grounded answer with a single LLM call per turn.
// No multi-step reasoning, no retries.
type Generator struct {
	llm    core.LLMProvider
	logger *zap.Logger
}

func NewGenerator(llm core.LLMProvider, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{llm: llm, logger: logger}
}

// Generate invokes the LLM with the grounding system prompt, the trimmed
// conversation history, and the query wrapped with the assembled context.
// On any invocation failure the result is Degraded with the fixed fallback
// answer instead of an error, so a provider outage never crashes a turn.
func (g *Generator) Generate(ctx context.Context, query, contextBlob string, history []core.ChatTurn) GenerationResult {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	turns := make([]core.ChatTurn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, core.ChatTurn{
		Role: core.RoleUser,
		Content: fmt.Sprintf(`Context information:
%s

User question: %s

Please answer based only on the context provided above. Include citations to specific books and page numbers.`, contextBlob, query),
	})

	answer, err := g.llm.Complete(ctx, systemPrompt, turns)
	if err != nil {
		g.logger.Error("answer generation failed", zap.Error(err))
		return GenerationResult{
			Outcome: OutcomeDegraded,
			Answer:  FallbackAnswer,
			Reason:  "llm invocation failed",
		}
	}

	return GenerationResult{
		Outcome:    OutcomeOK,
		Answer:     answer,
		ChunksUsed: strings.Count(contextBlob, "[From "),
	}
}
