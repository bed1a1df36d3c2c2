package rag

// Outcome tags how a pipeline stage produced its value, so callers and tests
// can tell a normal answer from a fallback one instead of collapsing both
// into the same shape.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// Worse returns the more severe of two outcomes.
func Worse(a, b Outcome) Outcome {
	rank := func(o Outcome) int {
		switch o {
		case OutcomeFailed:
			return 2
		case OutcomeDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// EmbedResult is the tagged result of embedding a user query.
type EmbedResult struct {
	Outcome Outcome
	Vector  []float32
	Reason  string
	Err     error
}

// GenerationResult is the tagged result of one LLM answer generation.
type GenerationResult struct {
	Outcome    Outcome
	Answer     string
	ChunksUsed int
	Reason     string
}
