package conversation

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// tokensPerWord approximates BPE density for the heuristic fallback.
const tokensPerWord = 1.3

// Estimator counts tokens for context budgeting and routing decisions.
// It prefers a real tokenizer; when none can be loaded (tiktoken fetches
// its encodings over the network on first use) it falls back to a
// word-count heuristic so the gateway still boots offline.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

// NewEstimator creates an Estimator for the given model name, falling back
// to cl100k_base for unknown models and to the heuristic when no encoding
// can be loaded at all.
func NewEstimator(model string) *Estimator {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		slog.Warn("tokenizer unavailable, using word-count heuristic", "model", model, "error", err)
		return &Estimator{}
	}
	return &Estimator{enc: enc}
}

// Count returns the token count for a string.
func (e *Estimator) Count(text string) int {
	if e.enc == nil {
		return int(float64(len(strings.Fields(text))) * tokensPerWord)
	}
	return len(e.enc.Encode(text, nil, nil))
}

// CountAll returns the total token count across texts.
func (e *Estimator) CountAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += e.Count(t)
	}
	return total
}
