package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/careline/internal/rag"
	"github.com/user/careline/pkg/llm"
)

// PrimaryCare handles general symptoms, minor ailments, and preventive
// care. It is also the dispatch fallback for unclassifiable queries.
type PrimaryCare struct {
	gen llm.Generator
	rag Retriever
}

func NewPrimaryCare(gen llm.Generator, retriever Retriever) *PrimaryCare {
	return &PrimaryCare{gen: gen, rag: retriever}
}

func (a *PrimaryCare) Name() string { return AgentPrimaryCare }

func (a *PrimaryCare) Invoke(ctx context.Context, req *Request) (*Response, error) {
	guidelines, err := a.rag.SearchCategory(ctx, req.Message, "", specialistTopK, 0)
	if err != nil {
		return nil, fmt.Errorf("retrieving guidelines: %w", err)
	}
	slog.Debug("retrieved guidelines", "agent", a.Name(), "count", len(guidelines))

	text, err := a.gen.Generate(ctx, a.buildPrompt(req, guidelines), specialistMaxTokens, 0.7)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	return &Response{
		Text:       strings.TrimSpace(text),
		Confidence: a.confidence(text, guidelines),
		Sources:    sources(guidelines),
		Metadata: map[string]any{
			"agent":          a.Name(),
			"guidelineCount": len(guidelines),
		},
	}, nil
}

func (a *PrimaryCare) buildPrompt(req *Request, guidelines []rag.Scored) string {
	var b strings.Builder
	b.WriteString("You are a primary care medical assistant for rural health workers in low-resource settings.\n\n")

	b.WriteString("MEDICAL GUIDELINES:\n")
	for i, g := range guidelines {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "GUIDELINE %d (from %s):\n%s", i+1, g.Chunk.Source, g.Chunk.Content)
	}
	b.WriteString("\n\n")

	b.WriteString("CONVERSATION HISTORY:\n")
	for _, turn := range req.History {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(turn.Role), turn.Content)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "USER QUESTION: %s\n\n", req.Message)
	b.WriteString(`Instructions:
- Use the guidelines above to inform your response
- Provide clear, actionable advice in simple language (6th grade reading level)
- If symptoms are serious, recommend seeking professional care
- Keep response under 450 characters
- Do NOT diagnose conditions - provide informational guidance only

RESPONSE:`)
	return b.String()
}

// confidence scores from the average retrieval score with a small bonus
// when the answer actually references a retrieved guideline.
func (a *PrimaryCare) confidence(text string, guidelines []rag.Scored) float64 {
	if len(guidelines) == 0 {
		return 0.5
	}

	lower := strings.ToLower(text)
	bonus := 0.0
	for _, g := range guidelines {
		words := strings.Fields(g.Chunk.Content)
		if len(words) > 0 && strings.Contains(lower, strings.ToLower(words[0])) {
			bonus = 0.1
			break
		}
	}

	return clamp(avgScore(guidelines)+bonus, 0, 1)
}
