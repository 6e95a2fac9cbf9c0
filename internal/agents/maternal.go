package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/careline/internal/rag"
	"github.com/user/careline/pkg/llm"
)

// MaternalHealth handles pregnancy, prenatal, and postnatal queries. Its
// confidence is deliberately capped below the general-purpose level.
type MaternalHealth struct {
	gen llm.Generator
	rag Retriever
}

func NewMaternalHealth(gen llm.Generator, retriever Retriever) *MaternalHealth {
	return &MaternalHealth{gen: gen, rag: retriever}
}

func (a *MaternalHealth) Name() string { return AgentMaternalHealth }

var maternalUrgentKeywords = []string{
	"bleeding", "contractions", "water broke", "severe pain",
	"baby not moving", "headache", "vision",
}

const maternalUrgencySuffix = "Go to a health facility immediately if symptoms worsen."

func (a *MaternalHealth) Invoke(ctx context.Context, req *Request) (*Response, error) {
	guidelines, err := a.rag.SearchCategory(ctx, req.Message, "maternal_health", specialistTopK, 0)
	if err != nil {
		return nil, fmt.Errorf("retrieving guidelines: %w", err)
	}

	text, err := a.gen.Generate(ctx, a.buildPrompt(req, guidelines), specialistMaxTokens, 0.6)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}
	text = strings.TrimSpace(text)

	if containsAnyFold(req.Message, maternalUrgentKeywords) {
		text += "\n\n" + maternalUrgencySuffix
	}

	return &Response{
		Text:       text,
		Confidence: clamp(avgScore(guidelines)*0.9, 0, 0.85),
		Sources:    sources(guidelines),
		Metadata: map[string]any{
			"agent":    a.Name(),
			"category": "maternal_health",
		},
	}, nil
}

func (a *MaternalHealth) buildPrompt(req *Request, guidelines []rag.Scored) string {
	var b strings.Builder
	b.WriteString(`You are a maternal health specialist assisting community health workers.

CRITICAL: Pregnancy and childbirth complications can be life-threatening.
Always err on the side of caution and recommend professional care for:
- Bleeding during pregnancy
- Severe abdominal pain
- Reduced fetal movement
- Signs of labor complications
- High blood pressure symptoms

GUIDELINES:
`)
	for i, g := range guidelines {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(g.Chunk.Content)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "USER QUESTION: %s\n\n", req.Message)
	b.WriteString("Provide clear guidance in simple language. Keep under 450 characters.\n\nRESPONSE:")
	return b.String()
}
