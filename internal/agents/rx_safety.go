package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/careline/internal/rag"
	"github.com/user/careline/pkg/llm"
)

// RxSafety handles medication safety, interactions, and dosing. Every
// answer carries a mandatory pharmacist line and moderate confidence so
// medication advice is never auto-trusted.
type RxSafety struct {
	gen llm.Generator
	rag Retriever
}

func NewRxSafety(gen llm.Generator, retriever Retriever) *RxSafety {
	return &RxSafety{gen: gen, rag: retriever}
}

func (a *RxSafety) Name() string { return AgentRxSafety }

const rxDisclaimer = "Consult a pharmacist or doctor before starting any medication."

func (a *RxSafety) Invoke(ctx context.Context, req *Request) (*Response, error) {
	guidelines, err := a.rag.SearchCategory(ctx, req.Message, "pharmacology", specialistTopK, 0)
	if err != nil {
		return nil, fmt.Errorf("retrieving guidelines: %w", err)
	}

	text, err := a.gen.Generate(ctx, a.buildPrompt(req, guidelines), specialistMaxTokens, 0.5)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	text = strings.TrimSpace(text) + "\n\n" + rxDisclaimer

	return &Response{
		Text:       text,
		Confidence: 0.75,
		Sources:    sources(guidelines),
		Metadata: map[string]any{
			"agent":                 a.Name(),
			"requires_professional": true,
		},
	}, nil
}

func (a *RxSafety) buildPrompt(req *Request, guidelines []rag.Scored) string {
	var b strings.Builder
	b.WriteString(`You are a medication safety specialist for community health workers.

CRITICAL RULES:
- NEVER provide specific dosages without professional consultation
- Always warn about potential drug interactions
- Emphasize the importance of following prescribed instructions
- Do NOT recommend over-the-counter medications without caveats

DRUG INFORMATION:
`)
	for i, g := range guidelines {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(g.Chunk.Content)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "USER QUESTION: %s\n\n", req.Message)
	b.WriteString("Provide general safety guidance only. Keep under 420 characters.\n\nRESPONSE:")
	return b.String()
}
