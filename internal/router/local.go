package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/careline/internal/sms"
	"github.com/user/careline/internal/types"
)

const (
	localMaxTokens   = 120
	localTemperature = 0.7

	retrievalTopK      = 2
	retrievalThreshold = 0.6

	consultDisclaimer = "Consult a healthcare provider for proper diagnosis."
)

const localSystemPrompt = `You are a medical assistant for rural health workers in low-resource settings.

Guidelines:
- Provide clear, actionable health advice
- Use simple language (6th grade reading level)
- Encourage seeking professional care for serious symptoms
- Stay within 480 characters total
- If emergency symptoms (bleeding, unconscious, severe pain), urge immediate care

CRITICAL: Flag emergencies clearly. This is informational only, not a diagnosis.`

var disclaimerTriggers = []string{"diagnose", "treatment", "medication"}

// runLocal answers on the local engine with retrieved guideline context.
// Retrieval failures are tolerated: the prompt is simply built without
// references.
func (r *Router) runLocal(ctx context.Context, pc *types.PromptContext) (*types.InferenceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, LocalTimeout)
	defer cancel()

	var references []string
	scored, err := r.retriever.Search(ctx, pc.UserMessage, retrievalTopK, retrievalThreshold)
	if err != nil {
		slog.Warn("retrieval failed, prompting without references", "error", err)
	} else {
		for _, s := range scored {
			references = append(references, s.Chunk.Content)
		}
	}
	slog.Debug("retrieved guideline chunks", "count", len(references))

	prompt := buildLocalPrompt(pc, references)

	res, err := r.local.Generate(ctx, prompt, localMaxTokens, localTemperature)
	if err != nil {
		return nil, fmt.Errorf("local generation: %w", err)
	}

	text := sms.Truncate(strings.TrimSpace(res.Text))
	res.Text = withDisclaimer(text, pc.UserMessage)
	return res, nil
}

func buildLocalPrompt(pc *types.PromptContext, references []string) string {
	var b strings.Builder
	b.WriteString(localSystemPrompt)
	b.WriteString("\n\n")

	if len(references) > 0 {
		b.WriteString("Medical Guidelines:\n")
		for i, ref := range references {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString("Reference: ")
			b.WriteString(ref)
		}
		b.WriteString("\n\n")
	}

	if len(pc.History) > 0 {
		b.WriteString("Conversation History:\n")
		turns := pc.History
		if len(turns) > 3 {
			turns = turns[len(turns)-3:]
		}
		for _, turn := range turns {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User: %s\nAssistant:", pc.UserMessage)
	return b.String()
}

// withDisclaimer appends a consult-a-professional line when the query
// concerns diagnosis, treatment, or medication and the text does not
// already mention consultation.
func withDisclaimer(text, query string) string {
	q := strings.ToLower(query)
	if !containsAny(q, disclaimerTriggers) {
		return text
	}
	if strings.Contains(strings.ToLower(text), "consult") {
		return text
	}
	return text + "\n\n" + consultDisclaimer
}
