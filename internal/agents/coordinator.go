package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/user/careline/internal/sms"
	"github.com/user/careline/internal/types"
	"github.com/user/careline/pkg/llm"
)

// Specialist names the coordinator dispatches to.
const (
	AgentPrimaryCare    = "PrimaryCare"
	AgentMaternalHealth = "MaternalHealth"
	AgentRxSafety       = "RxSafety"
	AgentReferral       = "Referral"
)

const safeRefusal = "I cannot provide that information. Please consult a healthcare provider immediately."

const medicationDisclaimer = "IMPORTANT: Consult a healthcare provider before taking any medication."

var (
	phonePattern = regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

var harmfulPhrases = []string{
	"self-harm", "suicide", "overdose intentionally", "stop all medication",
}

var medicationAdviceKeywords = []string{
	"take", "dosage", "mg", "tablet", "pill", "medication", "drug",
}

var emergencyKeywords = []string{
	"bleeding", "unconscious", "chest pain", "severe", "emergency",
}

// Coordinator routes queries to specialists and guards what comes back.
type Coordinator struct {
	gen         llm.Generator
	specialists map[string]Specialist
}

// NewCoordinator creates a coordinator over the given classifier model and
// specialists. One of the specialists must be named PrimaryCare; it is the
// dispatch fallback.
func NewCoordinator(gen llm.Generator, specialists ...Specialist) *Coordinator {
	byName := make(map[string]Specialist, len(specialists))
	for _, s := range specialists {
		byName[s.Name()] = s
	}
	return &Coordinator{gen: gen, specialists: byName}
}

// Invoke runs the full pipeline: PII shield, classification, dispatch,
// safety filter, SMS formatting. The emergency check runs against the
// original query, before the shield, so a masked phone number cannot hide
// an emergency phrase.
func (c *Coordinator) Invoke(ctx context.Context, req *Request) (*Response, error) {
	original := req.Message
	shielded := *req
	shielded.Message = shieldPII(req.Message)

	classification := c.classify(ctx, &shielded)
	slog.Info("query classified",
		"agent", classification.AgentType,
		"confidence", classification.Confidence)

	specialist, ok := c.specialists[classification.AgentType]
	if !ok {
		slog.Warn("unknown agent type, using primary care", "agent", classification.AgentType)
		specialist = c.specialists[AgentPrimaryCare]
		if specialist == nil {
			return nil, fmt.Errorf("no primary care specialist registered")
		}
	}

	resp, err := specialist.Invoke(ctx, &shielded)
	if err != nil {
		return nil, fmt.Errorf("specialist %s: %w", specialist.Name(), err)
	}

	safe := applySafetyFilter(resp, original)
	safe.Text = sms.Truncate(safe.Text)
	return safe, nil
}

// classification is the structured output of the routing model.
type classification struct {
	AgentType  string  `json:"agentType"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

const classifyPromptFormat = `Classify this medical query into ONE of the following categories:
- PrimaryCare: General symptoms, fever, cough, minor ailments
- MaternalHealth: Pregnancy, labor, prenatal/postnatal care
- RxSafety: Medication questions, drug interactions, dosing
- Referral: Need for hospital/clinic, emergencies, specialist care

Query: %s

Respond ONLY with JSON:
{
    "agentType": "PrimaryCare|MaternalHealth|RxSafety|Referral",
    "confidence": 0.0-1.0,
    "reasoning": "brief explanation"
}`

func (c *Coordinator) classify(ctx context.Context, req *Request) classification {
	prompt := fmt.Sprintf(classifyPromptFormat, req.Message)

	raw, err := c.gen.Generate(ctx, prompt, 0, 0)
	if err != nil {
		slog.Warn("classification model failed, using keywords", "error", err)
		return classifyByKeywords(req.Message)
	}

	var parsed classification
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil || parsed.AgentType == "" {
		slog.Warn("unparseable classification, using keywords", "raw", raw)
		return classifyByKeywords(req.Message)
	}
	return parsed
}

// classifyByKeywords is the deterministic fallback when the model emits
// something unparseable.
func classifyByKeywords(message string) classification {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "pregnant") || strings.Contains(lower, "pregnancy") || strings.Contains(lower, "labor"):
		return classification{AgentMaternalHealth, 0.8, "Pregnancy keyword detected"}
	case strings.Contains(lower, "medication") || strings.Contains(lower, "drug") || strings.Contains(lower, "pill"):
		return classification{AgentRxSafety, 0.8, "Medication keyword detected"}
	case strings.Contains(lower, "emergency") || strings.Contains(lower, "severe") || strings.Contains(lower, "bleeding"):
		return classification{AgentReferral, 0.9, "Emergency keyword detected"}
	default:
		return classification{AgentPrimaryCare, 0.7, "General medical query"}
	}
}

// extractJSON strips code fences and surrounding prose so a chatty model
// response can still parse.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}

// shieldPII masks phone-number-shaped and email-shaped substrings before
// anything else sees or logs the message.
func shieldPII(message string) string {
	masked := phonePattern.ReplaceAllString(message, "[PHONE]")
	masked = emailPattern.ReplaceAllString(masked, "[EMAIL]")
	return masked
}

// applySafetyFilter rewrites the specialist's answer when it trips the
// harmful-content list, adds a medication disclaimer when needed, and
// prefixes an emergency banner when the original query demands one. The
// harmful-content refusal overrides the specialist's confidence
// unconditionally.
func applySafetyFilter(resp *Response, originalQuery string) *Response {
	out := *resp

	if containsAnyFold(out.Text, harmfulPhrases) {
		slog.Warn("harmful content detected, replacing response")
		out.Text = safeRefusal
		out.Confidence = 0
		return &out
	}

	if containsAnyFold(out.Text, medicationAdviceKeywords) && !strings.Contains(strings.ToLower(out.Text), "consult") {
		out.Text += "\n\n" + medicationDisclaimer
	}

	if containsAnyFold(originalQuery, emergencyKeywords) {
		out.Text = "EMERGENCY: " + out.Text + "\n\nSeek immediate medical attention."
	}

	return &out
}

func containsAnyFold(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Engine adapts the coordinator to the router's cloud inference interface.
type Engine struct {
	co *Coordinator
}

// NewEngine wraps a coordinator for use as the router's cloud backend.
func NewEngine(co *Coordinator) *Engine {
	return &Engine{co: co}
}

// Invoke maps a prompt context through the coordinator pipeline.
func (e *Engine) Invoke(ctx context.Context, pc *types.PromptContext) (*types.InferenceResult, error) {
	resp, err := e.co.Invoke(ctx, &Request{
		Sender:  pc.Sender,
		Message: pc.UserMessage,
		History: pc.History,
		Urgency: pc.Urgency,
	})
	if err != nil {
		return nil, err
	}

	model := "coordinator"
	if agent, ok := resp.Metadata["agent"].(string); ok {
		model = agent
	}
	return &types.InferenceResult{
		Text:       resp.Text,
		Confidence: resp.Confidence,
		Model:      model,
	}, nil
}
