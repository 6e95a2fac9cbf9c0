// Package router decides where each message is answered, on the local
// engine or the cloud backend, and executes the choice with fallbacks so
// that a reply is always produced.
package router

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/user/careline/internal/rag"
	"github.com/user/careline/internal/types"
)

// Decision is where a message should be answered.
type Decision string

const (
	DecisionLocal Decision = "local"
	DecisionCloud Decision = "cloud"
)

const (
	// LocalTimeout bounds one local generation.
	LocalTimeout = 10 * time.Second
	// CloudTimeout bounds one round trip to the cloud backend.
	CloudTimeout = 60 * time.Second

	// cloudTokenThreshold routes long conversations to the cloud.
	cloudTokenThreshold = 300
	// complexSymptomCount routes multi-symptom messages to the cloud.
	complexSymptomCount = 2

	fallbackConfidenceScale = 0.7
)

const (
	stubResponse   = "Thank you for contacting Careline Health. Models are loading. Please try again shortly."
	errorResponse  = "AI temporarily unavailable. Please try again."
	offlineNotice  = "[Offline mode - connect for comprehensive guidance]"
	degradedNotice = "[Limited info - connect for detailed advice]"
)

var pregnancyKeywords = []string{
	"pregnant", "pregnancy", "labor", "contractions", "prenatal",
	"antenatal", "delivery", "birth", "trimester",
}

var medicationKeywords = []string{
	"drug", "medication", "medicine", "prescription", "dosage",
	"interaction", "pill", "tablet", "antibiotic",
}

var referralKeywords = []string{
	"hospital", "clinic", "doctor", "specialist", "emergency",
	"referral", "urgent care", "ambulance",
}

var chronicKeywords = []string{
	"diabetes", "hypertension", "hiv", "tuberculosis", "tb",
	"asthma", "epilepsy", "cancer",
}

var symptomKeywords = []string{
	"fever", "headache", "cough", "pain", "vomiting", "diarrhea",
	"nausea", "fatigue", "weakness", "dizzy", "swelling", "rash",
	"bleeding", "sore throat", "chest pain", "stomach pain",
}

// CloudEngine is the remote inference backend.
type CloudEngine interface {
	Invoke(ctx context.Context, pc *types.PromptContext) (*types.InferenceResult, error)
}

// Retriever supplies reference passages for the local prompt.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, threshold float64) ([]rag.Scored, error)
}

// Router picks and executes an inference path.
type Router struct {
	local     types.LocalEngine
	cloud     CloudEngine
	net       types.Connectivity
	retriever Retriever
}

// New creates a Router over the given collaborators.
func New(local types.LocalEngine, cloud CloudEngine, net types.Connectivity, retriever Retriever) *Router {
	return &Router{local: local, cloud: cloud, net: net, retriever: retriever}
}

// Decide returns where the message should be answered. Pregnancy,
// medication, referral, and chronic-disease topics go to the cloud, as do
// long conversations and messages naming more than two distinct symptoms.
func Decide(pc *types.PromptContext) Decision {
	message := strings.ToLower(pc.UserMessage)

	needsCloud := containsAny(message, pregnancyKeywords) ||
		containsAny(message, medicationKeywords) ||
		containsAny(message, referralKeywords) ||
		containsAny(message, chronicKeywords) ||
		pc.TokensUsed > cloudTokenThreshold

	if needsCloud || countMatches(message, symptomKeywords) > complexSymptomCount {
		return DecisionCloud
	}
	return DecisionLocal
}

// Route produces a reply for the message. It never returns an error:
// every failure path degrades to a usable result with a lowered
// confidence so the caller always has something to deliver or hold.
func (r *Router) Route(ctx context.Context, pc *types.PromptContext) *types.InferenceResult {
	if !r.local.Ready() {
		slog.Warn("local engine not ready", "thread", pc.ThreadID)
		if r.net.Online() {
			res, err := r.runCloud(ctx, pc)
			if err != nil {
				slog.Error("cloud inference failed with no local fallback", "error", err)
				return errorResult()
			}
			return res
		}
		return stubResult()
	}

	decision := Decide(pc)
	slog.Debug("routing decision", "thread", pc.ThreadID, "decision", decision)

	switch decision {
	case DecisionCloud:
		if !r.net.Online() {
			slog.Debug("offline, degrading to local", "thread", pc.ThreadID)
			return r.runLocalFallback(ctx, pc, offlineNotice)
		}
		res, err := r.runCloud(ctx, pc)
		if err != nil {
			slog.Error("cloud inference failed, degrading to local", "error", err)
			return r.runLocalFallback(ctx, pc, degradedNotice)
		}
		return res

	default:
		res, err := r.runLocal(ctx, pc)
		if err != nil {
			slog.Error("local inference failed", "error", err)
			if r.net.Online() {
				if res, err := r.runCloud(ctx, pc); err == nil {
					return res
				}
				slog.Error("cloud fallback failed", "error", err)
			}
			return errorResult()
		}
		return res
	}
}

func (r *Router) runCloud(ctx context.Context, pc *types.PromptContext) (*types.InferenceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, CloudTimeout)
	defer cancel()
	return r.cloud.Invoke(ctx, pc)
}

// runLocalFallback answers a cloud-preferred message on the local engine,
// appending a notice and scaling confidence down. Fallback never raises
// confidence and the result stays within [0,1].
func (r *Router) runLocalFallback(ctx context.Context, pc *types.PromptContext, notice string) *types.InferenceResult {
	res, err := r.runLocal(ctx, pc)
	if err != nil {
		slog.Error("local fallback failed", "error", err)
		return errorResult()
	}

	text := strings.TrimSpace(res.Text)
	if notice != "" {
		if text != "" {
			text += "\n\n"
		}
		text += notice
	}
	res.Text = text
	res.Confidence = clamp01(res.Confidence * fallbackConfidenceScale)
	return res
}

func stubResult() *types.InferenceResult {
	return &types.InferenceResult{
		Text:       stubResponse,
		Confidence: 0.5,
		Model:      "stub",
	}
}

func errorResult() *types.InferenceResult {
	return &types.InferenceResult{
		Text:       errorResponse,
		Confidence: 0,
		Model:      "error",
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsAny(message string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}

func countMatches(message string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			n++
		}
	}
	return n
}
