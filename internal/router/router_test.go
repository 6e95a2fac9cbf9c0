package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/user/careline/internal/rag"
	"github.com/user/careline/internal/types"
)

type fakeLocal struct {
	ready  bool
	result *types.InferenceResult
	err    error
	calls  int
}

func (f *fakeLocal) Ready() bool { return f.ready }

func (f *fakeLocal) Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (*types.InferenceResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

type fakeCloud struct {
	result *types.InferenceResult
	err    error
	calls  int
}

func (f *fakeCloud) Invoke(ctx context.Context, pc *types.PromptContext) (*types.InferenceResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

type fakeNet struct{ online bool }

func (f *fakeNet) Online() bool { return f.online }

type fakeRetriever struct {
	chunks []rag.Scored
	err    error
}

func (f *fakeRetriever) Search(ctx context.Context, query string, topK int, threshold float64) ([]rag.Scored, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

func localResult(text string, conf float64) *types.InferenceResult {
	return &types.InferenceResult{Text: text, Confidence: conf, Model: "local"}
}

func promptCtx(message string, tokens int) *types.PromptContext {
	return &types.PromptContext{
		ThreadID:    types.NewThreadID(),
		Sender:      "+15550001111",
		UserMessage: message,
		TokensUsed:  tokens,
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		message string
		tokens  int
		want    Decision
	}{
		{"simple symptom", "I have a fever since yesterday", 50, DecisionLocal},
		{"pregnancy keyword", "I am pregnant and feeling tired", 50, DecisionCloud},
		{"medication keyword", "what dosage should I give", 50, DecisionCloud},
		{"referral keyword", "should I go to the hospital", 50, DecisionCloud},
		{"chronic keyword", "my patient has diabetes", 50, DecisionCloud},
		{"long conversation", "how are you", 301, DecisionCloud},
		{"token count at threshold", "how are you", 300, DecisionLocal},
		{"two symptoms stays local", "fever and headache", 50, DecisionLocal},
		{"many symptoms", "fever headache cough vomiting rash", 50, DecisionCloud},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(promptCtx(tt.message, tt.tokens))
			if got != tt.want {
				t.Errorf("Decide(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestRouteStubWhenNotReadyOffline(t *testing.T) {
	r := New(&fakeLocal{ready: false}, &fakeCloud{}, &fakeNet{online: false}, &fakeRetriever{})

	res := r.Route(context.Background(), promptCtx("I have a fever", 10))

	if res.Model != "stub" {
		t.Errorf("model = %q, want stub", res.Model)
	}
	if res.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", res.Confidence)
	}
	if !strings.Contains(res.Text, "Models are loading") {
		t.Errorf("unexpected stub text: %q", res.Text)
	}
}

func TestRouteCloudWhenNotReadyOnline(t *testing.T) {
	cloud := &fakeCloud{result: &types.InferenceResult{Text: "cloud answer", Confidence: 0.8, Model: "cloud"}}
	r := New(&fakeLocal{ready: false}, cloud, &fakeNet{online: true}, &fakeRetriever{})

	res := r.Route(context.Background(), promptCtx("I have a fever", 10))

	if res.Text != "cloud answer" {
		t.Errorf("text = %q", res.Text)
	}
	if cloud.calls != 1 {
		t.Errorf("cloud calls = %d, want 1", cloud.calls)
	}
}

func TestRouteLocalFailureFallsBackToCloud(t *testing.T) {
	local := &fakeLocal{ready: true, err: errors.New("oom")}
	cloud := &fakeCloud{result: &types.InferenceResult{Text: "cloud answer", Confidence: 0.8, Model: "cloud"}}
	r := New(local, cloud, &fakeNet{online: true}, &fakeRetriever{})

	res := r.Route(context.Background(), promptCtx("I have a fever", 10))

	if res.Text != "cloud answer" {
		t.Errorf("text = %q, want cloud answer", res.Text)
	}
}

func TestRouteLocalFailureOfflineReturnsErrorResult(t *testing.T) {
	local := &fakeLocal{ready: true, err: errors.New("oom")}
	r := New(local, &fakeCloud{}, &fakeNet{online: false}, &fakeRetriever{})

	res := r.Route(context.Background(), promptCtx("I have a fever", 10))

	if res.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", res.Confidence)
	}
	if !strings.Contains(res.Text, "temporarily unavailable") {
		t.Errorf("unexpected error text: %q", res.Text)
	}
}

func TestRouteCloudOfflineDegradesToLocal(t *testing.T) {
	local := &fakeLocal{ready: true, result: localResult("local answer", 0.9)}
	cloud := &fakeCloud{}
	r := New(local, cloud, &fakeNet{online: false}, &fakeRetriever{})

	res := r.Route(context.Background(), promptCtx("I am pregnant", 10))

	if cloud.calls != 0 {
		t.Errorf("cloud called while offline")
	}
	if !strings.Contains(res.Text, "Offline mode") {
		t.Errorf("missing offline notice: %q", res.Text)
	}
	want := 0.9 * 0.7
	if res.Confidence < want-1e-9 || res.Confidence > want+1e-9 {
		t.Errorf("confidence = %v, want %v", res.Confidence, want)
	}
}

func TestRouteCloudErrorDegradesToLocal(t *testing.T) {
	local := &fakeLocal{ready: true, result: localResult("local answer", 0.8)}
	cloud := &fakeCloud{err: errors.New("503")}
	r := New(local, cloud, &fakeNet{online: true}, &fakeRetriever{})

	res := r.Route(context.Background(), promptCtx("I am pregnant", 10))

	if !strings.Contains(res.Text, "Limited info") {
		t.Errorf("missing limited-info notice: %q", res.Text)
	}
	if res.Confidence > 0.8 {
		t.Errorf("fallback raised confidence: %v", res.Confidence)
	}
}

func TestRouteFallbackClampsConfidence(t *testing.T) {
	local := &fakeLocal{ready: true, result: localResult("local answer", 1.6)}
	r := New(local, &fakeCloud{}, &fakeNet{online: false}, &fakeRetriever{})

	res := r.Route(context.Background(), promptCtx("I am pregnant", 10))

	if res.Confidence > 1 {
		t.Errorf("confidence = %v, want <= 1", res.Confidence)
	}
}

func TestLocalPathAppendsDisclaimer(t *testing.T) {
	local := &fakeLocal{ready: true, result: localResult("Give fluids and rest.", 0.9)}
	r := New(local, &fakeCloud{}, &fakeNet{online: true}, &fakeRetriever{})

	res := r.Route(context.Background(), promptCtx("what treatment for a mild fever", 10))

	if !strings.Contains(res.Text, "Consult a healthcare provider") {
		t.Errorf("missing disclaimer: %q", res.Text)
	}
}

func TestLocalPathSkipsDisclaimerWhenConsultPresent(t *testing.T) {
	local := &fakeLocal{ready: true, result: localResult("Please consult a nurse.", 0.9)}
	r := New(local, &fakeCloud{}, &fakeNet{online: true}, &fakeRetriever{})

	res := r.Route(context.Background(), promptCtx("what treatment for a mild fever", 10))

	if strings.Count(strings.ToLower(res.Text), "consult") != 1 {
		t.Errorf("disclaimer duplicated: %q", res.Text)
	}
}

func TestBuildLocalPromptIncludesReferencesAndHistory(t *testing.T) {
	pc := promptCtx("is this fever dangerous", 10)
	pc.History = []types.Turn{
		{Role: "user", Content: "turn 1"},
		{Role: "assistant", Content: "turn 2"},
		{Role: "user", Content: "turn 3"},
		{Role: "assistant", Content: "turn 4"},
	}

	prompt := buildLocalPrompt(pc, []string{"Fever above 39C needs assessment."})

	if !strings.Contains(prompt, "Reference: Fever above 39C") {
		t.Errorf("missing reference block:\n%s", prompt)
	}
	if strings.Contains(prompt, "turn 1") {
		t.Errorf("history not limited to last 3 turns:\n%s", prompt)
	}
	if !strings.Contains(prompt, "turn 2") || !strings.Contains(prompt, "turn 4") {
		t.Errorf("missing recent history:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "Assistant:") {
		t.Errorf("prompt must end with assistant cue:\n%s", prompt)
	}
}

func TestLocalPathToleratesRetrievalFailure(t *testing.T) {
	local := &fakeLocal{ready: true, result: localResult("Rest and fluids.", 0.9)}
	r := New(local, &fakeCloud{}, &fakeNet{online: true}, &fakeRetriever{err: errors.New("index corrupt")})

	res := r.Route(context.Background(), promptCtx("I have a fever", 10))

	if res.Text != "Rest and fluids." {
		t.Errorf("text = %q", res.Text)
	}
	if local.calls != 1 {
		t.Errorf("local calls = %d, want 1", local.calls)
	}
}
