package agents

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/user/careline/internal/rag"
	"github.com/user/careline/internal/types"
)

func scoredChunk(content, source string, score float64) rag.Scored {
	return rag.Scored{
		Chunk: &types.Chunk{ID: types.NewChunkID(), Content: content, Source: source},
		Score: score,
	}
}

func TestPrimaryCareConfidenceWithoutGuidelines(t *testing.T) {
	a := NewPrimaryCare(&fakeGen{response: "Rest and drink fluids."}, &fakeRetriever{})

	resp, err := a.Invoke(context.Background(), &Request{Message: "mild fever"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", resp.Confidence)
	}
}

func TestPrimaryCareConfidenceWithGuidelineBonus(t *testing.T) {
	retriever := &fakeRetriever{chunks: []rag.Scored{
		scoredChunk("Paracetamol reduces fever in children.", "who_imci", 0.8),
		scoredChunk("Hydration matters during fever.", "who_imci", 0.6),
	}}
	a := NewPrimaryCare(&fakeGen{response: "Paracetamol can help. Keep the child hydrated."}, retriever)

	resp, err := a.Invoke(context.Background(), &Request{Message: "child fever"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	// avg(0.8, 0.6) + 0.1 bonus for referencing the first guideline word.
	want := 0.8
	if math.Abs(resp.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", resp.Confidence, want)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("sources = %v", resp.Sources)
	}
}

func TestMaternalHealthConfidenceCap(t *testing.T) {
	retriever := &fakeRetriever{chunks: []rag.Scored{
		scoredChunk("Prenatal visits schedule.", "who_anc", 1.0),
	}}
	a := NewMaternalHealth(&fakeGen{response: "Attend all prenatal visits."}, retriever)

	resp, err := a.Invoke(context.Background(), &Request{Message: "prenatal schedule"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Confidence > 0.85 {
		t.Errorf("confidence = %v, want <= 0.85", resp.Confidence)
	}
	if retriever.categories[0] != "maternal_health" {
		t.Errorf("category = %q", retriever.categories[0])
	}
}

func TestMaternalHealthUrgencySuffix(t *testing.T) {
	a := NewMaternalHealth(&fakeGen{response: "Lie on your left side and rest."}, &fakeRetriever{})

	resp, err := a.Invoke(context.Background(), &Request{Message: "baby not moving since morning"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(resp.Text, "Go to a health facility immediately") {
		t.Errorf("missing urgency suffix: %q", resp.Text)
	}
}

func TestRxSafetyAlwaysAppendsDisclaimer(t *testing.T) {
	a := NewRxSafety(&fakeGen{response: "Amoxicillin is generally safe with food."}, &fakeRetriever{})

	resp, err := a.Invoke(context.Background(), &Request{Message: "can I take amoxicillin"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(resp.Text, "Consult a pharmacist or doctor") {
		t.Errorf("missing disclaimer: %q", resp.Text)
	}
	if resp.Confidence != 0.75 {
		t.Errorf("confidence = %v, want 0.75", resp.Confidence)
	}
}

type recordingAlerts struct {
	calls []string
}

func (r *recordingAlerts) Dispatch(recipient, message string, urgency types.Urgency) {
	r.calls = append(r.calls, recipient)
}

func TestReferralCriticalDispatchesAlert(t *testing.T) {
	alerts := &recordingAlerts{}
	a := NewReferral(alerts)

	resp, err := a.Invoke(context.Background(), &Request{
		Sender:  "+15550001111",
		Message: "patient is unconscious after the crash",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(alerts.calls) != 1 || alerts.calls[0] != "+15550001111" {
		t.Errorf("alert calls = %v", alerts.calls)
	}
	if !strings.Contains(resp.Text, "IMMEDIATELY") {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", resp.Confidence)
	}
}

func TestReferralUrgentNoAlert(t *testing.T) {
	alerts := &recordingAlerts{}
	a := NewReferral(alerts)

	resp, err := a.Invoke(context.Background(), &Request{Message: "difficulty breathing when lying down"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(alerts.calls) != 0 {
		t.Errorf("alert dispatched for urgent tier")
	}
	if !strings.Contains(resp.Text, "within 24 hours") {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestReferralRoutine(t *testing.T) {
	a := NewReferral(&recordingAlerts{})

	resp, err := a.Invoke(context.Background(), &Request{Message: "where can I get a checkup"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(resp.Text, "Schedule an appointment") {
		t.Errorf("text = %q", resp.Text)
	}
}
