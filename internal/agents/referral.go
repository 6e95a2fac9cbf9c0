package agents

import (
	"context"

	"github.com/user/careline/internal/triage"
	"github.com/user/careline/internal/types"
)

// Referral handles facility referrals and emergency escalation. It never
// generates triage text with a model: each urgency tier has a fixed
// message, and critical cases additionally dispatch an alert to a human
// responder.
type Referral struct {
	alerts types.AlertDispatcher
}

func NewReferral(alerts types.AlertDispatcher) *Referral {
	return &Referral{alerts: alerts}
}

func (a *Referral) Name() string { return AgentReferral }

const (
	referralCritical = "EMERGENCY: Go to the nearest hospital IMMEDIATELY. Call emergency services if available. Do not wait."
	referralUrgent   = "Seek medical care within 24 hours at the nearest clinic or hospital. Monitor symptoms closely."
	referralRoutine  = "Schedule an appointment with a healthcare provider to discuss your concerns. Track your symptoms in the meantime."
)

func (a *Referral) Invoke(ctx context.Context, req *Request) (*Response, error) {
	urgency := triage.Classify(req.Message)

	if urgency == types.UrgencyCritical && a.alerts != nil {
		a.alerts.Dispatch(req.Sender, req.Message, urgency)
	}

	var text string
	switch urgency {
	case types.UrgencyCritical:
		text = referralCritical
	case types.UrgencyUrgent:
		text = referralUrgent
	default:
		text = referralRoutine
	}

	return &Response{
		Text:       text,
		Confidence: 1.0,
		Sources:    []string{"WHO Emergency Triage"},
		Metadata: map[string]any{
			"agent":            a.Name(),
			"urgency":          urgency.String(),
			"alert_dispatched": urgency == types.UrgencyCritical,
		},
	}, nil
}
