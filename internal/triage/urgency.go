// Package triage classifies inbound message text into urgency tiers using
// static keyword tables. Classification is pure and deterministic; critical
// keywords take absolute precedence over urgent ones.
package triage

import (
	"strings"

	"github.com/user/careline/internal/types"
)

var criticalKeywords = []string{
	"bleeding", "blood", "unconscious", "faint", "fainting", "fainted",
	"seizure", "convulsion", "convulsions", "fit", "fits",
	"labor", "labour", "contractions", "birth", "delivery", "delivering",
	"chest pain", "breathless", "can't breathe", "cannot breathe",
	"severe pain", "unbearable pain", "unresponsive",
	"suicide", "suicidal", "kill myself", "overdose",
	"choking", "drowning", "stroke", "heart attack",
	"severe bleeding", "heavy bleeding", "hemorrhage",
}

var urgentKeywords = []string{
	"high fever", "very hot", "burning up", "fever",
	"vomiting", "vomit", "throwing up",
	"diarrhea", "diarrhoea", "loose stool", "watery stool",
	"dehydrated", "dehydration", "very thirsty",
	"injury", "injured", "wound", "cut", "gash",
	"broken", "fracture", "fractured", "broken bone",
	"burn", "burned", "burnt", "burning",
	"swelling", "swollen", "inflammation",
	"rash", "skin problem", "itching badly",
	"difficulty breathing", "hard to breathe",
	"severe headache", "terrible headache",
	"pregnant", "pregnancy problem",
}

// Classify maps message text to an urgency tier. Matching is
// case-insensitive substring containment; any critical keyword
// short-circuits to critical.
func Classify(text string) types.Urgency {
	normalized := strings.ToLower(text)

	for _, kw := range criticalKeywords {
		if strings.Contains(normalized, kw) {
			return types.UrgencyCritical
		}
	}
	for _, kw := range urgentKeywords {
		if strings.Contains(normalized, kw) {
			return types.UrgencyUrgent
		}
	}
	return types.UrgencyNormal
}
