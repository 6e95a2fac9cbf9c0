// Package sms holds the transport length rules shared by the inference
// paths and the delivery manager: a 480-character ceiling (three parts)
// with sentence-boundary truncation, and 160-character segmentation.
package sms

import "strings"

const (
	// MaxLength is the hard ceiling for one logical reply (three parts).
	MaxLength = 480

	// PartLength is the size of a single transport segment.
	PartLength = 160
)

// Truncate shortens text to MaxLength characters, preferring the last
// sentence boundary comfortably before the limit and falling back to a
// hard cut with an ellipsis. Limits count runes, never bytes, so a
// multi-byte character is never split mid-sequence.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxLength {
		return text
	}

	cut := MaxLength - 20
	lastPeriod := -1
	for i, r := range runes[:cut+1] {
		if r == '.' {
			lastPeriod = i
		}
	}
	if lastPeriod > MaxLength/2 {
		return strings.TrimSpace(string(runes[:lastPeriod+1]))
	}

	return string(runes[:MaxLength-3]) + "..."
}

// Split truncates the message and divides it into transport segments of at
// most PartLength characters.
func Split(text string) []string {
	runes := []rune(Truncate(text))
	if len(runes) <= PartLength {
		return []string{string(runes)}
	}

	var parts []string
	for len(runes) > PartLength {
		parts = append(parts, string(runes[:PartLength]))
		runes = runes[PartLength:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// PartCount returns how many segments the message needs after truncation.
func PartCount(text string) int {
	return len(Split(text))
}
