package sms

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateShortTextUnchanged(t *testing.T) {
	text := "Rest and drink fluids."
	if got := Truncate(text); got != text {
		t.Errorf("short text should be unchanged, got %q", got)
	}
	if got := Truncate(""); got != "" {
		t.Errorf("empty text should be unchanged, got %q", got)
	}
}

func TestTruncateSentenceBoundary(t *testing.T) {
	sentence := "Drink water regularly throughout the day and rest well. "
	text := strings.Repeat(sentence, 12) // well over the limit

	got := Truncate(text)
	if len(got) > MaxLength {
		t.Fatalf("truncated text is %d chars, limit %d", len(got), MaxLength)
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("expected truncation at a sentence boundary, got suffix %q", got[len(got)-10:])
	}
}

func TestTruncateHardCutWithEllipsis(t *testing.T) {
	// No periods anywhere: forces the hard cut.
	text := strings.Repeat("a", MaxLength+100)
	got := Truncate(text)
	if len(got) != MaxLength {
		t.Fatalf("expected exactly %d chars, got %d", MaxLength, len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("expected ellipsis suffix on hard truncation")
	}
}

func TestTruncateAndSplitMultiByte(t *testing.T) {
	// Each character is multi-byte; cuts must land on rune boundaries.
	text := strings.Repeat("é", MaxLength+100)

	got := Truncate(text)
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a multi-byte character")
	}
	if n := utf8.RuneCountInString(got); n != MaxLength {
		t.Errorf("truncated to %d runes, want %d", n, MaxLength)
	}

	for i, part := range Split(text) {
		if !utf8.ValidString(part) {
			t.Errorf("part %d split a multi-byte character", i)
		}
		if n := utf8.RuneCountInString(part); n > PartLength {
			t.Errorf("part %d is %d runes, limit %d", i, n, PartLength)
		}
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		length    int
		wantParts int
	}{
		{"single part", 100, 1},
		{"exactly one part", PartLength, 1},
		{"two parts", PartLength + 1, 2},
		{"three parts", PartLength*2 + 10, 3},
		{"over the ceiling", MaxLength + 500, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("x", tt.length)
			parts := Split(text)
			if len(parts) != tt.wantParts {
				t.Fatalf("expected %d parts, got %d", tt.wantParts, len(parts))
			}
			for i, p := range parts {
				if len(p) > PartLength {
					t.Errorf("part %d is %d chars, limit %d", i, len(p), PartLength)
				}
			}
		})
	}
}
