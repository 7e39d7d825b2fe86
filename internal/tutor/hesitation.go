package tutor

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// scorerHedges mark an answer as low-confidence for the fallback scorer.
var scorerHedges = []string{
	"maybe", "i think", "i guess", "probably", "possibly",
	"not sure", "don't know", "i don't know",
}

// hesitationHedges adds filler sounds to the scorer list.
var hesitationHedges = slices.Concat(scorerHedges, []string{"um", "uh"})

// minConfidentLength is the shortest trimmed answer not treated as hesitant.
const minConfidentLength = 10

// Hesitation reports whether an answer signals low confidence.
type Hesitation struct {
	IsHesitant bool   `json:"is_hesitant"`
	Reason     string `json:"reason,omitempty"`
	Hedge      string `json:"hedge,omitempty"`
}

const (
	ReasonTooShort = "too_short"
	ReasonHedge    = "hedge"
)

// DetectHesitation flags short or hedging answers. It never calls the oracle.
// A hedge counts wherever it appears in the text, so elongated fillers such
// as "ummm" and "probablyyy" are caught.
func DetectHesitation(answer string) Hesitation {
	text := normalizeAnswer(answer)
	if utf8.RuneCountInString(text) < minConfidentLength {
		return Hesitation{IsHesitant: true, Reason: ReasonTooShort}
	}
	if m := findHedge(text, hesitationHedges); m != "" {
		return Hesitation{IsHesitant: true, Reason: ReasonHedge, Hedge: m}
	}
	return Hesitation{}
}

// normalizeAnswer trims and case-folds an answer and straightens curly
// apostrophes so "don’t know" matches its hedge phrase.
func normalizeAnswer(answer string) string {
	text := strings.ToLower(strings.TrimSpace(answer))
	return strings.ReplaceAll(text, "’", "'")
}

// findHedge returns the first phrase contained in text, or "".
func findHedge(text string, phrases []string) string {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p
		}
	}
	return ""
}
