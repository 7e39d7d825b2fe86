package tutor

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/socratic/internal/i18n"
	"github.com/pavelanni/socratic/internal/llm"
	"github.com/pavelanni/socratic/internal/llm/prompts"
	"github.com/pavelanni/socratic/internal/model"
)

// minScorableLength is the shortest answer the fallback scorer gives credit for.
const minScorableLength = 5

// Scorer turns a free-text answer into a rubric assessment.
type Scorer struct {
	oracle  llm.Oracle
	variant prompts.PromptVariant
}

// NewScorer creates a scorer using the given rubric variant. Unknown
// variants fall back to the standard rubric.
func NewScorer(o llm.Oracle, variant prompts.PromptVariant) *Scorer {
	if !prompts.IsValidVariant(string(variant)) {
		variant = prompts.PromptStandard
	}
	return &Scorer{oracle: o, variant: variant}
}

// assessmentReply keeps every field loosely typed; assessment applies the
// defaults for values that are missing or of the wrong type.
type assessmentReply struct {
	Level       any `json:"level"`
	Score       any `json:"score"`
	Explanation any `json:"explanation"`
}

// Score asks the oracle to grade answer. Any oracle failure or unusable reply
// degrades to FallbackAssessment; Score itself never fails.
func (s *Scorer) Score(ctx context.Context, t model.Topic, answer string) model.Assessment {
	prompt, err := prompts.BuildAssessPrompt(s.variant, promptTopic(t), answer)
	if err != nil {
		slog.Error("build assessment prompt", "error", err)
		return FallbackAssessment(ctx, answer)
	}

	raw, err := s.oracle.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("oracle assessment failed, using fallback scorer", "error", err)
		return FallbackAssessment(ctx, answer)
	}

	var reply assessmentReply
	if err := llm.DecodeJSON(raw, llm.AssessmentSchema, &reply); err != nil {
		slog.Warn("unusable assessment reply, using fallback scorer", "error", err)
		return FallbackAssessment(ctx, answer)
	}
	return reply.assessment(ctx)
}

func (r assessmentReply) assessment(ctx context.Context) model.Assessment {
	a := model.Assessment{
		Level:       model.LevelUnknown,
		Score:       coerceScore(r.Score),
		Explanation: i18n.T(ctx, "ExplanationDefault"),
		Source:      model.SourceOracle,
	}
	if s, ok := r.Level.(string); ok {
		if l, err := model.ParseLevel(s); err == nil {
			a.Level = string(l)
		}
	}
	if s, ok := r.Explanation.(string); ok && strings.TrimSpace(s) != "" {
		a.Explanation = strings.TrimSpace(s)
	}
	return a
}

// coerceScore accepts a JSON number or a numeric string and snaps it to a
// rubric bucket. Anything else yields the default score.
func coerceScore(v any) int {
	switch s := v.(type) {
	case float64:
		return model.ClampScore(int(min(max(s, 0), 100)))
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return model.ClampScore(n)
		}
	}
	return model.DefaultScore
}

// FallbackAssessment scores an answer without the oracle using its length
// and hedging. The result depends only on the answer text.
func FallbackAssessment(ctx context.Context, answer string) model.Assessment {
	text := normalizeAnswer(answer)
	n := utf8.RuneCountInString(text)

	a := model.Assessment{Level: model.LevelUnknown, Source: model.SourceFallback}
	switch {
	case n < minScorableLength:
		a.Score = 0
		a.Explanation = i18n.T(ctx, "FallbackNoResponse")
	case findHedge(text, scorerHedges) != "":
		a.Score = 20
		a.Explanation = i18n.T(ctx, "FallbackHesitant")
	default:
		a.Explanation = i18n.T(ctx, "FallbackByLength")
		switch {
		case n > 100:
			a.Score = 80
		case n > 50:
			a.Score = 60
		case n > 20:
			a.Score = 40
		default:
			a.Score = 20
		}
	}
	return a
}

func promptTopic(t model.Topic) prompts.Topic {
	return prompts.Topic{Topic: t.Topic, GradeLevel: t.GradeLevel, Subject: t.Subject}
}
