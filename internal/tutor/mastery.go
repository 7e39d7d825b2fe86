package tutor

import (
	"context"
	"log/slog"
	"slices"

	"github.com/pavelanni/socratic/internal/model"
)

// MasteryInput is the caller-owned loop state for one mastery call.
type MasteryInput struct {
	Topic   model.Topic
	Answers map[model.Level]string
	// WeakLevels is computed from the scores when nil.
	WeakLevels []model.Level
	RetryIndex int
}

// MasteryLoop rescores every answer and decides whether the student has
// mastered the topic, has exhausted the weak levels, or should answer a
// retry question for WeakLevels[RetryIndex]. It holds no state between calls.
func (e *Engine) MasteryLoop(ctx context.Context, in MasteryInput) model.MasteryResult {
	res, _ := e.masteryLoop(ctx, in)
	return res
}

func (e *Engine) masteryLoop(ctx context.Context, in MasteryInput) (model.MasteryResult, map[model.Level]model.Assessment) {
	assessments := make(map[model.Level]model.Assessment, len(in.Answers))
	breakdown := make(map[model.Level]int, len(in.Answers))
	total := 0
	for _, l := range model.Levels {
		answer, ok := in.Answers[l]
		if !ok {
			continue
		}
		a := e.scorer.Score(ctx, in.Topic, answer)
		assessments[l] = a
		breakdown[l] = a.Score
		total += a.Score
	}

	res := model.MasteryResult{Breakdown: breakdown}
	if len(breakdown) > 0 {
		res.OverallScore = float64(total) / float64(len(breakdown))
	}
	if res.OverallScore >= float64(e.threshold) {
		res.Mastery = true
		res.WeakLevels = []model.Level{}
		slog.Info("mastery reached", "topic", in.Topic.Topic, "overall", res.OverallScore)
		return res, assessments
	}

	weak := slices.Clone(in.WeakLevels)
	if in.WeakLevels == nil {
		weak = []model.Level{}
		for _, l := range model.Levels {
			if s, ok := breakdown[l]; ok && s < e.threshold {
				weak = append(weak, l)
			}
		}
	}
	res.WeakLevels = weak

	idx := max(in.RetryIndex, 0)
	res.RetryIndex = &idx
	if idx >= len(weak) {
		slog.Info("weak levels exhausted", "topic", in.Topic.Topic, "overall", res.OverallScore, "retries", idx)
		return res, assessments
	}

	next := weak[idx]
	q := e.generator.Followup(ctx, in.Topic, next)
	res.NextWeakLevel = &next
	res.NextQuestion = &q
	return res, assessments
}
