package tutor

import (
	"context"
	"fmt"

	"github.com/pavelanni/socratic/internal/i18n"
	"github.com/pavelanni/socratic/internal/model"
)

// NextStep chooses feedback and the next question for an answer at current.
// Hesitant answers are not scored: the student is sent back one level, or
// offered a hint at the first level. Other answers are scored and the
// dialogue moves on; NextQuestion is nil after the last level.
func (e *Engine) NextStep(ctx context.Context, t model.Topic, answer string, current model.Level) (model.NextStep, error) {
	if !current.Valid() {
		return model.NextStep{}, fmt.Errorf("%w: %q", model.ErrUnknownLevel, current)
	}
	if DetectHesitation(answer).IsHesitant {
		return e.scaffold(ctx, t, current), nil
	}

	a := e.scorer.Score(ctx, t, answer)
	step := model.NextStep{
		Feedback:        FeedbackFor(ctx, a),
		SuggestedAction: model.ActionContinue,
	}
	if next, ok := current.Next(); ok {
		q := e.generator.Followup(ctx, t, next)
		step.NextQuestion = &q
	}
	return step, nil
}

// scaffold builds the supportive step for a hesitant answer at current.
// NextQuestion is always set.
func (e *Engine) scaffold(ctx context.Context, t model.Topic, current model.Level) model.NextStep {
	step := model.NextStep{Feedback: i18n.T(ctx, "FeedbackHesitant")}
	if prev, ok := current.Prev(); ok {
		q := e.generator.Followup(ctx, t, prev)
		step.SuggestedAction = model.BacktrackTo(prev)
		step.NextQuestion = &q
		return step
	}
	hint := i18n.Td(ctx, "Hint", map[string]any{"Topic": t.Topic})
	step.SuggestedAction = model.ActionOfferHint
	step.NextQuestion = &hint
	return step
}

// FeedbackFor picks the feedback tier for a score and interpolates the
// assessment's explanation.
func FeedbackFor(ctx context.Context, a model.Assessment) string {
	var id string
	switch {
	case a.Score >= 80:
		id = "FeedbackExcellent"
	case a.Score >= 60:
		id = "FeedbackGoodTry"
	case a.Score >= 40:
		id = "FeedbackRightTrack"
	case a.Score >= 20:
		id = "FeedbackDontWorry"
	default:
		id = "FeedbackMistakes"
	}
	return i18n.Td(ctx, id, map[string]any{"Explanation": a.Explanation})
}
