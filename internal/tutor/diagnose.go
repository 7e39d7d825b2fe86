package tutor

import (
	"context"
	"strings"

	"github.com/pavelanni/socratic/internal/i18n"
	"github.com/pavelanni/socratic/internal/model"
)

const (
	defaultDiagnosticQuestions = 4
	misconceptionMaxScore      = 40
	simplerApproachBelow       = 50
)

// DiagnosticDialogue returns the questions for the first n levels.
// n <= 0 means the default of four; n is capped at six.
func (e *Engine) DiagnosticDialogue(ctx context.Context, t model.Topic, n int) []model.Question {
	if n <= 0 {
		n = defaultDiagnosticQuestions
	}
	n = min(n, model.NumLevels)
	seeded := SeedQuestions(ctx, t, e.generator.TaxonomyQuestions(ctx, t))
	return append([]model.Question(nil), seeded[:n]...)
}

// Diagnose scores a set of diagnostic answers and summarises what the
// student should do next.
func (e *Engine) Diagnose(ctx context.Context, t model.Topic, answers []model.LevelAnswer) model.DiagnosticReport {
	report := model.DiagnosticReport{
		Results:        []model.DiagnosticResult{},
		Misconceptions: []model.Misconception{},
		WeakLevels:     []model.Level{},
	}
	total := 0
	for _, la := range answers {
		a := e.scorer.Score(ctx, t, la.Answer)
		report.Results = append(report.Results, model.DiagnosticResult{
			Level:       la.Level,
			Answer:      la.Answer,
			Score:       a.Score,
			Explanation: a.Explanation,
		})
		total += a.Score
		if a.Score <= misconceptionMaxScore {
			report.Misconceptions = append(report.Misconceptions, model.Misconception{
				Level:  la.Level,
				Answer: la.Answer,
				Reason: a.Explanation,
			})
		}
		if a.Score < e.threshold {
			report.WeakLevels = append(report.WeakLevels, la.Level)
		}
	}
	if len(answers) > 0 {
		report.OverallScore = float64(total) / float64(len(answers))
	}

	switch {
	case report.OverallScore >= float64(e.threshold):
		report.NextSteps = i18n.T(ctx, "NextStepsReady")
	case report.OverallScore < simplerApproachBelow:
		report.NextSteps = i18n.T(ctx, "NextStepsSimpler")
	case len(report.WeakLevels) > 0:
		names := make([]string, len(report.WeakLevels))
		for i, l := range report.WeakLevels {
			names[i] = string(l)
		}
		report.NextSteps = i18n.Td(ctx, "NextStepsPractice", map[string]any{"Levels": strings.Join(names, ", ")})
	default:
		report.NextSteps = i18n.T(ctx, "NextStepsKeepGoing")
	}
	return report
}

// Reflection returns the end-of-session reflection prompts and suggestions.
func Reflection(ctx context.Context) model.Reflection {
	return model.Reflection{
		Prompts: []string{
			i18n.T(ctx, "ReflectionSurprised"),
			i18n.T(ctx, "ReflectionLessConfident"),
			i18n.T(ctx, "ReflectionGoDeeper"),
		},
		RecommendedActions: []string{
			i18n.T(ctx, "ActionDebate"),
			i18n.T(ctx, "ActionProject"),
			i18n.T(ctx, "ActionTeachBack"),
		},
	}
}
