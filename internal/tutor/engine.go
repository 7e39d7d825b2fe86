// Package tutor implements the Socratic assessment and mastery engine: rubric
// scoring, hesitation detection, adaptive next-question selection, the
// mastery retry loop and the per-student dialogue service built on them.
package tutor

import (
	"context"

	"github.com/pavelanni/socratic/internal/llm"
	"github.com/pavelanni/socratic/internal/llm/prompts"
	"github.com/pavelanni/socratic/internal/model"
)

// Options configures an Engine.
type Options struct {
	PromptVariant    prompts.PromptVariant
	MasteryThreshold int
}

// Engine combines the scorer and generator with the feedback and mastery
// policies. It keeps no per-student state and is safe for concurrent use.
type Engine struct {
	scorer    *Scorer
	generator *Generator
	threshold int
}

// NewEngine creates an engine backed by oracle o. A threshold outside
// (0, 100] is replaced by the default.
func NewEngine(o llm.Oracle, opts Options) *Engine {
	th := opts.MasteryThreshold
	if th <= 0 || th > 100 {
		th = model.DefaultMasteryThreshold
	}
	return &Engine{
		scorer:    NewScorer(o, opts.PromptVariant),
		generator: NewGenerator(o),
		threshold: th,
	}
}

// Threshold returns the inclusive mastery threshold.
func (e *Engine) Threshold() int { return e.threshold }

// Score grades one answer.
func (e *Engine) Score(ctx context.Context, t model.Topic, answer string) model.Assessment {
	return e.scorer.Score(ctx, t, answer)
}

// Questions generates the taxonomy question set for a topic.
func (e *Engine) Questions(ctx context.Context, t model.Topic) map[model.Level][]string {
	return e.generator.TaxonomyQuestions(ctx, t)
}

// Followup generates one short question at level.
func (e *Engine) Followup(ctx context.Context, t model.Topic, level model.Level) string {
	return e.generator.Followup(ctx, t, level)
}
