package tutor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pavelanni/socratic/internal/i18n"
	"github.com/pavelanni/socratic/internal/llm"
	"github.com/pavelanni/socratic/internal/llm/prompts"
	"github.com/pavelanni/socratic/internal/model"
)

var fallbackQuestionIDs = map[model.Level]string{
	model.LevelRemember:   "FallbackQuestionRemember",
	model.LevelUnderstand: "FallbackQuestionUnderstand",
	model.LevelApply:      "FallbackQuestionApply",
	model.LevelAnalyze:    "FallbackQuestionAnalyze",
	model.LevelEvaluate:   "FallbackQuestionEvaluate",
	model.LevelCreate:     "FallbackQuestionCreate",
}

// Generator produces taxonomy questions through the oracle.
type Generator struct {
	oracle llm.Oracle
}

// NewGenerator creates a question generator.
func NewGenerator(o llm.Oracle) *Generator {
	return &Generator{oracle: o}
}

type questionSetReply struct {
	Questions []struct {
		Level    string `json:"level"`
		Question string `json:"question"`
	} `json:"questions"`
}

// TaxonomyQuestions returns at least one non-empty question for every level.
// If the oracle fails or its reply cannot be recovered, every level gets its
// templated question. Levels missing from a usable reply get a placeholder.
func (g *Generator) TaxonomyQuestions(ctx context.Context, t model.Topic) map[model.Level][]string {
	prompt, err := prompts.BuildQuestionsPrompt(promptTopic(t))
	if err != nil {
		slog.Error("build questions prompt", "error", err)
		return FallbackQuestions(ctx, t)
	}

	raw, err := g.oracle.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("question generation failed, using templated questions", "topic", t.Topic, "error", err)
		return FallbackQuestions(ctx, t)
	}

	var reply questionSetReply
	if err := llm.DecodeJSON(raw, llm.QuestionSetSchema, &reply); err != nil {
		slog.Warn("unusable question set, using templated questions", "topic", t.Topic, "error", err)
		return FallbackQuestions(ctx, t)
	}

	out := make(map[model.Level][]string, model.NumLevels)
	for _, q := range reply.Questions {
		level, err := model.ParseLevel(q.Level)
		text := strings.TrimSpace(q.Question)
		if err != nil || text == "" {
			continue
		}
		out[level] = append(out[level], text)
	}
	for _, l := range model.Levels {
		if len(out[l]) == 0 {
			slog.Warn("question set missing level", "topic", t.Topic, "level", l)
			out[l] = []string{i18n.Td(ctx, "QuestionPlaceholder", map[string]any{"Level": string(l)})}
		}
	}
	return out
}

// Followup asks the oracle for one short question at level, falling back to
// the templated question when the oracle fails or answers with nothing.
func (g *Generator) Followup(ctx context.Context, t model.Topic, level model.Level) string {
	prompt, err := prompts.BuildFollowupPrompt(promptTopic(t), string(level))
	if err != nil {
		slog.Error("build follow-up prompt", "error", err)
		return FallbackQuestion(ctx, t, level)
	}

	raw, err := g.oracle.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("follow-up generation failed, using templated question", "level", level, "error", err)
		return FallbackQuestion(ctx, t, level)
	}
	if q := cleanQuestion(raw); q != "" {
		return q
	}
	slog.Warn("empty follow-up question, using templated question", "level", level)
	return FallbackQuestion(ctx, t, level)
}

// cleanQuestion returns the first non-empty line of raw without surrounding quotes.
func cleanQuestion(raw string) string {
	for line := range strings.Lines(raw) {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "\"'`“”"))
		if line != "" {
			return line
		}
	}
	return ""
}

// FallbackQuestion is the templated question for one level.
func FallbackQuestion(ctx context.Context, t model.Topic, level model.Level) string {
	id, ok := fallbackQuestionIDs[level]
	if !ok {
		id = fallbackQuestionIDs[model.LevelRemember]
	}
	return i18n.Td(ctx, id, map[string]any{"Topic": t.Topic})
}

// FallbackQuestions returns the templated question set.
func FallbackQuestions(ctx context.Context, t model.Topic) map[model.Level][]string {
	out := make(map[model.Level][]string, model.NumLevels)
	for _, l := range model.Levels {
		out[l] = []string{FallbackQuestion(ctx, t, l)}
	}
	return out
}

// SeedQuestions orders a generated set by taxonomy level, taking the first
// question for each level.
func SeedQuestions(ctx context.Context, t model.Topic, set map[model.Level][]string) [model.NumLevels]model.Question {
	var seeded [model.NumLevels]model.Question
	for i, l := range model.Levels {
		text := FallbackQuestion(ctx, t, l)
		if qs := set[l]; len(qs) > 0 && strings.TrimSpace(qs[0]) != "" {
			text = qs[0]
		}
		seeded[i] = model.Question{Level: l, Text: text}
	}
	return seeded
}
