package tutor

import (
	"fmt"

	"github.com/pavelanni/socratic/internal/llm"
	"github.com/pavelanni/socratic/internal/model"
)

var photosynthesis = model.Topic{Topic: "photosynthesis", GradeLevel: "7", Subject: "science"}

// longAnswer is over 100 characters and free of hedge phrases.
const longAnswer = "Photosynthesis is the process by which green plants use sunlight, water and carbon dioxide to make glucose and release oxygen."

func scored(score int) llm.MockReply {
	return llm.Text(fmt.Sprintf(`{"level": "apply", "score": %d, "explanation": "Scored %d."}`, score, score))
}

func scoredAll(scores ...int) []llm.MockReply {
	out := make([]llm.MockReply, len(scores))
	for i, s := range scores {
		out[i] = scored(s)
	}
	return out
}

func answersForAll(answer string) map[model.Level]string {
	m := make(map[model.Level]string, model.NumLevels)
	for _, l := range model.Levels {
		m[l] = answer
	}
	return m
}
