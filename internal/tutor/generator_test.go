package tutor

import (
	"context"
	"testing"

	"github.com/pavelanni/socratic/internal/llm"
	"github.com/pavelanni/socratic/internal/model"
)

const fullQuestionSet = `{"questions": [
	{"level": "remember", "question": "What gas do plants release?"},
	{"level": "understand", "question": "Why do plants need sunlight?"},
	{"level": "apply", "question": "How would you grow a plant in a dark room?"},
	{"level": "analyze", "question": "Which parts of a leaf take part in photosynthesis?"},
	{"level": "evaluate", "question": "Is photosynthesis more important than respiration?"},
	{"level": "create", "question": "Design an experiment to measure photosynthesis."}
]}`

func TestTaxonomyQuestions(t *testing.T) {
	g := NewGenerator(llm.NewMockOracle(llm.Text(fullQuestionSet)))
	got := g.TaxonomyQuestions(context.Background(), photosynthesis)
	if len(got) != model.NumLevels {
		t.Fatalf("got %d levels, want %d", len(got), model.NumLevels)
	}
	if got[model.LevelRemember][0] != "What gas do plants release?" {
		t.Errorf("remember = %q", got[model.LevelRemember][0])
	}
	if got[model.LevelCreate][0] != "Design an experiment to measure photosynthesis." {
		t.Errorf("create = %q", got[model.LevelCreate][0])
	}
}

func TestTaxonomyQuestionsBackfillsMissingLevels(t *testing.T) {
	reply := "Here are your questions:\n" + `{"questions": [
		{"level": "Remember", "question": "What gas do plants release?"},
		{"level": "understand", "question": "   "},
		{"level": "apply", "question": "How would you grow a plant in a dark room?"},
		{"level": "analyze", "question": "Which parts of a leaf take part?"},
		{"level": "evaluate", "question": "Is it more important than respiration?"},
		{"level": "synthesis", "question": "Not a level."}
	]}` + "\nGood luck!"
	g := NewGenerator(llm.NewMockOracle(llm.Text(reply)))
	got := g.TaxonomyQuestions(context.Background(), photosynthesis)

	if got[model.LevelRemember][0] != "What gas do plants release?" {
		t.Errorf("remember = %q", got[model.LevelRemember][0])
	}
	if want := "Error: Could not generate understand question"; got[model.LevelUnderstand][0] != want {
		t.Errorf("understand = %q, want %q", got[model.LevelUnderstand][0], want)
	}
	if want := "Error: Could not generate create question"; got[model.LevelCreate][0] != want {
		t.Errorf("create = %q, want %q", got[model.LevelCreate][0], want)
	}
}

func TestTaxonomyQuestionsFallback(t *testing.T) {
	tests := []struct {
		name  string
		reply llm.MockReply
	}{
		{"oracle down", llm.Down()},
		{"no json", llm.Text("I cannot help with that.")},
		{"missing questions key", llm.Text(`{"items": []}`)},
		{"wrong shape", llm.Text(`{"questions": "none"}`)},
	}
	want := map[model.Level]string{
		model.LevelRemember:   "Can you recall a basic fact about photosynthesis?",
		model.LevelUnderstand: "Can you explain photosynthesis in your own words?",
		model.LevelApply:      "How would you use your knowledge of photosynthesis in everyday life?",
		model.LevelAnalyze:    "What are the different parts or aspects of photosynthesis?",
		model.LevelEvaluate:   "What do you think about photosynthesis and why?",
		model.LevelCreate:     "How could you use photosynthesis to create something new?",
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(llm.NewMockOracle(tt.reply))
			got := g.TaxonomyQuestions(context.Background(), photosynthesis)
			for l, q := range want {
				if len(got[l]) != 1 || got[l][0] != q {
					t.Errorf("%s = %v, want %q", l, got[l], q)
				}
			}
		})
	}
}

func TestFollowup(t *testing.T) {
	tests := []struct {
		name  string
		reply llm.MockReply
		want  string
	}{
		{"plain", llm.Text("What do leaves need from the air?"), "What do leaves need from the air?"},
		{"quoted with blank lines", llm.Text("\n\n  \"What do roots absorb?\"  \nextra"), "What do roots absorb?"},
		{"smart quotes", llm.Text("“Why are leaves green?”"), "Why are leaves green?"},
		{"empty reply", llm.Text("   \n  "), "Can you explain photosynthesis in your own words?"},
		{"oracle down", llm.Down(), "Can you explain photosynthesis in your own words?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := llm.NewMockOracle(tt.reply)
			got := NewGenerator(o).Followup(context.Background(), photosynthesis, model.LevelUnderstand)
			if got != tt.want {
				t.Errorf("Followup = %q, want %q", got, tt.want)
			}
			if o.CallCount() != 1 {
				t.Errorf("CallCount = %d, want 1", o.CallCount())
			}
		})
	}
}

func TestSeedQuestions(t *testing.T) {
	set := map[model.Level][]string{
		model.LevelRemember: {"first", "second"},
		model.LevelApply:    {""},
	}
	got := SeedQuestions(context.Background(), photosynthesis, set)
	for i, l := range model.Levels {
		if got[i].Level != l {
			t.Errorf("seeded[%d].Level = %q, want %q", i, got[i].Level, l)
		}
		if got[i].Text == "" {
			t.Errorf("seeded[%d] is empty", i)
		}
	}
	if got[0].Text != "first" {
		t.Errorf("remember = %q, want first entry", got[0].Text)
	}
	if got[2].Text != "How would you use your knowledge of photosynthesis in everyday life?" {
		t.Errorf("apply = %q, want templated question", got[2].Text)
	}
}
