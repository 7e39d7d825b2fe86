package model

import (
	"slices"
	"testing"
)

func TestClampScore(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-15, 0}, {0, 0}, {9, 0}, {10, 20}, {55, 60}, {69, 60}, {70, 80},
		{80, 80}, {95, 100}, {100, 100}, {250, 100},
	}
	for _, tt := range tests {
		got := ClampScore(tt.in)
		if got != tt.want {
			t.Errorf("ClampScore(%d) = %d, want %d", tt.in, got, tt.want)
		}
		if !slices.Contains(ScoreBuckets, got) {
			t.Errorf("ClampScore(%d) = %d is not a rubric bucket", tt.in, got)
		}
	}
}

func TestMasteryResultState(t *testing.T) {
	lvl := LevelApply
	tests := []struct {
		name string
		r    MasteryResult
		want MasteryState
	}{
		{"mastered", MasteryResult{Mastery: true}, StateMastered},
		{"exhausted", MasteryResult{}, StateExhausted},
		{"awaiting", MasteryResult{NextWeakLevel: &lvl}, StateAwaitingAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.State(); got != tt.want {
				t.Errorf("State() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	ans, score := "photosynthesis makes sugar", 80
	s := &Session{StudentID: "s1", WeakLevels: []Level{LevelApply}}
	s.Answers[0] = &ans
	s.Scores[0] = &score
	s.LastMastery = &MasteryResult{Breakdown: map[Level]int{LevelRemember: 80}}

	c := s.Clone()
	*c.Answers[0] = "changed"
	*c.Scores[0] = 0
	c.WeakLevels[0] = LevelCreate
	c.LastMastery.Breakdown[LevelRemember] = 0

	if *s.Answers[0] != ans || *s.Scores[0] != 80 {
		t.Error("clone shares answer or score pointers")
	}
	if s.WeakLevels[0] != LevelApply {
		t.Error("clone shares weak levels")
	}
	if s.LastMastery.Breakdown[LevelRemember] != 80 {
		t.Error("clone shares mastery breakdown")
	}
}

func TestSessionAvgTimeAndAnswerMap(t *testing.T) {
	s := &Session{}
	for i, l := range Levels {
		s.Questions[i] = Question{Level: l}
	}
	for i, v := range []int{5, 7, 12} {
		s.Times[i] = &v
		a := "answer"
		s.Answers[i] = &a
	}
	if got := s.AvgTime(); got != 8 {
		t.Errorf("AvgTime() = %v, want 8", got)
	}
	m := s.AnswerMap()
	if len(m) != 3 || m[LevelApply] != "answer" {
		t.Errorf("AnswerMap() = %v", m)
	}
	if (&Session{}).AvgTime() != 0 {
		t.Error("empty session AvgTime should be 0")
	}
}
