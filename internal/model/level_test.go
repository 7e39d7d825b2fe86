package model

import (
	"errors"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"remember", LevelRemember, false},
		{"  Analyze ", LevelAnalyze, false},
		{"CREATE", LevelCreate, false},
		{"unknown", "", true},
		{"", "", true},
		{"synthesis", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownLevel) {
					t.Fatalf("ParseLevel(%q) error = %v, want ErrUnknownLevel", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelNeighbours(t *testing.T) {
	if _, ok := LevelRemember.Prev(); ok {
		t.Error("remember should have no predecessor")
	}
	if _, ok := LevelCreate.Next(); ok {
		t.Error("create should have no successor")
	}
	if p, _ := LevelApply.Prev(); p != LevelUnderstand {
		t.Errorf("apply.Prev() = %q", p)
	}
	if n, _ := LevelApply.Next(); n != LevelAnalyze {
		t.Errorf("apply.Next() = %q", n)
	}
	if _, ok := Level("bogus").Next(); ok {
		t.Error("invalid level should have no successor")
	}
	if len(Levels) != NumLevels {
		t.Errorf("len(Levels) = %d, want %d", len(Levels), NumLevels)
	}
}

func TestActionBacktrack(t *testing.T) {
	a := BacktrackTo(LevelUnderstand)
	if a != "backtrack_to_understand" {
		t.Fatalf("BacktrackTo = %q", a)
	}
	if l, ok := a.BacktrackLevel(); !ok || l != LevelUnderstand {
		t.Errorf("BacktrackLevel() = %q, %v", l, ok)
	}
	if _, ok := ActionContinue.BacktrackLevel(); ok {
		t.Error("continue is not a backtrack")
	}
}
