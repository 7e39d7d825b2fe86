package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLevel is returned when a string does not name a taxonomy level.
var ErrUnknownLevel = errors.New("unknown taxonomy level")

// Level is one of the six ordered Bloom's taxonomy stages.
type Level string

const (
	LevelRemember   Level = "remember"
	LevelUnderstand Level = "understand"
	LevelApply      Level = "apply"
	LevelAnalyze    Level = "analyze"
	LevelEvaluate   Level = "evaluate"
	LevelCreate     Level = "create"
)

// LevelUnknown labels an assessment whose level could not be determined.
// It is never a valid dialogue position.
const LevelUnknown = "unknown"

// Levels lists the taxonomy in difficulty order.
var Levels = []Level{
	LevelRemember,
	LevelUnderstand,
	LevelApply,
	LevelAnalyze,
	LevelEvaluate,
	LevelCreate,
}

// NumLevels is the number of questions in a full dialogue pass.
const NumLevels = 6

// ParseLevel converts a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l.Index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return l, nil
}

// Index returns the position of l in Levels, or -1.
func (l Level) Index() int {
	for i, v := range Levels {
		if v == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l is one of the six taxonomy levels.
func (l Level) Valid() bool {
	return l.Index() >= 0
}

// Prev returns the easier neighbour of l. ok is false for the first level.
func (l Level) Prev() (Level, bool) {
	i := l.Index()
	if i <= 0 {
		return "", false
	}
	return Levels[i-1], true
}

// Next returns the harder neighbour of l. ok is false for the last level.
func (l Level) Next() (Level, bool) {
	i := l.Index()
	if i < 0 || i >= len(Levels)-1 {
		return "", false
	}
	return Levels[i+1], true
}
