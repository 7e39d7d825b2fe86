package model

import "time"

// AttemptKind distinguishes first-pass answers from mastery retries.
type AttemptKind string

const (
	AttemptInitial AttemptKind = "initial"
	AttemptRetry   AttemptKind = "retry"
)

// Attempt is one recorded answer within a session.
type Attempt struct {
	Kind       AttemptKind `json:"kind"`
	Level      Level       `json:"level"`
	Answer     string      `json:"answer"`
	Assessment Assessment  `json:"assessment"`
	TimeTaken  int         `json:"time_taken,omitempty"`
	At         time.Time   `json:"at"`
}

// Session is one student's Socratic dialogue.
// Answers, Scores and Times at index i are set only once question i is answered.
type Session struct {
	ID           string                `json:"id"`
	StudentID    string                `json:"student_id"`
	Topic        string                `json:"topic"`
	GradeLevel   string                `json:"grade_level"`
	Subject      string                `json:"subject"`
	Questions    [NumLevels]Question   `json:"questions"`
	Answers      [NumLevels]*string    `json:"answers"`
	Scores       [NumLevels]*int       `json:"scores"`
	Times        [NumLevels]*int       `json:"times"`
	StartTimes   [NumLevels]*time.Time `json:"start_times"`
	CurrentIndex int                   `json:"current_index"`
	Completed    bool                  `json:"completed"`
	WeakLevels   []Level               `json:"weak_levels,omitempty"`
	RetryIndex   int                   `json:"retry_index"`
	LastMastery  *MasteryResult        `json:"last_mastery,omitempty"`
	History      []Attempt             `json:"history,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	for i := range NumLevels {
		if s.Answers[i] != nil {
			v := *s.Answers[i]
			c.Answers[i] = &v
		}
		if s.Scores[i] != nil {
			v := *s.Scores[i]
			c.Scores[i] = &v
		}
		if s.Times[i] != nil {
			v := *s.Times[i]
			c.Times[i] = &v
		}
		if s.StartTimes[i] != nil {
			v := *s.StartTimes[i]
			c.StartTimes[i] = &v
		}
	}
	c.WeakLevels = append([]Level(nil), s.WeakLevels...)
	c.History = append([]Attempt(nil), s.History...)
	if s.LastMastery != nil {
		m := *s.LastMastery
		m.Breakdown = make(map[Level]int, len(s.LastMastery.Breakdown))
		for k, v := range s.LastMastery.Breakdown {
			m.Breakdown[k] = v
		}
		m.WeakLevels = append([]Level{}, s.LastMastery.WeakLevels...)
		c.LastMastery = &m
	}
	return &c
}

// TopicInfo returns the dialogue's topic context.
func (s *Session) TopicInfo() Topic {
	return Topic{Topic: s.Topic, GradeLevel: s.GradeLevel, Subject: s.Subject}
}

// AnswerMap returns the recorded answers keyed by level.
func (s *Session) AnswerMap() map[Level]string {
	out := make(map[Level]string, NumLevels)
	for i, a := range s.Answers {
		if a != nil {
			out[s.Questions[i].Level] = *a
		}
	}
	return out
}

// AvgTime is the mean of the recorded per-question times.
func (s *Session) AvgTime() float64 {
	total, n := 0, 0
	for _, t := range s.Times {
		if t != nil {
			total += *t
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

// ScoreSlice and TimeSlice expose the fixed arrays as JSON-friendly slices.
func (s *Session) ScoreSlice() []*int { return append([]*int(nil), s.Scores[:]...) }

func (s *Session) TimeSlice() []*int { return append([]*int(nil), s.Times[:]...) }

// SessionSummary is a lightweight listing row.
type SessionSummary struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	Topic        string    `json:"topic"`
	CurrentIndex int       `json:"current_index"`
	Completed    bool      `json:"completed"`
	UpdatedAt    time.Time `json:"updated_at"`
}
