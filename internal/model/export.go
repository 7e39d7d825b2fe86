package model

import "time"

// DialogueExport is the top-level JSON structure for session export.
type DialogueExport struct {
	ExportedAt  time.Time       `json:"exported_at"`
	NumSessions int             `json:"num_sessions"`
	Results     []StudentResult `json:"results"`
}

// StudentResult holds one student's dialogue for export.
type StudentResult struct {
	SessionID    string         `json:"session_id"`
	StudentID    string         `json:"student_id"`
	Topic        string         `json:"topic"`
	GradeLevel   string         `json:"grade_level"`
	Subject      string         `json:"subject"`
	Completed    bool           `json:"completed"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Questions    []LevelResult  `json:"questions"`
	AvgTime      float64        `json:"avg_time"`
	Mastery      *MasteryResult `json:"mastery,omitempty"`
	RetryAnswers []Attempt      `json:"retry_answers,omitempty"`
}

// LevelResult holds per-level data for export.
type LevelResult struct {
	Level     Level  `json:"level"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Score     *int   `json:"score"`
	TimeTaken *int   `json:"time_taken"`
}

// ExportResult flattens a session into its export form.
func ExportResult(s *Session) StudentResult {
	r := StudentResult{
		SessionID:  s.ID,
		StudentID:  s.StudentID,
		Topic:      s.Topic,
		GradeLevel: s.GradeLevel,
		Subject:    s.Subject,
		Completed:  s.Completed,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
		AvgTime:    s.AvgTime(),
		Mastery:    s.LastMastery,
	}
	for i, q := range s.Questions {
		lr := LevelResult{
			Level:     q.Level,
			Question:  q.Text,
			Score:     s.Scores[i],
			TimeTaken: s.Times[i],
		}
		if s.Answers[i] != nil {
			lr.Answer = *s.Answers[i]
		}
		r.Questions = append(r.Questions, lr)
	}
	for _, a := range s.History {
		if a.Kind == AttemptRetry {
			r.RetryAnswers = append(r.RetryAnswers, a)
		}
	}
	return r
}
