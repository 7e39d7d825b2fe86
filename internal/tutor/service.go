package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/socratic/internal/model"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrOutOfOrderAnswer   = errors.New("answer out of order")
	ErrMissingFields      = errors.New("missing required fields")
	ErrDialogueComplete   = errors.New("dialogue already complete")
	ErrDialogueIncomplete = errors.New("dialogue not complete")
)

// minTimeTaken is the floor, in seconds, for a recorded answer time.
const minTimeTaken = 5

// SessionStore persists dialogue sessions keyed by student id.
// GetSession returns nil, nil when no session exists.
type SessionStore interface {
	GetSession(ctx context.Context, studentID string) (*model.Session, error)
	SaveSession(ctx context.Context, s *model.Session) error
	DeleteSession(ctx context.Context, studentID string) error
	ListSessions(ctx context.Context) ([]model.SessionSummary, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
	Ping(ctx context.Context) error
}

// Service runs one Socratic dialogue per student on top of an Engine.
// Calls for the same student are serialized; different students proceed
// in parallel.
type Service struct {
	engine *Engine
	store  SessionStore
	locks  keyedMutex
	now    func() time.Time
}

// NewService creates a dialogue service.
func NewService(engine *Engine, store SessionStore) *Service {
	return &Service{engine: engine, store: store, now: time.Now}
}

// SetClock replaces the time source used for answer timing.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Engine returns the stateless engine behind the service.
func (s *Service) Engine() *Engine { return s.engine }

// StartRequest opens a dialogue.
type StartRequest struct {
	StudentID  string `json:"student_id"`
	GradeLevel string `json:"grade_level"`
	Subject    string `json:"subject"`
	Topic      string `json:"topic"`
}

// AnswerRequest submits the answer to question Index.
type AnswerRequest struct {
	StudentID string `json:"student_id"`
	Index     int    `json:"index"`
	Answer    string `json:"answer"`
}

// RetryRequest submits the answers after a mastery retry question.
type RetryRequest struct {
	StudentID  string                 `json:"student_id"`
	AllAnswers map[model.Level]string `json:"all_answers"`
	WeakLevels []model.Level          `json:"weak_levels"`
	RetryIndex int                    `json:"retry_index"`
}

// AnswerResult holds either the next turn or, after the sixth answer, the
// mastery report.
type AnswerResult struct {
	Next   *model.AnswerFeedback
	Report *model.MasteryReport
}

// Payload returns whichever result is set.
func (r *AnswerResult) Payload() any {
	if r.Report != nil {
		return r.Report
	}
	return r.Next
}

// Start seeds six questions and replaces any previous session of the student.
func (s *Service) Start(ctx context.Context, req StartRequest) (*model.QuestionPayload, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(req.StudentID)
	defer unlock()

	t := model.Topic{Topic: req.Topic, GradeLevel: req.GradeLevel, Subject: req.Subject}
	questions := SeedQuestions(ctx, t, s.engine.Questions(ctx, t))

	now := s.now()
	sess := &model.Session{
		ID:         uuid.NewString(),
		StudentID:  req.StudentID,
		Topic:      req.Topic,
		GradeLevel: req.GradeLevel,
		Subject:    req.Subject,
		Questions:  questions,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	sess.StartTimes[0] = &now

	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	slog.Info("dialogue started", "student", req.StudentID, "session", sess.ID, "topic", req.Topic)

	return &model.QuestionPayload{Question: questions[0].Text, Level: questions[0].Level, Index: 0}, nil
}

func (r StartRequest) validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"student_id", r.StudentID},
		{"grade_level", r.GradeLevel},
		{"subject", r.Subject},
		{"topic", r.Topic},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	return nil
}

// Answer records the answer to the current question. Answers must arrive in
// index order; an out-of-order answer is rejected and leaves the session
// unchanged. The sixth answer completes the pass and runs the mastery loop.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	if strings.TrimSpace(req.StudentID) == "" {
		return nil, fmt.Errorf("%w: student_id", ErrMissingFields)
	}
	unlock := s.locks.Lock(req.StudentID)
	defer unlock()

	sess, err := s.load(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if sess.Completed {
		return nil, ErrDialogueComplete
	}
	if req.Index != sess.CurrentIndex {
		return nil, fmt.Errorf("%w: got index %d, expected %d", ErrOutOfOrderAnswer, req.Index, sess.CurrentIndex)
	}

	i := req.Index
	now := s.now()
	taken := minTimeTaken
	if start := sess.StartTimes[i]; start != nil {
		taken = max(minTimeTaken, int(now.Sub(*start).Seconds()))
	}

	t := sess.TopicInfo()
	level := sess.Questions[i].Level
	a := s.engine.Score(ctx, t, req.Answer)

	answer, score := req.Answer, a.Score
	sess.Answers[i] = &answer
	sess.Scores[i] = &score
	sess.Times[i] = &taken
	sess.History = append(sess.History, model.Attempt{
		Kind:       model.AttemptInitial,
		Level:      level,
		Answer:     req.Answer,
		Assessment: a,
		TimeTaken:  taken,
		At:         now,
	})
	sess.UpdatedAt = now

	if i < model.NumLevels-1 {
		fb := s.turnFeedback(ctx, t, req.Answer, level, a)
		next := i + 1
		sess.CurrentIndex = next
		sess.StartTimes[next] = &now
		fb.QuestionPayload = model.QuestionPayload{
			Question: sess.Questions[next].Text,
			Level:    sess.Questions[next].Level,
			Index:    next,
		}
		fb.TimeTaken = taken
		if err := s.store.SaveSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		slog.Debug("answer recorded", "student", req.StudentID, "index", i, "score", score, "action", fb.SuggestedAction)
		return &AnswerResult{Next: fb}, nil
	}

	sess.Completed = true
	res := s.engine.MasteryLoop(ctx, MasteryInput{Topic: t, Answers: sess.AnswerMap()})
	sess.WeakLevels = res.WeakLevels
	sess.RetryIndex = 0
	sess.LastMastery = &res
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	slog.Info("dialogue pass complete", "student", req.StudentID, "overall", res.OverallScore, "state", res.State())
	return &AnswerResult{Report: report(sess, res)}, nil
}

// turnFeedback reuses the answer's assessment for feedback. A hesitant
// answer also carries a scaffold question one level down, or a hint.
func (s *Service) turnFeedback(ctx context.Context, t model.Topic, answer string, level model.Level, a model.Assessment) *model.AnswerFeedback {
	fb := &model.AnswerFeedback{Score: a.Score}
	if DetectHesitation(answer).IsHesitant {
		step := s.engine.scaffold(ctx, t, level)
		fb.Feedback = step.Feedback
		fb.SuggestedAction = step.SuggestedAction
		fb.ScaffoldQuestion = step.NextQuestion
		return fb
	}
	fb.Feedback = FeedbackFor(ctx, a)
	fb.SuggestedAction = model.ActionContinue
	return fb
}

// Retry merges the submitted answers into the completed session and runs
// the mastery loop again at req.RetryIndex.
func (s *Service) Retry(ctx context.Context, req RetryRequest) (*model.MasteryReport, error) {
	if strings.TrimSpace(req.StudentID) == "" {
		return nil, fmt.Errorf("%w: student_id", ErrMissingFields)
	}
	unlock := s.locks.Lock(req.StudentID)
	defer unlock()

	sess, err := s.load(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !sess.Completed {
		return nil, ErrDialogueIncomplete
	}

	answers := sess.AnswerMap()
	for l, a := range req.AllAnswers {
		if !l.Valid() {
			return nil, fmt.Errorf("%w: %q", model.ErrUnknownLevel, l)
		}
		answers[l] = a
	}
	weak := req.WeakLevels
	if weak == nil {
		weak = sess.WeakLevels
	}

	t := sess.TopicInfo()
	res, assessments := s.engine.masteryLoop(ctx, MasteryInput{
		Topic:      t,
		Answers:    answers,
		WeakLevels: weak,
		RetryIndex: req.RetryIndex,
	})

	now := s.now()
	for i, l := range model.Levels {
		a, ok := answers[l]
		if !ok {
			continue
		}
		changed := sess.Answers[i] == nil || *sess.Answers[i] != a
		answer := a
		sess.Answers[i] = &answer
		if score, ok := res.Breakdown[l]; ok {
			sess.Scores[i] = &score
		}
		if changed {
			sess.History = append(sess.History, model.Attempt{
				Kind:       model.AttemptRetry,
				Level:      l,
				Answer:     a,
				Assessment: assessments[l],
				At:         now,
			})
		}
	}
	sess.WeakLevels = res.WeakLevels
	sess.RetryIndex = max(req.RetryIndex, 0)
	sess.LastMastery = &res
	sess.UpdatedAt = now
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	slog.Info("mastery retry", "student", req.StudentID, "retry_index", sess.RetryIndex, "overall", res.OverallScore, "state", res.State())
	return report(sess, res), nil
}

// Session returns a student's current session.
func (s *Service) Session(ctx context.Context, studentID string) (*model.Session, error) {
	unlock := s.locks.Lock(studentID)
	defer unlock()
	return s.load(ctx, studentID)
}

// Sessions lists all stored sessions.
func (s *Service) Sessions(ctx context.Context) ([]model.SessionSummary, error) {
	return s.store.ListSessions(ctx)
}

// Evict deletes a student's session.
func (s *Service) Evict(ctx context.Context, studentID string) error {
	unlock := s.locks.Lock(studentID)
	defer unlock()
	return s.store.DeleteSession(ctx, studentID)
}

// Ping reports whether the session store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Sweep deletes sessions idle for longer than ttl.
func (s *Service) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	n, err := s.store.DeleteExpired(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		slog.Info("expired sessions evicted", "count", n)
	}
	return n, nil
}

func (s *Service) load(ctx context.Context, studentID string) (*model.Session, error) {
	sess, err := s.store.GetSession(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, studentID)
	}
	return sess, nil
}

func report(sess *model.Session, res model.MasteryResult) *model.MasteryReport {
	return &model.MasteryReport{
		MasteryResult: res,
		AvgTime:       sess.AvgTime(),
		Scores:        sess.ScoreSlice(),
		Times:         sess.TimeSlice(),
	}
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
