package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/socratic/internal/model"
	"github.com/pavelanni/socratic/internal/tutor"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc    *tutor.Service
	tokens TokenVerifier
}

// New creates a new Handler. A nil verifier leaves the API open.
func New(svc *tutor.Service, tokens TokenVerifier) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api/socratic", func(api chi.Router) {
		if h.tokens != nil {
			api.Use(h.requireToken)
		}
		api.Post("/start", h.handleStart)
		api.Post("/answer", h.handleAnswer)
		api.Post("/feedback", h.handleFeedback)
		api.Post("/assess", h.handleAssess)
		api.Post("/questions", h.handleQuestions)
		api.Post("/mastery", h.handleMastery)
		api.Post("/diagnose", h.handleDiagnose)
		api.Get("/reflection", h.handleReflection)
		api.Get("/sessions", h.handleListSessions)
		api.Get("/sessions/{studentID}", h.handleGetSession)
		api.Delete("/sessions/{studentID}", h.handleDeleteSession)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		slog.Error("session store unreachable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type topicBody struct {
	Topic      string `json:"topic"`
	GradeLevel string `json:"grade_level"`
	Subject    string `json:"subject"`
}

func (b topicBody) topic() (model.Topic, error) {
	if strings.TrimSpace(b.Topic) == "" {
		return model.Topic{}, fmt.Errorf("%w: topic", tutor.ErrMissingFields)
	}
	return model.Topic{Topic: b.Topic, GradeLevel: b.GradeLevel, Subject: b.Subject}, nil
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req tutor.StartRequest
	if !decode(w, r, &req) {
		return
	}
	q, err := h.svc.Start(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type answerBody struct {
	StudentID  string            `json:"student_id"`
	Index      *int              `json:"index"`
	Answer     *string           `json:"answer"`
	AllAnswers map[string]string `json:"all_answers"`
	WeakLevels []string          `json:"weak_levels"`
	RetryIndex int               `json:"retry_index"`
}

// handleAnswer serves both the ordered first pass and, when all_answers is
// present, the mastery retry flow.
func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var body answerBody
	if !decode(w, r, &body) {
		return
	}

	if body.AllAnswers != nil {
		answers, err := parseAnswerMap(body.AllAnswers)
		if err != nil {
			writeError(w, err)
			return
		}
		weak, err := parseLevels(body.WeakLevels)
		if err != nil {
			writeError(w, err)
			return
		}
		rep, err := h.svc.Retry(r.Context(), tutor.RetryRequest{
			StudentID:  body.StudentID,
			AllAnswers: answers,
			WeakLevels: weak,
			RetryIndex: body.RetryIndex,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
		return
	}

	if body.Index == nil || body.Answer == nil {
		writeError(w, fmt.Errorf("%w: index, answer", tutor.ErrMissingFields))
		return
	}
	res, err := h.svc.Answer(r.Context(), tutor.AnswerRequest{
		StudentID: body.StudentID,
		Index:     *body.Index,
		Answer:    *body.Answer,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Payload())
}

type feedbackBody struct {
	topicBody
	Answer       string `json:"answer"`
	CurrentLevel string `json:"current_level"`
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackBody
	if !decode(w, r, &body) {
		return
	}
	t, err := body.topic()
	if err != nil {
		writeError(w, err)
		return
	}
	level, err := model.ParseLevel(body.CurrentLevel)
	if err != nil {
		writeError(w, err)
		return
	}
	step, err := h.svc.Engine().NextStep(r.Context(), t, body.Answer, level)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

type assessBody struct {
	topicBody
	Answer string `json:"answer"`
}

type assessResponse struct {
	model.Assessment
	Hesitation tutor.Hesitation `json:"hesitation"`
}

func (h *Handler) handleAssess(w http.ResponseWriter, r *http.Request) {
	var body assessBody
	if !decode(w, r, &body) {
		return
	}
	t, err := body.topic()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessResponse{
		Assessment: h.svc.Engine().Score(r.Context(), t, body.Answer),
		Hesitation: tutor.DetectHesitation(body.Answer),
	})
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var body topicBody
	if !decode(w, r, &body) {
		return
	}
	t, err := body.topic()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": h.svc.Engine().Questions(r.Context(), t)})
}

type masteryBody struct {
	topicBody
	Answers    map[string]string `json:"answers"`
	WeakLevels []string          `json:"weak_levels"`
	RetryIndex int               `json:"retry_index"`
}

func (h *Handler) handleMastery(w http.ResponseWriter, r *http.Request) {
	var body masteryBody
	if !decode(w, r, &body) {
		return
	}
	t, err := body.topic()
	if err != nil {
		writeError(w, err)
		return
	}
	answers, err := parseAnswerMap(body.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	weak, err := parseLevels(body.WeakLevels)
	if err != nil {
		writeError(w, err)
		return
	}
	res := h.svc.Engine().MasteryLoop(r.Context(), tutor.MasteryInput{
		Topic:      t,
		Answers:    answers,
		WeakLevels: weak,
		RetryIndex: body.RetryIndex,
	})
	writeJSON(w, http.StatusOK, res)
}

type diagnoseBody struct {
	topicBody
	NumQuestions int `json:"num_questions"`
	Answers      []struct {
		Level  string `json:"level"`
		Answer string `json:"answer"`
	} `json:"answers"`
}

// handleDiagnose returns diagnostic questions when no answers are sent and
// the analysis of the answers otherwise.
func (h *Handler) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	var body diagnoseBody
	if !decode(w, r, &body) {
		return
	}
	t, err := body.topic()
	if err != nil {
		writeError(w, err)
		return
	}
	engine := h.svc.Engine()
	if len(body.Answers) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"questions": engine.DiagnosticDialogue(r.Context(), t, body.NumQuestions),
		})
		return
	}

	answers := make([]model.LevelAnswer, 0, len(body.Answers))
	for _, a := range body.Answers {
		level, err := model.ParseLevel(a.Level)
		if err != nil {
			writeError(w, err)
			return
		}
		answers = append(answers, model.LevelAnswer{Level: level, Answer: a.Answer})
	}
	writeJSON(w, http.StatusOK, engine.Diagnose(r.Context(), t, answers))
}

func (h *Handler) handleReflection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tutor.Reflection(r.Context()))
}

func parseAnswerMap(in map[string]string) (map[model.Level]string, error) {
	out := make(map[model.Level]string, len(in))
	for k, v := range in {
		l, err := model.ParseLevel(k)
		if err != nil {
			return nil, err
		}
		out[l] = v
	}
	return out, nil
}

// parseLevels keeps nil distinct from empty: nil asks the engine to compute
// the weak levels itself.
func parseLevels(in []string) ([]model.Level, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]model.Level, 0, len(in))
	for _, s := range in {
		l, err := model.ParseLevel(s)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tutor.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tutor.ErrOutOfOrderAnswer),
		errors.Is(err, tutor.ErrDialogueComplete),
		errors.Is(err, tutor.ErrDialogueIncomplete):
		status = http.StatusConflict
	case errors.Is(err, tutor.ErrMissingFields),
		errors.Is(err, model.ErrUnknownLevel),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
