package model

import (
	"strings"
	"time"
)

// Topic is the subject context every prompt and fallback is built from.
type Topic struct {
	Topic      string `json:"topic"`
	GradeLevel string `json:"grade_level"`
	Subject    string `json:"subject"`
}

// Question is a single open-ended prompt targeting one taxonomy level.
type Question struct {
	Level Level  `json:"level"`
	Text  string `json:"question"`
}

// AssessmentSource records which path produced an assessment.
type AssessmentSource string

const (
	SourceOracle   AssessmentSource = "oracle"
	SourceFallback AssessmentSource = "fallback"
)

// Assessment is the rubric judgement of one answer.
type Assessment struct {
	Level       string           `json:"level"`
	Score       int              `json:"score"`
	Explanation string           `json:"explanation"`
	Source      AssessmentSource `json:"source"`
}

// ScoreBuckets are the only scores an assessment may carry.
var ScoreBuckets = []int{0, 20, 40, 60, 80, 100}

// DefaultScore is used when the oracle omits or garbles the score.
const DefaultScore = 60

// DefaultMasteryThreshold is the inclusive aggregate score that counts as mastery.
const DefaultMasteryThreshold = 80

// ClampScore snaps n to the nearest rubric bucket within [0, 100].
// Halfway values round up.
func ClampScore(n int) int {
	if n <= 0 {
		return 0
	}
	if n >= 100 {
		return 100
	}
	return ((n + 10) / 20) * 20
}

// Action is the adaptive selector's suggestion for the next turn.
type Action string

const (
	ActionContinue  Action = "continue"
	ActionOfferHint Action = "offer_hint"

	backtrackPrefix = "backtrack_to_"
)

// BacktrackTo builds the action that sends the student back to l.
func BacktrackTo(l Level) Action {
	return Action(backtrackPrefix + string(l))
}

// BacktrackLevel returns the target level of a backtrack action.
func (a Action) BacktrackLevel() (Level, bool) {
	rest, ok := strings.CutPrefix(string(a), backtrackPrefix)
	if !ok {
		return "", false
	}
	l := Level(rest)
	return l, l.Valid()
}

// NextStep is the adaptive feedback for one answer.
type NextStep struct {
	Feedback        string  `json:"feedback"`
	SuggestedAction Action  `json:"suggested_action"`
	NextQuestion    *string `json:"next_question"`
}

// MasteryResult is the outcome of one mastery loop call.
type MasteryResult struct {
	Mastery       bool          `json:"mastery"`
	OverallScore  float64       `json:"overall_score"`
	Breakdown     map[Level]int `json:"breakdown"`
	WeakLevels    []Level       `json:"weak_levels"`
	NextWeakLevel *Level        `json:"next_weak_level"`
	NextQuestion  *string       `json:"next_question"`
	RetryIndex    *int          `json:"retry_index"`
}

// MasteryState names the controller state a result represents.
type MasteryState string

const (
	StateMastered       MasteryState = "mastered"
	StateExhausted      MasteryState = "exhausted"
	StateAwaitingAnswer MasteryState = "awaiting_retry_answer"
)

// State classifies the result.
func (r MasteryResult) State() MasteryState {
	switch {
	case r.Mastery:
		return StateMastered
	case r.NextWeakLevel == nil:
		return StateExhausted
	default:
		return StateAwaitingAnswer
	}
}

// MasteryReport is a mastery result merged with the session's timing data.
type MasteryReport struct {
	MasteryResult
	AvgTime float64 `json:"avg_time"`
	Scores  []*int  `json:"scores"`
	Times   []*int  `json:"times"`
}

// QuestionPayload is what the student sees for the next turn.
type QuestionPayload struct {
	Question string `json:"question"`
	Level    Level  `json:"level"`
	Index    int    `json:"index"`
}

// AnswerFeedback is returned for answers 1 through 5.
type AnswerFeedback struct {
	QuestionPayload
	Score            int     `json:"score"`
	TimeTaken        int     `json:"time_taken"`
	Feedback         string  `json:"feedback"`
	SuggestedAction  Action  `json:"suggested_action"`
	ScaffoldQuestion *string `json:"scaffold_question,omitempty"`
}

// LevelAnswer pairs an answer with the level it responds to.
type LevelAnswer struct {
	Level  Level  `json:"level"`
	Answer string `json:"answer"`
}

// DiagnosticResult is one scored diagnostic answer.
type DiagnosticResult struct {
	Level       Level  `json:"level"`
	Answer      string `json:"answer"`
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
}

// Misconception flags a low-scoring diagnostic answer.
type Misconception struct {
	Level  Level  `json:"level"`
	Answer string `json:"answer"`
	Reason string `json:"reason"`
}

// DiagnosticReport summarises a diagnostic pass.
type DiagnosticReport struct {
	Results        []DiagnosticResult `json:"results"`
	OverallScore   float64            `json:"overall_score"`
	Misconceptions []Misconception    `json:"misconceptions"`
	WeakLevels     []Level            `json:"weak_levels"`
	NextSteps      string             `json:"next_steps"`
}

// Reflection holds end-of-session prompts.
type Reflection struct {
	Prompts            []string `json:"reflection_prompts"`
	RecommendedActions []string `json:"recommended_actions"`
}

// TutorConfig holds runtime tutoring parameters set via CLI flags.
type TutorConfig struct {
	MasteryThreshold int           // inclusive aggregate score for mastery
	PromptVariant    string        // rubric prompt variant (strict, standard, lenient)
	SessionTTL       time.Duration // idle time before a session is evicted; 0 disables eviction
	APIToken         bool          // require a bearer token on API routes
	CORSOrigins      []string
}
