package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 10000

// PromptVariant represents a rubric strictness variant.
type PromptVariant string

const (
	// PromptStrict holds students to the full rubric wording.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default rubric.
	PromptStandard PromptVariant = "standard"
	// PromptLenient gives more credit to partial, informal answers.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

var (
	loadOnce        sync.Once
	loadErr         error
	assessTemplates map[PromptVariant]*template.Template
	questionsTmpl   *template.Template
	followupTmpl    *template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// Topic is the dialogue context shared by every prompt.
type Topic struct {
	Topic      string
	GradeLevel string
	Subject    string
}

// AssessData holds template data for rubric prompts.
type AssessData struct {
	Topic
	Answer string
}

// FollowupData holds template data for single-level question prompts.
type FollowupData struct {
	Topic
	Level    string
	MaxWords int
}

// Load parses the embedded prompt templates. Safe to call repeatedly.
func Load() error {
	return load(templateFS)
}

func load(fsys fs.FS) error {
	loadOnce.Do(func() {
		assessTemplates = make(map[PromptVariant]*template.Template)
		for _, v := range []PromptVariant{PromptStrict, PromptStandard, PromptLenient} {
			tmpl, err := parseFile(fsys, "templates/assess_"+string(v)+".tmpl")
			if err != nil {
				loadErr = err
				return
			}
			assessTemplates[v] = tmpl
		}
		if questionsTmpl, loadErr = parseFile(fsys, "templates/questions.tmpl"); loadErr != nil {
			return
		}
		followupTmpl, loadErr = parseFile(fsys, "templates/followup.tmpl")
	})
	return loadErr
}

func parseFile(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.New("failed to read prompt file " + name + ": " + err.Error())
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, errors.New("failed to parse prompt template " + name + ": " + err.Error())
	}
	return tmpl, nil
}

// BuildQuestionsPrompt asks for one question per taxonomy level as JSON.
func BuildQuestionsPrompt(t Topic) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	return execute(questionsTmpl, t)
}

// BuildAssessPrompt builds the rubric scoring prompt for the given variant.
func BuildAssessPrompt(variant PromptVariant, t Topic, answer string) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	tmpl, ok := assessTemplates[variant]
	if !ok {
		return "", fmt.Errorf("invalid prompt variant: %q", variant)
	}
	return execute(tmpl, AssessData{Topic: t, Answer: SanitizeAnswer(answer)})
}

// BuildFollowupPrompt asks for a short question at one level.
func BuildFollowupPrompt(t Topic, level string) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	return execute(followupTmpl, FollowupData{Topic: t, Level: level, MaxWords: 20})
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeAnswer strips delimiter tags a student could use to break out of
// the answer block and truncates very long answers.
func SanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
