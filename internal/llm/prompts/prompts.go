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

	"github.com/pavelanni/coursehub/internal/model"
)

//go:embed templates/*.txt
var Templates embed.FS

var (
	learnerAnswerRegex      = regexp.MustCompile(`(?i)</?\s*learner-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 10000

// PromptVariant represents a grading prompt variant.
type PromptVariant string

const (
	// PromptStrict grades closely against the level descriptors.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default grading variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient rewards communication over accuracy.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

var (
	loadOnce       sync.Once
	loadErr        error
	gradeTemplates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// GradeData holds template data for essay grading prompts.
type GradeData struct {
	QuestionText string
	Skill        model.Skill
	Level        model.Level
	MaxPoints    int
	Guidance     string
	ModelAnswer  string
	Answer       string
}

// Load loads prompt templates from fsys.
// It uses sync.Once to ensure templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		gradeTemplates = make(map[PromptVariant]*template.Template)

		for _, v := range []PromptVariant{PromptStrict, PromptStandard, PromptLenient} {
			file := "templates/grade_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New("grade").Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			gradeTemplates[v] = tmpl
		}
	})
	return loadErr
}

// BuildGradePrompt builds an essay grading prompt using the specified variant.
func BuildGradePrompt(variant PromptVariant, q model.Question, answer string) (string, error) {
	if gradeTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := gradeTemplates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := GradeData{
		QuestionText: q.ContentText,
		Skill:        q.Skill,
		Level:        q.Level,
		MaxPoints:    q.Points,
		Guidance:     q.Explanation,
		ModelAnswer:  q.CorrectAnswer,
		Answer:       sanitizeAnswer(answer),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeAnswer strips delimiter tags a learner could use to break out of
// the answer block and caps the length.
func sanitizeAnswer(answer string) string {
	answer = learnerAnswerRegex.ReplaceAllString(answer, "")
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
