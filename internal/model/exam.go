package model

import (
	"fmt"
	"time"
)

// Skill is the language skill a question exercises.
type Skill string

const (
	SkillListening  Skill = "listening"
	SkillReading    Skill = "reading"
	SkillWriting    Skill = "writing"
	SkillGrammar    Skill = "grammar"
	SkillVocabulary Skill = "vocabulary"
)

// Valid reports whether s is a known skill.
func (s Skill) Valid() bool {
	switch s {
	case SkillListening, SkillReading, SkillWriting, SkillGrammar, SkillVocabulary:
		return true
	}
	return false
}

// QuestionType determines how an answer is captured and graded.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionFillInBlank    QuestionType = "fill_in_blank"
	QuestionEssay          QuestionType = "essay"
	QuestionMatching       QuestionType = "matching"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionFillInBlank, QuestionEssay, QuestionMatching:
		return true
	}
	return false
}

// AutoGradable reports whether answers of this type are scored by exact match.
// Essay and matching answers always need a teacher.
func (t QuestionType) AutoGradable() bool {
	return t == QuestionMultipleChoice || t == QuestionFillInBlank
}

// OptionLabel returns the label of the option at index i: A, B, C, ...
func OptionLabel(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return OptionLabel(i/26-1) + OptionLabel(i%26)
}

// Question is a question bank item.
type Question struct {
	ID            int64        `json:"id"`
	Skill         Skill        `json:"skill"`
	Type          QuestionType `json:"type"`
	Level         Level        `json:"level"`
	ContentText   string       `json:"content_text"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	MediaURL      string       `json:"media_url,omitempty"`
	Points        int          `json:"points"`
	CreatedBy     int64        `json:"created_by"`
}

// WithoutKey returns a copy of q safe to show to a learner.
func (q Question) WithoutKey() Question {
	q.CorrectAnswer = ""
	q.Explanation = ""
	return q
}

// Validate checks a question before it enters the bank. A multiple choice
// question needs at least two options and an answer key naming one of their
// labels.
func (q Question) Validate() error {
	switch {
	case !q.Skill.Valid():
		return fmt.Errorf("unknown skill %q: %w", q.Skill, ErrInvalid)
	case !q.Type.Valid():
		return fmt.Errorf("unknown question type %q: %w", q.Type, ErrInvalid)
	case !q.Level.Valid():
		return fmt.Errorf("unknown level %q: %w", q.Level, ErrInvalid)
	case q.ContentText == "":
		return fmt.Errorf("content_text is required: %w", ErrInvalid)
	case q.Points < 0:
		return fmt.Errorf("points must not be negative: %w", ErrInvalid)
	}

	switch q.Type {
	case QuestionMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("multiple choice needs at least 2 options: %w", ErrInvalid)
		}
		for i := range q.Options {
			if q.CorrectAnswer == OptionLabel(i) {
				return nil
			}
		}
		return fmt.Errorf("correct_answer %q is not an option label A..%s: %w",
			q.CorrectAnswer, OptionLabel(len(q.Options)-1), ErrInvalid)
	case QuestionFillInBlank:
		if q.CorrectAnswer == "" {
			return fmt.Errorf("fill in the blank needs a correct_answer: %w", ErrInvalid)
		}
	}
	return nil
}

// Question converts an imported entry into a bank question owned by author.
func (qi QuestionImport) Question(author int64) Question {
	return Question{
		Skill:         qi.Skill,
		Type:          qi.Type,
		Level:         qi.Level,
		ContentText:   qi.ContentText,
		Options:       qi.Options,
		CorrectAnswer: qi.CorrectAnswer,
		Explanation:   qi.Explanation,
		MediaURL:      qi.MediaURL,
		Points:        qi.Points,
		CreatedBy:     author,
	}
}

// QuestionFilter narrows question bank listings.
type QuestionFilter struct {
	Skill Skill
	Type  QuestionType
	Level Level
}

// QuestionImport is used for loading questions from JSON.
type QuestionImport struct {
	Skill         Skill        `json:"skill"`
	Type          QuestionType `json:"type"`
	Level         Level        `json:"level"`
	ContentText   string       `json:"content_text"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation"`
	MediaURL      string       `json:"media_url"`
	Points        int          `json:"points"`
}

// GradingMethod determines how a submission is scored.
type GradingMethod string

const (
	GradingAuto   GradingMethod = "auto"
	GradingManual GradingMethod = "manual"
	GradingHybrid GradingMethod = "hybrid"
)

// Valid reports whether m is a known grading method.
func (m GradingMethod) Valid() bool {
	switch m {
	case GradingAuto, GradingManual, GradingHybrid:
		return true
	}
	return false
}

// ExamStatus is the publication state of an exam.
type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamPublished ExamStatus = "published"
	ExamArchived  ExamStatus = "archived"
)

// Valid reports whether s is a known exam status.
func (s ExamStatus) Valid() bool {
	switch s {
	case ExamDraft, ExamPublished, ExamArchived:
		return true
	}
	return false
}

// Exam is a timed, ordered set of question references with a grading policy.
type Exam struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	CreatedBy       int64          `json:"created_by"`
	DurationMinutes int            `json:"duration_minutes"`
	GradingMethod   GradingMethod  `json:"grading_method"`
	Status          ExamStatus     `json:"status"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	ReviewNote      string         `json:"review_note,omitempty"`
	QuestionIDs     []int64        `json:"question_ids"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Deadline returns the time after which answers are no longer accepted for an
// attempt started at startedAt. The zero time means the exam is untimed.
func (e Exam) Deadline(startedAt time.Time) time.Time {
	if e.DurationMinutes <= 0 {
		return time.Time{}
	}
	return startedAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// SubmissionStatus represents the status of an exam submission.
type SubmissionStatus string

const (
	StatusInProgress SubmissionStatus = "in_progress"
	StatusSubmitted  SubmissionStatus = "submitted"
	StatusGrading    SubmissionStatus = "grading"
	StatusCompleted  SubmissionStatus = "completed"
)

// ExamSubmission is one learner's attempt at an exam.
type ExamSubmission struct {
	ID                     int64            `json:"id"`
	ExamID                 int64            `json:"exam_id"`
	LearnerID              int64            `json:"learner_id"`
	Status                 SubmissionStatus `json:"status"`
	StartedAt              time.Time        `json:"started_at"`
	SubmittedAt            *time.Time       `json:"submitted_at,omitempty"`
	TotalScore             float64          `json:"total_score"`
	TeacherGeneralFeedback string           `json:"teacher_general_feedback,omitempty"`
}

// SubmissionAnswer is a learner's answer to one question of a submission.
type SubmissionAnswer struct {
	SubmissionID     int64     `json:"submission_id"`
	QuestionID       int64     `json:"question_id"`
	Answer           string    `json:"answer"`
	IsCorrect        bool      `json:"is_correct"`
	Score            float64   `json:"score"`
	Graded           bool      `json:"graded"`
	TeacherFeedback  string    `json:"teacher_feedback,omitempty"`
	AISuggestedScore *float64  `json:"ai_suggested_score,omitempty"`
	AIFeedback       string    `json:"ai_feedback,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SubmissionFilter narrows submission listings. Zero values mean no filtering.
type SubmissionFilter struct {
	ExamID    int64
	LearnerID int64
	Author    int64 // exams created by this user
	Status    SubmissionStatus
}

// AnswerResult is one row of a result breakdown.
type AnswerResult struct {
	QuestionID    int64        `json:"question_id"`
	Type          QuestionType `json:"type"`
	ContentText   string       `json:"content_text"`
	Answer        string       `json:"answer"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	IsCorrect     bool         `json:"is_correct"`
	Graded        bool         `json:"graded"`
	Score         float64      `json:"score"`
	MaxScore      int          `json:"max_score"`
	Feedback      string       `json:"feedback,omitempty"`
}

// SubmissionResult is the server-computed outcome of a submission.
type SubmissionResult struct {
	SubmissionID    int64            `json:"submission_id"`
	ExamID          int64            `json:"exam_id"`
	Status          SubmissionStatus `json:"status"`
	Score           float64          `json:"score"`
	MaxScore        int              `json:"max_score"`
	Percentage      float64          `json:"percentage"`
	PassPercentage  float64          `json:"pass_percentage"`
	Passed          bool             `json:"passed"`
	Final           bool             `json:"final"`
	TotalQuestions  int              `json:"total_questions"`
	CorrectAnswers  int              `json:"correct_answers"`
	WrongAnswers    int              `json:"wrong_answers"`
	PendingAnswers  int              `json:"pending_answers"`
	GeneralFeedback string           `json:"general_feedback,omitempty"`
	Answers         []AnswerResult   `json:"answers"`
}
