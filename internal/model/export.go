package model

import "time"

// ExamExport is the top-level JSON structure for exam result export.
type ExamExport struct {
	ExamID         int64           `json:"exam_id"`
	Title          string          `json:"title"`
	GradingMethod  GradingMethod   `json:"grading_method"`
	NumQuestions   int             `json:"num_questions"`
	PassPercentage float64         `json:"pass_percentage"`
	ExportedAt     time.Time       `json:"exported_at"`
	Results        []LearnerResult `json:"results"`
}

// LearnerResult holds one learner's submission for export.
type LearnerResult struct {
	Username      string           `json:"username"`
	DisplayName   string           `json:"display_name"`
	AttemptNumber int              `json:"attempt_number"`
	StartedAt     time.Time        `json:"started_at"`
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`
	Result        SubmissionResult `json:"result"`
}
