package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/coursehub/internal/grading"
	"github.com/pavelanni/coursehub/internal/model"
)

// ExportExam builds export-ready results for every submitted attempt of an exam.
func (s *Store) ExportExam(examID int64, passPercentage float64) (model.ExamExport, error) {
	exam, err := s.GetExam(examID)
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("get exam: %w", err)
	}
	questions, err := s.ExamQuestions(examID)
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("exam questions: %w", err)
	}
	subs, err := s.ListSubmissions(model.SubmissionFilter{ExamID: examID})
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("list submissions: %w", err)
	}

	export := model.ExamExport{
		ExamID:         exam.ID,
		Title:          exam.Title,
		GradingMethod:  exam.GradingMethod,
		NumQuestions:   len(questions),
		PassPercentage: passPercentage,
		ExportedAt:     time.Now(),
		Results:        []model.LearnerResult{},
	}

	// Listing is newest first; number attempts per learner oldest first.
	attempts := make(map[int64]int)
	for i := len(subs) - 1; i >= 0; i-- {
		sub := subs[i]
		attempts[sub.LearnerID]++
		if sub.Status == model.StatusInProgress {
			continue
		}

		answers, err := s.ListAnswers(sub.ID)
		if err != nil {
			return export, fmt.Errorf("answers of submission %d: %w", sub.ID, err)
		}
		user, err := s.GetUserByID(sub.LearnerID)
		if err != nil {
			return export, fmt.Errorf("get user %d: %w", sub.LearnerID, err)
		}

		var username, displayName string
		if user != nil {
			username = user.Username
			displayName = user.DisplayName
		}

		export.Results = append(export.Results, model.LearnerResult{
			Username:      username,
			DisplayName:   displayName,
			AttemptNumber: attempts[sub.LearnerID],
			StartedAt:     sub.StartedAt,
			SubmittedAt:   sub.SubmittedAt,
			Result:        grading.Summarize(sub, questions, answers, passPercentage),
		})
	}

	return export, nil
}
