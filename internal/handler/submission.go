package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pavelanni/coursehub/internal/grading"
	appI18n "github.com/pavelanni/coursehub/internal/i18n"
	"github.com/pavelanni/coursehub/internal/model"
)

type startSubmissionRequest struct {
	ExamID int64 `json:"exam_id" validate:"required,gt=0"`
}

// handleStartSubmission opens an attempt for the current learner, or returns
// the attempt already in progress for the same exam.
func (h *Handler) handleStartSubmission(w http.ResponseWriter, r *http.Request) {
	var req startSubmissionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	exam, err := h.store.GetExam(req.ExamID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if exam.Status != model.ExamPublished {
		writeError(w, r, fmt.Errorf("exam %d is not published: %w", exam.ID, model.ErrForbidden))
		return
	}

	user := model.UserFromContext(r.Context())
	sub, created, err := h.store.StartSubmission(exam.ID, user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, sub)
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	f := model.SubmissionFilter{Status: model.SubmissionStatus(r.URL.Query().Get("status"))}
	examID, err := queryID(r, "exam_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.ExamID = examID

	user := model.UserFromContext(r.Context())
	switch user.Role {
	case model.UserRoleLearner:
		f.LearnerID = user.ID
	case model.UserRoleTeacher:
		f.Author = user.ID
	}

	subs, err := h.store.ListSubmissions(f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subs == nil {
		subs = []model.ExamSubmission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// submissionAccess is what the current user may do with a submission.
type submissionAccess struct {
	sub     model.ExamSubmission
	exam    model.Exam
	owner   bool // the learner who took it
	grader  bool // the exam's author or an admin
	subject *model.User
}

// loadSubmission loads the submission named in the URL and fails with
// ErrForbidden unless the current user is its learner or one of its graders.
func (h *Handler) loadSubmission(r *http.Request) (submissionAccess, error) {
	var acc submissionAccess
	id, err := idParam(r, "submissionID")
	if err != nil {
		return acc, err
	}
	if acc.sub, err = h.store.GetSubmission(id); err != nil {
		return acc, err
	}
	if acc.exam, err = h.store.GetExam(acc.sub.ExamID); err != nil {
		return acc, err
	}
	acc.subject = model.UserFromContext(r.Context())
	acc.owner = acc.subject.ID == acc.sub.LearnerID
	acc.grader = canManage(acc.subject, acc.exam.CreatedBy)
	if !acc.owner && !acc.grader {
		return acc, fmt.Errorf("submission %d: %w", id, model.ErrForbidden)
	}
	return acc, nil
}

type submissionDetail struct {
	model.ExamSubmission
	StatusLabel string                   `json:"status_label"`
	Answers     []model.SubmissionAnswer `json:"answers"`
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	acc, err := h.loadSubmission(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	answers, err := h.store.ListAnswers(acc.sub.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if answers == nil {
		answers = []model.SubmissionAnswer{}
	}
	if !acc.grader {
		// AI suggestions are for teachers.
		for i := range answers {
			answers[i].AISuggestedScore = nil
			answers[i].AIFeedback = ""
		}
	}
	writeJSON(w, http.StatusOK, submissionDetail{
		ExamSubmission: acc.sub,
		StatusLabel:    appI18n.SubmissionStatusLabel(r.Context(), acc.sub.Status),
		Answers:        answers,
	})
}

type saveAnswerRequest struct {
	QuestionID int64  `json:"question_id" validate:"required,gt=0"`
	Answer     string `json:"answer" validate:"max=20000"`
}

// handleSaveAnswer records one answer while the attempt is open. Timed exams
// stop accepting answers at started_at + duration.
func (h *Handler) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	acc, err := h.loadSubmission(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !acc.owner {
		writeError(w, r, fmt.Errorf("only the learner may answer: %w", model.ErrForbidden))
		return
	}
	var req saveAnswerRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !containsID(acc.exam.QuestionIDs, req.QuestionID) {
		writeError(w, r, fmt.Errorf("question %d is not part of exam %d: %w", req.QuestionID, acc.exam.ID, model.ErrInvalid))
		return
	}
	if acc.sub.Status != model.StatusInProgress {
		writeError(w, r, fmt.Errorf("submission %d is %s: %w", acc.sub.ID, acc.sub.Status, model.ErrConflict))
		return
	}
	if deadline := acc.exam.Deadline(acc.sub.StartedAt); !deadline.IsZero() && h.now().After(deadline) {
		writeError(w, r, fmt.Errorf("deadline %s passed: %w", deadline.Format(time.RFC3339), model.ErrExpired))
		return
	}

	if err := h.store.SaveAnswer(acc.sub.ID, req.QuestionID, req.Answer); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SubmissionAnswer{
		SubmissionID: acc.sub.ID,
		QuestionID:   req.QuestionID,
		Answer:       req.Answer,
		UpdatedAt:    h.now(),
	})
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// handleSubmit closes the attempt and grades it. Of two concurrent submits
// one succeeds and the other gets 409.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	acc, err := h.loadSubmission(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !acc.owner {
		writeError(w, r, fmt.Errorf("only the learner may submit: %w", model.ErrForbidden))
		return
	}
	questions, err := h.store.ExamQuestions(acc.exam.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sub, err := h.store.Submit(acc.sub.ID, func(recorded []model.SubmissionAnswer) ([]model.SubmissionAnswer, model.SubmissionStatus, error) {
		graded, status := grading.GradeSubmission(acc.exam.GradingMethod, questions, recorded)
		return graded, status, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	answers, err := h.store.ListAnswers(sub.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sub.Status == model.StatusGrading && h.essay != nil {
		h.suggestEssayScores(sub.ID, questions, answers)
	}
	writeJSON(w, http.StatusOK, grading.Summarize(sub, questions, answers, h.config.PassPercentage))
}

// suggestEssayScores asks the essay grader about every ungraded answer in
// the background. Failures only cost the teacher a suggestion.
func (h *Handler) suggestEssayScores(submissionID int64, questions []model.Question, answers []model.SubmissionAnswer) {
	byID := make(map[int64]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	var pending []model.SubmissionAnswer
	for _, a := range answers {
		if !a.Graded && byID[a.QuestionID].Type == model.QuestionEssay {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		return
	}

	h.background.Add(1)
	go func() {
		defer h.background.Done()
		for _, a := range pending {
			q := byID[a.QuestionID]
			ctx, cancel := context.WithTimeout(context.Background(), h.config.EssayTimeout)
			s, err := h.essay.SuggestEssayScore(ctx, q, a.Answer)
			cancel()
			if err != nil {
				slog.Warn("essay suggestion failed", "submission_id", submissionID, "question_id", q.ID, "error", err)
				continue
			}
			if err := h.store.SetAISuggestion(submissionID, q.ID, s.Score, s.Feedback); err != nil {
				slog.Warn("store essay suggestion", "submission_id", submissionID, "question_id", q.ID, "error", err)
			}
		}
	}()
}

type gradeAnswerRequest struct {
	Score    *float64 `json:"score" validate:"required"`
	Feedback string   `json:"feedback" validate:"max=5000"`
}

// handleGradeAnswer records a teacher's score for one answer. The grade
// that leaves no answer pending completes the submission and notifies the
// learner.
func (h *Handler) handleGradeAnswer(w http.ResponseWriter, r *http.Request) {
	acc, err := h.loadSubmission(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !acc.grader {
		writeError(w, r, fmt.Errorf("only the exam author may grade: %w", model.ErrForbidden))
		return
	}
	questionID, err := idParam(r, "questionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req gradeAnswerRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	questions, err := h.store.ExamQuestions(acc.exam.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var q model.Question
	for _, eq := range questions {
		if eq.ID == questionID {
			q = eq
		}
	}
	if q.ID == 0 {
		writeError(w, r, fmt.Errorf("question %d is not part of exam %d: %w", questionID, acc.exam.ID, model.ErrNotFound))
		return
	}

	sub, completed, err := h.store.GradeAnswer(acc.sub.ID, q.ID, func(a model.SubmissionAnswer) (model.SubmissionAnswer, error) {
		return grading.ApplyManual(a, q, *req.Score, req.Feedback)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	answers, err := h.store.ListAnswers(sub.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result := grading.Summarize(sub, questions, answers, h.config.PassPercentage)
	if completed {
		msg := appI18n.Td(appI18n.For(h.config.Lang), "NotifySubmissionGraded", map[string]any{
			"Title":      acc.exam.Title,
			"Percentage": fmt.Sprintf("%.0f", result.Percentage),
		})
		if err := h.store.AddNotification(sub.LearnerID, model.NotifySubmissionGraded, msg); err != nil {
			slog.Error("failed to notify learner", "submission_id", sub.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

type feedbackRequest struct {
	Feedback string `json:"feedback" validate:"required,max=10000"`
}

func (h *Handler) handleGeneralFeedback(w http.ResponseWriter, r *http.Request) {
	acc, err := h.loadSubmission(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !acc.grader {
		writeError(w, r, fmt.Errorf("only the exam author may leave feedback: %w", model.ErrForbidden))
		return
	}
	var req feedbackRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.SetGeneralFeedback(acc.sub.ID, req.Feedback); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.store.GetSubmission(acc.sub.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type resultResponse struct {
	model.SubmissionResult
	StatusLabel string `json:"status_label"`
	ResultLabel string `json:"result_label,omitempty"`
}

// handleResult reports the server-computed score, percentage and pass flag.
func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	acc, err := h.loadSubmission(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	questions, err := h.store.ExamQuestions(acc.exam.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	answers, err := h.store.ListAnswers(acc.sub.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res := resultResponse{
		SubmissionResult: grading.Summarize(acc.sub, questions, answers, h.config.PassPercentage),
		StatusLabel:      appI18n.SubmissionStatusLabel(r.Context(), acc.sub.Status),
	}
	if res.Final {
		if res.Passed {
			res.ResultLabel = appI18n.T(r.Context(), "ResultPassed")
		} else {
			res.ResultLabel = appI18n.T(r.Context(), "ResultFailed")
		}
	}
	writeJSON(w, http.StatusOK, res)
}
