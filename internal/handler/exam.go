package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/coursehub/internal/i18n"
	"github.com/pavelanni/coursehub/internal/model"
)

type examResponse struct {
	model.Exam
	StatusLabel string `json:"status_label"`
}

type examRequest struct {
	Title           string              `json:"title" validate:"required,max=200"`
	Description     string              `json:"description" validate:"max=5000"`
	DurationMinutes int                 `json:"duration_minutes" validate:"gte=0,lte=600"`
	GradingMethod   model.GradingMethod `json:"grading_method" validate:"required,oneof=auto manual hybrid"`
	QuestionIDs     []int64             `json:"question_ids" validate:"dive,gt=0"`
}

// checkQuestionIDs rejects repeated ids and ids missing from the bank.
func (h *Handler) checkQuestionIDs(ids []int64) error {
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("question %d listed twice: %w", id, model.ErrInvalid)
		}
		seen[id] = true
	}
	missing, err := h.store.MissingQuestions(ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("unknown question ids %v: %w", missing, model.ErrInvalid)
	}
	return nil
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	status := model.ExamStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, r, fmt.Errorf("unknown status %q: %w", status, model.ErrInvalid))
		return
	}

	var author int64
	switch user.Role {
	case model.UserRoleLearner:
		status = model.ExamPublished
	case model.UserRoleTeacher:
		author = user.ID
	}

	exams, err := h.store.ListExams(status, author)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]examResponse, 0, len(exams))
	for _, e := range exams {
		out = append(out, examResponse{Exam: e, StatusLabel: appI18n.ApprovalLabel(r.Context(), e.ApprovalStatus)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.checkQuestionIDs(req.QuestionIDs); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.store.CreateExam(model.Exam{
		Title:           req.Title,
		Description:     req.Description,
		CreatedBy:       model.UserFromContext(r.Context()).ID,
		DurationMinutes: req.DurationMinutes,
		GradingMethod:   req.GradingMethod,
		QuestionIDs:     req.QuestionIDs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondExam(w, r, http.StatusCreated, id)
}

func (h *Handler) respondExam(w http.ResponseWriter, r *http.Request, status int, id int64) {
	e, err := h.store.GetExam(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, examResponse{Exam: e, StatusLabel: appI18n.ApprovalLabel(r.Context(), e.ApprovalStatus)})
}

// visibleExam loads an exam the current user may read. Learners only see
// published exams; teachers see their own and published ones.
func (h *Handler) visibleExam(r *http.Request) (model.Exam, error) {
	id, err := idParam(r, "examID")
	if err != nil {
		return model.Exam{}, err
	}
	e, err := h.store.GetExam(id)
	if err != nil {
		return e, err
	}
	if e.Status != model.ExamPublished && !canManage(model.UserFromContext(r.Context()), e.CreatedBy) {
		return e, fmt.Errorf("exam %d is not published: %w", id, model.ErrForbidden)
	}
	return e, nil
}

func (h *Handler) managedExam(r *http.Request) (model.Exam, error) {
	e, err := h.visibleExam(r)
	if err != nil {
		return e, err
	}
	if !canManage(model.UserFromContext(r.Context()), e.CreatedBy) {
		return e, fmt.Errorf("exam %d belongs to another teacher: %w", e.ID, model.ErrForbidden)
	}
	return e, nil
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	e, err := h.visibleExam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, examResponse{Exam: e, StatusLabel: appI18n.ApprovalLabel(r.Context(), e.ApprovalStatus)})
}

func (h *Handler) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	e, err := h.managedExam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req examRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.checkQuestionIDs(req.QuestionIDs); err != nil {
		writeError(w, r, err)
		return
	}
	e.Title, e.Description = req.Title, req.Description
	e.DurationMinutes, e.GradingMethod, e.QuestionIDs = req.DurationMinutes, req.GradingMethod, req.QuestionIDs
	if err := h.store.UpdateExam(e); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondExam(w, r, http.StatusOK, e.ID)
}

// handleExamQuestions lists an exam's questions in order. Only the exam's
// author and admins see answer keys.
func (h *Handler) handleExamQuestions(w http.ResponseWriter, r *http.Request) {
	e, err := h.visibleExam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	questions, err := h.store.ExamQuestions(e.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !canManage(model.UserFromContext(r.Context()), e.CreatedBy) {
		for i := range questions {
			questions[i] = questions[i].WithoutKey()
		}
	}
	if questions == nil {
		questions = []model.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleSubmitExamForReview(w http.ResponseWriter, r *http.Request) {
	e, err := h.managedExam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.transitionExam(w, r, e, model.ApprovalPendingReview, "")
}

func (h *Handler) handleApproveExam(w http.ResponseWriter, r *http.Request) {
	e, err := h.managedExam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reviewRequest
	if r.ContentLength > 0 {
		if err := h.decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	h.transitionExam(w, r, e, model.ApprovalApproved, req.Note)
}

func (h *Handler) handleRejectExam(w http.ResponseWriter, r *http.Request) {
	e, err := h.managedExam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req rejectRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.transitionExam(w, r, e, model.ApprovalRejected, req.Note)
}

func (h *Handler) transitionExam(w http.ResponseWriter, r *http.Request, e model.Exam, to model.ApprovalStatus, note string) {
	if err := h.store.TransitionExamApproval(e.ID, e.ApprovalStatus, to, note); err != nil {
		writeError(w, r, err)
		return
	}
	var msgID string
	switch to {
	case model.ApprovalApproved:
		msgID = "NotifyExamApproved"
	case model.ApprovalRejected:
		msgID = "NotifyExamRejected"
	}
	if msgID != "" {
		msg := appI18n.Td(appI18n.For(h.config.Lang), msgID, map[string]any{"Title": e.Title, "Note": note})
		if err := h.store.AddNotification(e.CreatedBy, model.NotifyExamReviewed, msg); err != nil {
			slog.Error("failed to notify exam author", "exam_id", e.ID, "error", err)
		}
	}
	h.respondExam(w, r, http.StatusOK, e.ID)
}

type examStatusRequest struct {
	Status model.ExamStatus `json:"status" validate:"required,oneof=draft published archived"`
}

func (h *Handler) handleSetExamStatus(w http.ResponseWriter, r *http.Request) {
	e, err := h.managedExam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req examStatusRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.SetExamStatus(e.ID, req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondExam(w, r, http.StatusOK, e.ID)
}
