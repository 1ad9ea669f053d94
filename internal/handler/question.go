package handler

import (
	"fmt"
	"net/http"

	"github.com/pavelanni/coursehub/internal/model"
)

type questionRequest struct {
	Skill         model.Skill        `json:"skill" validate:"required"`
	Type          model.QuestionType `json:"type" validate:"required"`
	Level         model.Level        `json:"level" validate:"required"`
	ContentText   string             `json:"content_text" validate:"required"`
	Options       []string           `json:"options" validate:"dive,required"`
	CorrectAnswer string             `json:"correct_answer"`
	Explanation   string             `json:"explanation"`
	MediaURL      string             `json:"media_url" validate:"omitempty,url"`
	Points        int                `json:"points" validate:"gte=0,lte=100"`
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	questions, err := h.store.ListQuestions(model.QuestionFilter{
		Skill: model.Skill(q.Get("skill")),
		Type:  model.QuestionType(q.Get("type")),
		Level: model.Level(q.Get("level")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	q := model.QuestionImport{
		Skill:         req.Skill,
		Type:          req.Type,
		Level:         req.Level,
		ContentText:   req.ContentText,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
		MediaURL:      req.MediaURL,
		Points:        req.Points,
	}.Question(model.UserFromContext(r.Context()).ID)
	if err := q.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := h.store.InsertQuestion(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if q, err = h.store.GetQuestion(id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "questionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.store.GetQuestion(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "questionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.store.GetQuestion(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !canManage(model.UserFromContext(r.Context()), q.CreatedBy) {
		writeError(w, r, fmt.Errorf("question %d belongs to another teacher: %w", id, model.ErrForbidden))
		return
	}
	if err := h.store.DeleteQuestion(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
