// Package handler exposes the coursehub REST API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/coursehub/internal/auth"
	"github.com/pavelanni/coursehub/internal/llm"
	"github.com/pavelanni/coursehub/internal/model"
	"github.com/pavelanni/coursehub/internal/store"
)

const (
	defaultTokenTTL     = 24 * time.Hour
	defaultEssayTimeout = 30 * time.Second
)

// EssayGrader suggests scores for essay answers awaiting a teacher.
type EssayGrader interface {
	SuggestEssayScore(ctx context.Context, q model.Question, answer string) (*llm.Suggestion, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	tokens   *auth.Issuer
	essay    EssayGrader
	config   model.ServerConfig
	validate *validator.Validate
	now      func() time.Time

	// background tracks essay suggestions still running after a response.
	background sync.WaitGroup
}

// New creates a new Handler. essay may be nil, in which case essay answers
// are left for the teacher without a suggestion.
func New(s *store.Store, tokens *auth.Issuer, essay EssayGrader, cfg model.ServerConfig) *Handler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.EssayTimeout <= 0 {
		cfg.EssayTimeout = defaultEssayTimeout
	}
	return &Handler{
		store:    s,
		tokens:   tokens,
		essay:    essay,
		config:   cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// Wait blocks until background work started by handlers has finished.
func (h *Handler) Wait() {
	h.background.Wait()
}

// Routes registers all API routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/register", h.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/auth/logout", h.handleLogout)
		r.Get("/auth/me", h.handleMe)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Put("/users/{userID}/active", h.handleToggleUserActive)
		})

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", h.handleListCourses)
			r.With(requireRole(model.UserRoleTeacher, model.UserRoleAdmin)).Post("/", h.handleCreateCourse)
			r.Route("/{courseID}", func(r chi.Router) {
				r.Get("/", h.handleGetCourse)
				r.Put("/", h.handleUpdateCourse)
				r.Delete("/", h.handleDeleteCourse)
				r.Get("/lessons", h.handleListLessons)
				r.Post("/lessons", h.handleAddLesson)
				r.Delete("/lessons/{lessonID}", h.handleDeleteLesson)
				r.With(requireRole(model.UserRoleLearner)).Post("/enroll", h.handleEnroll)
				r.Post("/review", h.handleSubmitCourseForReview)
				r.With(requireRole(model.UserRoleAdmin)).Post("/approve", h.handleApproveCourse)
				r.With(requireRole(model.UserRoleAdmin)).Post("/reject", h.handleRejectCourse)
			})
		})

		r.Route("/questions", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
			r.Get("/", h.handleListQuestions)
			r.Post("/", h.handleCreateQuestion)
			r.Get("/{questionID}", h.handleGetQuestion)
			r.Delete("/{questionID}", h.handleDeleteQuestion)
		})

		r.Route("/exams", func(r chi.Router) {
			r.Get("/", h.handleListExams)
			r.With(requireRole(model.UserRoleTeacher, model.UserRoleAdmin)).Post("/", h.handleCreateExam)
			r.Route("/{examID}", func(r chi.Router) {
				r.Get("/", h.handleGetExam)
				r.Put("/", h.handleUpdateExam)
				r.Get("/questions", h.handleExamQuestions)
				r.Post("/review", h.handleSubmitExamForReview)
				r.With(requireRole(model.UserRoleAdmin)).Post("/approve", h.handleApproveExam)
				r.With(requireRole(model.UserRoleAdmin)).Post("/reject", h.handleRejectExam)
				r.Put("/status", h.handleSetExamStatus)
			})
		})

		r.Route("/exam-submissions", func(r chi.Router) {
			r.Get("/", h.handleListSubmissions)
			r.With(requireRole(model.UserRoleLearner)).Post("/", h.handleStartSubmission)
			r.Route("/{submissionID}", func(r chi.Router) {
				r.Get("/", h.handleGetSubmission)
				r.Put("/answers", h.handleSaveAnswer)
				r.Put("/submit", h.handleSubmit)
				r.Put("/answers/{questionID}/grade", h.handleGradeAnswer)
				r.Put("/feedback", h.handleGeneralFeedback)
				r.Get("/result", h.handleResult)
			})
		})

		r.Get("/notifications", h.handleListNotifications)
		r.Put("/notifications/{notificationID}/read", h.handleMarkNotificationRead)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps sentinel errors to HTTP statuses. Unknown errors are
// logged and reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrExpired):
		status = http.StatusConflict
	case errors.Is(err, model.ErrInvalid):
		status = http.StatusBadRequest
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a JSON body into dst and runs its validate tags.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("malformed JSON body: %v: %w", err, model.ErrInvalid)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%v: %w", err, model.ErrInvalid)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %w", name, model.ErrInvalid)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, model.ErrInvalid)
	}
	return id, nil
}

// canManage reports whether u owns a resource created by ownerID or is an admin.
func canManage(u *model.User, ownerID int64) bool {
	return u.Role == model.UserRoleAdmin || u.ID == ownerID
}
