package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/coursehub/internal/i18n"
	"github.com/pavelanni/coursehub/internal/model"
)

// courseResponse adds the derived and localized fields clients render.
type courseResponse struct {
	model.Course
	Type        model.CourseType `json:"type"`
	TypeLabel   string           `json:"type_label"`
	IsPublished bool             `json:"is_published"`
	StatusLabel string           `json:"status_label"`

	// EnrollmentCount is only filled in for the owner and admins.
	EnrollmentCount int `json:"enrollment_count,omitempty"`
}

func newCourseResponse(ctx context.Context, c model.Course) courseResponse {
	return courseResponse{
		Course:      c,
		Type:        c.Type(),
		TypeLabel:   appI18n.CourseTypeLabel(ctx, c.Type()),
		IsPublished: c.IsPublished(),
		StatusLabel: appI18n.ApprovalLabel(ctx, c.ApprovalStatus),
	}
}

type courseRequest struct {
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description" validate:"max=5000"`
	Price       int64       `json:"price" validate:"gte=0"`
	Level       model.Level `json:"level" validate:"required,oneof=A1 A2 B1 B2 C1 C2"`
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.CourseFilter{
		Type:           model.CourseType(q.Get("type")),
		Level:          model.Level(q.Get("level")),
		ApprovalStatus: model.ApprovalStatus(q.Get("approval_status")),
	}
	if f.Type != "" && f.Type != model.CourseFree && f.Type != model.CoursePaid {
		writeError(w, r, fmt.Errorf("type must be free or paid: %w", model.ErrInvalid))
		return
	}
	teacherID, err := queryID(r, "teacher_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.TeacherID = teacherID

	user := model.UserFromContext(r.Context())
	if user.Role != model.UserRoleAdmin {
		f.VisibleTo = user.ID
	}

	courses, err := h.store.ListCourses(f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		out = append(out, newCourseResponse(r.Context(), c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	id, err := h.store.CreateCourse(model.Course{
		TeacherID:   user.ID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Level:       req.Level,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.store.GetCourse(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCourseResponse(r.Context(), c))
}

// visibleCourse loads a course the current user may read. Unpublished
// courses are hidden from everyone but their owner and admins.
func (h *Handler) visibleCourse(r *http.Request) (model.Course, error) {
	id, err := idParam(r, "courseID")
	if err != nil {
		return model.Course{}, err
	}
	c, err := h.store.GetCourse(id)
	if err != nil {
		return c, err
	}
	if !c.IsPublished() && !canManage(model.UserFromContext(r.Context()), c.TeacherID) {
		return c, fmt.Errorf("course %d: %w", id, model.ErrNotFound)
	}
	return c, nil
}

// managedCourse loads a course the current user owns or administers.
func (h *Handler) managedCourse(r *http.Request) (model.Course, error) {
	c, err := h.visibleCourse(r)
	if err != nil {
		return c, err
	}
	if !canManage(model.UserFromContext(r.Context()), c.TeacherID) {
		return c, fmt.Errorf("course %d belongs to another teacher: %w", c.ID, model.ErrForbidden)
	}
	return c, nil
}

func (h *Handler) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.visibleCourse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := newCourseResponse(r.Context(), c)
	if canManage(model.UserFromContext(r.Context()), c.TeacherID) {
		if resp.EnrollmentCount, err = h.store.CountEnrollments(c.ID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.managedCourse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req courseRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c.Title, c.Description, c.Price, c.Level = req.Title, req.Description, req.Price, req.Level
	if err := h.store.UpdateCourse(c); err != nil {
		writeError(w, r, err)
		return
	}
	if c, err = h.store.GetCourse(c.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCourseResponse(r.Context(), c))
}

type deleteCourseResponse struct {
	model.CourseDeleteResult
	Message string `json:"message,omitempty"`
}

// handleDeleteCourse deletes a course. A course with enrolled learners is
// only deleted when the request carries force=true; otherwise the response
// asks the client to confirm.
func (h *Handler) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.managedCourse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	res, err := h.store.DeleteCourse(c.ID, force)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := deleteCourseResponse{CourseDeleteResult: res}
	if res.RequireConfirmation {
		out.Message = appI18n.Tp(r.Context(), "DeleteCourseConfirm", res.EnrollmentCount)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListLessons(w http.ResponseWriter, r *http.Request) {
	c, err := h.visibleCourse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lessons, err := h.store.ListLessons(c.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if lessons == nil {
		lessons = []model.Lesson{}
	}
	writeJSON(w, http.StatusOK, lessons)
}

type lessonRequest struct {
	Title           string `json:"title" validate:"required,max=200"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url" validate:"omitempty,url"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
}

func (h *Handler) handleAddLesson(w http.ResponseWriter, r *http.Request) {
	c, err := h.managedCourse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req lessonRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	l, err := h.store.AddLesson(model.Lesson{
		CourseID:        c.ID,
		Title:           req.Title,
		Content:         req.Content,
		VideoURL:        req.VideoURL,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handler) handleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	c, err := h.managedCourse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lessonID, err := idParam(r, "lessonID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteLesson(c.ID, lessonID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	c, err := h.visibleCourse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !c.IsPublished() {
		writeError(w, r, fmt.Errorf("course %d is not published: %w", c.ID, model.ErrForbidden))
		return
	}
	user := model.UserFromContext(r.Context())
	if err := h.store.Enroll(c.ID, user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Enrollment{CourseID: c.ID, LearnerID: user.ID})
}

type reviewRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

type rejectRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

func (h *Handler) handleSubmitCourseForReview(w http.ResponseWriter, r *http.Request) {
	c, err := h.managedCourse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.transitionCourse(w, r, c, model.ApprovalPendingReview, "")
}

func (h *Handler) handleApproveCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.managedCourse(r)
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
	h.transitionCourse(w, r, c, model.ApprovalApproved, req.Note)
}

func (h *Handler) handleRejectCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.managedCourse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req rejectRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.transitionCourse(w, r, c, model.ApprovalRejected, req.Note)
}

// transitionCourse applies a review transition from the course's current
// status and tells the owner about approvals and rejections.
func (h *Handler) transitionCourse(w http.ResponseWriter, r *http.Request, c model.Course, to model.ApprovalStatus, note string) {
	if err := h.store.TransitionCourseApproval(c.ID, c.ApprovalStatus, to, note); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.store.GetCourse(c.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var msgID string
	switch to {
	case model.ApprovalApproved:
		msgID = "NotifyCourseApproved"
	case model.ApprovalRejected:
		msgID = "NotifyCourseRejected"
	}
	if msgID != "" {
		msg := appI18n.Td(appI18n.For(h.config.Lang), msgID, map[string]any{"Title": c.Title, "Note": note})
		if err := h.store.AddNotification(c.TeacherID, model.NotifyCourseReviewed, msg); err != nil {
			slog.Error("failed to notify course owner", "course_id", c.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, newCourseResponse(r.Context(), updated))
}
