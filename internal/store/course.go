package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/coursehub/internal/model"
)

const courseColumns = `id, teacher_id, title, description, price, level, approval_status, review_note, created_at, updated_at`

func scanCourse(row interface{ Scan(...any) error }) (model.Course, error) {
	var c model.Course
	err := row.Scan(&c.ID, &c.TeacherID, &c.Title, &c.Description, &c.Price, &c.Level,
		&c.ApprovalStatus, &c.ReviewNote, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateCourse inserts a course in draft state.
func (s *Store) CreateCourse(c model.Course) (int64, error) {
	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO courses (teacher_id, title, description, price, level, approval_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TeacherID, c.Title, c.Description, c.Price, c.Level, model.ApprovalDraft, now, now,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created course", "id", id, "teacher_id", c.TeacherID)
	return id, nil
}

// GetCourse returns a course by ID.
func (s *Store) GetCourse(id int64) (model.Course, error) {
	c, err := scanCourse(s.db.QueryRow(`SELECT `+courseColumns+` FROM courses WHERE id = ?`, id))
	return c, notFound(err, "course")
}

// ListCourses returns courses matching the filter, newest first.
func (s *Store) ListCourses(f model.CourseFilter) ([]model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE 1=1`
	var args []any
	switch f.Type {
	case model.CourseFree:
		query += ` AND price = 0`
	case model.CoursePaid:
		query += ` AND price > 0`
	}
	if f.Level != "" {
		query += ` AND level = ?`
		args = append(args, f.Level)
	}
	if f.ApprovalStatus != "" {
		query += ` AND approval_status = ?`
		args = append(args, f.ApprovalStatus)
	}
	if f.TeacherID != 0 {
		query += ` AND teacher_id = ?`
		args = append(args, f.TeacherID)
	}
	if f.VisibleTo != 0 {
		query += ` AND (approval_status = ? OR teacher_id = ?)`
		args = append(args, model.ApprovalApproved, f.VisibleTo)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// UpdateCourse updates the editable fields of a course. Editing an approved
// course sends it back to pending_review until an admin approves it again.
func (s *Store) UpdateCourse(c model.Course) error {
	res, err := s.db.Exec(
		`UPDATE courses SET title = ?, description = ?, price = ?, level = ?, updated_at = ?,
		        approval_status = CASE WHEN approval_status = ? THEN ? ELSE approval_status END
		 WHERE id = ?`,
		c.Title, c.Description, c.Price, c.Level, time.Now(),
		model.ApprovalApproved, model.ApprovalPendingReview, c.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(res, "course")
}

// TransitionCourseApproval moves a course through the review workflow.
// The update only applies if the stored status still equals from.
func (s *Store) TransitionCourseApproval(id int64, from, to model.ApprovalStatus, note string) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("course %s -> %s: %w", from, to, model.ErrConflict)
	}
	res, err := s.db.Exec(
		`UPDATE courses SET approval_status = ?, review_note = ?, updated_at = ?
		 WHERE id = ? AND approval_status = ?`,
		to, note, time.Now(), id, from,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("course %d is no longer %s: %w", id, from, model.ErrConflict)
	}
	slog.Info("course review transition", "id", id, "from", from, "to", to)
	return nil
}

// DeleteCourse removes a course with its lessons. A course with enrollments is
// only deleted when force is set; otherwise the result asks for confirmation.
func (s *Store) DeleteCourse(id int64, force bool) (model.CourseDeleteResult, error) {
	var result model.CourseDeleteResult

	tx, err := s.db.Begin()
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT 1 FROM courses WHERE id = ?`, id).Scan(&exists); err != nil {
		return result, notFound(err, "course")
	}
	if err := tx.QueryRow(`SELECT COUNT(*) FROM enrollments WHERE course_id = ?`, id).Scan(&result.EnrollmentCount); err != nil {
		return result, err
	}
	if result.EnrollmentCount > 0 && !force {
		result.RequireConfirmation = true
		return result, nil
	}

	if _, err := tx.Exec(`DELETE FROM courses WHERE id = ?`, id); err != nil {
		return result, err
	}
	if err := tx.Commit(); err != nil {
		return result, err
	}
	result.Deleted = true
	slog.Info("deleted course", "id", id, "enrollments", result.EnrollmentCount, "forced", force)
	return result, nil
}

// Enroll adds a learner to a course. Enrolling twice is a no-op.
func (s *Store) Enroll(courseID, learnerID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO enrollments (course_id, learner_id, enrolled_at) VALUES (?, ?, ?)
		 ON CONFLICT(course_id, learner_id) DO NOTHING`,
		courseID, learnerID, time.Now(),
	)
	return err
}

// CountEnrollments returns the number of learners enrolled in a course.
func (s *Store) CountEnrollments(courseID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM enrollments WHERE course_id = ?`, courseID).Scan(&n)
	return n, err
}

// AddLesson appends a lesson at the end of a course.
func (s *Store) AddLesson(l model.Lesson) (model.Lesson, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return l, err
	}
	defer tx.Rollback()

	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(position), 0) + 1 FROM lessons WHERE course_id = ?`, l.CourseID,
	).Scan(&l.Position); err != nil {
		return l, err
	}
	res, err := tx.Exec(
		`INSERT INTO lessons (course_id, position, title, content, video_url, duration_minutes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.CourseID, l.Position, l.Title, l.Content, l.VideoURL, l.DurationMinutes,
	)
	if err != nil {
		return l, err
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return l, err
	}
	return l, tx.Commit()
}

// ListLessons returns a course's lessons in order.
func (s *Store) ListLessons(courseID int64) ([]model.Lesson, error) {
	rows, err := s.db.Query(
		`SELECT id, course_id, position, title, content, video_url, duration_minutes
		 FROM lessons WHERE course_id = ? ORDER BY position`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lessons []model.Lesson
	for rows.Next() {
		var l model.Lesson
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Position, &l.Title, &l.Content, &l.VideoURL, &l.DurationMinutes); err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// DeleteLesson removes a lesson and closes the gap in the ordering.
func (s *Store) DeleteLesson(courseID, lessonID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var pos int
	err = tx.QueryRow(`SELECT position FROM lessons WHERE id = ? AND course_id = ?`, lessonID, courseID).Scan(&pos)
	if err == sql.ErrNoRows {
		return fmt.Errorf("lesson: %w", model.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM lessons WHERE id = ?`, lessonID); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`UPDATE lessons SET position = position - 1 WHERE course_id = ? AND position > ?`, courseID, pos,
	); err != nil {
		return err
	}
	return tx.Commit()
}
