package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/coursehub/internal/model"
)

const examColumns = `id, title, description, created_by, duration_minutes, grading_method, status, approval_status, review_note, created_at`

func scanExam(row interface{ Scan(...any) error }) (model.Exam, error) {
	var e model.Exam
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.CreatedBy, &e.DurationMinutes,
		&e.GradingMethod, &e.Status, &e.ApprovalStatus, &e.ReviewNote, &e.CreatedAt)
	return e, err
}

// CreateExam inserts a draft exam with its ordered question list.
func (s *Store) CreateExam(e model.Exam) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO exams (title, description, created_by, duration_minutes, grading_method, status, approval_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Description, e.CreatedBy, e.DurationMinutes, e.GradingMethod,
		model.ExamDraft, model.ApprovalDraft, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := setExamQuestions(tx, id, e.QuestionIDs); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	slog.Info("created exam", "id", id, "questions", len(e.QuestionIDs), "grading_method", e.GradingMethod)
	return id, nil
}

func setExamQuestions(tx *sql.Tx, examID int64, ids []int64) error {
	if _, err := tx.Exec(`DELETE FROM exam_questions WHERE exam_id = ?`, examID); err != nil {
		return err
	}
	for i, qID := range ids {
		_, err := tx.Exec(
			`INSERT INTO exam_questions (exam_id, position, question_id) VALUES (?, ?, ?)`,
			examID, i+1, qID,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("question %d listed twice: %w", qID, model.ErrInvalid)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// GetExam returns an exam with its question ids in order.
func (s *Store) GetExam(id int64) (model.Exam, error) {
	e, err := scanExam(s.db.QueryRow(`SELECT `+examColumns+` FROM exams WHERE id = ?`, id))
	if err != nil {
		return e, notFound(err, "exam")
	}
	e.QuestionIDs, err = s.examQuestionIDs(id)
	return e, err
}

func (s *Store) examQuestionIDs(examID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT question_id FROM exam_questions WHERE exam_id = ? ORDER BY position`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListExams returns exams, newest first. An empty status lists all of them;
// a non-zero author restricts to that user's exams.
func (s *Store) ListExams(status model.ExamStatus, author int64) ([]model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if author != 0 {
		query += ` AND created_by = ?`
		args = append(args, author)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		exams = append(exams, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Question ids are loaded after the listing cursor is closed: an in-memory
	// store has a single connection.
	for i := range exams {
		if exams[i].QuestionIDs, err = s.examQuestionIDs(exams[i].ID); err != nil {
			return nil, err
		}
	}
	return exams, nil
}

// UpdateExam replaces the editable fields of a draft exam and sends it back
// to draft review status. Exams that already have submissions are frozen.
func (s *Store) UpdateExam(e model.Exam) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE exams SET title = ?, description = ?, duration_minutes = ?, grading_method = ?,
		        approval_status = ?, review_note = ''
		 WHERE id = ? AND status = ?
		   AND NOT EXISTS (SELECT 1 FROM exam_submissions WHERE exam_id = exams.id)`,
		e.Title, e.Description, e.DurationMinutes, e.GradingMethod, model.ApprovalDraft,
		e.ID, model.ExamDraft,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("exam %d is not an editable draft: %w", e.ID, model.ErrConflict)
	}
	if err := setExamQuestions(tx, e.ID, e.QuestionIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// TransitionExamApproval moves an exam through the review workflow.
func (s *Store) TransitionExamApproval(id int64, from, to model.ApprovalStatus, note string) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("exam %s -> %s: %w", from, to, model.ErrConflict)
	}
	res, err := s.db.Exec(
		`UPDATE exams SET approval_status = ?, review_note = ? WHERE id = ? AND approval_status = ?`,
		to, note, id, from,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("exam %d is no longer %s: %w", id, from, model.ErrConflict)
	}
	slog.Info("exam review transition", "id", id, "from", from, "to", to)
	return nil
}

// SetExamStatus publishes, archives or reverts an exam to draft.
// Publishing requires an approved exam with at least one question. Once an
// exam has submissions it can no longer go back to draft, only be archived.
func (s *Store) SetExamStatus(id int64, status model.ExamStatus) error {
	query := `UPDATE exams SET status = ? WHERE id = ?`
	args := []any{status, id}
	switch status {
	case model.ExamPublished:
		query += ` AND approval_status = ? AND EXISTS (SELECT 1 FROM exam_questions WHERE exam_id = exams.id)`
		args = append(args, model.ApprovalApproved)
	case model.ExamDraft:
		query += ` AND NOT EXISTS (SELECT 1 FROM exam_submissions WHERE exam_id = exams.id)`
	}
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetExam(id); err != nil {
			return err
		}
		return fmt.Errorf("exam %d cannot be %s: %w", id, status, model.ErrConflict)
	}
	slog.Info("exam status changed", "id", id, "status", status)
	return nil
}

// ExamQuestions returns the full questions of an exam in exam order.
func (s *Store) ExamQuestions(examID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT q.id, q.skill, q.type, q.level, q.content_text, q.options, q.correct_answer,
		        q.explanation, q.media_url, q.points, q.created_by
		 FROM exam_questions eq JOIN questions q ON q.id = eq.question_id
		 WHERE eq.exam_id = ? ORDER BY eq.position`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
