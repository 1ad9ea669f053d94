package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/coursehub/internal/model"
)

const submissionColumns = `id, exam_id, learner_id, status, started_at, submitted_at, total_score, teacher_general_feedback`

const answerColumns = `submission_id, question_id, answer, is_correct, score, graded, teacher_feedback, ai_suggested_score, ai_feedback, updated_at`

func scanSubmission(row interface{ Scan(...any) error }) (model.ExamSubmission, error) {
	var sub model.ExamSubmission
	err := row.Scan(&sub.ID, &sub.ExamID, &sub.LearnerID, &sub.Status, &sub.StartedAt,
		&sub.SubmittedAt, &sub.TotalScore, &sub.TeacherGeneralFeedback)
	return sub, err
}

func scanAnswer(row interface{ Scan(...any) error }) (model.SubmissionAnswer, error) {
	var a model.SubmissionAnswer
	err := row.Scan(&a.SubmissionID, &a.QuestionID, &a.Answer, &a.IsCorrect, &a.Score, &a.Graded,
		&a.TeacherFeedback, &a.AISuggestedScore, &a.AIFeedback, &a.UpdatedAt)
	return a, err
}

// StartSubmission returns the learner's in-progress submission for the exam,
// creating one if there is none. created reports whether a row was inserted.
func (s *Store) StartSubmission(examID, learnerID int64) (sub model.ExamSubmission, created bool, err error) {
	sub, err = s.activeSubmission(examID, learnerID)
	if err == nil {
		return sub, false, nil
	}
	if err != sql.ErrNoRows {
		return sub, false, err
	}

	res, err := s.db.Exec(
		`INSERT INTO exam_submissions (exam_id, learner_id, status, started_at) VALUES (?, ?, ?, ?)`,
		examID, learnerID, model.StatusInProgress, time.Now(),
	)
	if isUniqueViolation(err) {
		// Lost a race with a concurrent start for the same pair.
		sub, err = s.activeSubmission(examID, learnerID)
		return sub, false, err
	}
	if err != nil {
		return sub, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return sub, false, err
	}
	sub, err = s.GetSubmission(id)
	if err != nil {
		return sub, false, err
	}
	slog.Info("started submission", "id", id, "exam_id", examID, "learner_id", learnerID)
	return sub, true, nil
}

func (s *Store) activeSubmission(examID, learnerID int64) (model.ExamSubmission, error) {
	return scanSubmission(s.db.QueryRow(
		`SELECT `+submissionColumns+` FROM exam_submissions
		 WHERE exam_id = ? AND learner_id = ? AND status = ?`,
		examID, learnerID, model.StatusInProgress,
	))
}

// GetSubmission returns a submission by ID.
func (s *Store) GetSubmission(id int64) (model.ExamSubmission, error) {
	sub, err := scanSubmission(s.db.QueryRow(`SELECT `+submissionColumns+` FROM exam_submissions WHERE id = ?`, id))
	return sub, notFound(err, "submission")
}

// ListSubmissions returns submissions matching the filter, newest first.
func (s *Store) ListSubmissions(f model.SubmissionFilter) ([]model.ExamSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM exam_submissions WHERE 1=1`
	var args []any
	if f.ExamID != 0 {
		query += ` AND exam_id = ?`
		args = append(args, f.ExamID)
	}
	if f.LearnerID != 0 {
		query += ` AND learner_id = ?`
		args = append(args, f.LearnerID)
	}
	if f.Author != 0 {
		query += ` AND exam_id IN (SELECT id FROM exams WHERE created_by = ?)`
		args = append(args, f.Author)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.ExamSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SaveAnswer upserts a learner's answer. It only succeeds while the
// submission is in progress; otherwise model.ErrConflict is returned.
func (s *Store) SaveAnswer(submissionID, questionID int64, answer string) error {
	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO submission_answers (submission_id, question_id, answer, updated_at)
		 SELECT ?, ?, ?, ? WHERE EXISTS (
			SELECT 1 FROM exam_submissions WHERE id = ? AND status = ?
		 )
		 ON CONFLICT(submission_id, question_id) DO UPDATE SET answer = excluded.answer, updated_at = excluded.updated_at`,
		submissionID, questionID, answer, now, submissionID, model.StatusInProgress,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("submission %d is not in progress: %w", submissionID, model.ErrConflict)
	}
	return nil
}

// ListAnswers returns the stored answers of a submission.
func (s *Store) ListAnswers(submissionID int64) ([]model.SubmissionAnswer, error) {
	rows, err := s.db.Query(
		`SELECT `+answerColumns+` FROM submission_answers WHERE submission_id = ? ORDER BY question_id`, submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.SubmissionAnswer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// GradeFunc turns the answers recorded so far into graded answers and the
// status the submission should settle in.
type GradeFunc func(recorded []model.SubmissionAnswer) ([]model.SubmissionAnswer, model.SubmissionStatus, error)

// Submit closes a submission. The in_progress -> submitted transition is a
// conditional update, so of two concurrent submits exactly one proceeds and
// the other gets model.ErrConflict. Answers are read after the transition,
// when no further answer can be recorded, and graded by grade within the
// same transaction.
func (s *Store) Submit(id int64, grade GradeFunc) (model.ExamSubmission, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return model.ExamSubmission{}, err
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.Exec(
		`UPDATE exam_submissions SET status = ?, submitted_at = ? WHERE id = ? AND status = ?`,
		model.StatusSubmitted, now, id, model.StatusInProgress,
	)
	if err != nil {
		return model.ExamSubmission{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.ExamSubmission{}, err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRow(`SELECT 1 FROM exam_submissions WHERE id = ?`, id).Scan(&exists); err != nil {
			return model.ExamSubmission{}, notFound(err, "submission")
		}
		return model.ExamSubmission{}, fmt.Errorf("submission %d already submitted: %w", id, model.ErrConflict)
	}

	recorded, err := txAnswers(tx, id)
	if err != nil {
		return model.ExamSubmission{}, err
	}
	graded, status, err := grade(recorded)
	if err != nil {
		return model.ExamSubmission{}, err
	}

	var total float64
	for _, a := range graded {
		total += a.Score
		if err := upsertGradedAnswer(tx, id, a, now); err != nil {
			return model.ExamSubmission{}, err
		}
	}
	if _, err := tx.Exec(
		`UPDATE exam_submissions SET status = ?, total_score = ? WHERE id = ?`, status, total, id,
	); err != nil {
		return model.ExamSubmission{}, err
	}

	sub, err := scanSubmission(tx.QueryRow(`SELECT `+submissionColumns+` FROM exam_submissions WHERE id = ?`, id))
	if err != nil {
		return sub, err
	}
	if err := tx.Commit(); err != nil {
		return sub, err
	}
	slog.Info("submitted", "id", id, "status", status, "total_score", total)
	return sub, nil
}

func txAnswers(tx *sql.Tx, submissionID int64) ([]model.SubmissionAnswer, error) {
	rows, err := tx.Query(`SELECT `+answerColumns+` FROM submission_answers WHERE submission_id = ?`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.SubmissionAnswer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func upsertGradedAnswer(tx *sql.Tx, submissionID int64, a model.SubmissionAnswer, now time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO submission_answers (submission_id, question_id, answer, is_correct, score, graded, teacher_feedback, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(submission_id, question_id) DO UPDATE SET
			answer = excluded.answer, is_correct = excluded.is_correct, score = excluded.score,
			graded = excluded.graded, teacher_feedback = excluded.teacher_feedback, updated_at = excluded.updated_at`,
		submissionID, a.QuestionID, a.Answer, a.IsCorrect, a.Score, a.Graded, a.TeacherFeedback, now,
	)
	return err
}

// GradeAnswer applies a teacher's grade to one answer of a submission in
// grading. The total is recomputed, and once no ungraded answer remains the
// submission moves to completed. completed reports whether this call made
// that transition.
func (s *Store) GradeAnswer(id, questionID int64, apply func(model.SubmissionAnswer) (model.SubmissionAnswer, error)) (sub model.ExamSubmission, completed bool, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return sub, false, err
	}
	defer tx.Rollback()

	sub, err = scanSubmission(tx.QueryRow(`SELECT `+submissionColumns+` FROM exam_submissions WHERE id = ?`, id))
	if err != nil {
		return sub, false, notFound(err, "submission")
	}
	if sub.Status != model.StatusGrading {
		return sub, false, fmt.Errorf("submission %d is %s, not grading: %w", id, sub.Status, model.ErrConflict)
	}

	a, err := scanAnswer(tx.QueryRow(
		`SELECT `+answerColumns+` FROM submission_answers WHERE submission_id = ? AND question_id = ?`, id, questionID,
	))
	if err != nil {
		return sub, false, notFound(err, "answer")
	}
	a, err = apply(a)
	if err != nil {
		return sub, false, err
	}
	now := time.Now()
	if err := upsertGradedAnswer(tx, id, a, now); err != nil {
		return sub, false, err
	}

	var pending int
	if err := tx.QueryRow(
		`SELECT COALESCE(SUM(score), 0), COALESCE(SUM(CASE WHEN graded = 0 THEN 1 ELSE 0 END), 0) FROM submission_answers WHERE submission_id = ?`, id,
	).Scan(&sub.TotalScore, &pending); err != nil {
		return sub, false, err
	}
	if _, err := tx.Exec(`UPDATE exam_submissions SET total_score = ? WHERE id = ?`, sub.TotalScore, id); err != nil {
		return sub, false, err
	}
	if pending == 0 {
		res, err := tx.Exec(
			`UPDATE exam_submissions SET status = ? WHERE id = ? AND status = ?`,
			model.StatusCompleted, id, model.StatusGrading,
		)
		if err != nil {
			return sub, false, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			sub.Status = model.StatusCompleted
			completed = true
		}
	}
	if err := tx.Commit(); err != nil {
		return sub, false, err
	}
	slog.Info("graded answer", "submission_id", id, "question_id", questionID, "score", a.Score, "pending", pending)
	return sub, completed, nil
}

// SetAISuggestion stores an essay assistant's suggestion for an ungraded answer.
func (s *Store) SetAISuggestion(id, questionID int64, score float64, feedback string) error {
	res, err := s.db.Exec(
		`UPDATE submission_answers SET ai_suggested_score = ?, ai_feedback = ?
		 WHERE submission_id = ? AND question_id = ? AND graded = 0`,
		score, feedback, id, questionID,
	)
	if err != nil {
		return err
	}
	return expectRow(res, "ungraded answer")
}

// SetGeneralFeedback stores the grader's overall comment on a submitted attempt.
func (s *Store) SetGeneralFeedback(id int64, feedback string) error {
	res, err := s.db.Exec(
		`UPDATE exam_submissions SET teacher_general_feedback = ? WHERE id = ? AND status != ?`,
		feedback, id, model.StatusInProgress,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetSubmission(id); err != nil {
			return err
		}
		return fmt.Errorf("submission %d is still in progress: %w", id, model.ErrConflict)
	}
	return nil
}
