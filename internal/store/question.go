package store

import (
	"encoding/json"
	"fmt"

	"github.com/pavelanni/coursehub/internal/model"
)

const questionColumns = `id, skill, type, level, content_text, options, correct_answer, explanation, media_url, points, created_by`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	var options string
	err := row.Scan(&q.ID, &q.Skill, &q.Type, &q.Level, &q.ContentText, &options,
		&q.CorrectAnswer, &q.Explanation, &q.MediaURL, &q.Points, &q.CreatedBy)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return q, fmt.Errorf("decode options of question %d: %w", q.ID, err)
	}
	return q, nil
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return 0, err
	}
	if q.Options == nil {
		options = []byte("[]")
	}
	if q.Points <= 0 {
		q.Points = 1
	}
	res, err := s.db.Exec(
		`INSERT INTO questions (skill, type, level, content_text, options, correct_answer, explanation, media_url, points, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Skill, q.Type, q.Level, q.ContentText, string(options), q.CorrectAnswer, q.Explanation, q.MediaURL, q.Points, q.CreatedBy,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	q, err := scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	return q, notFound(err, "question")
}

// ListQuestions returns questions matching the given filter.
// Empty fields mean no filtering on that field.
func (s *Store) ListQuestions(f model.QuestionFilter) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	var args []any
	if f.Skill != "" {
		query += ` AND skill = ?`
		args = append(args, f.Skill)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.Level != "" {
		query += ` AND level = ?`
		args = append(args, f.Level)
	}
	query += ` ORDER BY id`
	rows, err := s.db.Query(query, args...)
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

// MissingQuestions returns the ids from the list that are not in the bank.
func (s *Store) MissingQuestions(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(`SELECT id FROM questions WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// DeleteQuestion removes a question that no exam references.
func (s *Store) DeleteQuestion(id int64) error {
	var refs int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM exam_questions WHERE question_id = ?`, id).Scan(&refs); err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("question %d is used by %d exam(s): %w", id, refs, model.ErrConflict)
	}
	res, err := s.db.Exec(`DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res, "question")
}

// QuestionCount returns the number of questions in the bank.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}
