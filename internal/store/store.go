package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pavelanni/coursehub/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	// Transactions take the write lock up front so concurrent writers wait on
	// busy_timeout instead of failing a read-to-write lock upgrade.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	memory := dbPath == ":memory:"
	if !memory {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'learner',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS courses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		teacher_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price INTEGER NOT NULL DEFAULT 0,
		level TEXT NOT NULL,
		approval_status TEXT NOT NULL DEFAULT 'draft',
		review_note TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (teacher_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS lessons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		video_url TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		course_id INTEGER NOT NULL,
		learner_id INTEGER NOT NULL,
		enrolled_at DATETIME NOT NULL,
		PRIMARY KEY (course_id, learner_id),
		FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE,
		FOREIGN KEY (learner_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		skill TEXT NOT NULL,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		content_text TEXT NOT NULL,
		options TEXT NOT NULL DEFAULT '[]',
		correct_answer TEXT NOT NULL DEFAULT '',
		explanation TEXT NOT NULL DEFAULT '',
		media_url TEXT NOT NULL DEFAULT '',
		points INTEGER NOT NULL DEFAULT 1,
		created_by INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS exams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_by INTEGER NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		grading_method TEXT NOT NULL DEFAULT 'auto',
		status TEXT NOT NULL DEFAULT 'draft',
		approval_status TEXT NOT NULL DEFAULT 'draft',
		review_note TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_questions (
		exam_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		PRIMARY KEY (exam_id, position),
		UNIQUE (exam_id, question_id),
		FOREIGN KEY (exam_id) REFERENCES exams(id) ON DELETE CASCADE,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS exam_submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_id INTEGER NOT NULL,
		learner_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_progress',
		started_at DATETIME NOT NULL,
		submitted_at DATETIME,
		total_score REAL NOT NULL DEFAULT 0,
		teacher_general_feedback TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (exam_id) REFERENCES exams(id),
		FOREIGN KEY (learner_id) REFERENCES users(id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_exam_submissions_active
		ON exam_submissions(exam_id, learner_id) WHERE status = 'in_progress';

	CREATE TABLE IF NOT EXISTS submission_answers (
		submission_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		answer TEXT NOT NULL DEFAULT '',
		is_correct INTEGER NOT NULL DEFAULT 0,
		score REAL NOT NULL DEFAULT 0,
		graded INTEGER NOT NULL DEFAULT 0,
		teacher_feedback TEXT NOT NULL DEFAULT '',
		ai_suggested_score REAL,
		ai_feedback TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (submission_id, question_id),
		FOREIGN KEY (submission_id) REFERENCES exam_submissions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		read_at DATETIME,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		sha256 TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// notFound converts sql.ErrNoRows into model.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return err
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// GetImportedFileHash returns the stored hash of an imported file, or "".
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT sha256 FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the hash of an imported file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, sha256) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET sha256 = ?`,
		path, hash, hash,
	)
	return err
}
