package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/coursehub/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

const bankJSON = `[
  {"skill": "grammar", "type": "multiple_choice", "level": "A2",
   "content_text": "He ___ football on Sundays.", "options": ["play", "plays", "playing"],
   "correct_answer": "B", "points": 1},
  {"skill": "writing", "type": "essay", "level": "B1",
   "content_text": "Write about your favourite food.", "points": 10}
]`

func TestSeedAdmin(t *testing.T) {
	s := newTestStore(t)
	if err := seedAdmin(s, ""); err == nil {
		t.Fatal("expected error without a password")
	}
	if err := seedAdmin(s, "s3cret-pass"); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	// A second run is a no-op once users exist.
	if err := seedAdmin(s, ""); err != nil {
		t.Fatalf("second seedAdmin: %v", err)
	}
	n, _ := s.UserCount()
	if n != 1 {
		t.Errorf("user count = %d, want 1", n)
	}
}

func TestLoadQuestions(t *testing.T) {
	s := newTestStore(t)
	if err := seedAdmin(s, "s3cret-pass"); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	path := writeFile(t, "bank.json", bankJSON)

	if err := loadQuestions(s, []string{path}, "admin"); err != nil {
		t.Fatalf("loadQuestions: %v", err)
	}
	// Re-importing the same file is skipped.
	if err := loadQuestions(s, []string{path}, "admin"); err != nil {
		t.Fatalf("second loadQuestions: %v", err)
	}
	n, _ := s.QuestionCount()
	if n != 2 {
		t.Errorf("question count = %d, want 2", n)
	}

	if err := loadQuestions(s, []string{path}, "nobody"); err == nil {
		t.Error("expected error for unknown author")
	}
}

func TestLoadQuestionsRejectsInvalidFile(t *testing.T) {
	s := newTestStore(t)
	if err := seedAdmin(s, "s3cret-pass"); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	bad := writeFile(t, "bad.json", `[
  {"skill": "grammar", "type": "multiple_choice", "level": "A2",
   "content_text": "ok", "options": ["a", "b"], "correct_answer": "A"},
  {"skill": "grammar", "type": "multiple_choice", "level": "A2",
   "content_text": "bad key", "options": ["a", "b"], "correct_answer": "C"}
]`)
	if err := loadQuestions(s, []string{bad}, "admin"); err == nil {
		t.Fatal("expected validation error")
	}
	n, _ := s.QuestionCount()
	if n != 0 {
		t.Errorf("partial import left %d questions", n)
	}
	hash, _ := s.GetImportedFileHash(bad)
	if hash != "" {
		t.Error("failed import should not be recorded")
	}
}

func TestSampleQuestionBank(t *testing.T) {
	s := newTestStore(t)
	if err := seedAdmin(s, "s3cret-pass"); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	if err := loadQuestions(s, []string{"../../questions/english_a2_b1.json"}, "admin"); err != nil {
		t.Fatalf("sample bank does not load: %v", err)
	}
	n, _ := s.QuestionCount()
	if n != 5 {
		t.Errorf("question count = %d, want 5", n)
	}
}
