package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/coursehub/internal/model"
	"github.com/pavelanni/coursehub/internal/store"
)

func importQuestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-questions FILE...",
		Short: "Import question bank JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImportQuestions,
	}
	f := cmd.Flags()
	f.String("db", "coursehub.db", "SQLite database path")
	f.String("author", "admin", "Username recorded as the author of imported questions")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func runImportQuestions(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return loadQuestions(db, args, v.GetString("author"))
}

// loadQuestions imports question files into the bank. A file is imported
// once: its sha256 is recorded and later runs skip it. Every question in a
// file is validated before any of them is inserted.
func loadQuestions(db *store.Store, paths []string, author string) error {
	if len(paths) == 0 {
		return nil
	}
	u, err := db.GetUserByUsername(author)
	if err != nil {
		return fmt.Errorf("look up author %q: %w", author, err)
	}
	if u == nil {
		return fmt.Errorf("author %q does not exist", author)
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("questions file changed since last import, skipping to avoid duplicating questions",
				"path", path)
			continue
		}

		var imports []model.QuestionImport
		if err := json.Unmarshal(data, &imports); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		questions := make([]model.Question, 0, len(imports))
		for i, qi := range imports {
			q := qi.Question(u.ID)
			if err := q.Validate(); err != nil {
				return fmt.Errorf("%s: question %d: %w", path, i+1, err)
			}
			questions = append(questions, q)
		}

		for _, q := range questions {
			if _, err := db.InsertQuestion(q); err != nil {
				return fmt.Errorf("insert question from %s: %w", path, err)
			}
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported questions", "path", path, "count", len(questions))
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or COURSEHUB_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
