package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/coursehub/internal/auth"
	"github.com/pavelanni/coursehub/internal/grading"
	"github.com/pavelanni/coursehub/internal/handler"
	appI18n "github.com/pavelanni/coursehub/internal/i18n"
	"github.com/pavelanni/coursehub/internal/llm"
	"github.com/pavelanni/coursehub/internal/llm/prompts"
	"github.com/pavelanni/coursehub/internal/model"
	"github.com/pavelanni/coursehub/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coursehub",
		Short: "Course catalog and exam grading backend",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), importQuestionsCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `coursehub --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "coursehub.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Question bank JSON files to import at startup (repeatable)")
	f.StringP("lang", "l", "en", "Default language for labels and notifications (en, vi)")
	f.Float64("pass-percentage", grading.DefaultPassPercentage, "Minimum percentage for a passing result")
	f.String("jwt-secret", "", "Secret for signing bearer tokens (or set COURSEHUB_JWT_SECRET)")
	f.Duration("token-ttl", 24*time.Hour, "Bearer token lifetime")
	f.String("llm-url", "", "OpenAI-compatible API base URL for essay suggestions (empty disables them)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.PromptStandard), "Essay grading prompt variant (strict, standard, lenient)")
	f.Duration("essay-timeout", 30*time.Second, "Time budget for one essay suggestion")
	f.String("admin-password", "", "Initial admin password (or set COURSEHUB_ADMIN_PASSWORD)")
	f.Duration("request-timeout", 30*time.Second, "Per-request processing timeout")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an exam's submission results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "coursehub.db", "SQLite database path")
	f.Int64("exam-id", 0, "Exam to export (required)")
	f.Float64("pass-percentage", grading.DefaultPassPercentage, "Minimum percentage for a passing result")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("exam-id")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("COURSEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("coursehub")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/coursehub")
	v.AddConfigPath("/etc/coursehub")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := loadQuestions(db, v.GetStringSlice("questions"), "admin"); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	secret := v.GetString("jwt-secret")
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		slog.Warn("no jwt-secret configured, tokens will not survive a restart")
	}
	tokens, err := auth.NewIssuer(secret)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	// The essay assistant is optional: without an endpoint, essays simply wait
	// for the teacher.
	var essay handler.EssayGrader
	if llmURL := v.GetString("llm-url"); llmURL != "" {
		promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
		if !prompts.IsValidVariant(promptVariant) {
			slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
			promptVariant = string(prompts.PromptStandard)
		}
		llmClient, err := llm.New(llmURL, v.GetString("llm-key"), v.GetString("llm-model"), promptVariant)
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = llmClient.Ping(pingCtx)
		cancel()
		if err != nil {
			slog.Warn("LLM endpoint unreachable, essay suggestions may fail", "url", llmURL, "error", err)
		} else {
			slog.Info("LLM endpoint OK", "url", llmURL, "model", v.GetString("llm-model"))
		}
		essay = llmClient
	}

	cfg := model.ServerConfig{
		PassPercentage: v.GetFloat64("pass-percentage"),
		TokenTTL:       v.GetDuration("token-ttl"),
		Lang:           lang,
		EssayTimeout:   v.GetDuration("essay-timeout"),
	}
	h := handler.New(db, tokens, essay, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(v.GetDuration("request-timeout")))
	r.Use(appI18n.Middleware(lang))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/api", h.Routes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go cleanupSessions(ctx, db, time.Hour)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"pass_percentage", cfg.PassPercentage,
		"token_ttl", cfg.TokenTTL,
		"essay_assistant", essay != nil,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("could not stop server gracefully", "error", err)
	}
	h.Wait()
	return nil
}

// cleanupSessions periodically deletes expired auth sessions until ctx is done.
func cleanupSessions(ctx context.Context, db *store.Store, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := db.CleanupExpiredSessions()
			if err != nil {
				slog.Error("cleanup expired sessions", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("removed expired sessions", "count", n)
			}
		}
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportExam(v.GetInt64("exam-id"), v.GetFloat64("pass-percentage"))
	if err != nil {
		return fmt.Errorf("export exam: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
