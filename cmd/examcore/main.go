package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/avetisov/examcore/internal/grading"
	"github.com/avetisov/examcore/internal/handler"
	appI18n "github.com/avetisov/examcore/internal/i18n"
	"github.com/avetisov/examcore/internal/model"
	"github.com/avetisov/examcore/internal/semantic"
	"github.com/avetisov/examcore/internal/store"
	"github.com/avetisov/examcore/internal/upload"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examcore",
		Short: "Exam platform with semantic-similarity scoring",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), seedCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examcore --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "examcore.db", "SQLite database path")
	f.String("uploads", "uploads", "Directory for lab submission artifacts")
	f.String("embed-url", "http://localhost:11434/v1", "OpenAI-compatible embeddings API base URL")
	f.String("embed-key", "ollama", "API key for the embeddings endpoint")
	f.String("embed-model", "all-minilm", "Embedding model name")
	f.StringP("lang", "l", "en", "Feedback language (en, ru)")
	f.String("jwt-secret", "", "Secret for signing access tokens (or set EXAMCORE_JWT_SECRET)")
	f.Duration("token-ttl", 8*time.Hour, "Access token lifetime")
	f.String("admin-password", "", "Initial admin password (or set EXAMCORE_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export result snapshots as CSV or JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "examcore.db", "SQLite database path")
	f.String("format", "csv", "Output format (csv, json)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load sample users and questions for a demo setup",
		RunE:  runSeed,
	}
	f := cmd.Flags()
	f.String("db", "examcore.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
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

	v.SetEnvPrefix("EXAMCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examcore")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examcore")
	v.AddConfigPath("/etc/examcore")
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

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	uploads, err := upload.NewStorage(v.GetString("uploads"))
	if err != nil {
		return fmt.Errorf("init upload storage: %w", err)
	}

	jwtSecret := v.GetString("jwt-secret")
	if jwtSecret == "" {
		return fmt.Errorf("jwt secret is required: set --jwt-secret flag or EXAMCORE_JWT_SECRET env var")
	}

	// The encoder is shared by all requests and initialized at most
	// once, on the first scoring call; a slow model load only delays
	// the first submission after process start.
	embedURL := v.GetString("embed-url")
	embedKey := v.GetString("embed-key")
	embedModel := v.GetString("embed-model")
	encoder := semantic.NewLazy(func() (semantic.Encoder, error) {
		c := semantic.NewClient(embedURL, embedKey, embedModel)
		if err := c.Ping(context.Background()); err != nil {
			return nil, fmt.Errorf("embeddings health check: %w", err)
		}
		slog.Info("embeddings endpoint OK", "url", embedURL, "model", embedModel)
		return c, nil
	})

	grader := grading.New(db, encoder)

	h := handler.New(db, grader, uploads, handler.Config{
		JWTSecret: []byte(jwtSecret),
		TokenTTL:  v.GetDuration("token-ttl"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"embed_url", embedURL,
		"embed_model", embedModel,
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rows, err := db.ListResultRows()
	if err != nil {
		return fmt.Errorf("list results: %w", err)
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

	switch strings.ToLower(v.GetString("format")) {
	case "json":
		export := model.ResultsExport{ExportedAt: time.Now(), Results: rows}
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		_, _ = fmt.Fprintln(w)
	case "csv":
		if err := handler.WriteResultsCSV(w, rows); err != nil {
			return fmt.Errorf("write CSV: %w", err)
		}
	default:
		return fmt.Errorf("unknown format %q (want csv or json)", v.GetString("format"))
	}

	return nil
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
		return fmt.Errorf("admin password is required: set --admin-password flag or EXAMCORE_ADMIN_PASSWORD env var")
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

func runSeed(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	count, err := db.QuestionCount()
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Info("database already has questions, skipping seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("student123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := db.CreateUser(model.User{
		Username:     "student1",
		DisplayName:  "Demo Student",
		PasswordHash: string(hash),
		Role:         model.UserRoleStudent,
		Active:       true,
	}); err != nil {
		return err
	}

	questions := []model.Question{
		{
			Title:          "Word processing",
			Prompt:         "What is Microsoft Word used for?",
			ExpectedAnswer: "Microsoft Word is a word processing application",
			Marks:          2.0,
			Active:         true,
		},
		{
			Title:          "Spreadsheets",
			Prompt:         "What is Microsoft Excel used for?",
			ExpectedAnswer: "Microsoft Excel is a spreadsheet application used for calculations and data analysis",
			Marks:          2.0,
			Active:         true,
		},
	}
	for _, q := range questions {
		if _, err := db.InsertQuestion(q); err != nil {
			return err
		}
	}

	mcqs := []model.MCQQuestion{
		{
			Title:        "File shortcuts",
			Prompt:       "Which keyboard shortcut saves the current document?",
			Options:      []string{"Ctrl+S", "Ctrl+P", "Ctrl+Z", "Ctrl+X"},
			CorrectIndex: 0,
			Marks:        1.0,
			Active:       true,
		},
	}
	for _, q := range mcqs {
		if _, err := db.InsertMCQQuestion(q); err != nil {
			return err
		}
	}

	if _, err := db.InsertLabTask(model.LabTask{
		Title:        "Format a document",
		Instructions: "Create a one-page document with a title, two headings, and a bulleted list. Upload it as .docx.",
		Marks:        5.0,
		Active:       true,
	}); err != nil {
		return err
	}

	slog.Info("seeded sample data",
		"questions", len(questions), "mcq_questions", len(mcqs), "lab_tasks", 1)
	return nil
}
