package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/avetisov/examcore/internal/grading"
	appI18n "github.com/avetisov/examcore/internal/i18n"
	"github.com/avetisov/examcore/internal/model"
	"github.com/avetisov/examcore/internal/store"
	"github.com/avetisov/examcore/internal/upload"
)

// Config holds handler-level settings.
type Config struct {
	JWTSecret []byte
	TokenTTL  time.Duration
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	grader   *grading.Grader
	uploads  *upload.Storage
	validate *validator.Validate
	config   Config
}

// New creates a new Handler.
func New(s *store.Store, g *grading.Grader, u *upload.Storage, cfg Config) *Handler {
	return &Handler{
		store:    s,
		grader:   g,
		uploads:  u,
		validate: validator.New(),
		config:   cfg,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Post("/auth/signup", h.handleSignup)
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/questions", h.handleListQuestions)
		r.Get("/mcq/questions", h.handleListMCQQuestions)
		r.Get("/labs", h.handleListLabTasks)
		r.Get("/results", h.handleMyResults)

		r.Post("/submit", h.handleSubmitFreeText)
		r.Post("/submit/mcq", h.handleSubmitMCQ)
		r.Post("/labs/{taskID}/submit", h.handleSubmitLab)
		r.Get("/labs/{taskID}/submissions", h.handleMyLabSubmissions)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))

			r.Get("/admin/questions", h.handleAdminListQuestions)
			r.Post("/admin/questions", h.handleCreateQuestion)
			r.Put("/admin/questions/{id}", h.handleUpdateQuestion)

			r.Get("/admin/mcq/questions", h.handleAdminListMCQQuestions)
			r.Post("/admin/mcq/questions", h.handleCreateMCQQuestion)
			r.Put("/admin/mcq/questions/{id}", h.handleUpdateMCQQuestion)

			r.Get("/admin/labs", h.handleAdminListLabTasks)
			r.Post("/admin/labs", h.handleCreateLabTask)
			r.Put("/admin/labs/{id}", h.handleUpdateLabTask)

			r.Get("/admin/results", h.handleAdminResults)
			r.Get("/admin/results.csv", h.handleAdminResultsCSV)
			r.Get("/admin/answers", h.handleAdminAnswers)

			r.Get("/admin/labs/submissions", h.handleAdminLabSubmissions)
			r.Post("/admin/labs/submissions/{id}/score", h.handleScoreLabSubmission)
			r.Get("/admin/labs/submissions/{id}/artifact", h.handleDownloadArtifact)
		})
	})
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "examcore"})
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.ListQuestions(true)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleListMCQQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.ListMCQQuestions(true)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleListLabTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.ListLabTasks(true)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

func (h *Handler) handleMyResults(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	results, err := h.store.ListResults(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, results)
}

type freeTextPayload struct {
	Answers []grading.FreeTextItem `json:"answers" validate:"required,min=1,dive"`
}

func (h *Handler) handleSubmitFreeText(w http.ResponseWriter, r *http.Request) {
	var payload freeTextPayload
	if !h.decode(w, r, &payload) {
		return
	}

	user := model.UserFromContext(r.Context())
	summary, err := h.grader.SubmitFreeText(r.Context(), user.ID, payload.Answers)
	if err != nil {
		h.respondGradingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

type mcqPayload struct {
	Answers []grading.MCQItem `json:"answers" validate:"required,min=1,dive"`
}

func (h *Handler) handleSubmitMCQ(w http.ResponseWriter, r *http.Request) {
	var payload mcqPayload
	if !h.decode(w, r, &payload) {
		return
	}

	user := model.UserFromContext(r.Context())
	summary, err := h.grader.SubmitMCQ(r.Context(), user.ID, payload.Answers)
	if err != nil {
		h.respondGradingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// maxArtifactSize caps lab uploads at 50 MiB.
const maxArtifactSize = 50 << 20

func (h *Handler) handleSubmitLab(w http.ResponseWriter, r *http.Request) {
	taskID, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	// The task is checked before the artifact is written; a bad id must
	// not leave files behind.
	if _, err := h.store.GetActiveLabTask(taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "lab task not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxArtifactSize)
	file, header, err := r.FormFile("artifact")
	if err != nil {
		respondError(w, http.StatusBadRequest, "artifact file is required")
		return
	}
	defer file.Close()

	ref, err := h.uploads.Save(header.Filename, file)
	if err != nil {
		slog.Error("failed to store artifact", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store artifact")
		return
	}

	user := model.UserFromContext(r.Context())
	submissionID, err := h.grader.SubmitLab(r.Context(), user.ID, taskID, ref)
	if err != nil {
		h.respondGradingError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"submission_id": submissionID,
		"message":       appI18n.T(r.Context(), "LabReceived"),
	})
}

func (h *Handler) handleMyLabSubmissions(w http.ResponseWriter, r *http.Request) {
	taskID, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task ID")
		return
	}
	user := model.UserFromContext(r.Context())
	subs, err := h.store.ListLabSubmissions(user.ID, taskID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, subs)
}

// decode reads a JSON body into v and validates it. On failure it writes
// the error response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		respondError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Sprintf("field %s failed on %s", e.Field(), e.Tag())
	}
	return "validation failed"
}

// respondGradingError maps grader errors onto HTTP statuses.
func (h *Handler) respondGradingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, grading.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, grading.ErrOutOfRange):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, grading.ErrEncoderUnavailable):
		slog.Error("scoring unavailable", "error", err)
		respondError(w, http.StatusServiceUnavailable, "scoring is temporarily unavailable")
	default:
		slog.Error("grading failed", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
