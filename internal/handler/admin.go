package handler

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/avetisov/examcore/internal/i18n"
	"github.com/avetisov/examcore/internal/model"
)

// Admin views expose the grading fields that are hidden from students.

type adminQuestion struct {
	model.Question
	ExpectedAnswer string `json:"expected_answer"`
}

type adminMCQQuestion struct {
	model.MCQQuestion
	CorrectIndex int `json:"correct_index"`
}

type questionPayload struct {
	Title          string  `json:"title" validate:"required"`
	Prompt         string  `json:"prompt" validate:"required"`
	ExpectedAnswer string  `json:"expected_answer" validate:"required"`
	Marks          float64 `json:"marks" validate:"gt=0"`
	Active         *bool   `json:"active"`
}

func (p questionPayload) toModel() model.Question {
	return model.Question{
		Title:          p.Title,
		Prompt:         p.Prompt,
		ExpectedAnswer: p.ExpectedAnswer,
		Marks:          p.Marks,
		Active:         p.Active == nil || *p.Active,
	}
}

func (h *Handler) handleAdminListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.ListQuestions(false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]adminQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, adminQuestion{Question: q, ExpectedAnswer: q.ExpectedAnswer})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var payload questionPayload
	if !h.decode(w, r, &payload) {
		return
	}
	q := payload.toModel()
	id, err := h.store.InsertQuestion(q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	q.ID = id
	slog.Info("created question", "id", id, "title", q.Title, "marks", q.Marks)
	respondJSON(w, http.StatusCreated, adminQuestion{Question: q, ExpectedAnswer: q.ExpectedAnswer})
}

// handleUpdateQuestion edits a question in place. Answers already scored
// against the previous wording keep their scores; edits never rescore.
func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid question ID")
		return
	}
	var payload questionPayload
	if !h.decode(w, r, &payload) {
		return
	}
	q := payload.toModel()
	q.ID = id
	if err := h.store.UpdateQuestion(q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "question not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, adminQuestion{Question: q, ExpectedAnswer: q.ExpectedAnswer})
}

type mcqQuestionPayload struct {
	Title        string   `json:"title" validate:"required"`
	Prompt       string   `json:"prompt" validate:"required"`
	Options      []string `json:"options" validate:"required,min=2,dive,required"`
	CorrectIndex int      `json:"correct_index" validate:"gte=0"`
	Marks        float64  `json:"marks" validate:"gt=0"`
	Active       *bool    `json:"active"`
}

func (p mcqQuestionPayload) toModel() model.MCQQuestion {
	return model.MCQQuestion{
		Title:        p.Title,
		Prompt:       p.Prompt,
		Options:      p.Options,
		CorrectIndex: p.CorrectIndex,
		Marks:        p.Marks,
		Active:       p.Active == nil || *p.Active,
	}
}

func (h *Handler) handleAdminListMCQQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.ListMCQQuestions(false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]adminMCQQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, adminMCQQuestion{MCQQuestion: q, CorrectIndex: q.CorrectIndex})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateMCQQuestion(w http.ResponseWriter, r *http.Request) {
	var payload mcqQuestionPayload
	if !h.decode(w, r, &payload) {
		return
	}
	// The correct option must exist at authoring time.
	if payload.CorrectIndex >= len(payload.Options) {
		respondError(w, http.StatusUnprocessableEntity, "correct_index out of range")
		return
	}
	q := payload.toModel()
	id, err := h.store.InsertMCQQuestion(q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	q.ID = id
	slog.Info("created mcq question", "id", id, "title", q.Title, "options", len(q.Options))
	respondJSON(w, http.StatusCreated, adminMCQQuestion{MCQQuestion: q, CorrectIndex: q.CorrectIndex})
}

func (h *Handler) handleUpdateMCQQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid question ID")
		return
	}
	var payload mcqQuestionPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.CorrectIndex >= len(payload.Options) {
		respondError(w, http.StatusUnprocessableEntity, "correct_index out of range")
		return
	}
	q := payload.toModel()
	q.ID = id
	if err := h.store.UpdateMCQQuestion(q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "question not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, adminMCQQuestion{MCQQuestion: q, CorrectIndex: q.CorrectIndex})
}

type labTaskPayload struct {
	Title        string  `json:"title" validate:"required"`
	Instructions string  `json:"instructions" validate:"required"`
	ResourcePath string  `json:"resource_path"`
	Marks        float64 `json:"marks" validate:"gt=0"`
	Active       *bool   `json:"active"`
}

func (p labTaskPayload) toModel() model.LabTask {
	return model.LabTask{
		Title:        p.Title,
		Instructions: p.Instructions,
		ResourcePath: p.ResourcePath,
		Marks:        p.Marks,
		Active:       p.Active == nil || *p.Active,
	}
}

func (h *Handler) handleAdminListLabTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.ListLabTasks(false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

func (h *Handler) handleCreateLabTask(w http.ResponseWriter, r *http.Request) {
	var payload labTaskPayload
	if !h.decode(w, r, &payload) {
		return
	}
	t := payload.toModel()
	id, err := h.store.InsertLabTask(t)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	t.ID = id
	slog.Info("created lab task", "id", id, "title", t.Title)
	respondJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleUpdateLabTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task ID")
		return
	}
	var payload labTaskPayload
	if !h.decode(w, r, &payload) {
		return
	}
	t := payload.toModel()
	t.ID = id
	if err := h.store.UpdateLabTask(t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "lab task not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) handleAdminResults(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListResultRows()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleAdminResultsCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListResultRows()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=results.csv`)
	if err := WriteResultsCSV(w, rows); err != nil {
		slog.Error("write csv", "error", err)
	}
}

// WriteResultsCSV writes result rows as CSV. Shared with the export command.
func WriteResultsCSV(w io.Writer, rows []model.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"username", "kind", "total_score", "max_score", "created_at"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Username,
			string(row.Kind),
			strconv.FormatFloat(row.TotalScore, 'f', -1, 64),
			strconv.FormatFloat(row.MaxScore, 'f', -1, 64),
			row.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (h *Handler) handleAdminAnswers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListAnswerRows()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleAdminLabSubmissions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListLabSubmissionRows()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

type scorePayload struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

func (h *Handler) handleScoreLabSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid submission ID")
		return
	}
	var payload scorePayload
	if !h.decode(w, r, &payload) {
		return
	}

	sub, err := h.grader.ReviewLab(r.Context(), id, payload.Score, payload.Feedback)
	if err != nil {
		h.respondGradingError(w, err)
		return
	}

	resp := map[string]any{"submission": sub}
	if sub.ManualScore != nil && *sub.ManualScore != payload.Score {
		task, err := h.store.GetLabTask(sub.TaskID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["message"] = appI18n.Td(r.Context(), "ScoreClamped", map[string]any{
			"Stored": *sub.ManualScore,
			"Max":    task.Marks,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid submission ID")
		return
	}
	sub, err := h.store.GetLabSubmission(id)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "submission not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	f, err := h.uploads.Open(sub.ArtifactPath)
	if err != nil {
		respondError(w, http.StatusNotFound, "artifact not found")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sub.ArtifactPath))
	if _, err := io.Copy(w, f); err != nil {
		slog.Error("stream artifact", "error", err)
	}
}
