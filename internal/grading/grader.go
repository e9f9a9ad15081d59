package grading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	appI18n "github.com/avetisov/examcore/internal/i18n"
	"github.com/avetisov/examcore/internal/model"
	"github.com/avetisov/examcore/internal/semantic"
	"github.com/avetisov/examcore/internal/store"
)

// Grader orchestrates the three scoring paths. The encoder is injected at
// startup and shared across requests.
type Grader struct {
	store *store.Store
	enc   semantic.Encoder
}

// New creates a Grader.
func New(s *store.Store, enc semantic.Encoder) *Grader {
	return &Grader{store: s, enc: enc}
}

// FreeTextItem is one (question, response) pair in a free-text batch.
type FreeTextItem struct {
	QuestionID int64  `json:"question_id" validate:"required"`
	Response   string `json:"response"`
}

// MCQItem is one (question, selected option) pair in a multiple-choice
// batch. Range checking of the index lives in the grader so both
// directions report the same error kind.
type MCQItem struct {
	QuestionID    int64 `json:"question_id" validate:"required"`
	SelectedIndex int   `json:"selected_index"`
}

// FreeTextBreakdown reports how one free-text answer was scored.
type FreeTextBreakdown struct {
	QuestionID int64   `json:"question_id"`
	Title      string  `json:"title"`
	Marks      float64 `json:"marks"`
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score"`
	Feedback   string  `json:"feedback"`
}

// MCQBreakdown reports how one multiple-choice answer was scored.
type MCQBreakdown struct {
	QuestionID    int64   `json:"question_id"`
	Title         string  `json:"title"`
	Marks         float64 `json:"marks"`
	SelectedIndex int     `json:"selected_index"`
	Correct       bool    `json:"correct"`
	Score         float64 `json:"score"`
}

// Summary is the outcome of one submission batch.
type Summary struct {
	ResultID   int64               `json:"result_id"`
	TotalScore float64             `json:"total_score"`
	MaxScore   float64             `json:"max_score"`
	FreeText   []FreeTextBreakdown `json:"free_text,omitempty"`
	MCQ        []MCQBreakdown      `json:"mcq,omitempty"`
}

// SubmitFreeText scores a batch of free-text answers for a user. The whole
// batch is validated and scored before anything is written; the store then
// replaces the user's prior answers and result in one transaction, so a
// bad question id leaves no partial state and resubmitting the same batch
// is idempotent.
func (g *Grader) SubmitFreeText(ctx context.Context, userID int64, items []FreeTextItem) (*Summary, error) {
	summary := &Summary{}
	answers := make([]model.Answer, 0, len(items))

	for _, item := range items {
		q, err := g.store.GetActiveQuestion(item.QuestionID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("question %d: %w", item.QuestionID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("get question %d: %w", item.QuestionID, err)
		}

		// Empty responses are scored, not rejected; they encode as a
		// degenerate vector and fall into the zero band on their own.
		raw, normalized, err := semantic.Score(ctx, g.enc, item.Response, q.ExpectedAnswer)
		if err != nil {
			return nil, fmt.Errorf("score question %d: %w: %w", item.QuestionID, ErrEncoderUnavailable, err)
		}
		awarded := Award(normalized, q.Marks)
		slog.Debug("scored free-text answer",
			"user_id", userID, "question_id", q.ID,
			"raw", raw, "normalized", normalized, "awarded", awarded)

		answers = append(answers, model.Answer{
			UserID:     userID,
			QuestionID: q.ID,
			Response:   item.Response,
			Score:      awarded,
		})
		summary.TotalScore += awarded
		summary.MaxScore += q.Marks
		summary.FreeText = append(summary.FreeText, FreeTextBreakdown{
			QuestionID: q.ID,
			Title:      q.Title,
			Marks:      q.Marks,
			Similarity: normalized,
			Score:      awarded,
			Feedback:   bandFeedback(ctx, normalized),
		})
	}

	resultID, err := g.store.ReplaceFreeTextAnswers(userID, answers, model.Result{
		UserID:     userID,
		Kind:       model.ResultFreeText,
		TotalScore: summary.TotalScore,
		MaxScore:   summary.MaxScore,
	})
	if err != nil {
		return nil, fmt.Errorf("persist free-text batch: %w", err)
	}
	summary.ResultID = resultID
	slog.Info("graded free-text submission",
		"user_id", userID, "questions", len(items),
		"total", summary.TotalScore, "max", summary.MaxScore)
	return summary, nil
}

// SubmitMCQ scores a batch of multiple-choice answers for a user. Replace
// semantics mirror the free-text path: validate and score everything, then
// swap the user's prior answers and mcq result in one transaction.
func (g *Grader) SubmitMCQ(ctx context.Context, userID int64, items []MCQItem) (*Summary, error) {
	summary := &Summary{}
	answers := make([]model.MCQAnswer, 0, len(items))

	for _, item := range items {
		q, err := g.store.GetActiveMCQQuestion(item.QuestionID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("question %d: %w", item.QuestionID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("get question %d: %w", item.QuestionID, err)
		}
		if item.SelectedIndex < 0 || item.SelectedIndex >= len(q.Options) {
			return nil, fmt.Errorf("question %d: selected index %d: %w",
				item.QuestionID, item.SelectedIndex, ErrOutOfRange)
		}

		correct := item.SelectedIndex == q.CorrectIndex
		awarded := 0.0
		if correct {
			awarded = q.Marks
		}
		answers = append(answers, model.MCQAnswer{
			UserID:        userID,
			QuestionID:    q.ID,
			SelectedIndex: item.SelectedIndex,
			Correct:       correct,
			Score:         awarded,
		})
		summary.TotalScore += awarded
		summary.MaxScore += q.Marks
		summary.MCQ = append(summary.MCQ, MCQBreakdown{
			QuestionID:    q.ID,
			Title:         q.Title,
			Marks:         q.Marks,
			SelectedIndex: item.SelectedIndex,
			Correct:       correct,
			Score:         awarded,
		})
	}

	resultID, err := g.store.ReplaceMCQAnswers(userID, answers, model.Result{
		UserID:     userID,
		Kind:       model.ResultMCQ,
		TotalScore: summary.TotalScore,
		MaxScore:   summary.MaxScore,
	})
	if err != nil {
		return nil, fmt.Errorf("persist mcq batch: %w", err)
	}
	summary.ResultID = resultID
	slog.Info("graded mcq submission",
		"user_id", userID, "questions", len(items),
		"total", summary.TotalScore, "max", summary.MaxScore)
	return summary, nil
}

// SubmitLab records a new lab submission in the submitted state and
// returns its id. Each upload appends a row; attempt history is kept.
func (g *Grader) SubmitLab(ctx context.Context, userID, taskID int64, artifactRef string) (int64, error) {
	_, err := g.store.GetActiveLabTask(taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lab task %d: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get lab task %d: %w", taskID, err)
	}

	id, err := g.store.InsertLabSubmission(model.LabSubmission{
		UserID:       userID,
		TaskID:       taskID,
		ArtifactPath: artifactRef,
	})
	if err != nil {
		return 0, fmt.Errorf("insert lab submission: %w", err)
	}
	slog.Info("lab submission received", "user_id", userID, "task_id", taskID, "submission_id", id)
	return id, nil
}

// ReviewLab records an admin's manual score and feedback for a lab
// submission and moves it to the reviewed state. Out-of-range scores are
// clamped to [0, task.marks], not rejected. Repeated reviews overwrite
// the prior score and feedback for the same submission.
func (g *Grader) ReviewLab(ctx context.Context, submissionID int64, score float64, feedback string) (*model.LabSubmission, error) {
	sub, err := g.store.GetLabSubmission(submissionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lab submission %d: %w", submissionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get lab submission %d: %w", submissionID, err)
	}

	// Review against the task as it exists now, active or not.
	task, err := g.store.GetLabTask(sub.TaskID)
	if err != nil {
		return nil, fmt.Errorf("get lab task %d: %w", sub.TaskID, err)
	}

	clamped := clamp(score, 0, task.Marks)
	if clamped != score {
		slog.Warn("manual score clamped",
			"submission_id", submissionID, "given", score, "stored", clamped, "task_marks", task.Marks)
	}

	if err := g.store.ReviewLabSubmission(submissionID, clamped, feedback); err != nil {
		return nil, fmt.Errorf("review lab submission %d: %w", submissionID, err)
	}

	updated, err := g.store.GetLabSubmission(submissionID)
	if err != nil {
		return nil, fmt.Errorf("reload lab submission %d: %w", submissionID, err)
	}
	slog.Info("lab submission reviewed", "submission_id", submissionID, "score", clamped)
	return &updated, nil
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func bandFeedback(ctx context.Context, normalized float64) string {
	switch {
	case normalized >= fullCreditThreshold:
		return appI18n.T(ctx, "FeedbackFullCredit")
	case normalized >= partialCreditThreshold:
		return appI18n.T(ctx, "FeedbackPartialCredit")
	default:
		return appI18n.T(ctx, "FeedbackNoCredit")
	}
}
