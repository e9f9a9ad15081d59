package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Question is a free-text question scored against a reference answer.
type Question struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Prompt         string    `json:"prompt"`
	ExpectedAnswer string    `json:"-"`
	Marks          float64   `json:"marks"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// MCQQuestion is a multiple-choice question with one correct option.
type MCQQuestion struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Prompt       string    `json:"prompt"`
	Options      []string  `json:"options"`
	CorrectIndex int       `json:"-"`
	Marks        float64   `json:"marks"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// LabTask is a hands-on task graded manually by an admin.
type LabTask struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Instructions string    `json:"instructions"`
	ResourcePath string    `json:"resource_path,omitempty"`
	Marks        float64   `json:"marks"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Answer is a student's scored free-text response.
// At most one live Answer exists per (user, question); a retake replaces it.
type Answer struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	QuestionID int64     `json:"question_id"`
	Response   string    `json:"response"`
	Score      float64   `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

// MCQAnswer is a student's scored option selection.
type MCQAnswer struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	QuestionID    int64     `json:"question_id"`
	SelectedIndex int       `json:"selected_index"`
	Correct       bool      `json:"correct"`
	Score         float64   `json:"score"`
	CreatedAt     time.Time `json:"created_at"`
}

// LabStatus represents the lifecycle state of a lab submission.
type LabStatus string

const (
	// LabSubmitted is the initial state, set on upload.
	LabSubmitted LabStatus = "submitted"
	// LabReviewed is the terminal state, set by an admin score action.
	LabReviewed LabStatus = "reviewed"
)

// LabSubmission is one uploaded lab attempt. Resubmission appends a new
// row; attempt history is retained, unlike exam answers.
type LabSubmission struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	TaskID       int64      `json:"task_id"`
	ArtifactPath string     `json:"artifact_path"`
	Status       LabStatus  `json:"status"`
	ManualScore  *float64   `json:"manual_score,omitempty"`
	Feedback     string     `json:"feedback,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
}

// ResultKind identifies which exam path produced a result snapshot.
type ResultKind string

const (
	ResultFreeText ResultKind = "free_text"
	ResultMCQ      ResultKind = "mcq"
)

// Result is a snapshot of one scoring pass. It is created fresh on every
// submission and never updated in place; a retake replaces the snapshot
// for its kind.
type Result struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Kind       ResultKind `json:"kind"`
	TotalScore float64    `json:"total_score"`
	MaxScore   float64    `json:"max_score"`
	CreatedAt  time.Time  `json:"created_at"`
}
