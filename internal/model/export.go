package model

import "time"

// ResultRow is one result snapshot joined with its owner, as shown to
// admins and written by the export command.
type ResultRow struct {
	Username   string     `json:"username"`
	Kind       ResultKind `json:"kind"`
	TotalScore float64    `json:"total_score"`
	MaxScore   float64    `json:"max_score"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AnswerRow is one free-text answer joined with its question and owner.
type AnswerRow struct {
	Username   string    `json:"username"`
	QuestionID int64     `json:"question_id"`
	Title      string    `json:"title"`
	Response   string    `json:"response"`
	Score      float64   `json:"score"`
	Marks      float64   `json:"marks"`
	CreatedAt  time.Time `json:"created_at"`
}

// LabSubmissionRow is one lab submission joined with its task and owner,
// as shown on the admin review list.
type LabSubmissionRow struct {
	LabSubmission
	Username  string  `json:"username"`
	TaskTitle string  `json:"task_title"`
	TaskMarks float64 `json:"task_marks"`
}

// ResultsExport is the top-level structure for the JSON export format.
type ResultsExport struct {
	ExportedAt time.Time   `json:"exported_at"`
	Results    []ResultRow `json:"results"`
}
