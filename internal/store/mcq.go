package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/avetisov/examcore/internal/model"
)

// Option lists are stored as a JSON array in a single TEXT column.

func encodeOptions(options []string) (string, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(data), nil
}

func decodeOptions(data string) ([]string, error) {
	var options []string
	if err := json.Unmarshal([]byte(data), &options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return options, nil
}

// InsertMCQQuestion stores a multiple-choice question.
func (s *Store) InsertMCQQuestion(q model.MCQQuestion) (int64, error) {
	opts, err := encodeOptions(q.Options)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO mcq_questions (title, prompt, options, correct_index, marks, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, datetime('now'))`,
		q.Title, q.Prompt, opts, q.CorrectIndex, q.Marks, q.Active,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateMCQQuestion overwrites an existing multiple-choice question.
func (s *Store) UpdateMCQQuestion(q model.MCQQuestion) error {
	opts, err := encodeOptions(q.Options)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE mcq_questions SET title = ?, prompt = ?, options = ?, correct_index = ?, marks = ?, active = ? WHERE id = ?`,
		q.Title, q.Prompt, opts, q.CorrectIndex, q.Marks, q.Active, q.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanMCQQuestion(row interface{ Scan(...any) error }) (model.MCQQuestion, error) {
	var q model.MCQQuestion
	var opts string
	err := row.Scan(&q.ID, &q.Title, &q.Prompt, &opts, &q.CorrectIndex, &q.Marks, &q.Active, &q.CreatedAt)
	if err != nil {
		return q, err
	}
	q.Options, err = decodeOptions(opts)
	return q, err
}

// GetActiveMCQQuestion returns a multiple-choice question by ID only if active.
func (s *Store) GetActiveMCQQuestion(id int64) (model.MCQQuestion, error) {
	row := s.db.QueryRow(
		`SELECT id, title, prompt, options, correct_index, marks, active, created_at
		 FROM mcq_questions WHERE id = ? AND active = 1`, id,
	)
	return scanMCQQuestion(row)
}

// GetMCQQuestion returns a multiple-choice question by ID.
func (s *Store) GetMCQQuestion(id int64) (model.MCQQuestion, error) {
	row := s.db.QueryRow(
		`SELECT id, title, prompt, options, correct_index, marks, active, created_at
		 FROM mcq_questions WHERE id = ?`, id,
	)
	return scanMCQQuestion(row)
}

// ListMCQQuestions returns multiple-choice questions, optionally active only.
func (s *Store) ListMCQQuestions(activeOnly bool) ([]model.MCQQuestion, error) {
	query := `SELECT id, title, prompt, options, correct_index, marks, active, created_at FROM mcq_questions`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.MCQQuestion
	for rows.Next() {
		q, err := scanMCQQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListMCQAnswers returns a user's multiple-choice answers.
func (s *Store) ListMCQAnswers(userID int64) ([]model.MCQAnswer, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, question_id, selected_index, correct, score, created_at
		 FROM mcq_answers WHERE user_id = ? ORDER BY id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.MCQAnswer
	for rows.Next() {
		var a model.MCQAnswer
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuestionID, &a.SelectedIndex, &a.Correct, &a.Score, &a.CreatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
