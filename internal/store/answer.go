package store

import (
	"github.com/avetisov/examcore/internal/model"
)

// ReplaceFreeTextAnswers deletes the user's prior free-text answers and
// free-text result, then inserts the new batch with one fresh result
// snapshot, all in a single transaction. Submitting the same batch twice
// leaves the same stored state.
func (s *Store) ReplaceFreeTextAnswers(userID int64, answers []model.Answer, result model.Result) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM answers WHERE user_id = ?`, userID); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`DELETE FROM results WHERE user_id = ? AND kind = ?`, userID, model.ResultFreeText); err != nil {
		return 0, err
	}

	for _, a := range answers {
		_, err := tx.Exec(
			`INSERT INTO answers (user_id, question_id, response, score, created_at)
			 VALUES (?, ?, ?, ?, datetime('now'))`,
			userID, a.QuestionID, a.Response, a.Score,
		)
		if err != nil {
			return 0, err
		}
	}

	res, err := tx.Exec(
		`INSERT INTO results (user_id, kind, total_score, max_score, created_at)
		 VALUES (?, ?, ?, ?, datetime('now'))`,
		userID, model.ResultFreeText, result.TotalScore, result.MaxScore,
	)
	if err != nil {
		return 0, err
	}
	resultID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return resultID, tx.Commit()
}

// ReplaceMCQAnswers is the multiple-choice counterpart of
// ReplaceFreeTextAnswers, scoped to mcq_answers and the mcq result kind.
func (s *Store) ReplaceMCQAnswers(userID int64, answers []model.MCQAnswer, result model.Result) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM mcq_answers WHERE user_id = ?`, userID); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`DELETE FROM results WHERE user_id = ? AND kind = ?`, userID, model.ResultMCQ); err != nil {
		return 0, err
	}

	for _, a := range answers {
		_, err := tx.Exec(
			`INSERT INTO mcq_answers (user_id, question_id, selected_index, correct, score, created_at)
			 VALUES (?, ?, ?, ?, ?, datetime('now'))`,
			userID, a.QuestionID, a.SelectedIndex, a.Correct, a.Score,
		)
		if err != nil {
			return 0, err
		}
	}

	res, err := tx.Exec(
		`INSERT INTO results (user_id, kind, total_score, max_score, created_at)
		 VALUES (?, ?, ?, ?, datetime('now'))`,
		userID, model.ResultMCQ, result.TotalScore, result.MaxScore,
	)
	if err != nil {
		return 0, err
	}
	resultID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return resultID, tx.Commit()
}

// ListAnswers returns a user's free-text answers.
func (s *Store) ListAnswers(userID int64) ([]model.Answer, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, question_id, response, score, created_at
		 FROM answers WHERE user_id = ? ORDER BY id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuestionID, &a.Response, &a.Score, &a.CreatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListResults returns a user's result snapshots, newest first.
func (s *Store) ListResults(userID int64) ([]model.Result, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, kind, total_score, max_score, created_at
		 FROM results WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Result
	for rows.Next() {
		var r model.Result
		if err := rows.Scan(&r.ID, &r.UserID, &r.Kind, &r.TotalScore, &r.MaxScore, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
