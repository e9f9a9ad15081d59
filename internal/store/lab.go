package store

import (
	"database/sql"
	"time"

	"github.com/avetisov/examcore/internal/model"
)

// InsertLabTask stores a lab task.
func (s *Store) InsertLabTask(t model.LabTask) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO lab_tasks (title, instructions, resource_path, marks, active, created_at)
		 VALUES (?, ?, ?, ?, ?, datetime('now'))`,
		t.Title, t.Instructions, t.ResourcePath, t.Marks, t.Active,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateLabTask overwrites an existing lab task.
func (s *Store) UpdateLabTask(t model.LabTask) error {
	res, err := s.db.Exec(
		`UPDATE lab_tasks SET title = ?, instructions = ?, resource_path = ?, marks = ?, active = ? WHERE id = ?`,
		t.Title, t.Instructions, t.ResourcePath, t.Marks, t.Active, t.ID,
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

// GetActiveLabTask returns a lab task by ID only if it is active.
func (s *Store) GetActiveLabTask(id int64) (model.LabTask, error) {
	var t model.LabTask
	err := s.db.QueryRow(
		`SELECT id, title, instructions, resource_path, marks, active, created_at
		 FROM lab_tasks WHERE id = ? AND active = 1`, id,
	).Scan(&t.ID, &t.Title, &t.Instructions, &t.ResourcePath, &t.Marks, &t.Active, &t.CreatedAt)
	return t, err
}

// GetLabTask returns a lab task by ID.
func (s *Store) GetLabTask(id int64) (model.LabTask, error) {
	var t model.LabTask
	err := s.db.QueryRow(
		`SELECT id, title, instructions, resource_path, marks, active, created_at
		 FROM lab_tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &t.Instructions, &t.ResourcePath, &t.Marks, &t.Active, &t.CreatedAt)
	return t, err
}

// ListLabTasks returns lab tasks, optionally restricted to active ones.
func (s *Store) ListLabTasks(activeOnly bool) ([]model.LabTask, error) {
	query := `SELECT id, title, instructions, resource_path, marks, active, created_at FROM lab_tasks`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []model.LabTask
	for rows.Next() {
		var t model.LabTask
		if err := rows.Scan(&t.ID, &t.Title, &t.Instructions, &t.ResourcePath, &t.Marks, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// InsertLabSubmission appends a new submission in the submitted state.
// Prior submissions for the same (user, task) are kept; the attempt
// history accumulates, unlike exam answers.
func (s *Store) InsertLabSubmission(sub model.LabSubmission) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO lab_submissions (user_id, task_id, artifact_path, status, created_at)
		 VALUES (?, ?, ?, ?, datetime('now'))`,
		sub.UserID, sub.TaskID, sub.ArtifactPath, model.LabSubmitted,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetLabSubmission returns a submission by ID.
func (s *Store) GetLabSubmission(id int64) (model.LabSubmission, error) {
	var sub model.LabSubmission
	err := s.db.QueryRow(
		`SELECT id, user_id, task_id, artifact_path, status, manual_score, feedback, created_at, reviewed_at
		 FROM lab_submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.UserID, &sub.TaskID, &sub.ArtifactPath, &sub.Status,
		&sub.ManualScore, &sub.Feedback, &sub.CreatedAt, &sub.ReviewedAt)
	return sub, err
}

// ReviewLabSubmission records an admin's manual score and feedback and
// moves the submission to the reviewed state. Repeated calls overwrite
// the score and feedback; the state never goes back to submitted.
func (s *Store) ReviewLabSubmission(id int64, score float64, feedback string) error {
	res, err := s.db.Exec(
		`UPDATE lab_submissions SET status = ?, manual_score = ?, feedback = ?, reviewed_at = ? WHERE id = ?`,
		model.LabReviewed, score, feedback, time.Now(), id,
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

// ListLabSubmissions returns a user's submissions for one task, oldest first.
func (s *Store) ListLabSubmissions(userID, taskID int64) ([]model.LabSubmission, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, task_id, artifact_path, status, manual_score, feedback, created_at, reviewed_at
		 FROM lab_submissions WHERE user_id = ? AND task_id = ? ORDER BY id`, userID, taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLabSubmissions(rows)
}

func collectLabSubmissions(rows *sql.Rows) ([]model.LabSubmission, error) {
	var subs []model.LabSubmission
	for rows.Next() {
		var sub model.LabSubmission
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.TaskID, &sub.ArtifactPath, &sub.Status,
			&sub.ManualScore, &sub.Feedback, &sub.CreatedAt, &sub.ReviewedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
