package store

import (
	"github.com/avetisov/examcore/internal/model"
)

// ListResultRows returns all result snapshots joined with their owners,
// newest first, for the admin results view and the export command.
func (s *Store) ListResultRows() ([]model.ResultRow, error) {
	rows, err := s.db.Query(
		`SELECT u.username, r.kind, r.total_score, r.max_score, r.created_at
		 FROM results r JOIN users u ON u.id = r.user_id
		 ORDER BY r.created_at DESC, r.id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ResultRow
	for rows.Next() {
		var r model.ResultRow
		if err := rows.Scan(&r.Username, &r.Kind, &r.TotalScore, &r.MaxScore, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListAnswerRows returns all free-text answers joined with questions and
// owners, newest first, for the admin answers view.
func (s *Store) ListAnswerRows() ([]model.AnswerRow, error) {
	rows, err := s.db.Query(
		`SELECT u.username, q.id, q.title, a.response, a.score, q.marks, a.created_at
		 FROM answers a
		 JOIN users u ON u.id = a.user_id
		 JOIN questions q ON q.id = a.question_id
		 ORDER BY a.created_at DESC, a.id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AnswerRow
	for rows.Next() {
		var r model.AnswerRow
		if err := rows.Scan(&r.Username, &r.QuestionID, &r.Title, &r.Response, &r.Score, &r.Marks, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListLabSubmissionRows returns all lab submissions joined with tasks and
// owners for the admin review list.
func (s *Store) ListLabSubmissionRows() ([]model.LabSubmissionRow, error) {
	rows, err := s.db.Query(
		`SELECT ls.id, ls.user_id, ls.task_id, ls.artifact_path, ls.status, ls.manual_score,
		        ls.feedback, ls.created_at, ls.reviewed_at, u.username, t.title, t.marks
		 FROM lab_submissions ls
		 JOIN users u ON u.id = ls.user_id
		 JOIN lab_tasks t ON t.id = ls.task_id
		 ORDER BY ls.created_at DESC, ls.id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.LabSubmissionRow
	for rows.Next() {
		var r model.LabSubmissionRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.TaskID, &r.ArtifactPath, &r.Status, &r.ManualScore,
			&r.Feedback, &r.CreatedAt, &r.ReviewedAt, &r.Username, &r.TaskTitle, &r.TaskMarks); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
