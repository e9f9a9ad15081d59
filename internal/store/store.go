package store

import (
	"database/sql"
	"fmt"

	"github.com/avetisov/examcore/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		prompt TEXT NOT NULL,
		expected_answer TEXT NOT NULL,
		marks REAL NOT NULL DEFAULT 1.0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mcq_questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		prompt TEXT NOT NULL,
		options TEXT NOT NULL,
		correct_index INTEGER NOT NULL,
		marks REAL NOT NULL DEFAULT 1.0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lab_tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		instructions TEXT NOT NULL,
		resource_path TEXT NOT NULL DEFAULT '',
		marks REAL NOT NULL DEFAULT 1.0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		response TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS mcq_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		selected_index INTEGER NOT NULL,
		correct INTEGER NOT NULL DEFAULT 0,
		score REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (question_id) REFERENCES mcq_questions(id)
	);

	CREATE TABLE IF NOT EXISTS lab_submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		task_id INTEGER NOT NULL,
		artifact_path TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'submitted',
		manual_score REAL,
		feedback TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		reviewed_at DATETIME,
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (task_id) REFERENCES lab_tasks(id)
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		total_score REAL NOT NULL DEFAULT 0,
		max_score REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertQuestion stores a free-text question.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO questions (title, prompt, expected_answer, marks, active, created_at)
		 VALUES (?, ?, ?, ?, ?, datetime('now'))`,
		q.Title, q.Prompt, q.ExpectedAnswer, q.Marks, q.Active,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateQuestion overwrites an existing question. Existing answers keep
// the score computed at submission time; edits never rescore.
func (s *Store) UpdateQuestion(q model.Question) error {
	res, err := s.db.Exec(
		`UPDATE questions SET title = ?, prompt = ?, expected_answer = ?, marks = ?, active = ? WHERE id = ?`,
		q.Title, q.Prompt, q.ExpectedAnswer, q.Marks, q.Active, q.ID,
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

// GetQuestion returns a question by ID regardless of its active flag.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	var q model.Question
	err := s.db.QueryRow(
		`SELECT id, title, prompt, expected_answer, marks, active, created_at FROM questions WHERE id = ?`, id,
	).Scan(&q.ID, &q.Title, &q.Prompt, &q.ExpectedAnswer, &q.Marks, &q.Active, &q.CreatedAt)
	return q, err
}

// GetActiveQuestion returns a question by ID only if it is active.
func (s *Store) GetActiveQuestion(id int64) (model.Question, error) {
	var q model.Question
	err := s.db.QueryRow(
		`SELECT id, title, prompt, expected_answer, marks, active, created_at
		 FROM questions WHERE id = ? AND active = 1`, id,
	).Scan(&q.ID, &q.Title, &q.Prompt, &q.ExpectedAnswer, &q.Marks, &q.Active, &q.CreatedAt)
	return q, err
}

// ListQuestions returns questions, optionally restricted to active ones.
func (s *Store) ListQuestions(activeOnly bool) ([]model.Question, error) {
	query := `SELECT id, title, prompt, expected_answer, marks, active, created_at FROM questions`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Title, &q.Prompt, &q.ExpectedAnswer, &q.Marks, &q.Active, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionCount returns the number of free-text questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}
