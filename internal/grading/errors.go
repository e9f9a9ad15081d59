package grading

import "errors"

var (
	// ErrNotFound means the referenced question, task, or submission is
	// absent or inactive.
	ErrNotFound = errors.New("not found")
	// ErrOutOfRange means a selected option index is not a valid index
	// into the question's option list.
	ErrOutOfRange = errors.New("index out of range")
	// ErrEncoderUnavailable means the embedding model could not be
	// initialized; scoring is unavailable until the process restarts.
	ErrEncoderUnavailable = errors.New("encoder unavailable")
)
