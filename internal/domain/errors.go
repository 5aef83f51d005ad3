package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced quiz, question, answer or
	// pending unit does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a non-moderator attempts a moderation action.
	ErrForbidden = errors.New("forbidden")
	// ErrQuizIncomplete rejects a finish request before every question of
	// the quiz has been answered in the session.
	ErrQuizIncomplete = errors.New("quiz incomplete")
	// ErrUsernameTaken is returned when registering an already-used username.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// WriteLevel names the step of a hierarchical write that failed.
type WriteLevel string

const (
	LevelLocation   WriteLevel = "location"
	LevelQuiz       WriteLevel = "quiz"
	LevelQuestion   WriteLevel = "question"
	LevelAnswer     WriteLevel = "answer"
	LevelProvenance WriteLevel = "provenance"
	LevelDelete     WriteLevel = "delete"
)

// WriteError reports a store failure inside a unit write. The surrounding
// transaction has been rolled back by the time the caller sees it, so no
// partial rows are ever observable.
type WriteError struct {
	Level WriteLevel
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Level, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// FieldError is a single validation violation, labeled by the field (and,
// for questions and answers, the 1-based index) it applies to.
type FieldError struct {
	Field   string `json:"param"`
	Message string `json:"msg"`
}

// ValidationErrors collects every violation found in one pass so callers
// can redisplay the full list to the submitter.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(msgs, "; ")
}
