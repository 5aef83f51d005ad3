package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// Location is a geo-tagged point of interest. Every quiz is anchored to
// exactly one location; both are created together as part of a unit.
type Location struct {
	bun.BaseModel `bun:"table:locations"`

	ID        int64   `bun:"location_id,pk,autoincrement" json:"locationId"`
	Latitude  float64 `bun:"latitude" json:"latitude"`
	Longitude float64 `bun:"longitude" json:"longitude"`
	Name      string  `bun:"name" json:"name"`
	Img       string  `bun:"img" json:"img"`
}

// Quiz ties a description to a location and owns a set of questions.
type Quiz struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID          int64  `bun:"quiz_id,pk,autoincrement" json:"quizId"`
	LocationID  int64  `bun:"location_id" json:"locationId"`
	Description string `bun:"description" json:"description"`
}

// Question is an MCQ prompt worth a fixed point total.
type Question struct {
	bun.BaseModel `bun:"table:questions"`

	ID     int64  `bun:"question_id,pk,autoincrement" json:"questionId"`
	QuizID int64  `bun:"quiz_id" json:"quizId"`
	Prompt string `bun:"question" json:"question"`
	Points int    `bun:"point_total" json:"pointTotal"`
}

// Answer is one of the four responses to a question. Exactly one answer
// per question carries Correct=true.
type Answer struct {
	bun.BaseModel `bun:"table:answers"`

	ID         int64  `bun:"answer_id,pk,autoincrement" json:"answerId"`
	QuestionID int64  `bun:"question_id" json:"questionId"`
	Text       string `bun:"answer" json:"answer"`
	Correct    bool   `bun:"correct" json:"-"`
}

// User is a registered player. Score only ever grows, once per quiz.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           int64  `bun:"user_id,pk,autoincrement" json:"userId"`
	Username     string `bun:"username" json:"username"`
	PasswordHash string `bun:"password_hash" json:"-"`
	Score        int    `bun:"score" json:"score"`
	Moderator    bool   `bun:"is_moderator" json:"moderator"`
}

// CompletedQuiz is the durable at-most-once completion marker. The
// composite primary key is what makes double crediting impossible.
type CompletedQuiz struct {
	bun.BaseModel `bun:"table:completed_quizzes"`

	UserID      int64     `bun:"user_id,pk" json:"userId"`
	QuizID      int64     `bun:"quiz_id,pk" json:"quizId"`
	CompletedAt time.Time `bun:"completion_date" json:"completionDate"`
}

// SubmittedQuiz links a submitter to their pending (later approved) quiz.
type SubmittedQuiz struct {
	bun.BaseModel `bun:"table:submitted_quizzes"`

	UserID int64 `bun:"user_id" json:"userId"`
	QuizID int64 `bun:"quiz_id" json:"quizId"`
	// Pending tells which id namespace QuizID lives in: the pending quiz
	// sequence before moderation, the live one after. The sequences are
	// independent and collide, so QuizID alone is ambiguous.
	Pending     bool      `bun:"pending" json:"pending"`
	SubmittedAt time.Time `bun:"submission_date" json:"submissionDate"`
}

// QuizSubmission is the candidate unit a user sends in for moderation.
// It is validated as a whole before any row is written.
type QuizSubmission struct {
	LocationName string               `json:"location_name"`
	Img          string               `json:"img"`
	Description  string               `json:"description"`
	Latitude     float64              `json:"latitude"`
	Longitude    float64              `json:"longitude"`
	Questions    []QuestionSubmission `json:"questions"`
}

// QuestionSubmission carries one prompt plus its four responses. Correct
// is the 1-based index of the right response.
type QuestionSubmission struct {
	Prompt    string   `json:"question"`
	Responses []string `json:"responses"`
	Points    int      `json:"point_total"`
	Correct   int      `json:"correct"`
}

// AnswerFact is what the play path needs to know about a chosen answer.
type AnswerFact struct {
	AnswerID   int64 `bun:"answer_id"`
	QuestionID int64 `bun:"question_id"`
	Points     int   `bun:"points"`
	Correct    bool  `bun:"correct"`
}

// Identity is the authenticated-user view handed over by the auth layer.
type Identity struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	Moderator bool   `json:"moderator"`
}

// Session pairs an identity with the opaque id the per-session credit
// scratch space is keyed by.
type Session struct {
	ID   string
	User Identity
}
