package app

import (
	"context"
	"fmt"
	"log"

	"quizquest/internal/domain"
)

// PlayStore is the read/score side of the record store used while playing.
type PlayStore interface {
	AnswerFact(ctx context.Context, answerID int64) (domain.AnswerFact, error)
	QuizQuestionIDs(ctx context.Context, quizID int64) ([]int64, error)
	// CompleteQuiz atomically records the completion and credits the score.
	// Returns false when the (user, quiz) pair was already completed.
	CompleteQuiz(ctx context.Context, userID, quizID int64, score int) (bool, error)
}

// CreditStore holds the per-session question credits that are provisional
// until a finish request reconciles them. First write per question wins.
type CreditStore interface {
	Credit(ctx context.Context, sessionID string, questionID int64, points int) error
	Credits(ctx context.Context, sessionID string) (map[int64]int, error)
	Clear(ctx context.Context, sessionID string, questionIDs []int64) error
}

// PlayService tracks question answers per session and reconciles them into
// the durable score on quiz completion.
type PlayService struct {
	store   PlayStore
	credits CreditStore
}

func NewPlayService(store PlayStore, credits CreditStore) *PlayService {
	return &PlayService{store: store, credits: credits}
}

// RecordAnswer resolves the chosen answer and records the session's credit
// for the question: full points when correct, zero otherwise. A question
// that already holds a credit keeps it, so resubmitting cannot farm points.
func (s *PlayService) RecordAnswer(ctx context.Context, session domain.Session, questionID, answerID int64) (bool, error) {
	fact, err := s.store.AnswerFact(ctx, answerID)
	if err != nil {
		return false, err
	}
	if fact.QuestionID != questionID {
		return false, domain.ErrNotFound
	}

	points := 0
	if fact.Correct {
		points = fact.Points
	}
	if err := s.credits.Credit(ctx, session.ID, questionID, points); err != nil {
		return false, fmt.Errorf("record credit: %w", err)
	}
	return fact.Correct, nil
}

// FinishResult reports the outcome of a completed finish request.
type FinishResult struct {
	Score            int
	AlreadyCompleted bool
}

// FinishQuiz reconciles the session's credits against the quiz. Every
// question must hold a credit or the request is rejected as premature. The
// durable score update happens at most once per (user, quiz); the session
// credits are cleared afterwards either way, so replaying the quiz in the
// same session cannot credit twice.
func (s *PlayService) FinishQuiz(ctx context.Context, session domain.Session, quizID int64) (FinishResult, error) {
	questionIDs, err := s.store.QuizQuestionIDs(ctx, quizID)
	if err != nil {
		return FinishResult{}, err
	}
	credits, err := s.credits.Credits(ctx, session.ID)
	if err != nil {
		return FinishResult{}, fmt.Errorf("load credits: %w", err)
	}

	score := 0
	for _, id := range questionIDs {
		points, ok := credits[id]
		if !ok {
			return FinishResult{}, domain.ErrQuizIncomplete
		}
		score += points
	}

	credited, err := s.store.CompleteQuiz(ctx, session.User.UserID, quizID, score)
	if err != nil {
		// Credits stay put on failure; the finish can be retried.
		return FinishResult{}, fmt.Errorf("complete quiz: %w", err)
	}

	if err := s.credits.Clear(ctx, session.ID, questionIDs); err != nil {
		log.Printf("clear credits for session %s: %v", session.ID, err)
	}
	if !credited {
		return FinishResult{AlreadyCompleted: true}, nil
	}
	return FinishResult{Score: score}, nil
}
