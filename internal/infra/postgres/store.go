package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizquest/internal/domain"
)

// Store is the transactional record store. Every unit write runs inside a
// single transaction so a failure at any level leaves nothing behind.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// target selects the live or pending variant of the quiz tables. Both
// schemas share one write path; only the table names differ.
type target int

const (
	live target = iota
	pending
)

func (t target) table(base string) string {
	if t == pending {
		return "pending_" + base
	}
	return base
}

// insertUnit writes location -> quiz -> questions -> answers in strict
// parent-before-child order, each child taking the id the parent insert
// just returned. Must be called inside a transaction.
func insertUnit(ctx context.Context, tx bun.Tx, t target, sub domain.QuizSubmission) (int64, error) {
	loc := &domain.Location{
		Latitude:  sub.Latitude,
		Longitude: sub.Longitude,
		Name:      strings.TrimSpace(sub.LocationName),
		Img:       strings.TrimSpace(sub.Img),
	}
	if _, err := tx.NewInsert().Model(loc).
		ModelTableExpr(t.table("locations")).
		Returning("location_id").Exec(ctx); err != nil {
		return 0, &domain.WriteError{Level: domain.LevelLocation, Err: err}
	}

	quiz := &domain.Quiz{LocationID: loc.ID, Description: strings.TrimSpace(sub.Description)}
	if _, err := tx.NewInsert().Model(quiz).
		ModelTableExpr(t.table("quizzes")).
		Returning("quiz_id").Exec(ctx); err != nil {
		return 0, &domain.WriteError{Level: domain.LevelQuiz, Err: err}
	}

	for _, qs := range sub.Questions {
		question := &domain.Question{
			QuizID: quiz.ID,
			Prompt: strings.TrimSpace(qs.Prompt),
			Points: qs.Points,
		}
		if _, err := tx.NewInsert().Model(question).
			ModelTableExpr(t.table("questions")).
			Returning("question_id").Exec(ctx); err != nil {
			return 0, &domain.WriteError{Level: domain.LevelQuestion, Err: err}
		}

		answers := make([]domain.Answer, 0, len(qs.Responses))
		for j, text := range qs.Responses {
			answers = append(answers, domain.Answer{
				QuestionID: question.ID,
				Text:       strings.TrimSpace(text),
				Correct:    j+1 == qs.Correct,
			})
		}
		if _, err := tx.NewInsert().Model(&answers).
			ModelTableExpr(t.table("answers")).Exec(ctx); err != nil {
			return 0, &domain.WriteError{Level: domain.LevelAnswer, Err: err}
		}
	}
	return quiz.ID, nil
}

// InsertPendingUnit writes the submitted unit into the pending schema along
// with its provenance row. Returns the new pending quiz id.
func (s *Store) InsertPendingUnit(ctx context.Context, sub domain.QuizSubmission, submitterID int64) (int64, error) {
	var quizID int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		id, err := insertUnit(ctx, tx, pending, sub)
		if err != nil {
			return err
		}
		provenance := &domain.SubmittedQuiz{
			UserID:      submitterID,
			QuizID:      id,
			Pending:     true,
			SubmittedAt: time.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(provenance).Exec(ctx); err != nil {
			return &domain.WriteError{Level: domain.LevelProvenance, Err: err}
		}
		quizID = id
		return nil
	})
	return quizID, err
}

// PromoteUnit copies a (re-validated) pending quiz into the live schema and
// destroys the pending unit, both inside one transaction. A failed delete
// rolls back the live insert too, so the unit is never live and pending at
// the same time.
func (s *Store) PromoteUnit(ctx context.Context, pendingID int64, sub domain.QuizSubmission) (int64, error) {
	var quizID int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		locationID, err := pendingLocationID(ctx, tx, pendingID)
		if err != nil {
			return err
		}

		id, err := insertUnit(ctx, tx, live, sub)
		if err != nil {
			return err
		}

		// Repoint provenance at the live quiz before the pending id vanishes.
		// The pending filter keeps the update off rows that already carry a
		// live quiz id equal to pendingID; the two sequences overlap.
		if _, err := tx.NewUpdate().Table("submitted_quizzes").
			Set("quiz_id = ?", id).
			Set("pending = FALSE").
			Where("quiz_id = ?", pendingID).
			Where("pending").Exec(ctx); err != nil {
			return &domain.WriteError{Level: domain.LevelProvenance, Err: err}
		}

		// Deleting the pending location cascades to the quiz, its questions
		// and their answers.
		if _, err := tx.NewDelete().Table("pending_locations").
			Where("location_id = ?", locationID).Exec(ctx); err != nil {
			return &domain.WriteError{Level: domain.LevelDelete, Err: err}
		}
		quizID = id
		return nil
	})
	return quizID, err
}

// DeletePendingUnit rejects a pending quiz, removing the whole unit and its
// provenance row. Reports ErrNotFound for an unknown or already-handled id.
func (s *Store) DeletePendingUnit(ctx context.Context, pendingID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		locationID, err := pendingLocationID(ctx, tx, pendingID)
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Table("pending_locations").
			Where("location_id = ?", locationID).Exec(ctx); err != nil {
			return &domain.WriteError{Level: domain.LevelDelete, Err: err}
		}
		if _, err := tx.NewDelete().Table("submitted_quizzes").
			Where("quiz_id = ?", pendingID).
			Where("pending").Exec(ctx); err != nil {
			return &domain.WriteError{Level: domain.LevelProvenance, Err: err}
		}
		return nil
	})
}

func pendingLocationID(ctx context.Context, tx bun.Tx, pendingID int64) (int64, error) {
	var locationID int64
	err := tx.NewSelect().TableExpr("pending_quizzes").
		ColumnExpr("location_id").
		Where("quiz_id = ?", pendingID).
		Scan(ctx, &locationID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load pending quiz: %w", err)
	}
	return locationID, nil
}

// AnswerFact resolves a chosen answer to its question, point total and
// correctness flag.
func (s *Store) AnswerFact(ctx context.Context, answerID int64) (domain.AnswerFact, error) {
	var fact domain.AnswerFact
	err := s.db.NewSelect().TableExpr("answers AS a").
		Join("JOIN questions AS q ON q.question_id = a.question_id").
		ColumnExpr("a.answer_id, a.question_id, a.correct, q.point_total AS points").
		Where("a.answer_id = ?", answerID).
		Scan(ctx, &fact)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AnswerFact{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AnswerFact{}, fmt.Errorf("load answer: %w", err)
	}
	return fact, nil
}

// QuizQuestionIDs returns the question ids a finish request must have
// credits for. Units always carry questions, so an empty result means the
// quiz does not exist.
func (s *Store) QuizQuestionIDs(ctx context.Context, quizID int64) ([]int64, error) {
	var ids []int64
	err := s.db.NewSelect().TableExpr("questions").
		ColumnExpr("question_id").
		Where("quiz_id = ?", quizID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("load quiz questions: %w", err)
	}
	if len(ids) == 0 {
		return nil, domain.ErrNotFound
	}
	return ids, nil
}

// CompleteQuiz records a completion and credits the score, at most once per
// (user, quiz). The insert and the score update share one transaction; the
// primary key on completed_quizzes serializes concurrent finishes, and the
// rows-affected check decides which of them credits.
func (s *Store) CompleteQuiz(ctx context.Context, userID, quizID int64, score int) (bool, error) {
	credited := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		completion := &domain.CompletedQuiz{
			UserID:      userID,
			QuizID:      quizID,
			CompletedAt: time.Now().UTC(),
		}
		res, err := tx.NewInsert().Model(completion).
			On("CONFLICT (user_id, quiz_id) DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert completion: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert completion: %w", err)
		}
		if inserted == 0 {
			return nil // already scored
		}
		if _, err := tx.NewUpdate().Table("users").
			Set("score = score + ?", score).
			Where("user_id = ?", userID).Exec(ctx); err != nil {
			return fmt.Errorf("update score: %w", err)
		}
		credited = true
		return nil
	})
	return credited, err
}

// CreateUser registers a new user with zero score and no moderator flag.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	user := &domain.User{Username: username, PasswordHash: passwordHash}
	if _, err := s.db.NewInsert().Model(user).Returning("user_id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrUsernameTaken
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return user.ID, nil
}

// UserByUsername loads a user for credential verification.
func (s *Store) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	var user domain.User
	err := s.db.NewSelect().Model(&user).
		Where("lower(username) = lower(?)", username).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
