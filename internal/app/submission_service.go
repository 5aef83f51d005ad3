package app

import (
	"context"
	"log"

	"quizquest/internal/domain"
)

// SubmissionStore abstracts the transactional unit writes (Postgres in
// production, in-memory in tests). Implementations guarantee that a unit
// write either fully commits or leaves no rows behind.
type SubmissionStore interface {
	InsertPendingUnit(ctx context.Context, sub domain.QuizSubmission, submitterID int64) (int64, error)
	PromoteUnit(ctx context.Context, pendingID int64, sub domain.QuizSubmission) (int64, error)
	DeletePendingUnit(ctx context.Context, pendingID int64) error
}

// SubmissionService owns the quiz submission and moderation use cases.
type SubmissionService struct {
	store SubmissionStore
}

func NewSubmissionService(store SubmissionStore) *SubmissionService {
	return &SubmissionService{store: store}
}

// Submit validates a candidate quiz and writes it into the pending schema.
// Returns the new pending quiz id, or the full list of rule violations.
func (s *SubmissionService) Submit(ctx context.Context, user domain.Identity, sub domain.QuizSubmission) (int64, error) {
	if errs := domain.ValidateSubmission(sub); len(errs) > 0 {
		return 0, errs
	}
	id, err := s.store.InsertPendingUnit(ctx, sub, user.UserID)
	if err != nil {
		log.Printf("submit quiz by user %d: %v", user.UserID, err)
		return 0, err
	}
	return id, nil
}

// Approve promotes a pending quiz into the live schema using the payload
// the moderator reviewed (possibly edited, so it is validated again). The
// pending unit is gone afterwards, or the whole operation failed.
func (s *SubmissionService) Approve(ctx context.Context, user domain.Identity, pendingID int64, sub domain.QuizSubmission) (int64, error) {
	if !user.Moderator {
		return 0, domain.ErrForbidden
	}
	if errs := domain.ValidateSubmission(sub); len(errs) > 0 {
		return 0, errs
	}
	id, err := s.store.PromoteUnit(ctx, pendingID, sub)
	if err != nil {
		if err != domain.ErrNotFound {
			log.Printf("approve pending quiz %d: %v", pendingID, err)
		}
		return 0, err
	}
	return id, nil
}

// Reject destroys a pending unit without any live-side effect.
func (s *SubmissionService) Reject(ctx context.Context, user domain.Identity, pendingID int64) error {
	if !user.Moderator {
		return domain.ErrForbidden
	}
	if err := s.store.DeletePendingUnit(ctx, pendingID); err != nil {
		if err != domain.ErrNotFound {
			log.Printf("reject pending quiz %d: %v", pendingID, err)
		}
		return err
	}
	return nil
}
