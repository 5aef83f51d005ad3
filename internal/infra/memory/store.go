package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"quizquest/internal/domain"
)

// Store is an in-memory record store with the same contract as the
// Postgres one. It backs the service tests and local demos; unit writes
// are all-or-nothing under one lock, mirroring the transactional store.
type Store struct {
	mu     sync.Mutex
	nextID int64
	// Pending and live quiz ids come from independent sequences that both
	// start at 1, like the two serial columns they stand in for. The same
	// numeric id can exist in both schemas at once.
	pendingSeq int64
	liveSeq    int64
	pending    map[int64]*Unit
	live       map[int64]*Unit
	users      map[int64]*domain.User
	userIDs    map[string]int64
	completed  map[int64]map[int64]time.Time
	submitted  []domain.SubmittedQuiz
}

// Unit is a materialized location+quiz+questions+answers hierarchy.
type Unit struct {
	Location  domain.Location
	Quiz      domain.Quiz
	Questions []UnitQuestion
}

type UnitQuestion struct {
	Question domain.Question
	Answers  []domain.Answer
}

func NewStore() *Store {
	return &Store{
		pending:   make(map[int64]*Unit),
		live:      make(map[int64]*Unit),
		users:     make(map[int64]*domain.User),
		userIDs:   make(map[string]int64),
		completed: make(map[int64]map[int64]time.Time),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) buildUnit(sub domain.QuizSubmission, quizID int64) *Unit {
	unit := &Unit{
		Location: domain.Location{
			ID:        s.id(),
			Latitude:  sub.Latitude,
			Longitude: sub.Longitude,
			Name:      strings.TrimSpace(sub.LocationName),
			Img:       strings.TrimSpace(sub.Img),
		},
	}
	unit.Quiz = domain.Quiz{
		ID:          quizID,
		LocationID:  unit.Location.ID,
		Description: strings.TrimSpace(sub.Description),
	}
	for _, qs := range sub.Questions {
		question := domain.Question{
			ID:     s.id(),
			QuizID: unit.Quiz.ID,
			Prompt: strings.TrimSpace(qs.Prompt),
			Points: qs.Points,
		}
		uq := UnitQuestion{Question: question}
		for j, text := range qs.Responses {
			uq.Answers = append(uq.Answers, domain.Answer{
				ID:         s.id(),
				QuestionID: question.ID,
				Text:       strings.TrimSpace(text),
				Correct:    j+1 == qs.Correct,
			})
		}
		unit.Questions = append(unit.Questions, uq)
	}
	return unit
}

func (s *Store) InsertPendingUnit(_ context.Context, sub domain.QuizSubmission, submitterID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingSeq++
	unit := s.buildUnit(sub, s.pendingSeq)
	s.pending[unit.Quiz.ID] = unit
	s.submitted = append(s.submitted, domain.SubmittedQuiz{
		UserID:      submitterID,
		QuizID:      unit.Quiz.ID,
		Pending:     true,
		SubmittedAt: time.Now().UTC(),
	})
	return unit.Quiz.ID, nil
}

func (s *Store) PromoteUnit(_ context.Context, pendingID int64, sub domain.QuizSubmission) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[pendingID]; !ok {
		return 0, domain.ErrNotFound
	}
	s.liveSeq++
	unit := s.buildUnit(sub, s.liveSeq)
	s.live[unit.Quiz.ID] = unit
	delete(s.pending, pendingID)
	// Only pending rows are repointed; a live quiz may share the number.
	for i := range s.submitted {
		if s.submitted[i].Pending && s.submitted[i].QuizID == pendingID {
			s.submitted[i].QuizID = unit.Quiz.ID
			s.submitted[i].Pending = false
		}
	}
	return unit.Quiz.ID, nil
}

func (s *Store) DeletePendingUnit(_ context.Context, pendingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[pendingID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.pending, pendingID)
	kept := s.submitted[:0]
	for _, sq := range s.submitted {
		if !sq.Pending || sq.QuizID != pendingID {
			kept = append(kept, sq)
		}
	}
	s.submitted = kept
	return nil
}

func (s *Store) AnswerFact(_ context.Context, answerID int64) (domain.AnswerFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, unit := range s.live {
		for _, uq := range unit.Questions {
			for _, a := range uq.Answers {
				if a.ID == answerID {
					return domain.AnswerFact{
						AnswerID:   a.ID,
						QuestionID: uq.Question.ID,
						Points:     uq.Question.Points,
						Correct:    a.Correct,
					}, nil
				}
			}
		}
	}
	return domain.AnswerFact{}, domain.ErrNotFound
}

func (s *Store) QuizQuestionIDs(_ context.Context, quizID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unit, ok := s.live[quizID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	ids := make([]int64, 0, len(unit.Questions))
	for _, uq := range unit.Questions {
		ids = append(ids, uq.Question.ID)
	}
	return ids, nil
}

func (s *Store) CompleteQuiz(_ context.Context, userID, quizID int64, score int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byQuiz, ok := s.completed[userID]
	if !ok {
		byQuiz = make(map[int64]time.Time)
		s.completed[userID] = byQuiz
	}
	if _, done := byQuiz[quizID]; done {
		return false, nil
	}
	byQuiz[quizID] = time.Now().UTC()
	if user, ok := s.users[userID]; ok {
		user.Score += score
	}
	return true, nil
}

func (s *Store) CreateUser(_ context.Context, username, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, taken := s.userIDs[key]; taken {
		return 0, domain.ErrUsernameTaken
	}
	user := &domain.User{ID: s.id(), Username: username, PasswordHash: passwordHash}
	s.users[user.ID] = user
	s.userIDs[key] = user.ID
	return user.ID, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.userIDs[strings.ToLower(username)]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return *s.users[id], nil
}

// SeedUser registers a user directly, bypassing credentials. Test helper.
func (s *Store) SeedUser(username string, moderator bool) domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := &domain.User{ID: s.id(), Username: username, Moderator: moderator}
	s.users[user.ID] = user
	s.userIDs[strings.ToLower(username)] = user.ID
	return domain.Identity{UserID: user.ID, Username: username, Moderator: moderator}
}

// Promote flips the moderator flag on an existing user. Test helper.
func (s *Store) Promote(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.userIDs[strings.ToLower(username)]; ok {
		s.users[id].Moderator = true
	}
}

// UnitCounts tallies the rows a schema holds across the four unit tables.
type UnitCounts struct {
	Locations, Quizzes, Questions, Answers int
}

func countUnits(units map[int64]*Unit) UnitCounts {
	var c UnitCounts
	for _, unit := range units {
		c.Locations++
		c.Quizzes++
		for _, uq := range unit.Questions {
			c.Questions++
			c.Answers += len(uq.Answers)
		}
	}
	return c
}

func (s *Store) PendingCounts() UnitCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countUnits(s.pending)
}

func (s *Store) LiveCounts() UnitCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countUnits(s.live)
}

func (s *Store) LiveUnit(quizID int64) (Unit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unit, ok := s.live[quizID]
	if !ok {
		return Unit{}, false
	}
	return *unit, true
}

func (s *Store) UserScore(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[userID]; ok {
		return user.Score
	}
	return 0
}

func (s *Store) CompletionCount(userID, quizID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.completed[userID][quizID]; done {
		return 1
	}
	return 0
}

func (s *Store) Submissions(userID int64) []domain.SubmittedQuiz {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SubmittedQuiz
	for _, sq := range s.submitted {
		if sq.UserID == userID {
			out = append(out, sq)
		}
	}
	return out
}
