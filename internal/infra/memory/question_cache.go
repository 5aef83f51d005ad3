package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizquest/internal/app"
	"quizquest/internal/domain"
)

// QuestionCache fronts a PlayStore with a TTL cache over the hot play-path
// lookups (answer facts and quiz question sets). Completions pass through
// untouched; quiz content never changes after promotion, so staleness only
// matters across deletions.
type QuestionCache struct {
	store app.PlayStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu        sync.RWMutex
	facts     map[int64]cachedFact
	questions map[int64]cachedQuestions
}

type cachedFact struct {
	fact      domain.AnswerFact
	expiresAt time.Time
}

type cachedQuestions struct {
	ids       []int64
	expiresAt time.Time
}

func NewQuestionCache(store app.PlayStore, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		store:     store,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		facts:     make(map[int64]cachedFact),
		questions: make(map[int64]cachedQuestions),
	}
}

func (c *QuestionCache) AnswerFact(ctx context.Context, answerID int64) (domain.AnswerFact, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.facts[answerID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.fact, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(factKey(answerID), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.facts[answerID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.fact, nil
		}
		c.mu.RUnlock()

		fact, err := c.store.AnswerFact(ctx, answerID)
		if err != nil {
			return domain.AnswerFact{}, err
		}

		c.mu.Lock()
		c.facts[answerID] = cachedFact{fact: fact, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return fact, nil
	})
	if err != nil {
		return domain.AnswerFact{}, err
	}
	return result.(domain.AnswerFact), nil
}

func (c *QuestionCache) QuizQuestionIDs(ctx context.Context, quizID int64) ([]int64, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.questions[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.ids, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(questionsKey(quizID), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.questions[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.ids, nil
		}
		c.mu.RUnlock()

		ids, err := c.store.QuizQuestionIDs(ctx, quizID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.questions[quizID] = cachedQuestions{ids: ids, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]int64), nil
}

func (c *QuestionCache) CompleteQuiz(ctx context.Context, userID, quizID int64, score int) (bool, error) {
	return c.store.CompleteQuiz(ctx, userID, quizID, score)
}

func factKey(answerID int64) string {
	return "fact:" + strconv.FormatInt(answerID, 10)
}

func questionsKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
