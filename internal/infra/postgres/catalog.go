package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizquest/internal/domain"
)

// Catalog serves the read-only browse/ranking queries straight from
// Postgres. Writes go through Store; the two share the database but not a
// connection pool.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// Locations lists every live quiz as a map pin.
func (c *Catalog) Locations(ctx context.Context) ([]domain.LocationPin, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT quiz_id, latitude, longitude, name, img
		FROM locations
		JOIN quizzes USING (location_id)`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var pins []domain.LocationPin
	for rows.Next() {
		var p domain.LocationPin
		if err := rows.Scan(&p.QuizID, &p.Latitude, &p.Longitude, &p.Name, &p.Img); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		pins = append(pins, p)
	}
	return pins, rows.Err()
}

// QuizDetail loads the play-page header for one live quiz.
func (c *Catalog) QuizDetail(ctx context.Context, quizID int64) (domain.QuizDetail, error) {
	var d domain.QuizDetail
	err := c.pool.QueryRow(ctx, `
		SELECT quiz_id, location_id, name, description, img
		FROM quizzes
		JOIN locations USING (location_id)
		WHERE quiz_id = $1`, quizID).
		Scan(&d.QuizID, &d.LocationID, &d.Name, &d.Description, &d.Img)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizDetail{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.QuizDetail{}, fmt.Errorf("load quiz: %w", err)
	}
	return d, nil
}

// QuizQuestions returns the questions of a live quiz with their answers,
// correctness withheld.
func (c *Catalog) QuizQuestions(ctx context.Context, quizID int64) ([]domain.PlayQuestion, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT question_id, question, point_total
		FROM questions
		WHERE quiz_id = $1
		ORDER BY question_id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.PlayQuestion
	byID := make(map[int64]int)
	for rows.Next() {
		var q domain.PlayQuestion
		if err := rows.Scan(&q.QuestionID, &q.Prompt, &q.Points); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		byID[q.QuestionID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, domain.ErrNotFound
	}

	answerRows, err := c.pool.Query(ctx, `
		SELECT answer_id, question_id, answer
		FROM answers
		JOIN questions USING (question_id)
		WHERE quiz_id = $1
		ORDER BY answer_id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer answerRows.Close()

	for answerRows.Next() {
		var (
			a          domain.PlayAnswer
			questionID int64
		)
		if err := answerRows.Scan(&a.AnswerID, &questionID, &a.Text); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if i, ok := byID[questionID]; ok {
			questions[i].Answers = append(questions[i].Answers, a)
		}
	}
	return questions, answerRows.Err()
}

// NearbyQuizzes suggests up to three quizzes whose locations are closest to
// the given quiz, by squared coordinate distance, within a loose cutoff.
func (c *Catalog) NearbyQuizzes(ctx context.Context, quizID int64) ([]domain.NearbyQuiz, error) {
	var lat, long float64
	err := c.pool.QueryRow(ctx, `
		SELECT latitude, longitude
		FROM quizzes
		JOIN locations USING (location_id)
		WHERE quiz_id = $1`, quizID).Scan(&lat, &long)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load origin: %w", err)
	}

	rows, err := c.pool.Query(ctx, `
		SELECT quiz_id, name, img, description
		FROM locations
		JOIN quizzes USING (location_id)
		WHERE quiz_id <> $3
		  AND POWER($1 - latitude, 2) + POWER($2 - longitude, 2) < 100
		ORDER BY POWER($1 - latitude, 2) + POWER($2 - longitude, 2) ASC
		LIMIT 3`, lat, long, quizID)
	if err != nil {
		return nil, fmt.Errorf("list nearby: %w", err)
	}
	defer rows.Close()

	var nearby []domain.NearbyQuiz
	for rows.Next() {
		var n domain.NearbyQuiz
		if err := rows.Scan(&n.QuizID, &n.Name, &n.Img, &n.Description); err != nil {
			return nil, fmt.Errorf("scan nearby: %w", err)
		}
		nearby = append(nearby, n)
	}
	return nearby, rows.Err()
}

// ScoreLeaderboard ranks users with a non-zero score.
func (c *Catalog) ScoreLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT user_id, username, score
		FROM users
		WHERE score <> 0
		ORDER BY score DESC`)
	if err != nil {
		return nil, fmt.Errorf("score leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Score); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CompletionLeaderboard ranks users by distinct quizzes completed.
func (c *Catalog) CompletionLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT user_id, username, COUNT(DISTINCT quiz_id) AS quizzes_completed
		FROM users
		JOIN completed_quizzes USING (user_id)
		GROUP BY user_id, username
		ORDER BY quizzes_completed DESC`)
	if err != nil {
		return nil, fmt.Errorf("completion leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.QuizzesCompleted); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UncompletedQuizzes lists the live quizzes the user has not completed yet.
func (c *Catalog) UncompletedQuizzes(ctx context.Context, userID int64) ([]domain.QuizSummary, error) {
	return c.quizSummaries(ctx, `
		SELECT quiz_id, name, description, quiz_total
		FROM quizzes
		JOIN locations USING (location_id)
		JOIN (SELECT quiz_id, SUM(point_total) AS quiz_total
		      FROM questions GROUP BY quiz_id) totals USING (quiz_id)
		WHERE quiz_id NOT IN
		      (SELECT quiz_id FROM completed_quizzes WHERE user_id = $1)`, userID)
}

// PendingQuizzes lists the moderation queue with each quiz's point total.
func (c *Catalog) PendingQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	return c.quizSummaries(ctx, `
		SELECT quiz_id, name, description, quiz_total
		FROM pending_quizzes
		JOIN pending_locations USING (location_id)
		JOIN (SELECT quiz_id, SUM(point_total) AS quiz_total
		      FROM pending_questions GROUP BY quiz_id) totals USING (quiz_id)`)
}

func (c *Catalog) quizSummaries(ctx context.Context, query string, args ...interface{}) ([]domain.QuizSummary, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var summaries []domain.QuizSummary
	for rows.Next() {
		var s domain.QuizSummary
		if err := rows.Scan(&s.QuizID, &s.Name, &s.Description, &s.PointTotal); err != nil {
			return nil, fmt.Errorf("scan quiz summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// PendingQuizDetail reconstructs the whole pending unit for review,
// correctness flags included.
func (c *Catalog) PendingQuizDetail(ctx context.Context, pendingID int64) (domain.PendingQuizDetail, error) {
	var d domain.PendingQuizDetail
	err := c.pool.QueryRow(ctx, `
		SELECT quiz_id, location_id, latitude, longitude, name, img, description
		FROM pending_quizzes
		JOIN pending_locations USING (location_id)
		WHERE quiz_id = $1`, pendingID).
		Scan(&d.QuizID, &d.LocationID, &d.Latitude, &d.Longitude, &d.Name, &d.Img, &d.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PendingQuizDetail{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PendingQuizDetail{}, fmt.Errorf("load pending quiz: %w", err)
	}

	rows, err := c.pool.Query(ctx, `
		SELECT question_id, question, point_total
		FROM pending_questions
		WHERE quiz_id = $1
		ORDER BY question_id`, pendingID)
	if err != nil {
		return domain.PendingQuizDetail{}, fmt.Errorf("list pending questions: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]int)
	for rows.Next() {
		var q domain.PendingQuestion
		if err := rows.Scan(&q.QuestionID, &q.Prompt, &q.Points); err != nil {
			return domain.PendingQuizDetail{}, fmt.Errorf("scan pending question: %w", err)
		}
		byID[q.QuestionID] = len(d.Questions)
		d.Questions = append(d.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.PendingQuizDetail{}, err
	}

	answerRows, err := c.pool.Query(ctx, `
		SELECT answer_id, question_id, answer, correct
		FROM pending_answers
		JOIN pending_questions USING (question_id)
		WHERE quiz_id = $1
		ORDER BY answer_id`, pendingID)
	if err != nil {
		return domain.PendingQuizDetail{}, fmt.Errorf("list pending answers: %w", err)
	}
	defer answerRows.Close()

	for answerRows.Next() {
		var (
			a          domain.PendingAnswer
			questionID int64
		)
		if err := answerRows.Scan(&a.AnswerID, &questionID, &a.Text, &a.Correct); err != nil {
			return domain.PendingQuizDetail{}, fmt.Errorf("scan pending answer: %w", err)
		}
		if i, ok := byID[questionID]; ok {
			d.Questions[i].Answers = append(d.Questions[i].Answers, a)
		}
	}
	return d, answerRows.Err()
}
