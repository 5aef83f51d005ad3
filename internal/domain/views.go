package domain

// Read-side projections served by the catalog queries. None of them carry
// correctness flags except the moderator-only pending detail.

// LocationPin is a map marker for a live quiz.
type LocationPin struct {
	QuizID    int64   `json:"quizId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Img       string  `json:"img"`
}

// QuizSummary is a browser row: quiz plus its total attainable points.
type QuizSummary struct {
	QuizID      int64  `json:"quizId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PointTotal  int    `json:"quizTotal"`
}

// QuizDetail is the play page header.
type QuizDetail struct {
	QuizID      int64  `json:"quizId"`
	LocationID  int64  `json:"locationId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Img         string `json:"img"`
}

// PlayQuestion is a question as shown to a player, answers unmarked.
type PlayQuestion struct {
	QuestionID int64        `json:"questionId"`
	Prompt     string       `json:"question"`
	Points     int          `json:"pointTotal"`
	Answers    []PlayAnswer `json:"answers"`
}

type PlayAnswer struct {
	AnswerID int64  `json:"answerId"`
	Text     string `json:"answer"`
}

// NearbyQuiz is a neighbor suggestion for the current quiz.
type NearbyQuiz struct {
	QuizID      int64  `json:"quizId"`
	Name        string `json:"name"`
	Img         string `json:"img"`
	Description string `json:"description"`
}

// LeaderboardEntry ranks users either by score or by quizzes completed,
// depending on the query that produced it.
type LeaderboardEntry struct {
	UserID           int64  `json:"userId"`
	Username         string `json:"username"`
	Score            int    `json:"score,omitempty"`
	QuizzesCompleted int    `json:"quizzesCompleted,omitempty"`
}

// PendingQuizDetail is the full pending unit for moderator review,
// correctness flags included.
type PendingQuizDetail struct {
	QuizID      int64             `json:"quizId"`
	LocationID  int64             `json:"locationId"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	Name        string            `json:"name"`
	Img         string            `json:"img"`
	Description string            `json:"description"`
	Questions   []PendingQuestion `json:"questions"`
}

type PendingQuestion struct {
	QuestionID int64           `json:"questionId"`
	Prompt     string          `json:"question"`
	Points     int             `json:"pointTotal"`
	Answers    []PendingAnswer `json:"answers"`
}

type PendingAnswer struct {
	AnswerID int64  `json:"answerId"`
	Text     string `json:"answer"`
	Correct  bool   `json:"correct"`
}
