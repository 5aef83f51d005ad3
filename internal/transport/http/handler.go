package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"quizquest/internal/app"
	"quizquest/internal/auth"
	"quizquest/internal/domain"
)

// Catalog is the read-only query surface the handler serves directly.
type Catalog interface {
	Locations(ctx context.Context) ([]domain.LocationPin, error)
	QuizDetail(ctx context.Context, quizID int64) (domain.QuizDetail, error)
	QuizQuestions(ctx context.Context, quizID int64) ([]domain.PlayQuestion, error)
	NearbyQuizzes(ctx context.Context, quizID int64) ([]domain.NearbyQuiz, error)
	ScoreLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
	CompletionLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
	UncompletedQuizzes(ctx context.Context, userID int64) ([]domain.QuizSummary, error)
	PendingQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
	PendingQuizDetail(ctx context.Context, pendingID int64) (domain.PendingQuizDetail, error)
}

// Handler exposes the quiz use cases as a JSON API.
type Handler struct {
	submissions *app.SubmissionService
	play        *app.PlayService
	auth        *auth.Manager
	catalog     Catalog
}

func NewHandler(submissions *app.SubmissionService, play *app.PlayService, manager *auth.Manager, catalog Catalog) *Handler {
	return &Handler{submissions: submissions, play: play, auth: manager, catalog: catalog}
}

// Routes wires every endpoint into a mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users", h.register)
	mux.HandleFunc("POST /api/sessions", h.login)
	mux.HandleFunc("DELETE /api/sessions", h.logout)

	mux.HandleFunc("GET /api/locations", h.locations)
	mux.HandleFunc("GET /api/quizzes/{id}", h.quizDetail)
	mux.HandleFunc("GET /api/quizzes/{id}/questions", h.quizQuestions)
	mux.HandleFunc("GET /api/quizzes/{id}/nearby", h.nearbyQuizzes)
	mux.HandleFunc("GET /api/quizzes/uncompleted", h.uncompletedQuizzes)
	mux.HandleFunc("GET /api/leaderboard", h.leaderboard)

	mux.HandleFunc("POST /api/quizzes", h.submit)
	mux.HandleFunc("GET /api/pending", h.pendingQuizzes)
	mux.HandleFunc("GET /api/pending/{id}", h.pendingQuizDetail)
	mux.HandleFunc("POST /api/pending/{id}/approve", h.approve)
	mux.HandleFunc("POST /api/pending/{id}/reject", h.reject)

	mux.HandleFunc("POST /api/questions/{id}/answer", h.recordAnswer)
	mux.HandleFunc("POST /api/quizzes/{id}/finish", h.finishQuiz)
	return mux
}

type registerRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	PasswordMatch string `json:"password_match"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.Register(r.Context(), req.Username, req.Password, req.PasswordMatch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	session, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": session.ID,
		"user":  session.User,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.auth.Logout(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) locations(w http.ResponseWriter, r *http.Request) {
	pins, err := h.catalog.Locations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range pins {
		pins[i].Img = ResizeImage(pins[i].Img, thumbResolution)
	}
	writeJSON(w, http.StatusOK, pins)
}

func (h *Handler) quizDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := h.catalog.QuizDetail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	detail.Img = ResizeImage(detail.Img, fullResolution)
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) quizQuestions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	questions, err := h.catalog.QuizQuestions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) nearbyQuizzes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	nearby, err := h.catalog.NearbyQuizzes(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range nearby {
		nearby[i].Img = ResizeImage(nearby[i].Img, thumbResolution)
	}
	writeJSON(w, http.StatusOK, nearby)
}

func (h *Handler) uncompletedQuizzes(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	quizzes, err := h.catalog.UncompletedQuizzes(r.Context(), session.User.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	var (
		entries []domain.LeaderboardEntry
		err     error
	)
	if r.URL.Query().Get("sort") == "completed" {
		entries, err = h.catalog.CompletionLeaderboard(r.Context())
	} else {
		entries, err = h.catalog.ScoreLeaderboard(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// submitRequest mirrors the submission form: coordinates arrive as a
// single "lat,long" string.
type submitRequest struct {
	LocationName string                      `json:"location_name"`
	Img          string                      `json:"img"`
	Description  string                      `json:"description"`
	Coordinates  string                      `json:"coordinates"`
	Questions    []domain.QuestionSubmission `json:"questions"`
}

func (r submitRequest) submission() (domain.QuizSubmission, error) {
	sub := domain.QuizSubmission{
		LocationName: r.LocationName,
		Img:          r.Img,
		Description:  r.Description,
		Questions:    r.Questions,
	}
	parts := strings.SplitN(r.Coordinates, ",", 2)
	if len(parts) != 2 {
		return sub, domain.ValidationErrors{{Field: "coordinates", Message: "Must provide valid coordinates"}}
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	long, longErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if latErr != nil || longErr != nil {
		return sub, domain.ValidationErrors{{Field: "coordinates", Message: "Must provide valid coordinates"}}
	}
	sub.Latitude, sub.Longitude = lat, long
	return sub, nil
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := req.submission()
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := h.submissions.Submit(r.Context(), session.User, sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"quizId": id})
}

func (h *Handler) pendingQuizzes(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.moderator(w, r); !ok {
		return
	}
	quizzes, err := h.catalog.PendingQuizzes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) pendingQuizDetail(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.moderator(w, r); !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := h.catalog.PendingQuizDetail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := req.submission()
	if err != nil {
		writeError(w, err)
		return
	}
	liveID, err := h.submissions.Approve(r.Context(), session.User, id, sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"quizId": liveID})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.submissions.Reject(r.Context(), session.User, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

type answerRequest struct {
	AnswerID int64 `json:"answerId"`
}

func (h *Handler) recordAnswer(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	questionID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	correct, err := h.play.RecordAnswer(r.Context(), session, questionID, req.AnswerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"correct": correct})
}

func (h *Handler) finishQuiz(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	quizID, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.play.FinishQuiz(r.Context(), session, quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"score":            result.Score,
		"alreadyCompleted": result.AlreadyCompleted,
	})
}

func (h *Handler) authenticated(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody("missing session token"))
		return domain.Session{}, false
	}
	session, ok := h.auth.Resolve(token)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("session expired or unknown"))
		return domain.Session{}, false
	}
	return session, true
}

func (h *Handler) moderator(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	session, ok := h.authenticated(w, r)
	if !ok {
		return domain.Session{}, false
	}
	if !session.User.Moderator {
		writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
		return domain.Session{}, false
	}
	return session, true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeError maps the domain error taxonomy onto status codes.
func writeError(w http.ResponseWriter, err error) {
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"errors": verrs,
		})
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
	case errors.Is(err, domain.ErrQuizIncomplete):
		writeJSON(w, http.StatusConflict, errorBody("quiz incomplete"))
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody("invalid username or password"))
	default:
		var werr *domain.WriteError
		if errors.As(err, &werr) {
			log.Printf("write failure at %s level: %v", werr.Level, werr.Err)
		} else {
			log.Printf("internal error: %v", err)
		}
		writeJSON(w, http.StatusInternalServerError, errorBody(fmt.Sprintf("500: %s", http.StatusText(http.StatusInternalServerError))))
	}
}
