package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quizquest/internal/app"
	"quizquest/internal/auth"
	"quizquest/internal/domain"
	pgstore "quizquest/internal/infra/postgres"
	pgmigrations "quizquest/internal/infra/postgres/migrations"
	rediscredit "quizquest/internal/infra/redis"
)

func TestQuizLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()

	store := pgstore.NewStore(db)
	manager := auth.NewManager(store, time.Hour)

	if err := manager.Register(ctx, "alice", "sekret", "sekret"); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if err := manager.Register(ctx, "mod", "sekret", "sekret"); err != nil {
		t.Fatalf("register mod: %v", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE users SET is_moderator = TRUE WHERE username = 'mod'`); err != nil {
		t.Fatalf("promote mod: %v", err)
	}

	aliceSession, err := manager.Login(ctx, "alice", "sekret")
	if err != nil {
		t.Fatalf("login alice: %v", err)
	}
	alice := aliceSession.User
	modSession, err := manager.Login(ctx, "mod", "sekret")
	if err != nil {
		t.Fatalf("login mod: %v", err)
	}
	moderator := modSession.User

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	credits := rediscredit.NewCreditStore(redisClient, time.Hour)

	submissions := app.NewSubmissionService(store)
	play := app.NewPlayService(store, credits)

	sub := sampleSubmission()
	pendingID, err := submissions.Submit(ctx, alice, sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	quizID, err := submissions.Approve(ctx, moderator, pendingID, sub)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	catalog := pgstore.NewCatalog(pool)

	pins, err := catalog.Locations(ctx)
	if err != nil {
		t.Fatalf("locations: %v", err)
	}
	if len(pins) != 1 || pins[0].QuizID != quizID {
		t.Fatalf("expected one live pin for quiz %d, got %+v", quizID, pins)
	}

	questions, err := catalog.QuizQuestions(ctx, quizID)
	if err != nil {
		t.Fatalf("quiz questions: %v", err)
	}
	if len(questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(questions))
	}

	// Answer every question correctly. The catalog strips correctness, so
	// cross-reference the submission: every question's correct choice is
	// the first response.
	for _, q := range questions {
		correct, err := play.RecordAnswer(ctx, aliceSession, q.QuestionID, q.Answers[0].AnswerID)
		if err != nil {
			t.Fatalf("record answer: %v", err)
		}
		if !correct {
			t.Fatalf("expected first answer of question %d to be correct", q.QuestionID)
		}
	}

	result, err := play.FinishQuiz(ctx, aliceSession, quizID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if result.Score != 50 || result.AlreadyCompleted {
		t.Fatalf("expected 50-point first finish, got %+v", result)
	}

	// A replayed finish must not double-credit.
	for _, q := range questions {
		if _, err := play.RecordAnswer(ctx, aliceSession, q.QuestionID, q.Answers[0].AnswerID); err != nil {
			t.Fatalf("record answer: %v", err)
		}
	}
	again, err := play.FinishQuiz(ctx, aliceSession, quizID)
	if err != nil {
		t.Fatalf("second finish: %v", err)
	}
	if !again.AlreadyCompleted || again.Score != 0 {
		t.Fatalf("expected idempotent finish, got %+v", again)
	}

	user, err := store.UserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("load alice: %v", err)
	}
	if user.Score != 50 {
		t.Fatalf("expected score 50 after both finishes, got %d", user.Score)
	}

	board, err := catalog.ScoreLeaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 1 || board[0].Username != "alice" || board[0].Score != 50 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}

	uncompleted, err := catalog.UncompletedQuizzes(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("uncompleted: %v", err)
	}
	if len(uncompleted) != 0 {
		t.Fatalf("alice completed everything, got %+v", uncompleted)
	}
}

func TestProvenanceSurvivesIDCollisions(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, cleanup := startPostgres(t, ctx)
	defer cleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()

	store := pgstore.NewStore(db)
	manager := auth.NewManager(store, time.Hour)
	for _, name := range []string{"alice", "bob", "mod"} {
		if err := manager.Register(ctx, name, "sekret", "sekret"); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if _, err := db.ExecContext(ctx, `UPDATE users SET is_moderator = TRUE WHERE username = 'mod'`); err != nil {
		t.Fatalf("promote mod: %v", err)
	}
	identity := func(name string) domain.Identity {
		session, err := manager.Login(ctx, name, "sekret")
		if err != nil {
			t.Fatalf("login %s: %v", name, err)
		}
		return session.User
	}
	alice, bob, moderator := identity("alice"), identity("bob"), identity("mod")

	submissions := app.NewSubmissionService(store)
	subA, subB, subC := sampleSubmission(), sampleSubmission(), sampleSubmission()
	pendingA, err := submissions.Submit(ctx, alice, subA)
	if err != nil {
		t.Fatalf("submit A: %v", err)
	}
	pendingB, err := submissions.Submit(ctx, bob, subB)
	if err != nil {
		t.Fatalf("submit B: %v", err)
	}

	// Out-of-order approval: B takes live id 1 while A still holds pending
	// id 1. A's approval must repoint only A's provenance row.
	liveB, err := submissions.Approve(ctx, moderator, pendingB, subB)
	if err != nil {
		t.Fatalf("approve B: %v", err)
	}
	if liveB != pendingA {
		t.Fatalf("expected live id %d to collide with pending id %d", liveB, pendingA)
	}
	liveA, err := submissions.Approve(ctx, moderator, pendingA, subA)
	if err != nil {
		t.Fatalf("approve A: %v", err)
	}

	liveRows := func(userID, quizID int64) int {
		var n int
		err := db.NewSelect().TableExpr("submitted_quizzes").
			ColumnExpr("count(*)").
			Where("user_id = ?", userID).
			Where("quiz_id = ?", quizID).
			Where("NOT pending").
			Scan(ctx, &n)
		if err != nil {
			t.Fatalf("count provenance for user %d quiz %d: %v", userID, quizID, err)
		}
		return n
	}
	if liveRows(alice.UserID, liveA) != 1 {
		t.Fatalf("expected alice's provenance at live quiz %d", liveA)
	}
	if liveRows(bob.UserID, liveB) != 1 {
		t.Fatalf("expected bob's provenance at live quiz %d", liveB)
	}

	// Rejecting a pending quiz whose id equals an existing live id must not
	// touch the live quiz's provenance. C keeps pending id 3 while D's
	// approval takes live id 3.
	subD := sampleSubmission()
	pendingC, err := submissions.Submit(ctx, alice, subC)
	if err != nil {
		t.Fatalf("submit C: %v", err)
	}
	pendingD, err := submissions.Submit(ctx, bob, subD)
	if err != nil {
		t.Fatalf("submit D: %v", err)
	}
	liveD, err := submissions.Approve(ctx, moderator, pendingD, subD)
	if err != nil {
		t.Fatalf("approve D: %v", err)
	}
	if liveD != pendingC {
		t.Fatalf("expected live id %d to collide with pending id %d", liveD, pendingC)
	}
	if err := submissions.Reject(ctx, moderator, pendingC); err != nil {
		t.Fatalf("reject C: %v", err)
	}
	if liveRows(bob.UserID, liveD) != 1 {
		t.Fatalf("expected bob's provenance at live quiz %d to survive the reject", liveD)
	}

	var pendingLeft int
	if err := db.NewSelect().TableExpr("submitted_quizzes").
		ColumnExpr("count(*)").
		Where("pending").
		Scan(ctx, &pendingLeft); err != nil {
		t.Fatalf("count pending provenance: %v", err)
	}
	if pendingLeft != 0 {
		t.Fatalf("expected no pending provenance rows left, got %d", pendingLeft)
	}
}

func TestRejectDestroysPendingUnit(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, cleanup := startPostgres(t, ctx)
	defer cleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()

	store := pgstore.NewStore(db)
	manager := auth.NewManager(store, time.Hour)
	if err := manager.Register(ctx, "alice", "sekret", "sekret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := manager.Register(ctx, "mod", "sekret", "sekret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE users SET is_moderator = TRUE WHERE username = 'mod'`); err != nil {
		t.Fatalf("promote mod: %v", err)
	}
	aliceSession, err := manager.Login(ctx, "alice", "sekret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	modSession, err := manager.Login(ctx, "mod", "sekret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	submissions := app.NewSubmissionService(store)
	pendingID, err := submissions.Submit(ctx, aliceSession.User, sampleSubmission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := submissions.Reject(ctx, modSession.User, pendingID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	var leftovers int
	for _, table := range []string{"pending_locations", "pending_quizzes", "pending_questions", "pending_answers", "submitted_quizzes"} {
		var n int
		if err := db.NewSelect().TableExpr(table).ColumnExpr("count(*)").Scan(ctx, &n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		leftovers += n
	}
	if leftovers != 0 {
		t.Fatalf("expected pending schema emptied, found %d leftover rows", leftovers)
	}

	if err := submissions.Reject(ctx, modSession.User, pendingID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second reject, got %v", err)
	}
}

func sampleSubmission() domain.QuizSubmission {
	sub := domain.QuizSubmission{
		LocationName: "Eiffel Tower",
		Img:          "https://upload.wikimedia.org/wikipedia/commons/tower.jpg",
		Description:  "Five questions about the iron lady of Paris.",
		Latitude:     48.8584,
		Longitude:    2.2945,
	}
	for i := 0; i < 5; i++ {
		sub.Questions = append(sub.Questions, domain.QuestionSubmission{
			Prompt:    fmt.Sprintf("Question number %d, what is the right choice?", i+1),
			Responses: []string{"right", "wrong", "wronger", "wrongest"},
			Points:    10,
			Correct:   1,
		})
	}
	return sub
}

func openBun(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
