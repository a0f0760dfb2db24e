package integration

import (
	"context"
	"database/sql"
	"encoding/json"
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
	"go.uber.org/zap"

	"xpbattle-service/internal/app"
	"xpbattle-service/internal/domain"
	infrapg "xpbattle-service/internal/infra/postgres"
	pgmigrations "xpbattle-service/internal/infra/postgres/migrations"
	infraredis "xpbattle-service/internal/infra/redis"
)

func TestFullRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL)

	pgPool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pgPool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := infrapg.NewPoolLoader(pgPool)
	pool := infraredis.NewPoolProvider(redisClient, loader, 5*time.Minute)
	registry := infraredis.NewSessionRegistry(redisClient, 30*time.Minute)
	locks := infraredis.NewLockStore(redisClient, 5*time.Minute)
	ledger := infraredis.NewLedger(redisClient)
	store := infrapg.NewSessionLog(pgPool)

	service := app.NewGameService(registry, pool, store, locks, ledger, zap.NewNop(), time.Minute)

	view, err := service.StartSession(ctx, "p1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	var result domain.AnswerResult
	for level := 1; level <= 15; level++ {
		result, err = service.SubmitAnswer(ctx, "p1", 1) // seeded questions are correct at index 1
		if err != nil {
			t.Fatalf("answer at level %d: %v", level, err)
		}
	}
	if result.Session.Status != domain.StatusWon {
		t.Fatalf("expected won run, got %s", result.Session.Status)
	}
	if result.Session.SettledReward != 5600 {
		t.Fatalf("expected settled 5600, got %d", result.Session.SettledReward)
	}

	total, err := redisClient.Get(ctx, "xpbattle:xp:p1").Int()
	if err != nil {
		t.Fatalf("read ledger total: %v", err)
	}
	if total != 5600 {
		t.Fatalf("ledger total %d, want 5600", total)
	}

	var status string
	if err := pgPool.QueryRow(ctx, `SELECT status FROM sessions WHERE id=$1`, view.ID).Scan(&status); err != nil {
		t.Fatalf("read session row: %v", err)
	}
	if status != string(domain.StatusWon) {
		t.Fatalf("session row status %s, want won", status)
	}
}

func seedQuestions(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	counts := map[domain.Difficulty]int{
		domain.DifficultyEasy:   4,
		domain.DifficultyMedium: 5,
		domain.DifficultyHard:   6,
	}
	options, err := json.Marshal([]string{"w", "right", "x", "y"})
	if err != nil {
		t.Fatalf("marshal options: %v", err)
	}
	for difficulty, n := range counts {
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("%s-%d", difficulty, i)
			prompt := fmt.Sprintf("%s question %d", difficulty, i)
			if _, err := db.ExecContext(ctx,
				`INSERT INTO questions (id, prompt, options, correct_index, difficulty) VALUES (?, ?, ?::jsonb, ?, ?) ON CONFLICT (id) DO NOTHING`,
				id, prompt, string(options), 1, string(difficulty)); err != nil {
				t.Fatalf("insert question: %v", err)
			}
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "xp", "POSTGRES_PASSWORD": "xppass", "POSTGRES_DB": "xpdb"},
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
	dsn := fmt.Sprintf("postgres://xp:xppass@%s:%s/xpdb?sslmode=disable", host, port.Port())
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
