package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xpbattle-service/internal/app"
	"xpbattle-service/internal/config"
	"xpbattle-service/internal/domain"
	"xpbattle-service/internal/infra/memory"
	infrapg "xpbattle-service/internal/infra/postgres"
	infraredis "xpbattle-service/internal/infra/redis"
	transport "xpbattle-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the XP Battle server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pgPool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pgPool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.PoolLoader = memory.NewStaticPoolLoader(samplePool())
	if pgPool != nil {
		loader = infrapg.NewPoolLoader(pgPool)
	}

	poolTTL := config.Duration(cfg.Pool.TTL, 10*time.Minute)
	var pool app.PoolProvider
	if redisClient != nil {
		pool = infraredis.NewPoolProvider(redisClient, loader, poolTTL)
	} else {
		pool = memory.NewPoolProvider(loader, poolTTL)
	}

	questionTime := config.Duration(cfg.Game.QuestionTime, 40*time.Second)
	lockCooldown := config.Duration(cfg.Game.LockCooldown, 5*time.Minute)
	registryTTL := config.Duration(cfg.Redis.TTL, 30*time.Minute)

	var registry app.SessionRegistry
	var locks app.LockStore
	var ledger app.RewardLedger
	if redisClient != nil {
		registry = infraredis.NewSessionRegistry(redisClient, registryTTL)
		locks = infraredis.NewLockStore(redisClient, lockCooldown)
		ledger = infraredis.NewLedger(redisClient)
	} else {
		registry = memory.NewSessionRegistry()
		locks = memory.NewLockStore(lockCooldown)
		ledger = memory.NewLedger()
	}

	var store app.SessionPersistence = memory.NewSessionLog()
	if pgPool != nil {
		store = infrapg.NewSessionLog(pgPool)
	}

	service := app.NewGameService(registry, pool, store, locks, ledger, log, questionTime)
	wsHandler := transport.NewWSHandler(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting xpbattle service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// samplePool provides demo questions so the server runs without Postgres;
// production deployments load the pool from the questions table.
func samplePool() domain.QuestionPool {
	return domain.QuestionPool{
		domain.DifficultyEasy: {
			{ID: "e1", Prompt: "What color is the sky on a clear day?", Options: []string{"Green", "Blue", "Red", "Yellow"}, CorrectIndex: 1, Difficulty: domain.DifficultyEasy},
			{ID: "e2", Prompt: "How many days are in a week?", Options: []string{"5", "6", "7", "8"}, CorrectIndex: 2, Difficulty: domain.DifficultyEasy},
			{ID: "e3", Prompt: "What is 9 x 3?", Options: []string{"27", "18", "36", "21"}, CorrectIndex: 0, Difficulty: domain.DifficultyEasy},
			{ID: "e4", Prompt: "Which animal barks?", Options: []string{"Cat", "Cow", "Dog", "Duck"}, CorrectIndex: 2, Difficulty: domain.DifficultyEasy},
			{ID: "e5", Prompt: "What is the capital of France?", Options: []string{"Lyon", "Marseille", "Nice", "Paris"}, CorrectIndex: 3, Difficulty: domain.DifficultyEasy},
		},
		domain.DifficultyMedium: {
			{ID: "m1", Prompt: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter", "Mercury"}, CorrectIndex: 1, Difficulty: domain.DifficultyMedium},
			{ID: "m2", Prompt: "Who wrote 'Romeo and Juliet'?", Options: []string{"Dickens", "Shakespeare", "Austen", "Tolstoy"}, CorrectIndex: 1, Difficulty: domain.DifficultyMedium},
			{ID: "m3", Prompt: "What is the chemical symbol for gold?", Options: []string{"Go", "Gd", "Au", "Ag"}, CorrectIndex: 2, Difficulty: domain.DifficultyMedium},
			{ID: "m4", Prompt: "How many continents are there?", Options: []string{"5", "6", "7", "8"}, CorrectIndex: 2, Difficulty: domain.DifficultyMedium},
			{ID: "m5", Prompt: "Which ocean is the largest?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectIndex: 3, Difficulty: domain.DifficultyMedium},
			{ID: "m6", Prompt: "What year did World War II end?", Options: []string{"1943", "1944", "1945", "1946"}, CorrectIndex: 2, Difficulty: domain.DifficultyMedium},
		},
		domain.DifficultyHard: {
			{ID: "h1", Prompt: "What is the smallest prime greater than 100?", Options: []string{"101", "103", "107", "109"}, CorrectIndex: 0, Difficulty: domain.DifficultyHard},
			{ID: "h2", Prompt: "Which element has atomic number 26?", Options: []string{"Copper", "Iron", "Zinc", "Nickel"}, CorrectIndex: 1, Difficulty: domain.DifficultyHard},
			{ID: "h3", Prompt: "Who proved Fermat's Last Theorem?", Options: []string{"Euler", "Gauss", "Wiles", "Riemann"}, CorrectIndex: 2, Difficulty: domain.DifficultyHard},
			{ID: "h4", Prompt: "In what year was the Magna Carta signed?", Options: []string{"1066", "1215", "1347", "1492"}, CorrectIndex: 1, Difficulty: domain.DifficultyHard},
			{ID: "h5", Prompt: "What is the longest river in Asia?", Options: []string{"Mekong", "Ganges", "Yellow", "Yangtze"}, CorrectIndex: 3, Difficulty: domain.DifficultyHard},
			{ID: "h6", Prompt: "Which country has the most time zones?", Options: []string{"Russia", "USA", "France", "China"}, CorrectIndex: 2, Difficulty: domain.DifficultyHard},
			{ID: "h7", Prompt: "What particle carries the strong force?", Options: []string{"Photon", "Gluon", "Boson", "Muon"}, CorrectIndex: 1, Difficulty: domain.DifficultyHard},
		},
	}
}
