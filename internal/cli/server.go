package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ompatel2019/toohak/internal/app"
	"github.com/ompatel2019/toohak/internal/config"
	"github.com/ompatel2019/toohak/internal/domain"
	"github.com/ompatel2019/toohak/internal/infra/memory"
	pgloader "github.com/ompatel2019/toohak/internal/infra/postgres"
	redisinfra "github.com/ompatel2019/toohak/internal/infra/redis"
	transport "github.com/ompatel2019/toohak/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	opts := []app.Option{
		app.WithCountdown(config.TTLDuration(cfg.Session.Countdown, app.CountdownDuration)),
	}
	if redisClient != nil {
		resultsTTL := config.TTLDuration(cfg.Session.ResultsTTL, 24*time.Hour)
		opts = append(opts, app.WithResultArchive(redisinfra.NewResultArchive(redisClient, resultsTTL)))
	}

	service := app.NewSessionService(memory.NewSessionStore(), quizRepo, opts...)
	tokens := memory.NewTokenRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewHandler(service, tokens).Register(mux)
	mux.HandleFunc("/ws", transport.NewWSHandler(service).ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	service.Clear()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides demo quiz data when no Postgres is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:   "quiz-1",
			Name: "Arithmetic warmup",
			Questions: []domain.Question{
				{
					ID:              1,
					Prompt:          "What is 2 + 2?",
					DurationSeconds: 10,
					Points:          5,
					Answers: []domain.AnswerOption{
						{ID: 1, Text: "3", Colour: "red"},
						{ID: 2, Text: "4", Correct: true, Colour: "blue"},
						{ID: 3, Text: "5", Colour: "green"},
					},
				},
				{
					ID:              2,
					Prompt:          "What is 3 * 3?",
					DurationSeconds: 10,
					Points:          5,
					Answers: []domain.AnswerOption{
						{ID: 4, Text: "9", Correct: true, Colour: "yellow"},
						{ID: 5, Text: "6", Colour: "purple"},
					},
				},
			},
		},
	}
}
