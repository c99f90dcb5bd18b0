package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/auth"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
	pgstore "quiz-room-service/internal/infra/postgres"
	redisinfra "quiz-room-service/internal/infra/redis"
	transport "quiz-room-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := setLoader(cfg, pool)
	if err != nil {
		return err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	joinWindow := config.TTLDuration(cfg.Game.JoinWindow, 30*time.Second)
	joinLimit := cfg.Game.JoinLimitOrDefault()

	var (
		sets    app.QuestionSetRepository
		limiter app.JoinLimiter
		codes   app.CodeReservations
	)
	if redisClient != nil {
		sets = redisinfra.NewQuestionSetRepository(redisClient, loader, quizTTL)
		limiter = redisinfra.NewJoinLimiter(redisClient, joinLimit, joinWindow)
		codes = redisinfra.NewCodeReservations(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute), uuid.NewString())
	} else {
		sets = memory.NewQuestionSetRepository(loader, quizTTL)
		limiter = memory.NewJoinLimiter(joinLimit, joinWindow)
		codes = memory.NewCodeReservations()
	}

	quorum, err := quorumPolicy(cfg.Game.Quorum)
	if err != nil {
		return err
	}
	registry := app.NewRegistry(app.RegistryConfig{
		IdleTTL:      config.TTLDuration(cfg.Game.RoomIdleTTL, 30*time.Minute),
		EndedTTL:     config.TTLDuration(cfg.Game.EndedRoomTTL, 5*time.Minute),
		ReapInterval: config.TTLDuration(cfg.Game.ReaperInterval, time.Minute),
		CafeTick:     config.TTLDuration(cfg.Game.CafeTick, time.Second),
	}, app.SessionOptions{
		Limiter:     limiter,
		Quorum:      quorum,
		AutoClose:   cfg.Game.AutoClose(),
		HostGrace:   config.TTLDuration(cfg.Game.HostGrace, 0),
		SendBuffer:  cfg.Transport.SendBufferOrDefault(),
		BannedWords: cfg.Game.DefaultBannedWords,
		Logger:      log,
	}, codes)

	hostTokens := auth.NewHostTokens(cfg.Game.HostTokenSecret, config.TTLDuration(cfg.Game.HostTokenTTL, 12*time.Hour))
	service := app.NewGameService(registry, sets, hostTokens, log)

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(service, transport.Options{
			MessagesPerSecond: cfg.Transport.RateOrDefault(),
			Burst:             cfg.Transport.BurstOrDefault(),
			PublicURL:         publicURL(cfg, finalPort),
		}, log),
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return registry.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Bool("redis", redisClient != nil).Bool("postgres", pool != nil).Msg("starting quiz room service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// setLoader picks the question-set backing store: Postgres, a YAML sets file, or the built-in sample.
func setLoader(cfg config.Config, pool *pgxpool.Pool) (memory.SetLoader, error) {
	switch {
	case pool != nil:
		return pgstore.NewQuestionSetLoader(pool), nil
	case cfg.Quiz.SetsFile != "":
		return memory.LoadStaticSets(cfg.Quiz.SetsFile)
	default:
		return memory.NewStaticSetLoader(sampleSets()), nil
	}
}

func quorumPolicy(raw string) (app.QuorumPolicy, error) {
	switch app.QuorumPolicy(raw) {
	case "", app.QuorumPresent:
		return app.QuorumPresent, nil
	case app.QuorumAll:
		return app.QuorumAll, nil
	default:
		return "", errors.New("game.quorum must be present or all")
	}
}

func publicURL(cfg config.Config, port string) string {
	if cfg.Server.PublicURL != "" {
		return cfg.Server.PublicURL
	}
	return "http://localhost:" + port
}

// sampleSets provides a minimal question set so the server is usable without any storage configured.
func sampleSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"sample": {
			ID:    "sample",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					Prompt:       "What is 2 + 2?",
					Choices:      []domain.Choice{{Text: "3"}, {Text: "4"}, {Text: "5"}, {Text: "22"}},
					CorrectIndex: 1,
					TimeLimitSec: 20,
				},
				{
					Prompt:       "Which planet is known as the Red Planet?",
					Choices:      []domain.Choice{{Text: "Venus"}, {Text: "Jupiter"}, {Text: "Mars"}, {Text: "Saturn"}},
					CorrectIndex: 2,
					TimeLimitSec: 15,
				},
			},
		},
	}
}
