package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/sophia-quiz-bot/internal/config"
	"github.com/aliskhannn/sophia-quiz-bot/internal/delivery/telegram"
	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/sophia-quiz-bot/internal/infra/ai"
	"github.com/aliskhannn/sophia-quiz-bot/internal/infra/postgres"
	pgrepo "github.com/aliskhannn/sophia-quiz-bot/internal/infra/postgres/repository"
	"github.com/aliskhannn/sophia-quiz-bot/internal/logger"
	"github.com/aliskhannn/sophia-quiz-bot/internal/metrics"
	"github.com/aliskhannn/sophia-quiz-bot/internal/repository"
	"github.com/aliskhannn/sophia-quiz-bot/internal/service"
	"github.com/aliskhannn/sophia-quiz-bot/internal/storage"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("bot stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn, err := cfg.DB.DSN()
	if err != nil {
		return err
	}
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
		MaxConns:        int32(cfg.DB.MaxConnections),
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	// Initialize repositories.
	questionRepo, err := repository.NewQuestionRepository()
	if err != nil {
		return err
	}
	userRepo := pgrepo.NewUserRepository(pool)
	prefsRepo := pgrepo.NewPreferencesRepository(pool)
	attemptRepo := pgrepo.NewAttemptRepository(pool)
	transactor := postgres.NewTransactor(pool)

	quizStorage := storage.NewQuizStorage()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, func() float64 { return float64(quizStorage.Len()) })

	var generator service.QuestionGenerator
	if cfg.AI.Enabled() {
		generator = ai.NewClient(ai.Config{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
		}, nil)
	} else {
		lg.Info("AI_API_KEY not set, question generation disabled")
	}

	// Initialize services.
	userService := service.NewUserService(userRepo)
	quizService := service.NewQuizService(
		questionRepo,
		prefsRepo,
		attemptRepo,
		userRepo,
		transactor,
		quizStorage,
		m,
		lg.Named("quiz"),
		cfg.Quiz.SessionOptions(),
	)
	generationService := service.NewGenerationService(
		generator,
		questionRepo,
		prefsRepo,
		m,
		lg.Named("generation"),
		cfg.Quiz.DefaultCount,
		cfg.Quiz.MaxCount,
	)
	janitor := service.NewJanitor(quizService, cfg.Quiz.SessionTTL, cfg.Quiz.JanitorSchedule, lg.Named("janitor"))

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return err
	}
	lg.Info("authorized on telegram", zap.String("username", bot.Self.UserName))

	if _, err := bot.Request(telegram.Commands(generationService.Enabled())); err != nil {
		lg.Warn("failed to set bot commands", zap.Error(err))
	}

	handler := telegram.NewHandler(
		bot,
		lg.Named("telegram"),
		userService,
		quizService,
		generationService,
		entities.Difficulty(cfg.Quiz.DefaultDifficulty),
		cfg.Quiz.DefaultCount,
	)
	quizService.SetNotifier(handler)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           metrics.NewRouter(reg, pool),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := handler.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return janitor.Start(ctx)
	})

	g.Go(func() error {
		lg.Info("ops server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		lg.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		bot.StopReceivingUpdates()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
