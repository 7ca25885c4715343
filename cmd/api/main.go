package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stayhub/internal/api"
	"stayhub/internal/broker"
	"stayhub/internal/config"
	"stayhub/internal/database"
	"stayhub/internal/domain"
	"stayhub/internal/events"
	"stayhub/internal/google"
	"stayhub/internal/logging"
	"stayhub/internal/metrics"
	"stayhub/internal/notify"
	"stayhub/internal/repository"
	"stayhub/internal/scheduler"
	"stayhub/internal/search"
	"stayhub/internal/service"
	"stayhub/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

const sheetsCacheRefresh = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	seed, err := loadSeed(&logger)
	if err != nil {
		return err
	}
	if err := service.NewSeeder(db, &logger).Apply(ctx, seed); err != nil {
		logger.Error().Err(err).Msg("apply seed data")
		return err
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	locks := initLocks(redisClient, &logger)

	eventBus := events.NewEventBus()
	eventBus.OnError(func(event *events.Event, err error) {
		logger.Error().Err(err).Str("event_type", event.Type).Msg("event handler failed")
	})

	if cfg.Kafka.Enabled {
		publisher, err := broker.NewKafkaPublisher(cfg.Kafka, &logger)
		if err != nil {
			return fmt.Errorf("init kafka: %w", err)
		}
		defer publisher.Close()
		publisher.Attach(eventBus)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher attached")
	}

	// Workers use the store, redis and kafka; they must stop before those close.
	workers := worker.NewGroup(ctx)
	defer workers.Stop()
	ctx = workers.Context()

	if notifier := initTelegram(cfg, db, eventBus, &logger); notifier != nil {
		workers.Go(notifier.Start)
	}

	mailer, err := initMailer(cfg, &logger)
	if err != nil {
		return err
	}

	var index domain.PropertyIndex
	if searchClient := initSearch(cfg, &logger); searchClient != nil {
		index = searchClient
	}

	var syncWorker domain.SyncWorker
	if sheetsService := initGoogleSheets(ctx, cfg, &logger); sheetsService != nil {
		workers.Go(func(ctx context.Context) {
			sheetsService.RefreshCache(ctx, sheetsCacheRefresh, func(err error) {
				logger.Warn().Err(err).Msg("refresh sheets cache")
			})
		})
		sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, &logger)
		workers.Go(sheetsWorker.Start)
		syncWorker = sheetsWorker
	}

	authService := service.NewAuthService(db, db, locks, mailer, eventBus, service.AuthOptions{
		JWTSecret:    cfg.API.Auth.JWTSecret,
		TokenTTL:     cfg.API.Auth.TokenTTL,
		OTPTTL:       cfg.OTP.TTL,
		ResendLimit:  cfg.OTP.ResendLimit,
		ResendWindow: cfg.OTP.ResendWindow,
	}, &logger)
	propertyService := service.NewPropertyService(db, index, eventBus, &logger)
	locker := service.NewPropertyLocker(locks, cfg.Booking.LockTTL, cfg.Booking.LockRetries, &logger)
	reservationService := service.NewReservationService(db, locker, eventBus, syncWorker, service.ReservationOptions{
		MaxStayNights:      cfg.Booking.MaxStayNights,
		MaxAdvanceDays:     cfg.Booking.MaxAdvanceDays,
		ExportMaxRangeDays: cfg.Exports.MaxRangeDays,
	}, &logger)

	sched := scheduler.New(&logger)
	deps := scheduler.Dependencies{OTPs: authService, Search: propertyService}
	if cfg.Backup.Enabled {
		deps.Backup = database.NewBackupService(db, cfg.Backup, &logger)
	}
	if err := scheduler.RegisterJobs(sched, cfg, deps); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	sched.Start()

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Auth:         authService,
		Properties:   propertyService,
		Reservations: reservationService,
		Store:        db,
	}, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, reservationService, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, sched, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadSeed reads demo users and listings. A missing file means no seed.
func loadSeed(logger *zerolog.Logger) (service.SeedData, error) {
	seedPath := os.Getenv("SEED_PATH")
	if seedPath == "" {
		seedPath = "configs/seed.yaml"
	}

	var seed service.SeedData
	data, err := os.ReadFile(seedPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info().Str("seed_path", seedPath).Msg("no seed file, skipping")
		return seed, nil
	}
	if err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read seed")
		return seed, err
	}

	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("parse seed")
		return seed, err
	}
	return seed, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := redisClient.Ping(pingCtx).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initLocks prefers redis and keeps the in-process store as a fallback.
func initLocks(redisClient *redis.Client, logger *zerolog.Logger) domain.LockRepository {
	memory := repository.NewMemoryLockRepository()
	if redisClient == nil {
		logger.Warn().Msg("using in-memory locks; run a single instance")
		return memory
	}
	return repository.NewFailoverLockRepository(repository.NewRedisLockRepository(redisClient), memory, logger)
}

func initMailer(cfg *config.Config, logger *zerolog.Logger) (domain.Mailer, error) {
	if cfg.Mail.Host == "" {
		return notify.NewLogMailer(logger), nil
	}
	sender, err := notify.NewEmailSender(cfg.Mail, logger)
	if err != nil {
		return nil, fmt.Errorf("init mailer: %w", err)
	}
	return sender, nil
}

func initTelegram(cfg *config.Config, db *database.DB, bus *events.EventBus, logger *zerolog.Logger) *notify.TelegramNotifier {
	if cfg.Telegram.BotToken == "" {
		return nil
	}

	client := &http.Client{Timeout: cfg.Telegram.SendTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, host notifications disabled")
		return nil
	}
	bot.Debug = cfg.Telegram.Debug

	notifier := notify.NewTelegramNotifier(bot, db, cfg.Telegram.QueueSize, logger)
	notifier.Attach(bus)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
	return notifier
}

func initSearch(cfg *config.Config, logger *zerolog.Logger) *search.SearchClient {
	if !cfg.Search.Enabled {
		return nil
	}

	client := search.NewSearchClient(cfg.Search.Host, cfg.Search.APIKey, cfg.Search.Index)
	if !client.Healthy() {
		logger.Warn().Str("host", cfg.Search.Host).Msg("meilisearch unreachable, using database search")
		return nil
	}
	if err := client.InitIndex(); err != nil {
		logger.Warn().Err(err).Msg("meilisearch index init failed, using database search")
		return nil
	}

	logger.Info().Str("index", cfg.Search.Index).Msg("meilisearch connected")
	return client
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.ReservationsSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.ReservationsSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sheetsService.TestConnection(initCtx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	if err := sheetsService.EnsureHeader(initCtx); err != nil {
		logger.Warn().Err(err).Msg("write sheet header")
	}
	if err := sheetsService.WarmUpCache(initCtx); err != nil {
		logger.Warn().Err(err).Msg("warm up sheets cache")
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 2)

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	logger.Info().
		Int("http_port", cfg.API.HTTP.Port).
		Bool("grpc_enabled", grpcServer != nil).
		Int("grpc_port", cfg.API.GRPC.Port).
		Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	sched.Stop(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
