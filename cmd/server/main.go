package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/field_rental/internal/app"
	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/auth"
	"github.com/Freeeeeet/field_rental/internal/cache"
	"github.com/Freeeeeet/field_rental/internal/config"
	"github.com/Freeeeeet/field_rental/internal/controller"
	"github.com/Freeeeeet/field_rental/internal/controller/handlers"
	"github.com/Freeeeeet/field_rental/internal/notify"
	"github.com/Freeeeeet/field_rental/internal/repository"
	"github.com/Freeeeeet/field_rental/internal/repository/memory"
	"github.com/Freeeeeet/field_rental/internal/service"
	"github.com/Freeeeeet/field_rental/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type stores struct {
	users    service.UserStore
	fields   service.FieldStore
	bookings service.BookingStore
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting field rental API",
		zap.String("environment", cfg.Environment),
		zap.String("storage_driver", cfg.StorageDriver),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	shutdownTracer, err := app.InitTracer(ctx, cfg.OTLPEndpoint, cfg.Environment, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	objects, err := storage.NewLocalStore(cfg.StorageDir, cfg.PublicBaseURL, []byte(cfg.JWTSecret))
	if err != nil {
		return err
	}

	catalogCache, closeCache := openCache(ctx, cfg, logger)
	defer closeCache()

	var notifier service.Notifier
	var botController *controller.BotController
	if cfg.TelegramToken != "" {
		b, err := notify.NewTelegramBot(cfg.TelegramToken)
		if err != nil {
			return err
		}
		tgNotifier := notify.NewTelegramNotifier(b, logger)
		defer tgNotifier.Wait()
		notifier = tgNotifier
		botController = controller.NewBotController(b, logger)
	} else {
		logger.Info("Telegram notifications disabled, TELEGRAM_TOKEN is not set")
	}

	userService := service.NewUserService(st.users, logger)
	if cfg.AdminEmail != "" {
		bootstrapAdmin(ctx, userService, cfg.AdminEmail, logger)
	}
	fieldService := service.NewFieldService(st.users, st.fields, catalogCache, logger)
	bookingService := service.NewBookingService(st.users, st.fields, st.bookings, objects, notifier, logger)

	scheduler := app.NewScheduler(bookingService, cfg.CompletionInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if botController != nil {
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Notification bot setup failed", zap.Error(err))
		}
		go botController.Start(ctx)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	h := handlers.NewHandlers(
		userService,
		fieldService,
		bookingService,
		auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL),
		objects,
		cfg.MaxUploadBytes(),
		logger,
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           controller.NewRouter(h, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// bootstrapAdmin выдаёт роль admin пользователю из ADMIN_EMAIL, если он уже зарегистрирован
func bootstrapAdmin(ctx context.Context, users *service.UserService, email string, logger *zap.Logger) {
	_, err := users.PromoteToAdmin(ctx, email)
	if apperr.Is(err, apperr.KindNotFound) {
		logger.Warn("Admin user is not registered yet", zap.String("email", email))
		return
	}
	if err != nil {
		logger.Error("Failed to promote admin user", zap.String("email", email), zap.Error(err))
	}
}

// openStores подключает PostgreSQL (с миграциями) или хранилище в памяти
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		mem := memory.New()
		return &stores{
			users:    mem.Users(),
			fields:   mem.Fields(),
			bookings: mem.Bookings(),
			close:    func() {},
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if cfg.MigrationsEnabled {
		migrator, err := app.NewMigrator(pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		err = migrator.Run(ctx)
		migrator.Close()
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	logger.Info("✅ Connected to PostgreSQL")

	return &stores{
		users:    repository.NewUserRepository(pool),
		fields:   repository.NewFieldRepository(pool),
		bookings: repository.NewBookingRepository(pool),
		close:    pool.Close,
	}, nil
}

// openCache подключает Redis для каталога; без адреса кэш выключен
func openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.CatalogCache, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}

	client, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("Redis unavailable, catalog cache disabled", zap.Error(err))
		return nil, func() {}
	}

	return cache.NewCatalogCache(client, cfg.CatalogCacheTTL, logger), func() { client.Close() }
}
