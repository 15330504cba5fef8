package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/lead-relay/internal/config"
	"github.com/xavierca1/lead-relay/internal/entity"
	"github.com/xavierca1/lead-relay/internal/infra/database"
	"github.com/xavierca1/lead-relay/internal/infra/http/handlers"
	"github.com/xavierca1/lead-relay/internal/infra/integration/notion"
	"github.com/xavierca1/lead-relay/internal/infra/mail"
	"github.com/xavierca1/lead-relay/internal/infra/queue"
	"github.com/xavierca1/lead-relay/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg); err != nil {
		logger.Fatal("lead relay stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("service", "lead-relay"))
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Record store
	checks := map[string]handlers.Check{}
	var store entity.LeadStoreInterface
	switch cfg.Store {
	case config.StorePostgres:
		db, err := database.NewDBConnection(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		store = database.NewLeadRepository(db, cfg.LeadsTable)
		checks["database"] = pingCheck(db)
	default:
		client, err := notion.NewClient(notion.Options{
			BaseURL:    cfg.NotionBaseURL,
			APIKey:     cfg.NotionAPIKey,
			DatabaseID: cfg.NotionDatabase,
		})
		if err != nil {
			return err
		}
		store = notion.NewStore(client)
	}
	resolver := usecase.NewSchemaResolver(store)
	checks["store"] = storeCheck(store)

	// 2. Notification transport
	transport, transportName, closeTransport := newTransport(ctx, cfg)
	defer closeTransport()

	// 3. Use case
	captureUC := usecase.NewCaptureLeadUseCase(store, resolver, usecase.NewNotifier(transport), usecase.CaptureLeadOptions{
		NotifyWait:          cfg.NotifyWait,
		LookupFailureAsMiss: cfg.LookupFailureAsMiss,
	})

	// 4. Handlers and router
	var limiter *handlers.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = handlers.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}
	router := newRouter(
		handlers.NewLeadHandler(captureUC, cfg.Store, limiter),
		handlers.NewHealthHandler(cfg.Store, transportName, checks),
		cfg.CORSAllowedOrigins,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("lead relay listening",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Store),
			zap.String("notifier", transportName),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		zap.L().Info("shutting down")
		err := srv.Shutdown(shutdownCtx)

		// let detached notifications finish inside the same budget
		done := make(chan struct{})
		go func() {
			captureUC.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			zap.L().Warn("notifications still in flight at shutdown")
		}
		return err
	})

	return g.Wait()
}

// newTransport builds the configured notifier. A transport that cannot be
// built is logged and left nil; leads are still recorded without it.
func newTransport(ctx context.Context, cfg *config.Config) (usecase.NotificationTransport, string, func()) {
	noop := func() {}

	switch cfg.Transport {
	case config.TransportSES:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			zap.L().Warn("ses notifier disabled", zap.Error(err))
			return nil, "", noop
		}
		sender, err := mail.NewSESSender(awsCfg, mail.SESConfig{From: cfg.SESFrom, To: cfg.NotifyTo})
		if err != nil {
			zap.L().Warn("ses notifier disabled", zap.Error(err))
			return nil, "", noop
		}
		return sender, config.TransportSES, noop

	case config.TransportAMQP:
		if cfg.AMQPURL == "" {
			zap.L().Warn("amqp notifier disabled: AMQP_URL is empty")
			return nil, "", noop
		}
		rabbitMQ, err := queue.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			zap.L().Warn("amqp notifier disabled", zap.Error(err))
			return nil, "", noop
		}
		return queue.NewProducer(rabbitMQ.Ch), config.TransportAMQP, func() { _ = rabbitMQ.Close() }

	default:
		sender, err := mail.NewEmailSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.NotifyFrom,
			To:       cfg.NotifyTo,
		})
		if err != nil {
			zap.L().Warn("smtp notifier disabled", zap.Error(err))
			return nil, "", noop
		}
		return sender, config.TransportSMTP, noop
	}
}

// storeCheck reads the schema straight from the store, bypassing the
// resolver cache, so an unreachable store shows up as unhealthy.
func storeCheck(store entity.LeadStoreInterface) handlers.Check {
	return func(ctx context.Context) error {
		_, err := store.GetSchema(ctx)
		return err
	}
}

func pingCheck(db *sql.DB) handlers.Check {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
