package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/caregrid/dispatch-service/internal/adapters/cache"
	eventadapter "github.com/caregrid/dispatch-service/internal/adapters/events"
	httpadapter "github.com/caregrid/dispatch-service/internal/adapters/http"
	"github.com/caregrid/dispatch-service/internal/adapters/messaging"
	"github.com/caregrid/dispatch-service/internal/adapters/postgres"
	"github.com/caregrid/dispatch-service/internal/application"
	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/caregrid/dispatch-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	consumer   *eventadapter.ConsumerWorker
	sweeper    *eventadapter.SweepWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	// Without Redis the try-lock falls back to an in-process mutex, which is
	// only safe when a single instance handles replies.
	var lock ports.AssignmentLock = cache.NewLocalAssignmentLock()
	var redisCloser io.Closer
	if cfg.RedisURL != "" {
		redisClient, redisErr := cache.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			_ = sqlDB.Close()
			return nil, redisErr
		}
		lock = cache.NewRedisAssignmentLock(redisClient)
		redisCloser = redisClient
	} else {
		logger.WarnContext(ctx, "redis not configured, using in-process assignment lock",
			"module", "bootstrap",
		)
	}

	var messenger ports.Messenger = messaging.NewLoggingMessenger(logger)
	if cfg.CarrierBaseURL != "" {
		carrier, carrierErr := messaging.NewCarrierClient(cfg.CarrierBaseURL, cfg.CarrierAPIKey, cfg.CarrierFromNumber, cfg.CarrierTimeout)
		if carrierErr != nil {
			_ = sqlDB.Close()
			return nil, carrierErr
		}
		messenger = carrier
	} else {
		logger.WarnContext(ctx, "carrier not configured, logging outbound messages",
			"module", "bootstrap",
		)
	}

	repos := postgres.NewRepositories(db)
	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:             cfg.ServiceID,
			CampaignTimeout:         cfg.CampaignTimeout,
			MaxContacts:             cfg.MaxContacts,
			FirstWaveSize:           cfg.FirstWaveSize,
			FirstWaveMin:            cfg.FirstWaveMin,
			SecondWaveThreshold:     cfg.SecondWaveThreshold,
			SecondWaveSize:          cfg.SecondWaveSize,
			LockTTL:                 cfg.LockTTL,
			UrgentWindow:            cfg.UrgentWindow,
			AllowUnlockedAssignment: cfg.AllowUnlockedAssignment,
		},
		Logger:       logger,
		Campaigns:    repos.Campaigns,
		Roster:       repos.Roster,
		Messenger:    messenger,
		Lock:         lock,
		Outbox:       repos.Outbox,
		OnEscalation: logEscalation(logger),
	})

	handler := httpadapter.NewHandler(service, cfg.WebhookToken)
	router := httpadapter.NewRouter(handler, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		if redisCloser != nil {
			_ = redisCloser.Close()
		}
		_ = sqlDB.Close()
		return nil, err
	}

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	consumerAdapter := eventadapter.Consumer(eventadapter.NewNoopConsumer())
	var closers []io.Closer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			"campaign.filled":    cfg.KafkaTopicCampaignEvents,
			"campaign.escalated": cfg.KafkaTopicCampaignEvents,
			"campaign.expired":   cfg.KafkaTopicCampaignEvents,
			"campaign.cancelled": cfg.KafkaTopicCampaignEvents,
		})
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}

		kafkaConsumer, conErr := eventadapter.NewKafkaConsumer(
			cfg.KafkaBrokers,
			cfg.KafkaConsumerGroup,
			[]string{cfg.KafkaTopicAssignmentCancelled},
		)
		if conErr != nil {
			logger.WarnContext(ctx, "kafka consumer disabled, using noop consumer", "error", conErr)
		} else {
			consumerAdapter = kafkaConsumer
			closers = append(closers, kafkaConsumer)
		}
	}
	outbox := eventadapter.NewOutboxWorker(logger, repos.Outbox, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	consumer := eventadapter.NewConsumerWorker(logger, consumerAdapter, service, cfg.ConsumerPollInterval)
	sweeper := eventadapter.NewSweepWorker(logger, service, cfg.SweepInterval)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		consumer:   consumer,
		sweeper:    sweeper,
		cleanupFn: func(ctx context.Context) {
			for _, closer := range closers {
				_ = closer.Close()
			}
			if redisCloser != nil {
				_ = redisCloser.Close()
			}
			_ = sqlDB.Close()
		},
	}, nil
}

func Build(ctx context.Context, configPath string) (*Runtime, error) {
	return NewRuntime(ctx, configPath)
}

func logEscalation(logger *slog.Logger) application.EscalationFunc {
	return func(ctx context.Context, campaign *domain.Campaign) {
		logger.WarnContext(ctx, "campaign needs human attention",
			"module", "bootstrap",
			"operation", "escalation",
			"campaign_id", campaign.CampaignID,
			"assignment_id", campaign.AssignmentID,
			"status", campaign.Status,
			"reason", campaign.EscalationReason,
			"contacted", campaign.ContactedCount,
			"responded", campaign.RespondedCount,
		)
	}
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 2)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 3)

	go func() {
		if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		r.cleanupFn(context.Background())
		return err
	}
}
