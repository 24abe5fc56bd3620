package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/salonbase/noshow-engine/internal/api/router"
	"github.com/salonbase/noshow-engine/internal/booking"
	"github.com/salonbase/noshow-engine/internal/channels"
	appconfig "github.com/salonbase/noshow-engine/internal/config"
	"github.com/salonbase/noshow-engine/internal/intervention"
	"github.com/salonbase/noshow-engine/internal/observability/metrics"
	"github.com/salonbase/noshow-engine/internal/prediction"
	"github.com/salonbase/noshow-engine/internal/retention"
	"github.com/salonbase/noshow-engine/internal/risk"
	"github.com/salonbase/noshow-engine/internal/templates"
	"github.com/salonbase/noshow-engine/pkg/logging"
)

func main() {
	// Load .env in development; in production config comes from the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting noshow-engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to ping redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = redisClient.Close() }()
	}

	m := metrics.NewRetentionMetrics(prometheus.DefaultRegisterer)

	thresholds := risk.Thresholds{
		Medium:   cfg.RiskThresholdMedium,
		High:     cfg.RiskThresholdHigh,
		Severe:   cfg.RiskThresholdSevere,
		Critical: cfg.RiskThresholdCritical,
	}
	scorer := risk.NewScorer(
		risk.ProfileWeights{
			Reliability: cfg.ProfileWeightReliability,
			Engagement:  cfg.ProfileWeightEngagement,
			Recency:     cfg.ProfileWeightRecency,
			Value:       cfg.ProfileWeightValue,
			Loyalty:     cfg.ProfileWeightLoyalty,
		},
		thresholds,
		risk.EventDeltas{
			AppointmentCompleted: cfg.DeltaAppointmentCompleted,
			NoShow:               cfg.DeltaNoShow,
			Cancellation:         cfg.DeltaCancellation,
			Payment:              cfg.DeltaPayment,
			Engagement:           cfg.DeltaEngagement,
		},
		risk.DefaultSegments(),
		nil,
		logger,
	)
	predictor := prediction.New(prediction.Weights{
		History:    cfg.PredictionWeightHistory,
		Booking:    cfg.PredictionWeightBooking,
		Engagement: cfg.PredictionWeightEngagement,
		External:   cfg.PredictionWeightExternal,
		Temporal:   cfg.PredictionWeightTemporal,
	}, thresholds, nil, logger)

	profileStore := risk.NewStore(pool, scorer)
	executionStore := intervention.NewExecutionStore(pool)

	var lastExec intervention.LastExecutionSource = executionStore
	var cooldowns retention.CooldownRecorder
	if redisClient != nil {
		cache := intervention.NewCooldownCache(redisClient, executionStore, cfg.CooldownCacheTTL, logger)
		lastExec = cache
		cooldowns = cache
	}

	engine := intervention.NewEngine(intervention.DefaultRules(), lastExec, nil, logger)

	senders := channels.NewRegistry(logger)
	logSender := channels.NewLogSender(logger, nil)
	senders.Set(logSender,
		channels.ChannelWhatsApp, channels.ChannelSMS, channels.ChannelEmail,
		channels.ChannelPhoneCall, channels.ChannelPaymentRequest,
		channels.ChannelIncentiveOffer, channels.ChannelConfirmation,
	)
	if cfg.TelnyxAPIKey != "" {
		telnyx, err := channels.NewTelnyxSender(channels.TelnyxConfig{
			APIKey:             cfg.TelnyxAPIKey,
			MessagingProfileID: cfg.TelnyxMessagingProfileID,
			BaseURL:            cfg.TelnyxBaseURL,
			FromNumber:         cfg.BusinessPhone,
		}, logger)
		if err != nil {
			logger.Error("failed to configure telnyx sender", "error", err)
			os.Exit(1)
		}
		// Telnyx outages fall back to the log sender instead of failing
		// the whole action.
		sms := channels.NewFailoverSender(telnyx, "telnyx", logSender, "log", logger)
		senders.Set(sms, channels.ChannelSMS, channels.ChannelWhatsApp)
	}
	if sendgridSender := channels.NewSendGridSender(channels.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sendgridSender != nil {
		senders.Set(sendgridSender, channels.ChannelEmail)
	}

	registry := templates.NewRegistry(logger)
	dispatcher := intervention.NewDispatcher(senders, registry, cfg.ChannelSendTimeout, m, nil, logger)

	business := booking.Business{
		Name:    cfg.BusinessName,
		Phone:   cfg.BusinessPhone,
		Address: cfg.BusinessAddress,
	}
	snapshots := retention.NewPGSnapshots(pool, business)
	service := retention.NewService(snapshots, predictor, scorer, profileStore, engine, dispatcher, executionStore, cooldowns, snapshots, m, logger)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if cfg.WorkerEnabled {
		worker := retention.NewWorker(service, cfg.WorkerPollInterval,
			time.Duration(cfg.WorkerWindowHours)*time.Hour, nil, logger)
		go worker.Run(workerCtx)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		RetentionHandler:   retention.NewHandler(service, profileStore, snapshots, engine, logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:          cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
