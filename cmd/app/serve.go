package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pix-subscription/internal/config"
	"pix-subscription/internal/domain/ports/adapter"
	"pix-subscription/internal/infra/api"
	"pix-subscription/internal/infra/api/apiv1"
	"pix-subscription/internal/infra/i18n"
	"pix-subscription/internal/infra/logging"
	"pix-subscription/internal/infra/metrics"
	"pix-subscription/internal/infra/notify"
	"pix-subscription/internal/infra/payment"
	red "pix-subscription/internal/infra/redis"
	"pix-subscription/internal/infra/sched"
	"pix-subscription/internal/infra/security"
	"pix-subscription/internal/infra/worker"
	"pix-subscription/internal/usecase"
)

func serveCmd(cfgPath *string) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before starting")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, migrate bool) error {
	logger := logging.New(cfg.Log)
	metrics.MustRegister()
	metrics.SetBuildInfo(Version, Commit)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Storage ----
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.close()
	if migrate {
		if err := st.migrate(ctx); err != nil {
			return err
		}
	}
	go st.stats(ctx, 15*time.Second)
	if key := cfg.Security.EncryptionKey; key != "" {
		enc, err := security.NewEncryptionService(key)
		if err != nil {
			return err
		}
		st.transactions = security.NewSealedTransactions(st.transactions, enc)
	}

	// ---- Redis (optional) ----
	var (
		limiter apiv1.RateLimiter
		locker  sched.Locker
		pingers = []api.HealthCheck{st.ping}
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		limiter = red.NewRateLimiter(rc, cfg.Security.CheckRateLimit, time.Minute)
		locker = red.NewLocker(rc, 3)
		pingers = append(pingers, rc.Ping)
	} else {
		logger.Warn().Msg("redis not configured: check rate limiting off, expiry sweep runs without a lock")
	}

	// ---- Gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Gateway.BaseURL == payment.SandboxBaseURL {
		logger.Warn().Msg("using in-memory sandbox gateway")
		gateway = payment.NewSandboxGateway()
	} else {
		gateway, err = payment.NewPixGateway(cfg.Gateway, logger)
		if err != nil {
			return err
		}
	}

	// ---- Notifications ----
	pool := worker.NewPool(cfg.Notify.Workers, cfg.Notify.Queue, logger)
	pool.Start(ctx)
	defer pool.Stop()
	notifier, closeNotifier, err := buildNotifier(cfg.Notify, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()
	dispatcher := notify.NewAsyncDispatcher(pool, notifier, cfg.Notify.Timeout, logger)

	// ---- Use cases ----
	plans, err := cfg.PlanCatalog()
	if err != nil {
		return err
	}
	split, err := cfg.SplitCalculator()
	if err != nil {
		return err
	}
	activation := usecase.NewActivationService(st.users, plans, logger)
	reconciler := metrics.NewInstrumentedReconciler(
		usecase.NewReconcileUseCase(st.tm, st.transactions, st.users, st.billing, activation, dispatcher, logger))
	checker := usecase.NewCheckUseCase(st.transactions, gateway, reconciler, logger)
	checkout := usecase.NewCheckoutUseCase(st.transactions, st.users, gateway, split, plans,
		cfg.Gateway.WebhookURL, cfg.Payment.TTL, logger)

	// ---- Background workers ----
	stale := sched.NewPaymentReconciler(checker, st.transactions,
		cfg.Payment.ReconcileInterval, cfg.Payment.StaleAfter, cfg.Payment.BatchSize, logger)
	expiry := sched.NewExpiryWorker(cfg.Payment.ExpiryInterval, cfg.Payment.ExpiryGrace, cfg.Payment.BatchSize,
		st.transactions, locker, logger)
	go func() { _ = stale.Run(ctx) }()
	go func() { _ = expiry.Run(ctx) }()

	// ---- HTTP ----
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}
	v1 := apiv1.NewServer(checkout, reconciler, checker, apiv1.Options{
		WebhookPath:   cfg.WebhookPath(),
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Limiter:       limiter,
		Tokens:        apiv1.NewCheckTokens(cfg.Security.CheckTokenSecret, cfg.Security.CheckTokenTTL),
	}, logger)
	router := api.NewRouter(cfg.HTTP, v1, allHealthy(pingers), logger)
	server := api.NewServer(cfg.HTTP, router, logger)

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()
	logger.Info().
		Str("version", Version).
		Str("driver", cfg.Database.Driver).
		Str("gateway", gateway.Name()).
		Str("webhook_path", cfg.WebhookPath()).
		Int("notify_channels", notifier.Len()).
		Msg("service started")

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// buildNotifier enables every channel whose settings are present.
func buildNotifier(cfg config.NotifyConfig, logger *zerolog.Logger) (*notify.Multi, func(), error) {
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Language)
	if err != nil {
		return nil, nil, err
	}
	var (
		channels []adapter.Notifier
		closers  []func() error
	)
	if cfg.SMTP.Host != "" {
		channels = append(channels, notify.NewMailNotifier(cfg.SMTP, tr))
	}
	if cfg.AMQP.URL != "" {
		pub, err := notify.NewEventPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			return nil, nil, err
		}
		channels = append(channels, pub)
		closers = append(closers, pub.Close)
	}
	if cfg.Telegram.Token != "" {
		alert, err := notify.NewAdminAlert(cfg.Telegram, tr)
		if err != nil {
			return nil, nil, err
		}
		channels = append(channels, alert)
	}
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	return notify.NewMulti(channels...), closeAll, nil
}

func allHealthy(checks []api.HealthCheck) api.HealthCheck {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
