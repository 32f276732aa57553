package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"deskbridge/internal/awsutil"
	"deskbridge/internal/config"
	"deskbridge/internal/delivery"
	"deskbridge/internal/httpserver"
	"deskbridge/internal/ingest"
	"deskbridge/internal/logging"
	"deskbridge/internal/namecache"
	"deskbridge/internal/observability"
	"deskbridge/internal/platform"
	sqsqueue "deskbridge/internal/queue/sqs"
	"deskbridge/internal/store"
	"deskbridge/internal/store/pg"
)

func main() {
	cfg := config.LoadGateway()
	logging.Init("gateway", cfg.LogFormat)

	mode, err := ingest.ParseExecutionMode(cfg.ExecutionMode)
	if err != nil {
		slog.Error("gateway config invalid", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBPoolMaxConns,
		MinConns:          cfg.DBPoolMinConns,
		MaxConnLifetime:   cfg.DBPoolMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPoolMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPoolHealthCheckPeriod,
	})
	if err != nil {
		slog.Error("gateway db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	dbStore := pg.New(db)

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("gateway sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	adapterOpts := platform.Options{
		HTTP:    &http.Client{Timeout: 8 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(cfg.PlatformRPSPerPod), cfg.PlatformBurst),
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "platform-api",
			MaxRequests: 3,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		}),
	}
	adapters := func(in store.Installation) (platform.Adapter, error) {
		return platform.ForInstallation(in, adapterOpts)
	}

	fanout := &delivery.Fanout{
		Store: dbStore,
		Queue: &sqsqueue.DeliveryProducer{SQS: sqsClient, QueueURL: cfg.DeliveryQueueURL},
	}
	processor := &ingest.Processor{
		Store:    dbStore,
		Adapters: adapters,
		Names:    namecache.New(cfg.RedisAddr),
		Emitter:  fanout,
	}
	dispatcher := &ingest.Dispatcher{
		Mode:        mode,
		Processor:   processor,
		Queue:       &sqsqueue.EventProducer{SQS: sqsClient, QueueURL: cfg.EventQueueURL},
		DeadLetters: dbStore,
	}
	toggler := &ingest.StatusToggler{
		Store:    dbStore,
		Adapters: adapters,
		Emitter:  fanout,
	}

	s := httpserver.New()
	gw := &httpserver.Gateway{
		SlackSigningSecret: cfg.SlackSigningSecret,
		DiscordPublicKey:   cfg.DiscordPublicKey,
		TelegramPath:       cfg.TelegramWebhookPath,
		Store:              dbStore,
		Dispatcher:         dispatcher,
		Toggler:            toggler,
	}
	gw.Register(s.Mux)

	s.Mux.HandleFunc("/healthz", httpserver.Healthz()).Methods(http.MethodGet)
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(ctx context.Context) error {
		return db.Ping(ctx)
	})).Methods(http.MethodGet)

	handler := httpserver.Logging(httpserver.Metrics(s.Mux))
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}

	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("gateway metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("gateway shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway listening", "port", cfg.Port, "mode", mode.String())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("gateway server failed", "err", err)
		os.Exit(1)
	}
}
