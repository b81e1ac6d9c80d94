// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/auth"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/config"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/database"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/events"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/handler"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/metrics"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/obs"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/payment"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository/memory"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository/mongodb"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository/postgres"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/service"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"

	serviceName    = "rhythmax-server"
	serviceVersion = "0.1.0"
)

// stores bundles the three collections of whichever backend is configured.
type stores struct {
	classes  service.ClassStore
	users    service.UserStore
	bookings service.BookingStore
	close    func(context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting", slog.String("env", cfg.Env), slog.String("store", cfg.Store))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// ── 1. Tracing ─────────────────────────────────────────────────────────
	if cfg.OTLPEndpoint != "" {
		shutdown, err := obs.InitTracer(ctx, serviceName, serviceVersion, cfg.Env, cfg.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("tracer: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warn("tracer shutdown", slog.Any("error", err))
			}
		}()
	}

	// ── 2. Connect to the store ───────────────────────────────────────────
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(cctx); err != nil {
			log.Warn("close store", slog.Any("error", err))
		}
	}()

	// ── 3. Messaging ──────────────────────────────────────────────────────
	var publisher interface {
		service.EventPublisher
		Close() error
	} = events.Nop{}
	if cfg.Rabbit.URL != "" {
		p, err := events.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.BookingExchange)
		if err != nil {
			return fmt.Errorf("event publisher: %w", err)
		}
		publisher = p
		log.Info("publishing booking events", slog.String("exchange", cfg.Rabbit.BookingExchange))
	}
	defer publisher.Close()

	// ── 4. Wire up layers ────────────────────────────────────────────────
	issuer := auth.NewIssuer(cfg.AccessTokenSecret, cfg.TokenTTL)

	var gateway service.PaymentGateway
	if cfg.Payment.Enabled() {
		pc, err := payment.NewClient(cfg.Payment.PublicKey, cfg.Payment.SecretKey, cfg.Payment.SourceType)
		if err != nil {
			return err
		}
		gateway = pc
	} else {
		log.Warn("payment keys not set, payment intents disabled")
	}

	catalogSvc := service.NewCatalogService(st.classes, log)
	identitySvc := service.NewIdentityService(st.users, issuer, log)
	bookingSvc := service.NewBookingService(st.bookings, st.classes, publisher, log)
	paymentSvc := service.NewPaymentService(gateway, cfg.Payment.Currency, log)

	if cfg.Rabbit.URL != "" {
		consumer, err := events.NewConsumer(cfg.Rabbit.URL, cfg.Rabbit.PaymentExchange, cfg.Rabbit.PaymentQueue, cfg.Rabbit.MaxAttempts, bookingSvc, log)
		if err != nil {
			return fmt.Errorf("payment consumer: %w", err)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error("payment consumer stopped", slog.Any("error", err))
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	h := handler.NewHandler(catalogSvc, identitySvc, bookingSvc, paymentSvc, log)
	router := handler.NewRouter(h, issuer, log, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, error) {
	switch cfg.Store {
	case config.DriverMongo:
		client, db, err := database.NewMongo(ctx, cfg.Mongo, log)
		if err != nil {
			return nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		log.Info("connected to mongodb", slog.String("database", cfg.Mongo.Database))
		return &stores{
			classes:  mongodb.NewClassRepository(db),
			users:    mongodb.NewUserRepository(db),
			bookings: mongodb.NewBookingRepository(db, log),
			close:    client.Disconnect,
		}, nil

	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("connected to postgres")
		return &stores{
			classes:  postgres.NewClassRepository(pool),
			users:    postgres.NewUserRepository(pool),
			bookings: postgres.NewBookingRepository(pool),
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	default:
		log.Warn("using in-memory store, data is lost on exit")
		m := memory.New()
		return &stores{
			classes:  m.Classes(),
			users:    m.Users(),
			bookings: m.Bookings(),
			close:    func(context.Context) error { return nil },
		}, nil
	}
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
