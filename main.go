package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	logger := SetupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := InitTraceProvider(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("unable to initialize tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	store, err := NewPostgresStore(ctx, cfg.Database.ConnString(), cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("unable to initialize store: %w", err)
	}
	defer store.Close()

	// connections are opened on demand, an unreachable database only fails requests
	if err := store.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("database not reachable yet")
	} else {
		logger.Info().Msg("Successfully connected to the database")
	}

	if cfg.Migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		logger.Info().Msg("schema applied")
	}

	publisher, err := NewPublisher(cfg.AMQP)
	if err != nil {
		return fmt.Errorf("unable to connect to broker: %w", err)
	}
	defer publisher.Close()

	h := NewHandler(store, publisher, HandlerConfig{
		BcryptCost: cfg.BcryptCost,
		Location:   cfg.Location(),
	})
	mux := NewRouter(h, logger, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(mux, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Server is running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
