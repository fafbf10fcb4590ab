package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casino-relay/internal/config"
	"casino-relay/internal/logging"
	"casino-relay/internal/relay"
	"casino-relay/internal/store"
	httptransport "casino-relay/internal/transport/http"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	defer func() { _ = logging.Close() }()

	cfg, err := config.LoadApp()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.AppConfig) error {
	deps, closeStore, err := openStores(ctx, cfg.Server)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := relay.New(cfg, deps)
	if err := svc.Init(ctx); err != nil {
		return err
	}

	r := httptransport.NewRouter(svc, cfg.Server)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown_started")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// SSE clients get their shutdown event before the listener stops
		// waiting on open streams.
		if err := svc.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("relay_shutdown_incomplete")
		}
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStores returns Postgres-backed deps when a DSN is configured and the
// in-memory defaults otherwise.
func openStores(ctx context.Context, cfg config.ServerConfig) (relay.Deps, func(), error) {
	if cfg.PostgresDSN == "" {
		log.Warn().Msg("POSTGRES_DSN not set; results kept in memory")
		return relay.Deps{}, func() {}, nil
	}
	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		return relay.Deps{}, nil, err
	}
	if err := st.Ping(ctx); err != nil {
		st.Close()
		return relay.Deps{}, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return relay.Deps{}, nil, err
	}
	return relay.Deps{Results: st, Games: st}, st.Close, nil
}
