package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"ulascansenturk/weather-exporter/config"
	"ulascansenturk/weather-exporter/internal/api/handlers"
	"ulascansenturk/weather-exporter/internal/db/observationstore"
	"ulascansenturk/weather-exporter/internal/exitcode"
	"ulascansenturk/weather-exporter/internal/inmemorycache"
	"ulascansenturk/weather-exporter/internal/metrics"
	"ulascansenturk/weather-exporter/internal/poller"
	"ulascansenturk/weather-exporter/internal/providers"
)

const (
	cacheCleanupInterval = time.Minute

	// shutdownSlack covers the HTTP server drain and abandoned fetches
	// unwinding after the poller's grace period.
	shutdownSlack = 5 * time.Second
)

func run(parent context.Context, configFile string, verbosity int) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	conf, err := config.LoadConfig(configFile, verbosity)
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}

	log.Logger = zerolog.New(os.Stdout).
		Level(conf.ZerologLevel()).
		With().
		Str("service_name", conf.ServiceName).
		Timestamp().
		Logger()

	ctx, mainCtxStop := context.WithCancel(parent)
	defer mainCtxStop()

	registry := metrics.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	var store observationstore.Repository
	if conf.DatabaseDSN != "" {
		db, dbErr := initializeDatabase(conf.DatabaseDSN)
		if dbErr != nil {
			return &exitError{code: exitcode.StartupError, err: fmt.Errorf("failed to initialize database: %w", dbErr)}
		}
		store = observationstore.NewRepository(db)
	}

	cacheProvider := inmemorycache.NewInMemoryCacheProvider(ctx, cacheCleanupInterval)

	client := providers.NewOpenWeatherClient(providers.Options{
		APIKey:            conf.APIKey,
		BaseURL:           conf.APIBaseURL,
		Timeout:           conf.Timeout,
		RequestsPerSecond: conf.RequestsPerSecond,
		Burst:             conf.MaxConcurrency,
	})

	weatherPoller := poller.New(client, registry, cacheProvider, store, poller.Options{
		Locations:   conf.Locations,
		Unit:        conf.Units,
		Interval:    conf.Interval,
		MaxInFlight: conf.MaxConcurrency,
		GracePeriod: conf.ShutdownGrace,
	})

	listener, err := net.Listen("tcp", conf.ListenAddress())
	if err != nil {
		return &exitError{code: exitcode.StartupError, err: fmt.Errorf("failed to listen on %s: %w", conf.ListenAddress(), err)}
	}

	httpServer := &http.Server{
		Handler:           handlers.Instrument(handlers.NewMetricsHandler(registry), registry.Registerer()),
		ReadHeaderTimeout: conf.Timeout,
	}

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		if runErr := weatherPoller.Run(ctx); runErr != nil {
			log.Error().Err(runErr).Msg("poller stopped with error")
		}
	}()

	shutdownDone := handleSignals(ctx, mainCtxStop, weatherPoller.GracePeriod(), func(shutdownCtx context.Context) {
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("server shutdown failed")
		}

		select {
		case <-pollerDone:
		case <-shutdownCtx.Done():
			log.Warn().Msg("poller did not stop before the shutdown deadline")
		}
	})

	log.Info().
		Str("address", listener.Addr().String()).
		Int("locations", len(conf.Locations)).
		Str("units", conf.Units.String()).
		Msg("started exporter")

	if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		mainCtxStop()
		<-pollerDone
		return &exitError{code: exitcode.ServerError, err: fmt.Errorf("server stopped: %w", serveErr)}
	}

	<-shutdownDone
	log.Info().Msg("shutdown complete")

	return nil
}

func initializeDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&observationstore.LocationObservation{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(3 * time.Minute)

	return db, nil
}

// handleSignals cancels the main context on the first signal, or once ctx is
// done, and then runs callback. The returned channel is closed once callback
// returns. A shutdown that overruns grace plus shutdownSlack forces the
// process down.
func handleSignals(ctx context.Context, cancelCtx context.CancelFunc, grace time.Duration, callback func(context.Context)) <-chan struct{} {
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})

	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	shutdownDuration := grace + shutdownSlack

	go func() {
		defer close(done)
		defer signal.Stop(sig)

		select {
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("shutting down")
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownDuration)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()

			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Error().Dur("deadline", shutdownDuration).Msg("graceful shutdown timed out, forcing exit")
				os.Exit(exitcode.ServerError)
			}
		}()

		cancelCtx()
		callback(shutdownCtx)
	}()

	return done
}
