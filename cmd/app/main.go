package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"

	"studio-schedule-service/internal/cache"
	"studio-schedule-service/internal/config"
	availCheck "studio-schedule-service/internal/http-server/handlers/availability/check"
	blockCreate "studio-schedule-service/internal/http-server/handlers/blocks/create"
	blockDelete "studio-schedule-service/internal/http-server/handlers/blocks/delete"
	blockGet "studio-schedule-service/internal/http-server/handlers/blocks/get"
	blockList "studio-schedule-service/internal/http-server/handlers/blocks/list"
	blockRecurring "studio-schedule-service/internal/http-server/handlers/blocks/recurring"
	bookingCancel "studio-schedule-service/internal/http-server/handlers/bookings/cancel"
	bookingCreate "studio-schedule-service/internal/http-server/handlers/bookings/create"
	bookingGet "studio-schedule-service/internal/http-server/handlers/bookings/get"
	bookingList "studio-schedule-service/internal/http-server/handlers/bookings/list"
	bufferGet "studio-schedule-service/internal/http-server/handlers/buffers/get"
	bufferUpsert "studio-schedule-service/internal/http-server/handlers/buffers/upsert"
	calendarGet "studio-schedule-service/internal/http-server/handlers/calendar/get"
	integrationList "studio-schedule-service/internal/http-server/handlers/integrations/list"
	integrationSync "studio-schedule-service/internal/http-server/handlers/integrations/sync"
	"studio-schedule-service/internal/lock"
	svc "studio-schedule-service/internal/service"
	"studio-schedule-service/internal/storage/postgres"
	"studio-schedule-service/pkg/handlers/slogpretty"
	"studio-schedule-service/pkg/middleware/mwlogger"
	"studio-schedule-service/pkg/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locker, err := lock.NewRedisLock(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init redis lock", sl.Err(err))
		os.Exit(1)
	}

	buffers, err := cache.NewBufferCache(cfg.BufferCacheSize)
	if err != nil {
		log.Error("Failed to init buffer cache", sl.Err(err))
		os.Exit(1)
	}

	service := svc.NewService(storage, locker, buffers)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Availability Blocks
	router.Post("/availability_blocks", blockCreate.New(log, service))
	router.Post("/availability_blocks/recurring", blockRecurring.New(log, service))
	router.Get("/availability_blocks", blockList.New(log, service))
	router.Get("/availability_blocks/{id}", blockGet.New(log, service))
	router.Delete("/availability_blocks/{id}", blockDelete.New(log, service))

	// Booking Buffers
	router.Get("/booking_buffers/effective", bufferGet.New(log, service))
	router.Put("/booking_buffers", bufferUpsert.New(log, service))

	// Calendar
	router.Get("/calendar", calendarGet.New(log, service))

	// Slot Availability
	router.Post("/availability/check", availCheck.New(log, service))

	// Bookings
	router.Post("/bookings", bookingCreate.New(log, service))
	router.Get("/bookings", bookingList.New(log, service))
	router.Get("/bookings/{id}", bookingGet.New(log, service))
	router.Put("/bookings/{id}/cancel", bookingCancel.New(log, service))

	// Calendar Integrations
	router.Get("/calendar_integrations", integrationList.New(log, service))
	router.Put("/calendar_integrations/{id}/sync", integrationSync.New(log, service))

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if storage != nil {
		if err := storage.Close(); err != nil {
			log.Error("Failed to close storage", sl.Err(err))
		} else {
			log.Info("Storage closed")
		}
	}

	if locker != nil {
		if err := locker.Close(); err != nil {
			log.Error("Failed to close locker", sl.Err(err))
		} else {
			log.Info("Locker closed")
		}
	}

	log.Info("Shutdown finished, server stopped")

}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
