package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bulletops/bullet/internal/config"
	"github.com/bulletops/bullet/internal/database"
	"github.com/bulletops/bullet/internal/escalate"
	"github.com/bulletops/bullet/internal/httpapi"
	"github.com/bulletops/bullet/internal/intake"
	"github.com/bulletops/bullet/internal/notify"
	"github.com/bulletops/bullet/internal/source"
	"github.com/bulletops/bullet/internal/store"
	"github.com/bulletops/bullet/internal/telemetry"
)

func main() {
	settings := config.Load()

	if err := telemetry.InitGlobalLogger(&telemetry.LogConfig{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		Output: "stdout",
	}); err != nil {
		panic(err)
	}
	logger := telemetry.GetGlobalLogger()

	db, err := database.NewInstrumentedConnection(database.Config{
		Host:     settings.DBHost,
		Port:     settings.DBPort,
		User:     settings.DBUser,
		Password: settings.DBPassword,
		DBName:   settings.DBName,
		SSLMode:  settings.DBSSLMode,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	st := store.New(db.DB)
	if err := st.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}
	if err := st.Templates.EnsureBuiltins(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to seed builtin templates")
	}

	dispatcher := notify.NewDispatcher(st, settings)
	registry := source.NewRegistry()
	intakeService := intake.NewService(st.Tickets, st.Groups, dispatcher, registry)

	scheduler := escalate.NewScheduler(st.Projects, st.Tickets, st.Groups, dispatcher,
		settings.EscalationCheckInterval)
	scheduler.Start()
	defer scheduler.Stop()

	server := httpapi.NewServer(st, dispatcher, intakeService, db)
	httpServer := &http.Server{
		Addr:              settings.Host + ":" + settings.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
}
