package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"meetsync/internal/calendarsvc"
	"meetsync/internal/calendarsvc/api"
	"meetsync/internal/calendarsvc/db"
	calevents "meetsync/internal/calendarsvc/events"
	"meetsync/internal/calendarsvc/provider"
	"meetsync/internal/config"
	"meetsync/internal/events"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("loading .env: %v", err)
	}

	var cfg config.CalendarService
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	service := calendarsvc.New(database, provider.NewClient(cfg.ProviderURL))
	handler := api.NewHandler(service)

	var consumer *events.Consumer
	if cfg.NatsURL == "" {
		slog.Warn("NATS_URL not set, user state events will not be consumed")
	} else {
		consumer, err = events.NewConsumer(events.ConsumerConfig{
			NatsURL:      cfg.NatsURL,
			ConsumerName: cfg.ConsumerName,
			Handler:      calevents.NewHandler(database),
		})
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		if err := consumer.Start(context.Background()); err != nil {
			log.Fatalf("failed to start consumer: %v", err)
		}
		slog.Info("user state consumer started", "consumer", cfg.ConsumerName)
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutting down")
		if consumer != nil {
			consumer.Stop()
		}
		server.Close()
	}()

	slog.Info("calendar service listening", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server stopped: %v", err)
	}
}
