package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"meetsync/internal/config"
	"meetsync/internal/events"
	"meetsync/internal/usersvc"
	"meetsync/internal/usersvc/api"
	"meetsync/internal/usersvc/db"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("loading .env: %v", err)
	}

	var cfg config.UserService
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	var publisher *events.Publisher
	if cfg.NatsURL == "" {
		slog.Warn("NATS_URL not set, user state events will not be published")
	} else {
		publisher, err = events.NewPublisher(cfg.NatsURL)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer publisher.Close()
	}

	service := newService(database, publisher)
	handler := api.NewHandler(service)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutting down")
		server.Close()
	}()

	slog.Info("user service listening", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server stopped: %v", err)
	}
}

// newService keeps the publisher interface nil when NATS is absent; a typed
// nil *events.Publisher would defeat the service's nil check.
func newService(database *db.DB, publisher *events.Publisher) *usersvc.Service {
	if publisher == nil {
		return usersvc.New(database, nil)
	}
	return usersvc.New(database, publisher)
}
