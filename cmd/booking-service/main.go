package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/api"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/eventlog"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/outbox"
	"ms-booking/internal/payment"
	paymenthandler "ms-booking/internal/payment/handler"
	paymentredis "ms-booking/internal/payment/redis"
	"ms-booking/internal/payment/services"
	"ms-booking/internal/payment/storage"
	"ms-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	// --- PostgreSQL ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN()))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), log)
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	defer redisClient.Close()

	// --- Kafka ---
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.LifecycleTopic}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Failed to ensure topics: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
	} else {
		log.Warn("KAFKA", "Kafka disabled, lifecycle events will not be published")
	}

	// --- Ledger services ---
	dbLayer := &bookingdb.DB{Bun: bunDB}
	eventLog := &eventlog.Log{Bun: bunDB}
	box := outbox.New(bunDB, cfg.Outbox.MaxAttempts)

	var publisher booking.LifecyclePublisher
	if producer != nil {
		publisher = producer
	}
	bookingService := booking.NewService(dbLayer, eventLog, publisher, cfg.Kafka.LifecycleTopic, log)

	// --- Payment reconciler ---
	gateway, err := services.NewStripeGateway(cfg.Gateway, log)
	if err != nil {
		log.Fatal("GATEWAY", fmt.Sprintf("Failed to initialize payment gateway: %v", err))
	}
	paymentStore, err := storage.NewPostgreSQLStoreWithDB(sqldb, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to initialize payment store: %v", err))
	}
	guard := paymentredis.NewGuard(redisClient)
	reconciler := payment.NewReconciler(bookingService, gateway, paymentStore, guard, cfg.Gateway.Name, cfg.Gateway.WebhookSecret, log)

	// --- Outbox worker ---
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	worker := outbox.NewWorker(box, &outbox.LogSender{Logger: log}, 5*time.Second, 50, log)
	go worker.Run(workerCtx)

	// --- Router ---
	bookingHandler := api.NewHandler(bookingService, log)
	payHandler := paymenthandler.NewHandler(reconciler, log)

	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if err := sqldb.Ping(); err != nil {
			utils.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		utils.WriteSuccess(w, map[string]string{"status": "ok"})
	})

	// Webhook authenticates by signature, not bearer token.
	r.Post("/payments/webhook", payHandler.HandleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))

		r.Post("/bookings", bookingHandler.CreateBooking)
		r.Get("/bookings", bookingHandler.ListBookings)
		r.Get("/bookings/{bookingId}", bookingHandler.GetBooking)
		r.Post("/bookings/{bookingId}/cancel", bookingHandler.Cancel)
		r.Post("/bookings/{bookingId}/reschedule", bookingHandler.Reschedule)
		r.Post("/bookings/{bookingId}/return", bookingHandler.RequestReturn)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/bookings/{bookingId}/return/approve", bookingHandler.ApproveReturn)
			r.Post("/bookings/{bookingId}/return/reject", bookingHandler.RejectReturn)
			r.Post("/bookings/{bookingId}/return/complete", bookingHandler.CompleteReturn)
			r.Post("/bookings/{bookingId}/refund", bookingHandler.Refund)
		})

		r.Post("/payments/order", payHandler.CreateOrder)
		r.Get("/bookings/{bookingId}/payments", payHandler.ListPayments)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Booking ledger service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "Shutdown signal received, cleaning up")

	stopWorker()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("SERVER", fmt.Sprintf("Server forced to shutdown: %v", err))
	}
	log.Info("SERVER", "Server exited gracefully")
}
