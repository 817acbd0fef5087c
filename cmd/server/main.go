package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/renthive/booking-engine/internal/config"
	"github.com/renthive/booking-engine/internal/database"
	"github.com/renthive/booking-engine/internal/handler"
	"github.com/renthive/booking-engine/internal/queue"
	"github.com/renthive/booking-engine/internal/repository"
	"github.com/renthive/booking-engine/internal/router"
	"github.com/renthive/booking-engine/internal/scheduler"
	"github.com/renthive/booking-engine/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// Repositories over the shared handle.
	bookings := repository.NewBookingRepo(db)
	history := repository.NewHistoryRepo(db)
	payments := repository.NewPaymentRepo(db)
	policies := repository.NewPolicyRepo(db)
	reservations := repository.NewReservationRepo(db)
	expLogs := repository.NewExpirationLogRepo(db)
	notifLog := repository.NewNotificationLogRepo(db)
	actors := repository.NewActorRepo(db)

	dispatcher := service.NewAMQPDispatcher(cfg.AMQPURL)
	actor := service.NewSystemActor(actors, cfg.SystemActorEmail, cfg.BcryptCost)

	runner := service.NewLifecycleRunner(bookings, history, notifLog, dispatcher, actor, cfg.SweepBatchSize)
	engine := service.NewExpirationEngine(bookings, history, reservations, policies, expLogs, dispatcher, actor)
	reconciler := service.NewPaymentReconciler(payments, bookings, history, dispatcher, service.AutoApproveProvider{}, actor)

	// Background consumers: notification delivery and out-of-band payment
	// status events. Both run reconnect loops and never return in normal
	// operation.
	go func() {
		if err := queue.StartNotificationConsumer(cfg.AMQPURL); err != nil {
			log.Printf("notify-consumer stopped: %v", err)
		}
	}()
	go func() {
		if err := queue.StartPaymentConsumer(cfg.AMQPURL, reconciler); err != nil {
			log.Printf("payment-consumer stopped: %v", err)
		}
	}()

	// Redis is optional: a nil client drops the cross-instance lease and
	// the scheduler runs in single-instance mode.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, sweep lease disabled (single-instance mode)")
	}
	sched := scheduler.New(
		time.Duration(cfg.SweepIntervalSec)*time.Second,
		runner, engine, rdb,
		time.Duration(cfg.LeaseTTLSec)*time.Second,
	)
	sched.Start(context.Background())
	defer sched.Stop()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAdmin(e, handler.NewAdminHandler(runner, engine), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
