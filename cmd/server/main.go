package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/venuegate/ticket-admission/internal/config"
	"github.com/venuegate/ticket-admission/internal/database"
	"github.com/venuegate/ticket-admission/internal/handler"
	"github.com/venuegate/ticket-admission/internal/payment"
	"github.com/venuegate/ticket-admission/internal/queue"
	"github.com/venuegate/ticket-admission/internal/repository"
	"github.com/venuegate/ticket-admission/internal/router"
	"github.com/venuegate/ticket-admission/internal/service"
	"github.com/venuegate/ticket-admission/internal/worker"
)

func main() {
	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}

	eventRepo := repository.NewEventRepo(db)
	queueRepo := repository.NewQueueRepo(db)
	cartRepo := repository.NewCartRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	inventoryRepo := repository.NewInventoryRepo(db)

	gateway := payment.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewaySecret)
	publisher := queue.NewPublisher(cfg.RabbitURL)
	defer publisher.Close()

	queueSvc := service.NewQueueService(db, eventRepo, queueRepo, publisher)
	cartSvc := service.NewCartService(db, eventRepo, queueRepo, cartRepo, inventoryRepo, publisher, cfg.CartHoldTTL, cfg.CartMaxHold)
	checkoutSvc := service.NewCheckoutService(db, eventRepo, queueRepo, cartRepo, bookingRepo, inventoryRepo, gateway, publisher, cfg.Currency, cfg.PendingTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := &worker.Sweeper{
		Queue:    queueSvc,
		Carts:    cartSvc,
		Bookings: checkoutSvc,
		Interval: cfg.SweepInterval,
	}
	go sweeper.Run(ctx)

	go func() {
		if err := queue.StartNotificationConsumer(cfg.RabbitURL); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, handler.NewEventHandler(eventRepo))
	router.RegisterAPI(e,
		handler.NewQueueHandler(queueSvc),
		handler.NewCartHandler(cartSvc),
		handler.NewCheckoutHandler(checkoutSvc),
		cfg.JWTSecret,
		config.LoadRateLimitConfig(),
		rdb,
	)

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		_ = e.Shutdown(context.Background())
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Println(err)
	}
}
