/**
 * @description
 * This is the main entry point for the credit-service. It is responsible for
 * initializing all components of the service, including configuration,
 * database connection, Redis, the message broker, repositories, the core
 * application service, background jobs, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/jobs, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/slotpost/credit-service/internal/api"
	"github.com/slotpost/credit-service/internal/app"
	"github.com/slotpost/credit-service/internal/config"
	"github.com/slotpost/credit-service/internal/jobs"
	"github.com/slotpost/credit-service/internal/store"
	sprabbit "github.com/slotpost/credit-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting credit-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Settlement traffic is bursty around popular posting hours; keep a
	// generous pool with bounded connection lifetimes.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish events. The service only
	// publishes; a broker outage degrades to the no-op fallback.
	var producer sprabbit.Publisher
	rabbitProducer, err := sprabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &sprabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Redis backs webhook rate limiting and the dedupe fast path. Both
	// degrade gracefully when it is missing.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; webhook rate limiting disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; webhook rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; webhook rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	var webhookGuard *app.RedisWebhookGuard
	if redisClient != nil {
		webhookGuard = app.NewRedisWebhookGuard(
			redisClient,
			cfg.RedisKeyPrefix,
			time.Duration(cfg.WebhookIdempotencyTTLMin)*time.Minute,
		)
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	creditService := app.NewService(
		repository,
		producer,
		cfg.DefaultRevenueSharePercent,
		webhookGuard,
	)

	// Background jobs.
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	scheduler := jobs.NewScheduler(repository)
	if cfg.ConservationAuditEnabled {
		scheduler.Start(rootCtx)
		defer scheduler.Stop()
	} else {
		log.Println("level=warn component=bootstrap msg=\"conservation audit disabled by config\"")
	}

	// Initialize the API handlers.
	creditHandlers := api.NewCreditHandlers(creditService)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/credits", api.CreditRoutes(creditHandlers, api.RouterConfig{
		Session: api.SessionAuthOptions{
			JWKSURL:  cfg.IdentityJWKSURL,
			Audience: cfg.IdentityAudience,
			Issuer:   cfg.IdentityIssuer,
		},
		InternalAPIKey:   cfg.InternalAPIKey,
		WebhookPerMinute: cfg.WebhookRateLimitPerMinute,
	}))

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
