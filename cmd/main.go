package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/channel"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/consumer"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/handler"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/middleware"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/repository"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/scheduler"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/service"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/config"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/mongodb"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/rabbitmq"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/redis"
)

// store is everything the services need from the persistence layer
type store interface {
	scheduler.Store
	service.ScheduledMessageStore
	service.WebhookStore
	channel.CredentialStore
}

func main() {
	// Initialize logger
	log := logger.NewLogger()
	defer log.Sync()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	if l, err := logger.New(cfg.Log.Level, cfg.Log.Format); err == nil {
		log = l
		defer log.Sync()
	} else {
		log.Warn("Invalid log configuration, keeping defaults", "error", err)
	}

	log.Info("Starting WhatsApp Automation Service...", "store", cfg.Store.Driver)

	// Initialize store
	var (
		st    store
		ready handler.Pinger
	)
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		mongoClient, err := mongodb.NewMongoClient(cfg.MongoDB.URI, cfg.MongoDB.Database)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", "error", err)
		}
		defer mongoClient.Disconnect(context.Background())

		mongoStore := repository.NewMongoStore(mongoClient)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			log.Error("Failed to create indexes", "error", err)
		}
		cancel()

		st, ready = mongoStore, mongoClient
	default:
		log.Warn("Using in-memory store, data will not survive a restart")
		st = repository.NewMemoryStore()
	}

	// Credential cache is optional
	var credentialCache channel.CredentialCache
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("Failed to connect to Redis", "error", err)
		}
		defer rdb.Close()
		credentialCache = channel.NewRedisCredentialCache(rdb, cfg.Redis.CredentialTTL)
	}

	// Initialize services
	credentials := channel.NewCredentialService(st, credentialCache, log)
	gateway := channel.NewBridgeClient(cfg.Channel.BridgeURL, cfg.Channel.Timeout, log)

	schedulingService := service.NewSchedulingService(st, log)
	webhookService := service.NewWebhookService(st, service.WebhookConfig{
		Workers:   cfg.Webhook.Workers,
		QueueSize: cfg.Webhook.QueueSize,
		Timeout:   cfg.Webhook.Timeout,
		UserAgent: cfg.Webhook.UserAgent,
	}, log)
	webhookService.Start()

	messageScheduler, err := scheduler.NewMessageScheduler(cfg.Scheduler.Spec, st, credentials, gateway, log)
	if err != nil {
		log.Fatal("Failed to create scheduler", "error", err)
	}
	messageScheduler.SetEventPublisher(webhookService)

	// Domain events from the message bus are optional
	ctx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	if cfg.RabbitMQ.URL != "" {
		rabbitMQClient, err := rabbitmq.NewRabbitMQClient(cfg.RabbitMQ.URL)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		defer rabbitMQClient.Close()

		// message.sent events go through the bus when one is configured
		messageScheduler.SetEventPublisher(consumer.NewEventPublisher(rabbitMQClient, cfg.RabbitMQ.Exchange))

		eventConsumer := consumer.NewEventConsumer(rabbitMQClient, webhookService, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, log)
		go func() {
			defer close(consumerDone)
			if err := eventConsumer.Run(ctx); err != nil {
				log.Error("Event consumer stopped", "error", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	messageScheduler.Start()

	// Initialize HTTP handlers
	handlers := handler.Handlers{
		Schedule: handler.NewScheduleHandler(schedulingService, log),
		Webhook:  handler.NewWebhookHandler(webhookService, log),
		Event:    handler.NewEventHandler(webhookService, log),
		Settings: handler.NewSettingsHandler(credentials, log),
	}
	rateLimiter := middleware.NewTeamRateLimiter(cfg.RateLimit.PerTeam, cfg.RateLimit.Burst)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handlers, rateLimiter, ready)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("WhatsApp Automation Service started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down WhatsApp Automation Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	messageScheduler.Stop()
	stopConsumer()
	<-consumerDone
	webhookService.Stop()

	log.Info("WhatsApp Automation Service stopped")
}
