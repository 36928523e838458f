package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"savecircle/internal/config"
	"savecircle/internal/handler"
	"savecircle/internal/infrastructure/cache"
	"savecircle/internal/infrastructure/database"
	"savecircle/internal/infrastructure/lock"
	"savecircle/internal/infrastructure/mq"
	"savecircle/internal/job"
	"savecircle/internal/service"
	"savecircle/internal/service/gateway"
	"savecircle/pkg/idgen"
)

func main() {
	cfg := config.LoadConfig("config/config.yaml")

	idgen.Init(1)

	db := database.InitMySQL(&cfg.MySQL)

	redisClient := cache.InitRedis(&cfg.Redis)
	locks := lock.NewRedisManager(redisClient)

	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	// Processor and KYC adapters. Static stand-ins until real integrations
	// are configured.
	authorizer := gateway.StaticAuthorizer{}
	limits := gateway.StaticLimits{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	walletSvc := service.NewWalletService(db, cfg, locks, authorizer, limits)

	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	settler := job.NewWithdrawalSettler(db, cfg, walletSvc)
	go settler.Start(ctx)

	router := handler.SetupRouter(db, locks, cfg, authorizer, limits)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server start failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	log.Println("server stopped")
}
