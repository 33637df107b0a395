package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
	"github.com/ariefcatur/go-pharmacy-store/internal/config"
	kafkax "github.com/ariefcatur/go-pharmacy-store/internal/kafka"
	"github.com/ariefcatur/go-pharmacy-store/internal/notify"
	"github.com/ariefcatur/go-pharmacy-store/internal/orders"
	"github.com/ariefcatur/go-pharmacy-store/internal/postgres"
	"github.com/ariefcatur/go-pharmacy-store/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the worker reads what the API committed, so it always needs Postgres
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis: event dedup
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SESSender != "" {
		m, err := notify.NewSESMailer(ctx, cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretKey, cfg.SESSender)
		if err != nil {
			log.Fatalf("ses: %v", err)
		}
		mailer = m
	}

	// not tied to ctx: it must outlive the consumer and flush on Close
	pLow := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockLow, 1024)
	pLow.Start(context.Background())

	svc := &notify.Service{
		Catalog:     &catalog.Repo{DB: db},
		Users:       &auth.Repo{DB: db},
		Redis:       rdb,
		StockLow:    pLow,
		Mailer:      mailer,
		Threshold:   cfg.LowStockThreshold,
		ServiceName: cfg.ServiceName + "-notify",
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, orders.TopicOrderPlaced, cfg.WorkerCount)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("notify consumer started: group=%s topic=%s workers=%d", cfg.WorkerGroup, orders.TopicOrderPlaced, cfg.WorkerCount)
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	<-done // workers finished, nothing publishes anymore
	pLow.Close() // flushes what the last handlers published
	pLow.WaitClosed()
}
