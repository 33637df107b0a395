package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	"github.com/ariefcatur/go-pharmacy-store/internal/cart"
	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
	"github.com/ariefcatur/go-pharmacy-store/internal/config"
	"github.com/ariefcatur/go-pharmacy-store/internal/httpx"
	kafkax "github.com/ariefcatur/go-pharmacy-store/internal/kafka"
	"github.com/ariefcatur/go-pharmacy-store/internal/memstore"
	"github.com/ariefcatur/go-pharmacy-store/internal/orders"
	"github.com/ariefcatur/go-pharmacy-store/internal/postgres"
	"github.com/ariefcatur/go-pharmacy-store/internal/redisx"
	"github.com/joho/godotenv"
)

type stores struct {
	catalog catalog.Repository
	orders  interface {
		orders.TxRunner
		orders.Reader
	}
	users auth.UserStore
	close func()
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Println("store: in-memory, data is lost on exit")
		m := memstore.New()
		return stores{catalog: m, orders: m, users: m, close: func() {}}, nil
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return stores{}, err
		}
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return stores{}, err
			}
		}
		return stores{
			catalog: &catalog.Repo{DB: db},
			orders:  &orders.Repo{DB: db},
			users:   &auth.Repo{DB: db},
			close:   db.Close,
		}, nil
	default:
		return stores{}, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
	}
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.close()

	// Redis: sessions and carts
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	authSvc := &auth.Service{Users: st.users}
	if cfg.AdminUsername != "" {
		if _, err := authSvc.EnsureStaff(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			log.Fatalf("staff bootstrap: %v", err)
		}
	}

	// Kafka producer
	var prod *kafkax.Producer
	h := &httpx.Handler{
		Catalog:      st.catalog,
		Orders:       st.orders,
		Finalizer:    &orders.Finalizer{Store: st.orders},
		Carts:        &cart.RedisStore{Redis: rdb, TTL: cfg.SessionTTL},
		Redis:        rdb,
		Auth:         authSvc,
		Sessions:     &auth.SessionStore{Redis: rdb, TTL: cfg.SessionTTL},
		Users:        st.users,
		Service:      cfg.ServiceName,
		CookieSecure: cfg.CookieSecure,
	}
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
		prod.Start(context.Background())
		h.Events = prod
	} else {
		log.Println("kafka: no brokers configured, order events are not published")
	}

	router := httpx.NewRouter()
	h.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if prod != nil {
		// handlers still running after a failed Shutdown get their events dropped
		prod.Close()
		prod.WaitClosed()
	}
	cancel()
}
