package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront-payments/internal/auth"
	"github.com/ariefcatur/go-storefront-payments/internal/catalog"
	"github.com/ariefcatur/go-storefront-payments/internal/checkout"
	"github.com/ariefcatur/go-storefront-payments/internal/config"
	"github.com/ariefcatur/go-storefront-payments/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-payments/internal/kafka"
	"github.com/ariefcatur/go-storefront-payments/internal/orders"
	"github.com/ariefcatur/go-storefront-payments/internal/payment"
	"github.com/ariefcatur/go-storefront-payments/internal/postgres"
	"github.com/ariefcatur/go-storefront-payments/internal/redisx"
	"github.com/ariefcatur/go-storefront-payments/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for settlement events
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderSettled, 1024)
	prod.Start(ctx)
	notifier := &orders.KafkaNotifier{Producer: prod, Service: cfg.ServiceName}

	// Payment gateway: explicit config, no env singleton
	provider := payment.NewRESTProvider(payment.Config{
		BaseURL:   cfg.ProviderBaseURL,
		SecretKey: cfg.ProviderSecretKey,
		PublicKey: cfg.ProviderPublicKey,
	})

	orderRepo := &orders.Repo{DB: db}
	catalogRepo := &catalog.Repo{DB: db}
	resolver := &auth.Resolver{Secret: cfg.JWTSecret}

	svc := &checkout.Service{
		Store:    orderRepo,
		Catalog:  catalogRepo,
		Provider: provider,
		Notifier: notifier,
		BaseURL:  cfg.SiteBaseURL,
	}
	rec := &webhook.Reconciler{
		Store:    orderRepo,
		Cache:    &webhook.RedisCache{Client: rdb},
		Secret:   cfg.WebhookSecret,
		Notifier: notifier,
	}

	router := httpx.NewRouter()
	(&httpx.CheckoutHandler{Service: svc, Auth: resolver}).Register(router)
	(&httpx.WebhookHandler{Reconciler: rec}).Register(router)
	(&httpx.OrdersHandler{Repo: orderRepo, Catalog: catalogRepo, Auth: resolver, Redis: rdb}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

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
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inbox -> flush & close writer
	prod.WaitClosed()
}
