package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/backend"
	c "github.com/fjod/go_cart/checkout-client/internal/cache"
	"github.com/fjod/go_cart/checkout-client/internal/config"
	h "github.com/fjod/go_cart/checkout-client/internal/http"
	"github.com/fjod/go_cart/checkout-client/internal/logger"
	"github.com/fjod/go_cart/checkout-client/internal/metrics"
	"github.com/fjod/go_cart/checkout-client/internal/poller"
	"github.com/fjod/go_cart/checkout-client/internal/publisher"
	s "github.com/fjod/go_cart/checkout-client/internal/service"
	"github.com/fjod/go_cart/checkout-client/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("redis connection failed", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	log.Info("redis ping succeeded", "addr", cfg.RedisAddr)

	cache := c.NewRedisCache(redisClient,
		c.WithCartTTL(cfg.CartCacheTTL),
		c.WithMarkerTTL(cfg.PaymentMarkerTTL),
	)

	sess := session.New(cache, cfg.SessionKey, log)
	if err := sess.Load(ctx); err != nil {
		log.Warn("session not loaded, continuing as guest", "error", err)
	}

	flowMetrics := metrics.NewFlowMetrics(prometheus.DefaultRegisterer)

	client := backend.NewClient(backend.Options{
		BaseURL:            cfg.BackendURL,
		Timeout:            cfg.RequestTimeout,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
		Tokens:             sess,
		Observer:           flowMetrics,
		OnUnauthorized: func(ctx context.Context) {
			if err := sess.Clear(ctx); err != nil {
				log.WarnContext(ctx, "failed to clear session after 401", "error", err)
			}
		},
	}, log)

	var events publisher.Publisher = publisher.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		events = publisher.NewKafkaPublisher(cfg.FlowEventsTopic, cfg.KafkaBrokers...)
		log.Info("publishing flow events", "topic", cfg.FlowEventsTopic, "brokers", cfg.KafkaBrokers)
	}
	defer events.Close()

	orderPolicy := poller.Policy{Interval: cfg.OrderPollInterval, MaxAttempts: cfg.OrderPollAttempts}
	paymentPolicy := poller.Policy{Interval: cfg.PaymentPollInterval, MaxAttempts: cfg.PaymentPollAttempts}

	cart := s.NewCartSynchronizer(client, cache, sess, flowMetrics, log)
	checkouts := s.NewCheckoutInitiator(client, log)
	orders := s.NewOrderPlacer(client, checkouts, orderPolicy, flowMetrics, log)
	payments := s.NewPaymentReconciler(client, cache, sess, paymentPolicy, cfg.GatewayReturnParam, flowMetrics, log)
	addresses := s.NewAddressBook(client)
	flow := s.NewCheckoutFlow(cart, checkouts, orders, payments, addresses, sess, events, flowMetrics,
		s.FlowDelays{CODConfirm: cfg.CODConfirmDelay, SuccessRedirect: cfg.SuccessRedirectDelay}, log)

	if _, err := cart.Load(ctx); err != nil {
		log.Warn("initial cart load failed", "error", err)
	}

	// A checkout request may span both polls.
	flowTimeout := cfg.RequestTimeout +
		time.Duration(cfg.OrderPollAttempts)*(cfg.OrderPollInterval+cfg.RequestTimeout) +
		time.Duration(cfg.PaymentPollAttempts)*(cfg.PaymentPollInterval+cfg.RequestTimeout)

	router := h.NewRouter(h.Handlers{
		Cart:      h.NewCartHandler(cart, cfg.RequestTimeout),
		Checkout:  h.NewCheckoutHandler(flow, flowTimeout),
		Addresses: h.NewAddressHandler(addresses, cfg.RequestTimeout),
		Session:   h.NewSessionHandler(sess, cfg.RequestTimeout),
		Metrics:   metrics.Handler(),
	}, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "checkout-client"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: flowTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("checkout client starting", "port", cfg.HTTPPort, "backend", cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
