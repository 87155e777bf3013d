package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/orderdesk/backoffice/internal/api"
	"github.com/orderdesk/backoffice/internal/circuitbreaker"
	"github.com/orderdesk/backoffice/internal/commerce"
	"github.com/orderdesk/backoffice/internal/events"
	"github.com/orderdesk/backoffice/internal/gateway"
	"github.com/orderdesk/backoffice/internal/snapshot"
	"github.com/orderdesk/backoffice/internal/store"
	"github.com/orderdesk/backoffice/internal/validation"
	"github.com/orderdesk/backoffice/internal/websocket"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	port := getEnv("PORT", "8090")
	commerceURL := getEnv("COMMERCE_API_URL", "http://localhost:3001")
	commerceToken := getEnv("COMMERCE_API_TOKEN", "")
	kafkaBrokers := getEnv("KAFKA_BROKERS", "")
	postgresDSN := getEnv("POSTGRES_DSN", "")

	st := store.New(logger)
	client := commerce.NewClient(commerceURL, commerceToken, logger)

	gw := gateway.New(client, st, logger)
	gw.SetBreaker(circuitbreaker.New(circuitbreaker.Config{
		Name:        "commerce-api",
		MaxFailures: 5,
		CoolDown:    30 * time.Second,
		HalfOpenMax: 2,
	}, logger))

	// Kafka is optional; without brokers the back office runs standalone.
	var producer *events.Producer
	var consumer *events.Consumer
	if kafkaBrokers != "" {
		var err error
		producer, err = events.NewProducer(kafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		gw.SetPublisher(producer)

		consumer, err = events.NewConsumer(kafkaBrokers, "backoffice", &storeEventBridge{store: st, logger: logger}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka consumer")
		}
		defer consumer.Close()
	}

	// Postgres snapshots are optional too; with a DSN the last known list
	// survives restarts.
	var snapshots *snapshot.Store
	if postgresDSN != "" {
		var err error
		snapshots, err = snapshot.Open(postgresDSN, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open snapshot store")
		}
		defer snapshots.Close()

		if orders, err := snapshots.LoadAll(); err != nil {
			logger.WithError(err).Warn("Failed to load order snapshots")
		} else if len(orders) > 0 {
			st.ReplaceAll(orders, false)
			logger.WithField("count", len(orders)).Info("Restored orders from snapshots")
		}
	}

	hub := websocket.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	// bridge store changes to websocket clients and the snapshot store
	storeEvents, cancelSub := st.Subscribe()
	defer cancelSub()
	go bridgeStoreEvents(st, storeEvents, hub, snapshots, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if consumer != nil {
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.WithError(err).Error("Order event consumer stopped")
			}
		}()
	}

	// initial load in the background so startup is not gated on the upstream
	go func() {
		loadCtx, loadCancel := context.WithTimeout(ctx, 30*time.Second)
		defer loadCancel()
		if err := gw.Refresh(loadCtx); err != nil {
			logger.WithError(err).Warn("Initial order refresh failed")
		}
	}()

	handler := api.NewHandler(st, gw, hub, validation.New(), logger)
	router := mux.NewRouter()
	handler.Routes(router)
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", port).Info("Starting back-office service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	st.Dispose()
	logger.Info("Server gracefully stopped")
}

// bridgeStoreEvents pushes every store change to dashboard clients and, when
// snapshots are enabled, persists it.
func bridgeStoreEvents(st *store.Store, ch <-chan store.Event, hub *websocket.Hub, snapshots *snapshot.Store, logger *logrus.Logger) {
	for ev := range ch {
		switch ev.Type {
		case store.EventReplaced:
			hub.Broadcast("store.replaced", map[string]interface{}{"count": st.Len()}, ev.DemoMode)
			if snapshots != nil && !ev.DemoMode {
				if err := snapshots.SaveAll(st.Snapshot()); err != nil {
					logger.WithError(err).Warn("Failed to snapshot order list")
				}
			}
		case store.EventCreated:
			hub.Broadcast("order.created", ev.Order, ev.DemoMode)
			saveSnapshot(snapshots, ev, logger)
		case store.EventUpdated:
			hub.Broadcast("order.updated", ev.Order, ev.DemoMode)
			saveSnapshot(snapshots, ev, logger)
		case store.EventDeleted:
			hub.Broadcast("order.deleted", map[string]string{"id": ev.OrderID}, ev.DemoMode)
			if snapshots != nil {
				if err := snapshots.Delete(ev.OrderID); err != nil {
					logger.WithError(err).Warn("Failed to delete order snapshot")
				}
			}
		}
	}
}

func saveSnapshot(snapshots *snapshot.Store, ev store.Event, logger *logrus.Logger) {
	if snapshots == nil || ev.Order == nil || ev.Order.IsFallback() {
		return
	}
	if err := snapshots.Save(*ev.Order); err != nil {
		logger.WithError(err).Warn("Failed to save order snapshot")
	}
}

// storeEventBridge applies order events published by other back-office
// instances to the local store. Demo orders never travel between instances,
// and a store showing demo data ignores the feed entirely.
type storeEventBridge struct {
	store  *store.Store
	logger *logrus.Logger
}

func (b *storeEventBridge) HandleOrderUpserted(event events.OrderEvent) error {
	if event.Demo || event.Order == nil || b.store.DemoMode() {
		return nil
	}
	b.store.Upsert(*event.Order)
	b.logger.WithField("order_id", event.OrderID).Debug("Applied remote order upsert")
	return nil
}

func (b *storeEventBridge) HandleOrderDeleted(event events.OrderEvent) error {
	if event.Demo || b.store.DemoMode() {
		return nil
	}
	if err := b.store.Remove(event.OrderID); err != nil {
		b.logger.WithField("order_id", event.OrderID).Debug("Remote delete for unknown order")
	}
	return nil
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
