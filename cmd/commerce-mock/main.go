package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// mockStore holds raw order documents the way the real commerce API serves
// them: loosely typed JSON with numerics that are sometimes strings.
type mockStore struct {
	orders map[string]map[string]any
	mutex  sync.RWMutex
}

func newMockStore() *mockStore {
	return &mockStore{orders: make(map[string]map[string]any)}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	port := getEnv("COMMERCE_MOCK_PORT", "3001")
	// failureMode simulates upstream misbehavior: "auth" rejects every call
	// with 401, "missing" 404s the list endpoint.
	failureMode := getEnv("FAILURE_MODE", "")

	store := newMockStore()
	seedOrders(store, 20)
	logger.WithField("count", len(store.orders)).Info("Seeded mock orders")

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/orders", listOrders(logger, store, failureMode)).Methods("GET")
	router.HandleFunc("/orders", createOrder(logger, store, failureMode)).Methods("POST")
	router.HandleFunc("/orders/{id}", updateOrder(logger, store, failureMode)).Methods("PUT")
	router.HandleFunc("/orders/{id}", deleteOrder(logger, store, failureMode)).Methods("DELETE")

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":         port,
			"failure_mode": failureMode,
		}).Info("Starting commerce mock")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down commerce mock...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func rejectForMode(w http.ResponseWriter, mode string) bool {
	if mode == "auth" {
		respondWithJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid token"})
		return true
	}
	return false
}

func listOrders(logger *logrus.Logger, store *mockStore, mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rejectForMode(w, mode) {
			return
		}
		if mode == "missing" {
			respondWithJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
			return
		}

		store.mutex.RLock()
		data := make([]map[string]any, 0, len(store.orders))
		for _, order := range store.orders {
			data = append(data, order)
		}
		store.mutex.RUnlock()

		logger.WithField("count", len(data)).Info("Listing mock orders")
		respondWithJSON(w, http.StatusOK, map[string]any{"data": data})
	}
}

func createOrder(logger *logrus.Logger, store *mockStore, mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rejectForMode(w, mode) {
			return
		}

		var draft map[string]any
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			respondWithJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
			return
		}

		// simulate upstream processing latency
		time.Sleep(time.Duration(rand.Intn(300)) * time.Millisecond)

		id := uuid.New().String()
		order := map[string]any{
			"id":          id,
			"orderNumber": fmt.Sprintf("ORD-%04d", 5000+rand.Intn(4999)),
			"status":      "pending",
			"orderDate":   time.Now().Format(time.RFC3339),
			"createdAt":   time.Now().Format(time.RFC3339),
		}
		for key, value := range draft {
			if _, reserved := order[key]; !reserved {
				order[key] = value
			}
		}
		if subtotal, ok := draft["subtotal"].(float64); ok {
			order["totalAmount"] = subtotal
		}

		store.mutex.Lock()
		store.orders[id] = order
		store.mutex.Unlock()

		logger.WithField("order_id", id).Info("Mock order created")
		respondWithJSON(w, http.StatusCreated, order)
	}
}

func updateOrder(logger *logrus.Logger, store *mockStore, mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rejectForMode(w, mode) {
			return
		}
		orderID := mux.Vars(r)["id"]

		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			respondWithJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
			return
		}

		store.mutex.Lock()
		order, ok := store.orders[orderID]
		if !ok {
			store.mutex.Unlock()
			respondWithJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
			return
		}
		for key, value := range patch {
			if key == "id" {
				continue
			}
			order[key] = value
		}
		order["updatedAt"] = time.Now().Format(time.RFC3339)
		store.mutex.Unlock()

		logger.WithField("order_id", orderID).Info("Mock order updated")
		respondWithJSON(w, http.StatusOK, order)
	}
}

func deleteOrder(logger *logrus.Logger, store *mockStore, mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rejectForMode(w, mode) {
			return
		}
		orderID := mux.Vars(r)["id"]

		store.mutex.Lock()
		_, ok := store.orders[orderID]
		delete(store.orders, orderID)
		store.mutex.Unlock()

		if !ok {
			respondWithJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
			return
		}

		logger.WithField("order_id", orderID).Info("Mock order deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "commerce-mock"})
}

var (
	firstNames = []string{"Ana", "Bo", "Carmen", "Dmitri", "Elena", "Farid", "Greta", "Hugo"}
	lastNames  = []string{"Silva", "Chen", "Lopez", "Ivanov", "Weber", "Khan", "Olsen", "Moreau"}
	products   = []string{"Ceramic Mug", "Linen Shirt", "Desk Lamp", "Canvas Tote", "Notebook Set"}
	statuses   = []string{"pending", "processing", "shipped", "delivered", "cancelled"}
	payments   = []string{"paid", "pending", "failed", "refunded"}
)

// seedOrders fills the store with wire-shaped documents. Roughly half carry
// their money fields as strings to mimic the real API's inconsistency.
func seedOrders(store *mockStore, count int) {
	for i := 0; i < count; i++ {
		first := firstNames[rand.Intn(len(firstNames))]
		last := lastNames[rand.Intn(len(lastNames))]
		subtotal := float64(rand.Intn(20000)) / 100
		tax := subtotal * 0.08
		total := subtotal + tax

		var subtotalField, totalField any = subtotal, total
		if i%2 == 0 {
			subtotalField = fmt.Sprintf("%.2f", subtotal)
			totalField = fmt.Sprintf("%.2f", total)
		}

		id := uuid.New().String()
		store.orders[id] = map[string]any{
			"id":          id,
			"orderNumber": fmt.Sprintf("ORD-%04d", 1000+i),
			"customer": map[string]any{
				"id":        rand.Intn(900) + 100,
				"firstName": first,
				"lastName":  last,
				"email":     fmt.Sprintf("%s.%s@example.com", strings.ToLower(first), strings.ToLower(last)),
			},
			"items": []map[string]any{{
				"id":          uuid.New().String(),
				"productId":   rand.Intn(500),
				"productName": products[rand.Intn(len(products))],
				"quantity":    rand.Intn(3) + 1,
				"unitPrice":   subtotalField,
				"totalPrice":  subtotalField,
			}},
			"subtotal":      subtotalField,
			"totalTax":      tax,
			"totalAmount":   totalField,
			"status":        statuses[rand.Intn(len(statuses))],
			"paymentStatus": payments[rand.Intn(len(payments))],
			"paymentMethod": "Credit Card",
			"orderDate":     time.Now().AddDate(0, 0, -rand.Intn(90)).Format(time.RFC3339),
			"createdAt":     time.Now().Format(time.RFC3339),
		}
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
