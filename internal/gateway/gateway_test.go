package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orderdesk/backoffice/internal/circuitbreaker"
	"github.com/orderdesk/backoffice/internal/commerce"
	"github.com/orderdesk/backoffice/internal/fallback"
	"github.com/orderdesk/backoffice/internal/store"
	"github.com/orderdesk/backoffice/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newGateway(t *testing.T, handler http.Handler) (*Gateway, *store.Store, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := testLogger()
	st := store.New(logger)
	client := commerce.NewClient(server.URL, "", logger)
	return New(client, st, logger), st, server
}

func TestFallbackUpdateNeverCallsRemote(t *testing.T) {
	var remoteCalls int64
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&remoteCalls, 1)
	}))

	st.Upsert(models.Order{ID: "fallback-7", Status: models.StatusPending})

	updated, err := g.Update(context.Background(), "fallback-7", map[string]any{"status": models.StatusShipped})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != models.StatusShipped {
		t.Errorf("patch not applied: %+v", updated)
	}
	if updated.UpdatedAt == nil {
		t.Error("UpdatedAt must be stamped on local mutation")
	}
	if atomic.LoadInt64(&remoteCalls) != 0 {
		t.Errorf("fallback update must not hit the remote API, saw %d calls", remoteCalls)
	}
}

func TestFallbackDeleteNeverCallsRemote(t *testing.T) {
	var remoteCalls int64
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&remoteCalls, 1)
	}))

	st.Upsert(models.Order{ID: "fallback-1"})

	if err := g.Delete(context.Background(), "fallback-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Len() != 0 {
		t.Error("order should be removed from the store")
	}
	if atomic.LoadInt64(&remoteCalls) != 0 {
		t.Errorf("fallback delete must not hit the remote API, saw %d calls", remoteCalls)
	}
}

func TestFallbackUpdateUnknownIDFails(t *testing.T) {
	g, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := g.Update(context.Background(), "fallback-404", map[string]any{"status": "Shipped"})
	if err == nil {
		t.Fatal("expected error for unknown fallback id")
	}
}

func TestCreateTimeoutFallsBackToLocalOrder(t *testing.T) {
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond) // never answers in time
	}))
	g.SetCreateTimeout(50 * time.Millisecond)

	before := time.Now().UnixMilli()
	order := g.Create(context.Background(), models.OrderDraft{
		Customer:      models.Customer{FirstName: "Ana", LastName: "Silva", Email: "ana@example.com"},
		Items:         []models.DraftItem{{ProductID: "p-1", ProductName: "Mug", Quantity: 2, UnitPrice: 10, TotalPrice: 20}},
		Subtotal:      20,
		PaymentMethod: "Credit Card",
	})
	after := time.Now().UnixMilli()

	ms, err := strconv.ParseInt(order.ID, 10, 64)
	if err != nil {
		t.Fatalf("local order id must be a timestamp, got %q", order.ID)
	}
	if ms < before || ms > after {
		t.Errorf("timestamp id out of range: %d not in [%d, %d]", ms, before, after)
	}
	if order.OrderNumber != "ORD-"+order.ID {
		t.Errorf("unexpected order number %q", order.OrderNumber)
	}
	if order.Status != models.StatusPending || order.PaymentStatus != models.PaymentPending {
		t.Errorf("local order must be Pending/Pending, got %s/%s", order.Status, order.PaymentStatus)
	}
	if order.Tax != 0 || order.Shipping != 0 {
		t.Errorf("local order must have zero tax and shipping, got %v/%v", order.Tax, order.Shipping)
	}
	if _, ok := st.Get(order.ID); !ok {
		t.Error("local order must be appended to the store")
	}
}

func TestCreateRemoteErrorStillYieldsOrder(t *testing.T) {
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	order := g.Create(context.Background(), models.OrderDraft{Subtotal: 30})
	if order.ID == "" {
		t.Fatal("create must always yield an order")
	}
	if _, ok := st.Get(order.ID); !ok {
		t.Error("degraded order must be in the store")
	}
}

func TestCreateRemoteSuccessUsesServerRecord(t *testing.T) {
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"srv-1","orderNumber":"ORD-9001","totalAmount":"25","status":"processing"}`))
	}))

	order := g.Create(context.Background(), models.OrderDraft{Subtotal: 25})
	if order.ID != "srv-1" || order.Status != "Processing" {
		t.Errorf("expected server record, got %+v", order)
	}
	if _, ok := st.Get("srv-1"); !ok {
		t.Error("server record must be stored")
	}
}

func TestRefreshNotFoundSwitchesToDemoData(t *testing.T) {
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"route not found"}`))
	}))

	if err := g.Refresh(context.Background()); err != nil {
		t.Fatalf("demo fallback must not surface as an error, got %v", err)
	}

	if st.Len() != fallback.Count {
		t.Errorf("expected %d demo orders, got %d", fallback.Count, st.Len())
	}
	if st.LastError() != nil {
		t.Error("error field must be cleared in demo mode")
	}
	if st.State() != store.StateDemoFallback {
		t.Errorf("expected demo-fallback state, got %s", st.State())
	}
	if !st.DemoMode() {
		t.Error("demo mode flag must be set")
	}
}

func TestRefreshAuthErrorLeavesStoreAlone(t *testing.T) {
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid token"}`))
	}))
	st.Upsert(models.Order{ID: "stale-1"})

	err := g.Refresh(context.Background())
	if err == nil {
		t.Fatal("auth failure must surface")
	}
	if st.State() != store.StateAuthRequired {
		t.Errorf("expected auth-required state, got %s", st.State())
	}
	if st.Len() != 1 {
		t.Error("auth failure must not replace the store with demo data")
	}
}

func TestRefreshGenericErrorSurfaces(t *testing.T) {
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"database exploded"}`))
	}))

	err := g.Refresh(context.Background())
	if err == nil {
		t.Fatal("generic failure must surface")
	}
	if st.State() != store.StateFailed {
		t.Errorf("expected failed state, got %s", st.State())
	}
	if st.Len() != 0 {
		t.Error("generic failure must not substitute demo data")
	}
}

func TestRefreshSuccess(t *testing.T) {
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"o-1","totalAmount":10},{"id":"o-2","totalAmount":20}]}`))
	}))

	if err := g.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.State() != store.StatePopulated || st.Len() != 2 {
		t.Errorf("expected 2 populated orders, got state=%s len=%d", st.State(), st.Len())
	}
	if st.DemoMode() {
		t.Error("real data must not set demo mode")
	}
}

func TestOpenBreakerDegradesToDemoData(t *testing.T) {
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	g.SetBreaker(circuitbreaker.New(circuitbreaker.Config{
		Name:        "commerce",
		MaxFailures: 1,
		CoolDown:    time.Minute,
	}, testLogger()))

	// first refresh trips the breaker with a generic failure
	if err := g.Refresh(context.Background()); err == nil {
		t.Fatal("expected first refresh to fail")
	}

	// second refresh is rejected by the open breaker and degrades to demo data
	if err := g.Refresh(context.Background()); err != nil {
		t.Fatalf("open breaker should degrade silently, got %v", err)
	}
	if st.State() != store.StateDemoFallback || st.Len() != fallback.Count {
		t.Errorf("expected demo fallback, got state=%s len=%d", st.State(), st.Len())
	}
}

func TestUpdateRemoteFailureLeavesLocalStateUntouched(t *testing.T) {
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	st.Upsert(models.Order{ID: "o-1", Status: models.StatusPending})

	_, err := g.Update(context.Background(), "o-1", map[string]any{"status": models.StatusShipped})
	if err == nil {
		t.Fatal("remote failure must propagate")
	}

	current, _ := st.Get("o-1")
	if current.Status != models.StatusPending {
		t.Error("no partial mutation may be committed on remote failure")
	}
}

func TestUpdateRemoteSuccessReplacesStoreEntry(t *testing.T) {
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"o-1","status":"shipped","totalAmount":75}`))
	}))
	st.Upsert(models.Order{ID: "o-1", Status: models.StatusPending, Total: 70})

	updated, err := g.Update(context.Background(), "o-1", map[string]any{"status": "shipped"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != "Shipped" {
		t.Errorf("expected server status, got %q", updated.Status)
	}

	current, _ := st.Get("o-1")
	if current.Total != 75 {
		t.Error("store entry must be replaced with the server response")
	}
}

func TestDeleteRemoteOrder(t *testing.T) {
	var deleteCalls int64
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			atomic.AddInt64(&deleteCalls, 1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	st.Upsert(models.Order{ID: "o-1"})

	if err := g.Delete(context.Background(), "o-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt64(&deleteCalls) != 1 {
		t.Errorf("expected exactly one remote delete, got %d", deleteCalls)
	}
	if st.Len() != 0 {
		t.Error("order should be removed locally after remote success")
	}
}

func TestPromoteDemoOrders(t *testing.T) {
	var created int64
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&created, 1)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"srv-` + strconv.FormatInt(n, 10) + `","totalAmount":10,"status":"pending"}`))
	}))

	st.Upsert(models.Order{ID: "fallback-1", Subtotal: 10})
	st.Upsert(models.Order{ID: "fallback-2", Subtotal: 10})
	st.Upsert(models.Order{ID: "o-real", Subtotal: 99})

	result := g.PromoteDemoOrders(context.Background(), 2)

	if result.Attempted != 2 || result.Promoted != 2 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if st.Len() != 3 {
		t.Errorf("expected 3 orders after promotion, got %d", st.Len())
	}
	for _, o := range st.Snapshot() {
		if o.IsFallback() {
			t.Errorf("demo order %s should have been promoted away", o.ID)
		}
	}
}

func TestPromoteReportsFailures(t *testing.T) {
	g, st, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	st.Upsert(models.Order{ID: "fallback-1"})

	result := g.PromoteDemoOrders(context.Background(), 1)
	if result.Promoted != 0 || result.Failed != 1 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, ok := st.Get("fallback-1"); !ok {
		t.Error("failed promotion must keep the demo order")
	}
}
