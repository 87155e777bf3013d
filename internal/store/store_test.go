package store

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orderdesk/backoffice/pkg/models"
)

func newTestStore() *Store {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(logger)
}

func TestLifecycleStates(t *testing.T) {
	s := newTestStore()
	if s.State() != StateIdle {
		t.Fatalf("new store should be idle, got %s", s.State())
	}

	s.BeginLoading()
	if s.State() != StateLoading {
		t.Fatalf("expected loading, got %s", s.State())
	}

	s.ReplaceAll([]models.Order{{ID: "o-1"}}, false)
	if s.State() != StatePopulated {
		t.Fatalf("expected populated, got %s", s.State())
	}
	if s.DemoMode() {
		t.Error("demo mode should be off for real data")
	}

	s.ReplaceAll([]models.Order{{ID: "fallback-1"}}, true)
	if s.State() != StateDemoFallback {
		t.Fatalf("expected demo-fallback, got %s", s.State())
	}
	if !s.DemoMode() {
		t.Error("demo mode should be on")
	}
}

func TestReplaceAllClearsPreviousError(t *testing.T) {
	s := newTestStore()
	s.Fail(errors.New("boom"))
	if s.LastError() == nil || s.State() != StateFailed {
		t.Fatal("expected failed state with error")
	}

	s.ReplaceAll(nil, true)
	if s.LastError() != nil {
		t.Error("ReplaceAll must clear the error field")
	}
}

func TestRequireAuthLeavesListUntouched(t *testing.T) {
	s := newTestStore()
	s.ReplaceAll([]models.Order{{ID: "o-1"}}, false)

	s.RequireAuth(errors.New("Invalid token"))
	if s.State() != StateAuthRequired {
		t.Fatalf("expected auth-required, got %s", s.State())
	}
	if s.Len() != 1 {
		t.Error("auth failure must not clear or replace the list")
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestStore()
	s.Upsert(models.Order{ID: "o-1", Status: models.StatusPending})
	s.Upsert(models.Order{ID: "o-2", Status: models.StatusPending})
	s.Upsert(models.Order{ID: "o-1", Status: models.StatusShipped})

	if s.Len() != 2 {
		t.Fatalf("expected 2 orders, got %d", s.Len())
	}
	got, ok := s.Get("o-1")
	if !ok || got.Status != models.StatusShipped {
		t.Errorf("expected upsert to replace in place, got %+v", got)
	}
}

func TestApplyPatchMergesAndStampsUpdatedAt(t *testing.T) {
	s := newTestStore()
	s.Upsert(models.Order{
		ID:            "fallback-3",
		OrderNumber:   "ORD-2003",
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		Notes:         "keep me",
		Total:         55,
	})

	before := time.Now()
	merged, err := s.ApplyPatch("fallback-3", map[string]any{
		"status":         models.StatusShipped,
		"trackingNumber": "TRK123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if merged.Status != models.StatusShipped {
		t.Errorf("patched field not applied: %+v", merged)
	}
	if merged.TrackingNumber != "TRK123" {
		t.Errorf("new field not applied: %+v", merged)
	}
	if merged.Notes != "keep me" || merged.Total != 55 {
		t.Errorf("unpatched fields must survive the merge: %+v", merged)
	}
	if merged.UpdatedAt == nil || merged.UpdatedAt.Before(before) {
		t.Error("UpdatedAt must be stamped")
	}

	stored, _ := s.Get("fallback-3")
	if stored.Status != models.StatusShipped {
		t.Error("merge must be persisted in the store")
	}
}

func TestApplyPatchUnknownID(t *testing.T) {
	s := newTestStore()
	_, err := s.ApplyPatch("missing", map[string]any{"status": "Shipped"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore()
	s.Upsert(models.Order{ID: "o-1"})

	if err := s.Remove("o-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 0 {
		t.Error("order should be gone")
	}
	if err := s.Remove("o-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for second remove, got %v", err)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	s := newTestStore()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Upsert(models.Order{ID: "o-1"})
	s.Upsert(models.Order{ID: "o-1", Status: models.StatusShipped})
	s.Remove("o-1")
	s.ReplaceAll(nil, true)

	want := []EventType{EventCreated, EventUpdated, EventDeleted, EventReplaced}
	for _, expected := range want {
		select {
		case ev := <-ch:
			if ev.Type != expected {
				t.Errorf("expected event %s, got %s", expected, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s event", expected)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestStore()
	s.Upsert(models.Order{ID: "o-1", Status: models.StatusPending})

	snap := s.Snapshot()
	snap[0].Status = models.StatusCancelled

	stored, _ := s.Get("o-1")
	if stored.Status != models.StatusPending {
		t.Error("mutating a snapshot must not affect the store")
	}
}

func TestDisposeClosesSubscribers(t *testing.T) {
	s := newTestStore()
	ch, _ := s.Subscribe()

	s.Dispose()

	select {
	case _, open := <-ch:
		if open {
			t.Error("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after dispose")
	}

	// subscribing after dispose yields a closed channel, not a panic
	ch2, cancel2 := s.Subscribe()
	cancel2()
	if _, open := <-ch2; open {
		t.Error("post-dispose subscription should be closed")
	}
}
