package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestBreaker(maxFailures int, coolDown time.Duration, halfOpenMax int) *CircuitBreaker {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(Config{
		Name:        "test",
		MaxFailures: maxFailures,
		CoolDown:    coolDown,
		HalfOpenMax: halfOpenMax,
	}, logger)
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(3, time.Minute, 1)
	failing := func() error { return errors.New("upstream down") }

	for i := 0; i < 3; i++ {
		if err := cb.Execute(failing); err == nil {
			t.Fatal("expected failure to propagate")
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", cb.State())
	}

	err := cb.Execute(func() error {
		t.Error("function must not run while breaker is open")
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	cb := newTestBreaker(3, time.Minute, 1)
	failing := func() error { return errors.New("flaky") }
	ok := func() error { return nil }

	cb.Execute(failing)
	cb.Execute(failing)
	cb.Execute(ok)
	cb.Execute(failing)
	cb.Execute(failing)

	if cb.State() != StateClosed {
		t.Fatalf("interleaved successes should keep breaker closed, got %s", cb.State())
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond, 1)

	cb.Execute(func() error { return errors.New("down") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	time.Sleep(30 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe should have been allowed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond, 1)

	cb.Execute(func() error { return errors.New("down") })
	time.Sleep(30 * time.Millisecond)

	cb.Execute(func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Fatalf("expected reopen after failed probe, got %s", cb.State())
	}
}

func TestHalfOpenProbeBudget(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond, 2)

	cb.Execute(func() error { return errors.New("down") })
	time.Sleep(20 * time.Millisecond)

	var wg sync.WaitGroup
	results := make(chan error, 6)
	release := make(chan struct{})

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- cb.Execute(func() error {
				<-release
				return nil
			})
		}()
	}

	// let the goroutines hit beforeCall before releasing the probes
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	var allowed, rejected int
	for err := range results {
		if errors.Is(err, ErrOpen) {
			rejected++
		} else if err == nil {
			allowed++
		}
	}

	if allowed > 2 {
		t.Errorf("expected at most 2 probes through half-open breaker, got %d", allowed)
	}
	if allowed+rejected != 6 {
		t.Errorf("expected 6 results, got %d", allowed+rejected)
	}
}

func TestCountsConsistency(t *testing.T) {
	cb := newTestBreaker(100, time.Minute, 1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cb.Execute(func() error {
				if n%3 == 0 {
					return errors.New("simulated failure")
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	counts := cb.Counts()
	if counts.Requests != counts.Failures+counts.Successes {
		t.Errorf("inconsistent counts: %+v", counts)
	}
	if counts.Requests != 50 {
		t.Errorf("expected 50 requests, got %d", counts.Requests)
	}
}

func TestReset(t *testing.T) {
	cb := newTestBreaker(1, time.Minute, 1)
	cb.Execute(func() error { return errors.New("down") })
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after reset, got %s", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected call to pass after reset: %v", err)
	}
}
