package scanning

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestFixedGate_Acquire(t *testing.T) {
	t.Run("successful acquisition", func(t *testing.T) {
		g := NewFixedGate(5)
		ctx := context.Background()

		if err := g.Acquire(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("Expected successful acquisition, got error: %v", err)
		}

		if g.InFlight() != 1 {
			t.Errorf("Expected 1 in-flight target, got %d", g.InFlight())
		}

		g.Release("10.0.0.1")
	})

	t.Run("gate exhaustion", func(t *testing.T) {
		g := NewFixedGate(2)
		ctx := context.Background()

		err1 := g.Acquire(ctx, "10.0.0.1")
		err2 := g.Acquire(ctx, "10.0.0.2")
		if err1 != nil || err2 != nil {
			t.Fatalf("Expected successful acquisition, got errors: %v, %v", err1, err2)
		}

		ctx3, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		if err := g.Acquire(ctx3, "10.0.0.3"); err == nil {
			t.Error("Expected timeout error, got success")
		}

		g.Release("10.0.0.1")
		g.Release("10.0.0.2")
	})

	t.Run("context cancellation", func(t *testing.T) {
		g := NewFixedGate(1)

		if err := g.Acquire(context.Background(), "10.0.0.1"); err != nil {
			t.Fatalf("Expected successful acquisition, got error: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := g.Acquire(ctx, "10.0.0.2"); err == nil {
			t.Error("Expected cancellation error, got success")
		}

		g.Release("10.0.0.1")
	})

	t.Run("blocked acquire resumes after release", func(t *testing.T) {
		g := NewFixedGate(1)
		ctx := context.Background()

		if err := g.Acquire(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("Expected successful acquisition, got error: %v", err)
		}

		done := make(chan error, 1)
		go func() {
			done <- g.Acquire(ctx, "10.0.0.2")
		}()

		select {
		case <-done:
			t.Fatal("Expected acquisition to block when no slots are free")
		case <-time.After(50 * time.Millisecond):
		}

		g.Release("10.0.0.1")

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Expected acquisition after release, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Acquisition did not resume after release")
		}
	})

	t.Run("closed gate", func(t *testing.T) {
		g := NewFixedGate(1)
		if err := g.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := g.Acquire(context.Background(), "10.0.0.1"); err == nil {
			t.Error("Expected error acquiring from a closed gate")
		}
	})
}

func TestFixedGate_Release(t *testing.T) {
	t.Run("proper release", func(t *testing.T) {
		g := NewFixedGate(3)
		ctx := context.Background()

		targets := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
		for _, target := range targets {
			if err := g.Acquire(ctx, target); err != nil {
				t.Fatalf("Failed to acquire slot for %s: %v", target, err)
			}
		}

		if g.InFlight() != 3 {
			t.Errorf("Expected 3 in-flight targets, got %d", g.InFlight())
		}

		for _, target := range targets {
			g.Release(target)
		}

		if g.InFlight() != 0 {
			t.Errorf("Expected 0 in-flight targets after release, got %d", g.InFlight())
		}
		if g.Available() != 3 {
			t.Errorf("Expected 3 available slots, got %d", g.Available())
		}
	})

	t.Run("release unknown target", func(t *testing.T) {
		g := NewFixedGate(2)
		g.Release("10.9.9.9")

		if g.Available() != 2 {
			t.Errorf("Expected 2 available slots, got %d", g.Available())
		}
	})
}

func TestFixedGate_ConcurrentAccess(t *testing.T) {
	g := NewFixedGate(10)
	ctx := context.Background()

	const numGoroutines = 50
	const targetsPerGoroutine = 5

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*targetsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for j := 0; j < targetsPerGoroutine; j++ {
				target := fmt.Sprintf("10.%d.0.%d", workerID, j)

				if err := g.Acquire(ctx, target); err != nil {
					errs <- err
					return
				}
				time.Sleep(time.Millisecond)
				g.Release(target)
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent operation failed: %v", err)
	}

	if g.InFlight() != 0 {
		t.Errorf("Expected 0 in-flight targets after completion, got %d", g.InFlight())
	}
	if g.Peak() > 10 {
		t.Errorf("Peak %d exceeded capacity 10", g.Peak())
	}
	if g.Available() != 10 {
		t.Errorf("Expected 10 available slots, got %d", g.Available())
	}
}

func TestFixedGate_Defaults(t *testing.T) {
	g := NewFixedGate(0)
	if g.Available() != 1 {
		t.Errorf("Expected non-positive capacity to fall back to 1, got %d", g.Available())
	}

	stats := g.Stats()
	if stats["capacity"] != 1 {
		t.Errorf("Expected capacity 1 in stats, got %v", stats["capacity"])
	}
}
