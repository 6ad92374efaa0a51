package vitalsbot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// --- slot gate ---

func TestSlotGate_AcquireRelease(t *testing.T) {
	t.Parallel()
	g := newSlotGate(2, time.Second)
	release1, err := g.acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	release2, err := g.acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	release1()
	release2()

	// All slots free again.
	release3, err := g.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release3()
}

func TestSlotGate_TimeoutWhenExhausted(t *testing.T) {
	t.Parallel()
	g := newSlotGate(1, 50*time.Millisecond)
	release, err := g.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer release()

	_, err = g.acquire(context.Background())
	if !errors.Is(err, ErrPoolTimeout) {
		t.Fatalf("expected ErrPoolTimeout, got %v", err)
	}
}

func TestSlotGate_ReleaseUnblocksWaiter(t *testing.T) {
	t.Parallel()
	g := newSlotGate(1, 5*time.Second)
	release, err := g.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		r, err := g.acquire(context.Background())
		if err == nil {
			r()
		}
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	release()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiter failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released slot")
	}
}

func TestSlotGate_ContextCancellation(t *testing.T) {
	t.Parallel()
	g := newSlotGate(1, 5*time.Second)
	release, err := g.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewSlotGate_PanicsOnBadArgs(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero slot count")
		}
	}()
	newSlotGate(0, time.Second)
}

// --- engine construction ---

func TestNew_PanicsOnEmptyConnString(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for empty connection string")
		}
	}()
	New(context.Background(), "", Config{}, testLogger())
}

func TestNew_PanicsOnTinyPool(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for max_conns < 2")
		}
	}()
	cfg := Config{}
	cfg.Pool.MaxConns = 1
	New(context.Background(), "postgres://localhost/db", cfg, testLogger())
}
