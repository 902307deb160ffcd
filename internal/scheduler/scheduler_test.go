package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewValidation(t *testing.T) {
	if _, err := New("x", 0, func(context.Context) {}); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if _, err := New("x", time.Second, nil); err == nil {
		t.Fatal("expected error for nil tick function")
	}
}

func TestStartStopAndImmediateTick(t *testing.T) {
	var ticks atomic.Int64
	s, err := New("test", time.Hour, func(context.Context) { ticks.Add(1) })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !s.Start() {
		t.Fatal("Start returned false on first call")
	}
	if s.Start() {
		t.Fatal("Start returned true while already running")
	}

	// The first tick fires synchronously inside the loop goroutine; give it
	// a moment rather than waiting a full interval.
	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if ticks.Load() == 0 {
		t.Fatal("expected an immediate tick after Start")
	}
	if !s.IsRunning() {
		t.Fatal("IsRunning = false while started")
	}

	if !s.Stop() {
		t.Fatal("Stop returned false while running")
	}
	if s.Stop() {
		t.Fatal("Stop returned true after already stopped")
	}
	if s.IsRunning() {
		t.Fatal("IsRunning = true after Stop")
	}
}

func TestTickPanicIsolated(t *testing.T) {
	var ticks atomic.Int64
	s, err := New("panicky", 20*time.Millisecond, func(context.Context) {
		ticks.Add(1)
		panic("boom")
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if ticks.Load() < 2 {
		t.Fatal("loop did not survive a panicking tick")
	}
}

func TestRestartAfterStop(t *testing.T) {
	s, err := New("restart", time.Hour, func(context.Context) {})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	s.Stop()
	if !s.Start() {
		t.Fatal("Start returned false after a clean Stop")
	}
	s.Stop()
}
