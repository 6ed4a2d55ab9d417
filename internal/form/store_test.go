package form

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"imagestudio/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStoreCreateGetClose(t *testing.T) {
	s := NewStore(Options{Processor: &stubProcessor{}}, time.Minute)
	v := s.Create()
	got, err := s.Get(v.ID())
	if err != nil || got != v {
		t.Fatalf("get = %v, %v", got, err)
	}
	if err := s.Close(v.ID()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.Get(v.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after close = %v, want ErrNotFound", err)
	}
	if err := s.Close(v.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double close = %v, want ErrNotFound", err)
	}
	if _, err := v.Submit(); !errors.Is(err, ErrViewClosed) {
		t.Fatalf("closed view submit = %v", err)
	}
}

func TestStoreSweepRemovesIdleViews(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	proc := &stubProcessor{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewStore(Options{Processor: proc, Clock: clock.Now}, 10*time.Minute)

	idle := s.Create()
	busy := s.Create()
	fresh := s.Create()
	_ = busy.SelectFile("a.png", strings.NewReader("x"))
	sub, err := busy.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-proc.started

	clock.Advance(11 * time.Minute)
	_ = fresh.ToggleTag("blur", true)

	if n := s.Sweep(); n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}
	if _, err := s.Get(idle.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("idle view should be gone")
	}
	if _, err := s.Get(busy.ID()); err != nil {
		t.Fatalf("busy view should be kept: %v", err)
	}
	if _, err := s.Get(fresh.ID()); err != nil {
		t.Fatalf("fresh view should be kept: %v", err)
	}

	close(proc.gate)
	_ = sub.Wait()
}

func TestStoreRunClosesViewsOnShutdown(t *testing.T) {
	s := NewStore(Options{Processor: &stubProcessor{}}, time.Minute)
	v := s.Create()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
	if s.Len() != 0 {
		t.Fatalf("views left after shutdown: %d", s.Len())
	}
	if _, err := v.Submit(); !errors.Is(err, ErrViewClosed) {
		t.Fatalf("view should be closed, got %v", err)
	}
}
