package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingPurger struct {
	calls atomic.Int32
	ttl   atomic.Int64
}

func (p *countingPurger) PurgeIdle(ttl time.Duration) int {
	p.calls.Add(1)
	p.ttl.Store(int64(ttl))
	return 1
}

func TestJanitorRunOnce(t *testing.T) {
	p := &countingPurger{}
	j := NewJanitor(p, 2*time.Hour, "*/10 * * * *", zap.NewNop())

	j.RunOnce()

	if p.calls.Load() != 1 || time.Duration(p.ttl.Load()) != 2*time.Hour {
		t.Fatalf("calls = %d, ttl = %v", p.calls.Load(), time.Duration(p.ttl.Load()))
	}
}

func TestJanitorRejectsBadSchedule(t *testing.T) {
	j := NewJanitor(&countingPurger{}, time.Hour, "every now and then", zap.NewNop())

	if err := j.Start(context.Background()); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestJanitorStopsWithContext(t *testing.T) {
	j := NewJanitor(&countingPurger{}, time.Hour, "@every 1h", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- j.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
