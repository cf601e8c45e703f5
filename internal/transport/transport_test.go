package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeListener struct {
	startErr error
	stops    atomic.Int32
}

func (l *fakeListener) Start(ctx context.Context) error {
	if l.startErr != nil {
		return l.startErr
	}
	<-ctx.Done()
	return nil
}

func (l *fakeListener) Stop(context.Context) error {
	l.stops.Add(1)
	return nil
}

func TestServe_StopsAllOnCancel(t *testing.T) {
	a, b := &fakeListener{}, &fakeListener{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, a, b) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if a.stops.Load() != 1 || b.stops.Load() != 1 {
		t.Errorf("stops = %d/%d, want 1/1", a.stops.Load(), b.stops.Load())
	}
}

func TestServe_FirstErrorStopsOthers(t *testing.T) {
	boom := errors.New("boom")
	failing, healthy := &fakeListener{startErr: boom}, &fakeListener{}

	err := Serve(context.Background(), failing, healthy)
	if !errors.Is(err, boom) {
		t.Fatalf("Serve() error = %v, want boom", err)
	}
	if healthy.stops.Load() != 1 {
		t.Errorf("healthy listener stops = %d, want 1", healthy.stops.Load())
	}
}
