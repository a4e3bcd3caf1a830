package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolSerializesSameUser(t *testing.T) {
	pool := NewPool(4, time.Second)

	var running, maxSeen int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), "u1", func(context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&maxSeen)
					if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected one job at a time for a user, saw %d", maxSeen)
	}
	if pool.Active() != 0 {
		t.Fatalf("lanes not released: %d", pool.Active())
	}
}

func TestPoolRunsDifferentUsersConcurrently(t *testing.T) {
	pool := NewPool(2, time.Second)

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	var wg sync.WaitGroup
	for _, user := range []string{"a", "b"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_ = pool.Do(context.Background(), user, func(context.Context) error {
				started <- struct{}{}
				<-release
				return nil
			})
		}(user)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatalf("jobs of different users did not overlap")
		}
	}
	close(release)
	wg.Wait()
}

func TestPoolReturnsBusyAfterQueueTimeout(t *testing.T) {
	pool := NewPool(1, 20*time.Millisecond)

	hold := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), "a", func(context.Context) error {
			close(started)
			<-hold
			return nil
		})
		close(done)
	}()
	<-started

	err := pool.Do(context.Background(), "b", func(context.Context) error { return nil })
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(hold)
	<-done
}

func TestPoolPropagatesJobError(t *testing.T) {
	pool := NewPool(1, 0)
	want := errors.New("boom")
	if err := pool.Do(context.Background(), "a", func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected job error, got %v", err)
	}
}

func TestPoolHonorsCanceledContext(t *testing.T) {
	pool := NewPool(1, 0)
	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), "a", func(context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pool.Do(ctx, "a", func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(hold)
}
