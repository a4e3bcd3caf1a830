package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when a job could not get a slot before its queue
// timeout expired.
var ErrBusy = errors.New("worker pool busy")

// lane serializes the jobs of one user. refs counts the jobs holding or
// waiting for it so idle lanes can be dropped.
type lane struct {
	lock chan struct{}
	refs int
}

// Pool runs jobs with bounded concurrency while keeping the jobs of a single
// user strictly one after another, so a user's memory writes never interleave.
type Pool struct {
	slots   chan struct{}
	timeout time.Duration

	mu    sync.Mutex
	lanes map[string]*lane
}

func NewPool(maxWorkers int, queueTimeout time.Duration) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Pool{
		slots:   make(chan struct{}, maxWorkers),
		timeout: queueTimeout,
		lanes:   make(map[string]*lane),
	}
}

// Do waits for the user's lane and a free slot, then runs fn with ctx.
// Waiting is bounded by ctx and the queue timeout; fn itself is not.
func (p *Pool) Do(ctx context.Context, userID string, fn func(context.Context) error) error {
	waitCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	l := p.acquireLane(userID)
	defer p.releaseLane(userID, l)

	select {
	case l.lock <- struct{}{}:
	case <-waitCtx.Done():
		return waitErr(ctx)
	}
	defer func() { <-l.lock }()

	select {
	case p.slots <- struct{}{}:
	case <-waitCtx.Done():
		return waitErr(ctx)
	}
	defer func() { <-p.slots }()

	return fn(ctx)
}

// Active reports how many user lanes are currently held or awaited.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lanes)
}

func (p *Pool) acquireLane(userID string) *lane {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.lanes[userID]
	if !ok {
		l = &lane{lock: make(chan struct{}, 1)}
		p.lanes[userID] = l
	}
	l.refs++
	return l
}

func (p *Pool) releaseLane(userID string, l *lane) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(p.lanes, userID)
	}
}

func waitErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrBusy
}
