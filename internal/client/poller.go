package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is how often a conversation view refreshes.
const DefaultPollInterval = 5 * time.Second

// Poller runs fetch once on Start and then on every tick until stopped. A
// tick that arrives while the previous fetch is still running is skipped.
type Poller struct {
	interval time.Duration
	fetch    func(ctx context.Context) error
	onError  func(error)

	inFlight atomic.Bool
	skipped  atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running sync.WaitGroup
}

func NewPoller(interval time.Duration, fetch func(ctx context.Context) error) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{interval: interval, fetch: fetch}
}

// OnError registers a callback for failed fetches. Failures never stop the
// poller; the next tick simply tries again.
func (p *Poller) OnError(fn func(error)) {
	p.onError = fn
}

// Start begins polling. Cancelling ctx has the same effect as Stop. Starting
// a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, p.done)
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.running.Wait()
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		return
	}

	p.running.Add(1)
	go func() {
		defer p.running.Done()
		defer p.inFlight.Store(false)
		if err := p.fetch(ctx); err != nil && ctx.Err() == nil && p.onError != nil {
			p.onError(err)
		}
	}()
}

// Stop cancels polling and waits for an in-flight fetch to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Skipped reports how many ticks were dropped because a fetch was running.
func (p *Poller) Skipped() int64 {
	return p.skipped.Load()
}
