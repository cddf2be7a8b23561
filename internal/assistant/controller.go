// Package assistant drives the assistant lifecycle: registry probe, model
// acquisition and query resolution, exposed as an observable state machine.
package assistant

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"navagent/internal/guide"
	"navagent/internal/janitor"
	"navagent/internal/llm"
)

// Controller owns the lifecycle state. All state writes go through update so
// observers always see a consistent Snapshot.
type Controller struct {
	svc   llm.Service
	cfg   Config
	log   zerolog.Logger
	pub   EventPublisher
	guide string
	sweep janitor.Report

	mu     sync.RWMutex
	snap   Snapshot
	subs   map[uint64]chan Snapshot
	nextID uint64
	closed bool

	probed    atomic.Bool
	startOnce sync.Once
	resolveMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	progressLog rate.Sometimes
}

// New sweeps the cache directories, loads the features guide and returns a
// controller in PhaseIdle. Call Start to run the registry probe.
func New(svc llm.Service, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		svc:         svc,
		cfg:         cfg,
		log:         cfg.Logger.With().Str("component", "assistant").Logger(),
		pub:         cfg.Publisher,
		subs:        make(map[uint64]chan Snapshot),
		snap:        Snapshot{State: State{Phase: PhaseIdle}},
		ctx:         ctx,
		cancel:      cancel,
		progressLog: rate.Sometimes{Interval: time.Second},
	}
	c.sweep = janitor.Sweep(cfg.CacheDirs, c.log)
	c.pub.Publish(Event{Name: EventCacheSweep, Fields: map[string]any{
		"removed": len(c.sweep.Removed),
		"errors":  len(c.sweep.Errors),
	}})
	c.guide = guide.Load(cfg.GuidePath, c.log)
	return c
}

// SweepReport returns the result of the startup cache sweep.
func (c *Controller) SweepReport() janitor.Report { return c.sweep }

// Start runs the registry probe in the background once the backend is ready.
// Backends implementing llm.ReadyWaiter are awaited up to ReadyTimeout; others
// get a fixed StartupDelay. Subsequent calls are no-ops.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.wg.Add(1)
		c.mu.Unlock()
		go func() {
			defer c.wg.Done()
			bg, cancel := context.WithCancel(c.ctx)
			defer cancel()
			stop := context.AfterFunc(ctx, cancel)
			defer stop()
			c.awaitBackend(bg)
			if bg.Err() != nil {
				return
			}
			_, _ = c.ResolveModel(bg)
		}()
	})
}

func (c *Controller) awaitBackend(ctx context.Context) {
	if rw, ok := c.svc.(llm.ReadyWaiter); ok {
		wctx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
		defer cancel()
		start := time.Now()
		if err := rw.WaitReady(wctx); err != nil {
			c.log.Warn().Err(err).Dur("waited", time.Since(start)).Msg("backend not ready, probing anyway")
			return
		}
		c.log.Debug().Dur("waited", time.Since(start)).Msg("backend ready")
		return
	}
	t := time.NewTimer(c.cfg.StartupDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Ready reports whether a model is loaded and no query is in flight.
func (c *Controller) Ready() bool {
	s := c.Snapshot()
	return s.ModelLoaded && s.State.Phase == PhaseReady
}

// Subscribe returns a channel receiving the latest snapshot after every
// change. Slow readers see intermediate snapshots conflated; the most recent
// one is always delivered. The current snapshot is sent immediately.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	ch <- c.snap
	if c.closed {
		close(ch)
		c.mu.Unlock()
		return ch, func() {}
	}
	c.subs[id] = ch
	c.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			if s, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(s)
			}
			c.mu.Unlock()
		})
	}
}

// update applies fn to a copy of the snapshot and commits it. fn may return
// an error to abort without committing. Phase changes are checked against the
// transition table.
func (c *Controller) update(fn func(s *Snapshot) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.snap
	if err := fn(&next); err != nil {
		return err
	}
	from, to := c.snap.State.Phase, next.State.Phase
	if from != to && !CanTransition(from, to) {
		c.log.Error().Str("from", string(from)).Str("to", string(to)).Msg("illegal transition rejected")
		return invalidTransitionError{from: from, to: to}
	}
	next.Seq = c.snap.Seq + 1
	c.snap = next
	if from != to {
		ev := Event{Name: EventStateChange, ModelID: next.Model.ID, Fields: map[string]any{
			"from": string(from),
			"to":   string(to),
		}}
		if to == PhaseError {
			ev.Fields["message"] = next.State.Message
			c.log.Error().Str("from", string(from)).Str("message", next.State.Message).Msg("assistant error")
		} else {
			c.log.Info().Str("from", string(from)).Str("to", string(to)).Msg("state change")
		}
		c.pub.Publish(ev)
	}
	for _, ch := range c.subs {
		offer(ch, next)
	}
	return nil
}

// offer replaces any undelivered snapshot in ch with s. Callers hold c.mu, so
// the send after draining cannot block.
func offer(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// fail moves the controller into PhaseError with msg.
func (c *Controller) fail(msg string) {
	_ = c.update(func(s *Snapshot) error {
		s.State = State{Phase: PhaseError, Message: msg}
		s.DownloadProgress = nil
		s.LoadProgress = nil
		return nil
	})
}

// Close cancels background work, waits for it and closes subscriber channels.
// A backend implementing llm.Closer is closed too.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	if cl, ok := c.svc.(llm.Closer); ok {
		return cl.Close()
	}
	return nil
}
