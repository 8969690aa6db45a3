// Package trackfactory implements the FlightContextFactory described in
// spec §4.3: a lock-striped concurrent map from aircraft ID to
// FlightContext, a periodic idle-context sweep, and fan-out of the five
// observable event streams to subscribers.
package trackfactory

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/soarwatch/flighttrack/pkg/aerotow"
	"github.com/soarwatch/flighttrack/pkg/config"
	"github.com/soarwatch/flighttrack/pkg/flight"
	"github.com/soarwatch/flighttrack/pkg/flightcontext"
)

// Factory owns every tracked FlightContext, demultiplexes incoming report
// batches to them by aircraft ID, and retires idle ones.
type Factory struct {
	opts   *config.Options
	shards []*shard
	probe  flightcontext.AerotowProbe
	logger *log.Logger

	subMu       sync.RWMutex
	subscribers map[flightcontext.EventType][]subscription

	nextSubID int
}

type shard struct {
	mu       sync.RWMutex
	contexts map[string]*flightcontext.FlightContext
}

type subscription struct {
	id      int
	handler func(flightcontext.Event)
}

// New returns a Factory configured with opts (DefaultOptions if nil) and
// logger (log.Default() if nil). The factory builds its own aerotow probe
// from opts.NearbyRuntime, wired to itself as the neighbour source.
func New(opts *config.Options, logger *log.Logger) *Factory {
	if opts == nil {
		opts = config.DefaultOptions()
	}
	if logger == nil {
		logger = log.Default()
	}
	n := opts.ShardCount
	if n <= 0 {
		n = 1
	}
	f := &Factory{
		opts:        opts,
		shards:      make([]*shard, n),
		logger:      logger,
		subscribers: make(map[flightcontext.EventType][]subscription),
	}
	for i := range f.shards {
		f.shards[i] = &shard{contexts: make(map[string]*flightcontext.FlightContext)}
	}
	if opts.NearbyRuntime {
		correlator := aerotow.NewCorrelator(f, opts.AerotowProbeMaxPerSecond)
		f.probe = correlator.Probe
	}
	return f
}

func (f *Factory) shardFor(aircraftID string) *shard {
	h := fnv32(aircraftID)
	return f.shards[h%uint32(len(f.shards))]
}

func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

// sink returns a flightcontext.Sink that fans an event out to every
// subscriber of its type, recovering from a panicking subscriber the way
// cmd/collector's update loop recovers from a panicking fetch cycle so one
// bad observer can't poison the others.
func (f *Factory) sink() flightcontext.Sink {
	return flightcontext.SinkFunc(func(e flightcontext.Event) {
		f.subMu.RLock()
		subs := append([]subscription(nil), f.subscribers[e.Type]...)
		f.subMu.RUnlock()
		for _, s := range subs {
			f.dispatch(s, e)
		}
	})
}

func (f *Factory) dispatch(s subscription, e flightcontext.Event) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Printf("trackfactory: subscriber %d panicked handling %v for %s: %v", s.id, e.Type, e.AircraftID, r)
		}
	}()
	s.handler(e)
}

// Subscribe registers handler to receive every event of type t. It returns
// an unsubscribe function.
func (f *Factory) Subscribe(t flightcontext.EventType, handler func(flightcontext.Event)) func() {
	f.subMu.Lock()
	f.nextSubID++
	id := f.nextSubID
	f.subscribers[t] = append(f.subscribers[t], subscription{id: id, handler: handler})
	f.subMu.Unlock()

	return func() {
		f.subMu.Lock()
		defer f.subMu.Unlock()
		subs := f.subscribers[t]
		for i, s := range subs {
			if s.id == id {
				f.subscribers[t] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Enqueue ignores entries with an empty/whitespace aircraft ID, groups the
// remainder by aircraft ID preserving arrival order, and forwards each
// group to that aircraft's context (materialising one if needed).
func (f *Factory) Enqueue(reports []flight.PositionUpdate) {
	groups := make(map[string][]flight.PositionUpdate)
	var order []string
	for _, r := range reports {
		if strings.TrimSpace(r.AircraftID) == "" {
			continue
		}
		id := r.AircraftID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], r)
	}

	for _, id := range order {
		ctx := f.ensureContext(id)
		for _, r := range groups[id] {
			ctx.Enqueue(r)
		}
	}
}

func (f *Factory) ensureContext(aircraftID string) *flightcontext.FlightContext {
	s := f.shardFor(aircraftID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx, ok := s.contexts[aircraftID]; ok {
		return ctx
	}
	ctx := flightcontext.New(aircraftID, f.sink(), f.probe)
	if f.opts.MinifyMemoryPressure {
		ctx.EnableMemoryPressureMode()
	}
	s.contexts[aircraftID] = ctx
	return ctx
}

// Attach replaces any existing context tracked for the same aircraft ID.
// If the factory is configured with MinifyMemoryPressure, that mode is
// enabled on ctx before it starts tracking.
func (f *Factory) Attach(ctx *flightcontext.FlightContext) {
	if f.opts.MinifyMemoryPressure {
		ctx.EnableMemoryPressureMode()
	}
	s := f.shardFor(ctx.AircraftID())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[ctx.AircraftID()] = ctx
}

// AttachNew constructs a fresh context for aircraftID, wired to this
// factory's sink and aerotow probe, and attaches it.
func (f *Factory) AttachNew(aircraftID string) *flightcontext.FlightContext {
	ctx := flightcontext.New(aircraftID, f.sink(), f.probe)
	f.Attach(ctx)
	return ctx
}

// GetContext returns the context tracked for aircraftID, if any.
func (f *Factory) GetContext(aircraftID string) (*flightcontext.FlightContext, bool) {
	s := f.shardFor(aircraftID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.contexts[aircraftID]
	return ctx, ok
}

// Detach removes and returns the context tracked for aircraftID without
// firing ContextDisposed: this is an explicit transfer of ownership to the
// caller, not an eviction.
func (f *Factory) Detach(aircraftID string) (*flightcontext.FlightContext, bool) {
	s := f.shardFor(aircraftID)
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[aircraftID]
	if ok {
		delete(s.contexts, aircraftID)
	}
	return ctx, ok
}

// Nearby implements aerotow.NearbySource: a snapshot of every tracked
// context other than aircraftID.
func (f *Factory) Nearby(aircraftID string) []aerotow.ContextSnapshot {
	var out []aerotow.ContextSnapshot
	for _, s := range f.shards {
		s.mu.RLock()
		for id, ctx := range s.contexts {
			if id == aircraftID {
				continue
			}
			snap := ctx.Snapshot()
			if len(snap.PositionUpdates) == 0 {
				continue
			}
			out = append(out, aerotow.ContextSnapshot{
				AircraftID: id,
				Position:   snap.PositionUpdates[len(snap.PositionUpdates)-1],
				Flight:     snap,
			})
		}
		s.mu.RUnlock()
	}
	return out
}

// Run blocks, sweeping for idle contexts every ExpirySweepInterval until
// ctx is cancelled. Each sweep removes expired contexts from a shard while
// holding that shard's write lock, then disposes them after releasing it,
// so ContextDisposed is never emitted with a shard lock held.
func (f *Factory) Run(ctx context.Context) {
	ticker := time.NewTicker(f.opts.ExpirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.sweep()
		}
	}
}

func (f *Factory) sweep() {
	cutoff := time.Now().Add(-f.opts.ContextExpiration)
	for _, s := range f.shards {
		var victims []*flightcontext.FlightContext
		s.mu.Lock()
		for id, ctx := range s.contexts {
			if ctx.LastActive().Before(cutoff) {
				victims = append(victims, ctx)
				delete(s.contexts, id)
			}
		}
		s.mu.Unlock()

		for _, ctx := range victims {
			ctx.Dispose()
		}
	}
}
