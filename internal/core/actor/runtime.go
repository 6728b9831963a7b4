package actor

import (
	"sync"
	"sync/atomic"

	"github.com/zeusync/arena/internal/core/observability/log"
)

// Runtime owns a set of actors and advances them one frame at a time.
//
// RegisterActor and RemoveActor may be called from any goroutine; their
// effect is applied at the start of the next frame. RunFrame itself must only
// be called from a single goroutine. Actors are used as map keys, so concrete
// actor types must be comparable (pointer receivers in practice).
type Runtime struct {
	mu      sync.Mutex
	members map[Actor]struct{}
	pending []Actor
	removed []Actor

	// touched only by the frame goroutine
	active []Actor

	frames    int64 // atomic
	tickFires int64 // atomic
	actors    int64 // atomic

	logger log.Log
}

// Stats is a snapshot of runtime counters.
type Stats struct {
	Frames      int64 `json:"frames"`
	TickFires   int64 `json:"tick_fires"`
	Actors      int64 `json:"actors"`
	PendingInit int   `json:"pending_init"`
}

func NewRuntime(logger log.Log) *Runtime {
	if logger == nil {
		logger = log.Provide()
	}
	return &Runtime{
		members: make(map[Actor]struct{}),
		logger:  logger.With(log.String("component", "actor_runtime")),
	}
}

// RegisterActor schedules a to join at the next frame, where its Init runs
// before its first Update.
func (r *Runtime) RegisterActor(a Actor) error {
	if a == nil {
		return ErrNilActor
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[a]; exists {
		return ErrActorRegistered
	}
	r.members[a] = struct{}{}
	r.pending = append(r.pending, a)
	return nil
}

// RemoveActor detaches a at the next frame boundary. It reports whether a was registered.
func (r *Runtime) RemoveActor(a Actor) bool {
	if a == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[a]; !exists {
		return false
	}
	delete(r.members, a)

	for i, p := range r.pending {
		if p == a {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return true
		}
	}
	r.removed = append(r.removed, a)
	return true
}

// RunFrame advances every actor by one frame in registration order:
// Update, Render, then OnTick if the actor ticks and its Timer fired.
func (r *Runtime) RunFrame() {
	r.mu.Lock()
	joining := r.pending
	leaving := r.removed
	r.pending = nil
	r.removed = nil
	r.mu.Unlock()

	if len(leaving) > 0 {
		r.active = without(r.active, leaving)
	}
	for _, a := range joining {
		a.Init()
		r.active = append(r.active, a)
	}
	if len(joining) > 0 || len(leaving) > 0 {
		atomic.StoreInt64(&r.actors, int64(len(r.active)))
		r.logger.Debug("Actor set changed",
			log.Int("joined", len(joining)),
			log.Int("left", len(leaving)),
			log.Int("active", len(r.active)))
	}

	var fired int64
	for _, a := range r.active {
		a.Update()
		a.Render()

		if !a.UsesTick() {
			continue
		}
		if timer := a.Timer(); timer != nil && timer.Tick() {
			a.OnTick()
			fired++
		}
	}

	if fired > 0 {
		atomic.AddInt64(&r.tickFires, fired)
	}
	atomic.AddInt64(&r.frames, 1)
}

func (r *Runtime) Stats() Stats {
	r.mu.Lock()
	pending := len(r.pending)
	r.mu.Unlock()

	return Stats{
		Frames:      atomic.LoadInt64(&r.frames),
		TickFires:   atomic.LoadInt64(&r.tickFires),
		Actors:      atomic.LoadInt64(&r.actors),
		PendingInit: pending,
	}
}

func without(active, leaving []Actor) []Actor {
	gone := make(map[Actor]struct{}, len(leaving))
	for _, a := range leaving {
		gone[a] = struct{}{}
	}
	kept := active[:0]
	for _, a := range active {
		if _, ok := gone[a]; !ok {
			kept = append(kept, a)
		}
	}
	for i := len(kept); i < len(active); i++ {
		active[i] = nil
	}
	return kept
}
