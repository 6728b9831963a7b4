package middlewares

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/zeusync/arena/internal/core/dispatch"
)

// EventMetrics aggregates handler calls for one event name.
type EventMetrics struct {
	Event     string        `json:"event"`
	Count     int64         `json:"count"`
	Errors    int64         `json:"errors"`
	TotalTime time.Duration `json:"total_time"`
}

// Metrics collects per-event counters. A single Metrics may be shared by
// every connection's registry.
type Metrics struct {
	mu     sync.Mutex
	events map[string]*EventMetrics
}

func NewMetrics() *Metrics {
	return &Metrics{events: make(map[string]*EventMetrics)}
}

func (m *Metrics) Middleware() dispatch.Middleware {
	return func(event string, next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, args []json.RawMessage) error {
			start := time.Now()
			err := next(ctx, args)
			m.record(event, time.Since(start), err)
			return err
		}
	}
}

func (m *Metrics) record(event string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	em, ok := m.events[event]
	if !ok {
		em = &EventMetrics{Event: event}
		m.events[event] = em
	}
	em.Count++
	em.TotalTime += d
	if err != nil {
		em.Errors++
	}
}

// Snapshot returns a copy of the counters sorted by event name.
func (m *Metrics) Snapshot() []EventMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]EventMetrics, 0, len(m.events))
	for _, em := range m.events {
		out = append(out, *em)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Event < out[j].Event })
	return out
}
