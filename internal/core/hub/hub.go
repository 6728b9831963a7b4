// Package hub tracks the currently connected peers by name.
//
// It is the only state shared across connection goroutines. Peers are spread
// over lock-protected shards chosen by hashing the peer name, so whisper
// lookups only contend with peers whose names land on the same shard.
package hub

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/arena/internal/core/observability/log"
)

// DefaultShards is used when New is given a non-positive shard count.
const DefaultShards = 16

// Peer is the outbound side of one connection.
type Peer interface {
	// ID is unique per connection.
	ID() string
	// Name is the recipient identifier the peer claimed. It is not authenticated.
	Name() string
	// Emit enqueues an event without waiting for delivery.
	Emit(event string, args ...any) error
}

type shard struct {
	mu     sync.RWMutex
	byName map[string]map[string]Peer // name -> id -> peer
}

type Hub struct {
	shards []*shard
	peers  int64 // atomic
	logger log.Log
}

// Stats is a snapshot of hub occupancy.
type Stats struct {
	Peers int64 `json:"peers"`
	Names int   `json:"names"`
}

// BroadcastResult counts the outcome of one fan-out.
type BroadcastResult struct {
	Delivered int
	Failed    int
}

func New(shards int, logger log.Log) *Hub {
	if shards <= 0 {
		shards = DefaultShards
	}
	if logger == nil {
		logger = log.Provide()
	}
	h := &Hub{
		shards: make([]*shard, shards),
		logger: logger.With(log.String("component", "hub")),
	}
	for i := range h.shards {
		h.shards[i] = &shard{byName: make(map[string]map[string]Peer)}
	}
	return h
}

func (h *Hub) shardFor(name string) *shard {
	return h.shards[xxhash.Sum64String(name)%uint64(len(h.shards))]
}

// Register adds p under its name. Several peers may share a name.
func (h *Hub) Register(p Peer) error {
	if p == nil {
		return ErrNilPeer
	}

	s := h.shardFor(p.Name())
	s.mu.Lock()
	peers, ok := s.byName[p.Name()]
	if !ok {
		peers = make(map[string]Peer)
		s.byName[p.Name()] = peers
	}
	if _, exists := peers[p.ID()]; exists {
		s.mu.Unlock()
		return ErrPeerRegistered
	}
	peers[p.ID()] = p
	s.mu.Unlock()

	total := atomic.AddInt64(&h.peers, 1)
	h.logger.Info("Peer registered",
		log.String("client_id", p.ID()),
		log.String("name", p.Name()),
		log.Int64("peers", total))
	return nil
}

// Unregister removes p and reports whether it was present.
func (h *Hub) Unregister(p Peer) bool {
	if p == nil {
		return false
	}

	s := h.shardFor(p.Name())
	s.mu.Lock()
	peers, ok := s.byName[p.Name()]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if _, exists := peers[p.ID()]; !exists {
		s.mu.Unlock()
		return false
	}
	delete(peers, p.ID())
	if len(peers) == 0 {
		delete(s.byName, p.Name())
	}
	s.mu.Unlock()

	total := atomic.AddInt64(&h.peers, -1)
	h.logger.Info("Peer unregistered",
		log.String("client_id", p.ID()),
		log.String("name", p.Name()),
		log.Int64("peers", total))
	return true
}

// Lookup returns the peers currently registered under name, ordered by ID.
func (h *Hub) Lookup(name string) []Peer {
	s := h.shardFor(name)
	s.mu.RLock()
	peers := s.byName[name]
	out := make([]Peer, 0, len(peers))
	for _, p := range peers {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Each calls fn for a snapshot of every registered peer. fn runs without
// any hub lock held.
func (h *Hub) Each(fn func(Peer)) {
	for _, p := range h.snapshot() {
		fn(p)
	}
}

// Broadcast emits to every peer except origin. A failed emit is logged and
// the fan-out continues; nothing is retried. origin may be nil.
func (h *Hub) Broadcast(origin Peer, event string, args ...any) BroadcastResult {
	var originID string
	if origin != nil {
		originID = origin.ID()
	}

	var result BroadcastResult
	for _, p := range h.snapshot() {
		if origin != nil && p.ID() == originID {
			continue
		}
		if err := p.Emit(event, args...); err != nil {
			result.Failed++
			h.logger.Warn("Broadcast delivery failed",
				log.String("event", event),
				log.String("client_id", p.ID()),
				log.Error(err))
			continue
		}
		result.Delivered++
	}
	return result
}

func (h *Hub) Count() int64 {
	return atomic.LoadInt64(&h.peers)
}

func (h *Hub) Stats() Stats {
	names := 0
	for _, s := range h.shards {
		s.mu.RLock()
		names += len(s.byName)
		s.mu.RUnlock()
	}
	return Stats{Peers: h.Count(), Names: names}
}

func (h *Hub) snapshot() []Peer {
	out := make([]Peer, 0, h.Count())
	for _, s := range h.shards {
		s.mu.RLock()
		for _, peers := range s.byName {
			for _, p := range peers {
				out = append(out, p)
			}
		}
		s.mu.RUnlock()
	}
	return out
}
