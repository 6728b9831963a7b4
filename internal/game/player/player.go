// Package player implements the user-controlled actor spawned for every connection.
package player

import (
	"sync"
	"time"

	"github.com/zeusync/arena/internal/core/actor"
	"github.com/zeusync/arena/internal/core/observability/log"
)

// DefaultTickInterval is how often a player's interval logic runs.
const DefaultTickInterval = time.Second

var _ actor.Actor = (*Player)(nil)

// Player is a ticking actor with an inventory of item identifiers.
type Player struct {
	actor.Base

	name  string
	timer *actor.Timer

	mu        sync.Mutex
	inventory []string

	ticks  int64
	logger log.Log
}

type Option func(*options)

type options struct {
	interval time.Duration
	clock    actor.Clock
	logger   log.Log
}

func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

func WithClock(c actor.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l log.Log) Option {
	return func(o *options) { o.logger = l }
}

func New(name string, position actor.Vec2, health float32, opts ...Option) *Player {
	o := options{
		interval: DefaultTickInterval,
		clock:    actor.SystemClock,
		logger:   log.Provide(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Player{
		Base:   actor.NewBase(position, health),
		name:   name,
		timer:  actor.NewTimer(o.interval, actor.WithClock(o.clock)),
		logger: o.logger.With(log.String("component", "player"), log.String("name", name)),
	}
}

func (p *Player) Name() string { return p.name }

func (p *Player) Init() {
	p.logger.Info("Player initialized",
		log.Float64("x", float64(p.Position.X)),
		log.Float64("y", float64(p.Position.Y)),
		log.Float64("health", float64(p.Health)))
}

func (p *Player) Update() {}

func (p *Player) Render() {}

func (p *Player) OnTick() {
	p.ticks++
	p.logger.Debug("Player ticked",
		log.Int64("ticks", p.ticks),
		log.Float64("x", float64(p.Position.X)),
		log.Float64("y", float64(p.Position.Y)))
}

func (p *Player) UsesTick() bool { return true }

func (p *Player) Timer() *actor.Timer { return p.timer }

// Ticks is only meaningful on the frame goroutine.
func (p *Player) Ticks() int64 { return p.ticks }

// AddItem may be called from connection goroutines.
func (p *Player) AddItem(id string) {
	p.mu.Lock()
	p.inventory = append(p.inventory, id)
	p.mu.Unlock()
}

// RemoveItem drops the first occurrence of id.
func (p *Player) RemoveItem(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, item := range p.inventory {
		if item == id {
			p.inventory = append(p.inventory[:i], p.inventory[i+1:]...)
			return true
		}
	}
	return false
}

// Inventory returns a copy.
func (p *Player) Inventory() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.inventory))
	copy(out, p.inventory)
	return out
}
