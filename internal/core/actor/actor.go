package actor

// Actor is the contract every game entity implements. All methods are
// invoked by the Runtime, never by the actor itself.
type Actor interface {
	// Init runs exactly once, before the actor's first Update.
	Init()
	// Update advances the actor's own state by one frame. It must not block.
	Update()
	// Render emits output for the frame. It must not mutate actor state.
	Render()

	// OnTick runs when the actor's Timer fires.
	OnTick()
	// UsesTick gates tick dispatch. When it is false, Timer and OnTick are never called.
	UsesTick() bool
	// Timer returns the actor's own Timer. It must be non-nil when UsesTick is true.
	Timer() *Timer
}

// Vec2 is a position in world space.
type Vec2 struct {
	X float32
	Y float32
}

// Base carries the state shared by concrete actors and the default,
// non-ticking capability set. Embed it and override what is needed.
type Base struct {
	Position Vec2
	Health   float32
}

func NewBase(position Vec2, health float32) Base {
	return Base{Position: position, Health: health}
}

func (*Base) OnTick() {}

func (*Base) UsesTick() bool { return false }

func (*Base) Timer() *Timer { return nil }
