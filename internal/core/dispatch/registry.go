// Package dispatch routes named inbound events to handlers.
//
// A Builder collects name -> handler bindings once, at connection setup, and
// Build freezes them into a Registry. A Registry is never mutated afterwards,
// so concurrent Dispatch calls need no locking.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

type Builder struct {
	handlers    map[string]Handler
	middlewares []Middleware
}

func NewBuilder() *Builder {
	return &Builder{handlers: make(map[string]Handler)}
}

// Register binds name to h. A name may be bound once; a second binding is
// rejected with ErrDuplicateEvent and the first one is kept.
func (b *Builder) Register(name string, h Handler) error {
	if name == "" {
		return ErrEmptyEventName
	}
	if h == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, name)
	}
	if _, exists := b.handlers[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateEvent, name)
	}
	b.handlers[name] = h
	return nil
}

// Use appends middlewares that wrap every handler at Build time. The first
// middleware added is the outermost.
func (b *Builder) Use(mw ...Middleware) {
	for _, m := range mw {
		if m != nil {
			b.middlewares = append(b.middlewares, m)
		}
	}
}

// Build snapshots the bindings. The builder may keep being used; the
// returned Registry does not see later registrations.
func (b *Builder) Build() *Registry {
	handlers := make(map[string]Handler, len(b.handlers))
	for name, h := range b.handlers {
		for i := len(b.middlewares) - 1; i >= 0; i-- {
			h = b.middlewares[i](name, h)
		}
		handlers[name] = h
	}
	return &Registry{handlers: handlers}
}

type Registry struct {
	handlers map[string]Handler
}

// Dispatch invokes the handler bound to env.Event. Unknown events are
// dropped and return nil. Arg mismatches return a *DecodeError.
func (r *Registry) Dispatch(ctx context.Context, env Envelope) error {
	h, ok := r.handlers[env.Event]
	if !ok {
		return nil
	}

	err := h(ctx, env.Args)
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) && decodeErr.Event == "" {
		decodeErr.Event = env.Event
	}
	return err
}

// DispatchRaw parses data as an Envelope and dispatches it.
func (r *Registry) DispatchRaw(ctx context.Context, data []byte) error {
	env, err := ParseEnvelope(data)
	if err != nil {
		return err
	}
	return r.Dispatch(ctx, env)
}

func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns the bound event names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
