package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler consumes the positional args of one event.
type Handler func(ctx context.Context, args []json.RawMessage) error

// Middleware wraps the handler bound to event.
type Middleware func(event string, next Handler) Handler

// Func0 binds a handler that takes no args.
func Func0(fn func(ctx context.Context) error) Handler {
	return func(ctx context.Context, args []json.RawMessage) error {
		if err := checkArity(args, 0); err != nil {
			return err
		}
		return fn(ctx)
	}
}

// Func1 binds a handler taking exactly one arg decoded into A.
func Func1[A any](fn func(ctx context.Context, a A) error) Handler {
	return func(ctx context.Context, args []json.RawMessage) error {
		if err := checkArity(args, 1); err != nil {
			return err
		}
		var a A
		if err := decodeArg(args, 0, &a); err != nil {
			return err
		}
		return fn(ctx, a)
	}
}

// Func2 binds a handler taking exactly two args decoded into A and B.
func Func2[A, B any](fn func(ctx context.Context, a A, b B) error) Handler {
	return func(ctx context.Context, args []json.RawMessage) error {
		if err := checkArity(args, 2); err != nil {
			return err
		}
		var (
			a A
			b B
		)
		if err := decodeArg(args, 0, &a); err != nil {
			return err
		}
		if err := decodeArg(args, 1, &b); err != nil {
			return err
		}
		return fn(ctx, a, b)
	}
}

func checkArity(args []json.RawMessage, want int) error {
	if len(args) != want {
		return &DecodeError{Reason: fmt.Sprintf("want %d args, got %d", want, len(args))}
	}
	return nil
}

func decodeArg(args []json.RawMessage, i int, out any) error {
	if err := json.Unmarshal(args[i], out); err != nil {
		return &DecodeError{Reason: fmt.Sprintf("arg %d", i), Err: err}
	}
	return nil
}
