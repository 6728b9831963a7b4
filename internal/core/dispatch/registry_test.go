package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type call struct {
	a, b string
}

func whisperRecorder(calls *[]call) Handler {
	return Func2(func(_ context.Context, recipient, message string) error {
		*calls = append(*calls, call{recipient, message})
		return nil
	})
}

func TestDispatch_InvokesBoundHandlerWithArgs(t *testing.T) {
	var calls []call
	b := NewBuilder()
	require.NoError(t, b.Register("whisper", whisperRecorder(&calls)))
	reg := b.Build()

	env, err := NewEnvelope("whisper", "bob", "hi")
	require.NoError(t, err)
	require.NoError(t, reg.Dispatch(context.Background(), env))

	assert.Equal(t, []call{{"bob", "hi"}}, calls)
}

func TestDispatch_UnknownEventIsDropped(t *testing.T) {
	var calls []call
	b := NewBuilder()
	require.NoError(t, b.Register("whisper", whisperRecorder(&calls)))
	reg := b.Build()

	env, _ := NewEnvelope("dance", "now")
	assert.NoError(t, reg.Dispatch(context.Background(), env))
	assert.Empty(t, calls)
}

func TestDispatch_DecodeErrors(t *testing.T) {
	var calls []call
	b := NewBuilder()
	require.NoError(t, b.Register("whisper", whisperRecorder(&calls)))
	reg := b.Build()

	cases := map[string]string{
		"too few args":  `{"event":"whisper","args":["bob"]}`,
		"too many args": `{"event":"whisper","args":["bob","hi","extra"]}`,
		"wrong type":    `{"event":"whisper","args":["bob",42]}`,
		"no args":       `{"event":"whisper"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			err := reg.DispatchRaw(context.Background(), []byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, "whisper", decodeErr.Event)
		})
	}
	assert.Empty(t, calls)
}

func TestDispatchRaw_MalformedEnvelope(t *testing.T) {
	reg := NewBuilder().Build()

	err := reg.DispatchRaw(context.Background(), []byte(`{not json`))
	assert.ErrorIs(t, err, ErrDecode)

	err = reg.DispatchRaw(context.Background(), []byte(`{"args":["x"]}`))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDispatch_HandlerErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	b := NewBuilder()
	require.NoError(t, b.Register("fail", Func0(func(context.Context) error { return boom })))

	err := b.Build().Dispatch(context.Background(), Envelope{Event: "fail"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDecode)
}

func TestBuilder_RejectsDuplicates(t *testing.T) {
	var first, second int
	b := NewBuilder()
	require.NoError(t, b.Register("command", Func1(func(context.Context, string) error { first++; return nil })))

	err := b.Register("command", Func1(func(context.Context, string) error { second++; return nil }))
	assert.ErrorIs(t, err, ErrDuplicateEvent)

	env, _ := NewEnvelope("command", "help")
	require.NoError(t, b.Build().Dispatch(context.Background(), env))
	assert.Equal(t, 1, first)
	assert.Zero(t, second)
}

func TestBuilder_RejectsInvalidBindings(t *testing.T) {
	b := NewBuilder()
	assert.ErrorIs(t, b.Register("", Func0(func(context.Context) error { return nil })), ErrEmptyEventName)
	assert.ErrorIs(t, b.Register("x", nil), ErrNilHandler)
}

func TestRegistry_IsASnapshot(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register("a", Func0(func(context.Context) error { return nil })))
	reg := b.Build()
	require.NoError(t, b.Register("b", Func0(func(context.Context) error { return nil })))

	assert.True(t, reg.Has("a"))
	assert.False(t, reg.Has("b"))
	assert.Equal(t, []string{"a"}, reg.Names())
	assert.Equal(t, []string{"a", "b"}, b.Build().Names())
}

func TestBuilder_UseWrapsInOrder(t *testing.T) {
	var trace []string
	tag := func(label string) Middleware {
		return func(event string, next Handler) Handler {
			return func(ctx context.Context, args []json.RawMessage) error {
				trace = append(trace, label+":"+event)
				return next(ctx, args)
			}
		}
	}

	b := NewBuilder()
	b.Use(tag("outer"), nil, tag("inner"))
	require.NoError(t, b.Register("ping", Func0(func(context.Context) error {
		trace = append(trace, "handler")
		return nil
	})))

	require.NoError(t, b.Build().DispatchRaw(context.Background(), []byte(`{"event":"ping"}`)))
	assert.Equal(t, []string{"outer:ping", "inner:ping", "handler"}, trace)
}

func TestEnvelope_Decode(t *testing.T) {
	env, err := NewEnvelope("move", 3, "north")
	require.NoError(t, err)

	var steps int
	var dir string
	require.NoError(t, env.Decode(0, &steps))
	require.NoError(t, env.Decode(1, &dir))
	assert.Equal(t, 3, steps)
	assert.Equal(t, "north", dir)

	assert.ErrorIs(t, env.Decode(2, &dir), ErrDecode)
	assert.ErrorIs(t, env.Decode(1, &steps), ErrDecode)

	_, err = NewEnvelope("bad", func() {})
	assert.Error(t, err)
}

func TestEncode_WireShape(t *testing.T) {
	data, err := Encode("broadcast", "hi")
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"broadcast","args":["hi"]}`, string(data))

	data, err = Encode("ping")
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"ping"}`, string(data))
}

func TestDispatch_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		recipient := rapid.String().Draw(t, "recipient")
		message := rapid.String().Draw(t, "message")
		other := rapid.StringMatching(`[a-z]{1,12}`).Filter(func(s string) bool {
			return s != "whisper"
		}).Draw(t, "other_event")

		var calls []call
		b := NewBuilder()
		if err := b.Register("whisper", whisperRecorder(&calls)); err != nil {
			t.Fatal(err)
		}
		reg := b.Build()

		data, err := Encode("whisper", recipient, message)
		if err != nil {
			t.Fatal(err)
		}
		if err := reg.DispatchRaw(context.Background(), data); err != nil {
			t.Fatalf("dispatch: %v", err)
		}

		raw, _ := json.Marshal(Envelope{Event: other})
		if err := reg.DispatchRaw(context.Background(), raw); err != nil {
			t.Fatalf("unknown event should be dropped: %v", err)
		}

		if len(calls) != 1 || calls[0] != (call{recipient, message}) {
			t.Fatalf("got calls %v, want exactly [(%q, %q)]", calls, recipient, message)
		}
	})
}
