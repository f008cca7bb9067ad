package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"rendezvous/domain/event"
	"rendezvous/errors"
)

func TestStreamHandle_Consume_Preserves_Sender_Order(t *testing.T) {
	req := require.New(t)
	handle := NewStreamHandle(testLogger(), 4)
	ctx := context.Background()

	// When three events are consumed in order
	req.NoError(handle.Consume(ctx, event.Signal{From: "a", Data: []byte(`1`)}))
	req.NoError(handle.Consume(ctx, event.Signal{From: "a", Data: []byte(`2`)}))
	req.NoError(handle.Consume(ctx, event.Signal{From: "a", Data: []byte(`3`)}))

	// Then the serving side drains them in the same order
	for _, want := range []string{`1`, `2`, `3`} {
		got := <-handle.Events()
		sig, ok := got.(event.Signal)
		req.True(ok)
		req.JSONEq(want, string(sig.Data))
	}
}

func TestStreamHandle_Consume_Drops_When_Buffer_Full(t *testing.T) {
	req := require.New(t)
	handle := NewStreamHandle(testLogger(), 1)
	ctx := context.Background()

	req.NoError(handle.Consume(ctx, event.PeerLeft{ClientID: "a"}))

	// A full buffer drops silently instead of blocking the fanout
	req.NoError(handle.Consume(ctx, event.PeerLeft{ClientID: "b"}))

	first := <-handle.Events()
	req.Equal(event.PeerLeft{ClientID: "a"}, first)
	select {
	case extra := <-handle.Events():
		t.Fatalf("unexpected buffered event: %v", extra)
	default:
	}
}

func TestStreamHandle_Consume_After_Close_Fails(t *testing.T) {
	req := require.New(t)
	handle := NewStreamHandle(testLogger(), 4)

	handle.Close()

	err := handle.Consume(context.Background(), event.PeerLeft{ClientID: "a"})
	req.ErrorIs(err, errors.ErrStreamClosed)
}

func TestStreamHandle_Close_Is_Idempotent(t *testing.T) {
	handle := NewStreamHandle(testLogger(), 4)

	handle.Close()
	handle.Close()

	select {
	case <-handle.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestStreamHandle_Consume_Honors_Canceled_Context(t *testing.T) {
	req := require.New(t)
	handle := NewStreamHandle(testLogger(), 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := handle.Consume(ctx, event.PeerLeft{ClientID: "a"})
	req.ErrorIs(err, context.Canceled)
}
