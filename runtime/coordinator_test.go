package runtime

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rendezvous/domain/event"
	"rendezvous/errors"
	"rendezvous/mocks"
)

func newTestCoordinator() *Coordinator {
	log := testLogger()
	return NewCoordinator(log, NewRegistry(log))
}

func TestCoordinator_Join_Requires_Room_And_Name(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()

	_, err := c.Join("", "Ada")
	req.ErrorIs(err, errors.ErrInvalidRequest)

	_, err = c.Join("r1", "   ")
	req.ErrorIs(err, errors.ErrInvalidRequest)
}

func TestCoordinator_Join_Normalizes_Room_And_Caps_Name(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()

	res, err := c.Join("  r1  ", "  "+strings.Repeat("x", 80)+"  ")

	req.NoError(err)
	req.EqualValues("r1", res.Room)
	req.Len([]rune(res.Name), 64)
	req.NotEmpty(res.ClientID)
}

func TestCoordinator_Join_Scenario_Ada_Then_Grace(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	ctx := context.Background()

	// Given Ada joined an unseen room with an empty peer list
	ada, err := c.Join("r1", "Ada")
	req.NoError(err)
	req.Empty(ada.Peers)

	// And Ada's stream is attached
	adaStream := NewStreamHandle(testLogger(), 4)
	req.NoError(c.Attach("r1", string(ada.ClientID), adaStream))

	// When Grace joins and her join is announced
	grace, err := c.Join("r1", "Grace")
	req.NoError(err)
	c.AnnouncePeerJoined(ctx, grace)

	// Then Grace's snapshot holds exactly Ada
	req.Len(grace.Peers, 1)
	req.Equal(ada.ClientID, grace.Peers[0].ClientID)
	req.Equal("Ada", grace.Peers[0].Name)

	// And Ada's stream received peer-joined for Grace
	got := <-adaStream.Events()
	req.Equal(event.PeerJoined{ClientID: string(grace.ClientID), Name: "Grace"}, got)
}

func TestCoordinator_Announce_Never_Reaches_The_Subject(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	ctx := context.Background()

	res, err := c.Join("r1", "Ada")
	req.NoError(err)
	stream := NewStreamHandle(testLogger(), 4)
	req.NoError(c.Attach("r1", string(res.ClientID), stream))

	// Announcing a join must exclude the subject even when it is attached
	c.AnnouncePeerJoined(ctx, res)

	select {
	case e := <-stream.Events():
		t.Fatalf("subject received its own announcement: %v", e)
	default:
	}
}

func TestCoordinator_Relay_Delivers_One_Verbatim_Signal(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	ctx := context.Background()

	a, err := c.Join("r1", "Ada")
	req.NoError(err)
	b, err := c.Join("r1", "Grace")
	req.NoError(err)
	bStream := NewStreamHandle(testLogger(), 4)
	req.NoError(c.Attach("r1", string(b.ClientID), bStream))

	payload := []byte(`{"type":"offer","sdp":"v=0..."}`)
	req.NoError(c.Relay(ctx, "r1", string(a.ClientID), string(b.ClientID), payload))

	got := <-bStream.Events()
	sig, ok := got.(event.Signal)
	req.True(ok)
	req.Equal(string(a.ClientID), sig.From)
	req.Equal(payload, []byte(sig.Data))

	select {
	case extra := <-bStream.Events():
		t.Fatalf("more than one frame delivered: %v", extra)
	default:
	}
}

func TestCoordinator_Relay_Error_Taxonomy(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	ctx := context.Background()
	data := []byte(`{}`)

	// Missing fields
	req.ErrorIs(c.Relay(ctx, "", "a", "b", data), errors.ErrInvalidRequest)
	req.ErrorIs(c.Relay(ctx, "r1", "a", "b", nil), errors.ErrInvalidRequest)

	// Unknown room
	req.ErrorIs(c.Relay(ctx, "r1", "a", "b", data), errors.ErrRoomNotFound)

	a, err := c.Join("r1", "Ada")
	req.NoError(err)
	b, err := c.Join("r1", "Grace")
	req.NoError(err)

	// Unknown target in a live room
	req.ErrorIs(c.Relay(ctx, "r1", string(a.ClientID), "ghost", data), errors.ErrNotRegistered)

	// Registered target that never attached its stream: retryable
	req.ErrorIs(
		c.Relay(ctx, "r1", string(a.ClientID), string(b.ClientID), data),
		errors.ErrRecipientUnavailable,
	)
}

func TestCoordinator_Relay_Closed_Handle_Reads_Retryable(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	sink := mocks.NewMockEventSink(ctrl)
	c := NewCoordinator(testLogger(), registry)

	// The target resolves, but its handle closed between resolution and
	// write: the sender sees the same retryable condition as no-stream.
	registry.EXPECT().TargetSink(gomock.Any(), gomock.Any()).Return(sink, nil)
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(errors.ErrStreamClosed)

	err := c.Relay(context.Background(), "r1", "a", "b", []byte(`{}`))
	req.ErrorIs(err, errors.ErrRecipientUnavailable)
}

func TestCoordinator_Leave_Notifies_Remaining_And_Closes_Stream(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	ctx := context.Background()

	a, err := c.Join("r1", "Ada")
	req.NoError(err)
	b, err := c.Join("r1", "Grace")
	req.NoError(err)

	aStream := NewStreamHandle(testLogger(), 4)
	bStream := NewStreamHandle(testLogger(), 4)
	req.NoError(c.Attach("r1", string(a.ClientID), aStream))
	req.NoError(c.Attach("r1", string(b.ClientID), bStream))

	// When Grace leaves
	c.Leave(ctx, "r1", string(b.ClientID))

	// Then Ada observes peer-left and Grace's own stream is closed
	got := <-aStream.Events()
	req.Equal(event.PeerLeft{ClientID: string(b.ClientID)}, got)
	select {
	case <-bStream.Done():
	default:
		t.Fatal("left client's stream should be closed")
	}

	// And relaying to Grace now reads as absence, not unavailability
	err = c.Relay(ctx, "r1", string(a.ClientID), string(b.ClientID), []byte(`{}`))
	req.ErrorIs(err, errors.ErrNotRegistered)
}

func TestCoordinator_Leave_Then_Disconnect_Notifies_Once(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	ctx := context.Background()

	a, err := c.Join("r1", "Ada")
	req.NoError(err)
	b, err := c.Join("r1", "Grace")
	req.NoError(err)
	aStream := NewStreamHandle(testLogger(), 4)
	bStream := NewStreamHandle(testLogger(), 4)
	req.NoError(c.Attach("r1", string(a.ClientID), aStream))
	req.NoError(c.Attach("r1", string(b.ClientID), bStream))

	// When explicit leave runs first and the serving loop's teardown follows
	c.Leave(ctx, "r1", string(b.ClientID))
	c.Disconnect(ctx, "r1", string(b.ClientID), bStream)

	// Then exactly one peer-left reached Ada
	<-aStream.Events()
	select {
	case extra := <-aStream.Events():
		t.Fatalf("duplicate notification: %v", extra)
	default:
	}
}

func TestCoordinator_Reattach_Survives_Old_Loop_Teardown(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	ctx := context.Background()

	ada, err := c.Join("r1", "Ada")
	req.NoError(err)
	bob, err := c.Join("r1", "Bob")
	req.NoError(err)
	bobStream := NewStreamHandle(testLogger(), 4)
	req.NoError(c.Attach("r1", string(bob.ClientID), bobStream))

	// Given Ada reattached over a fresh transport
	stale := NewStreamHandle(testLogger(), 4)
	req.NoError(c.Attach("r1", string(ada.ClientID), stale))
	fresh := NewStreamHandle(testLogger(), 4)
	req.NoError(c.Attach("r1", string(ada.ClientID), fresh))

	// When the replaced loop notices its closed handle and tears down
	c.Disconnect(ctx, "r1", string(ada.ClientID), stale)

	// Then Ada's session is still live and reachable on the new stream
	payload := []byte(`{"type":"offer"}`)
	req.NoError(c.Relay(ctx, "r1", string(bob.ClientID), string(ada.ClientID), payload))
	got := <-fresh.Events()
	sig, ok := got.(event.Signal)
	req.True(ok)
	req.Equal(string(bob.ClientID), sig.From)

	// And Bob never saw Ada leave
	select {
	case e := <-bobStream.Events():
		t.Fatalf("spurious notification: %v", e)
	default:
	}
}

func TestCoordinator_Last_Leave_Empties_The_Registry(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	ctx := context.Background()

	a, err := c.Join("r1", "Ada")
	req.NoError(err)
	c.Leave(ctx, "r1", string(a.ClientID))

	rooms, sessions := c.Stats()
	req.Zero(rooms)
	req.Zero(sessions)
}
