package runtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"rendezvous/contract"
	"rendezvous/domain"
	"rendezvous/domain/event"
	"rendezvous/errors"
)

// JoinResult is what a joining client gets back: its generated id and the
// peer snapshot taken before its own insertion.
type JoinResult struct {
	ClientID domain.ClientID
	Room     domain.RoomID
	Name     string
	Peers    []domain.Peer
}

// Coordinator drives the per-client lifecycle across one room:
//
//	UNREGISTERED -> JOINED (no stream) -> STREAMING -> GONE
//
// Explicit leave and transport-level stream closure funnel into the same
// idempotent teardown, so a session is removed exactly once no matter how
// many triggers fire.
type Coordinator struct {
	log      *slog.Logger
	registry contract.IRegistry
}

func NewCoordinator(log *slog.Logger, registry contract.IRegistry) *Coordinator {
	return &Coordinator{log: log, registry: registry}
}

// Join registers a new session and returns the current peer set. It does NOT
// notify the room: the caller announces the join only after the response has
// been written, so a client can never observe a peer-joined for a join whose
// response is still in flight.
func (c *Coordinator) Join(roomRaw, nameRaw string) (JoinResult, error) {
	roomID := domain.NormalizeRoomID(roomRaw)
	name := domain.NormalizeDisplayName(nameRaw)
	if roomID == "" || name == "" {
		return JoinResult{}, errors.ErrInvalidRequest
	}

	clientID := domain.ClientID(uuid.NewString())
	peers, err := c.registry.Insert(roomID, clientID, name)
	if err != nil {
		return JoinResult{}, err
	}

	c.log.Info("Client joined", "room", roomID, "client", clientID, "peers", len(peers))
	return JoinResult{ClientID: clientID, Room: roomID, Name: name, Peers: peers}, nil
}

// AnnouncePeerJoined fans out peer-joined to every attached session of the
// room except the subject itself.
func (c *Coordinator) AnnouncePeerJoined(ctx context.Context, res JoinResult) {
	c.broadcast(ctx, res.Room, res.ClientID, event.PeerJoined{
		ClientID: string(res.ClientID),
		Name:     res.Name,
	})
}

// Attach binds a live stream handle to a previously joined session.
func (c *Coordinator) Attach(roomRaw, clientRaw string, sink contract.EventSink) error {
	roomID := domain.NormalizeRoomID(roomRaw)
	if roomID == "" || clientRaw == "" {
		return errors.ErrInvalidRequest
	}
	if err := c.registry.AttachStream(roomID, domain.ClientID(clientRaw), sink); err != nil {
		return err
	}
	c.log.Info("Stream attached", "room", roomID, "client", clientRaw)
	return nil
}

// Leave tears the session down: idempotent removal, stream closure, peer-left
// fanout to the remaining peers, and room deletion when the table empties
// (the registry folds the last two table steps into one critical section).
// A leave for an already absent session is a no-op.
func (c *Coordinator) Leave(ctx context.Context, roomRaw, clientRaw string) {
	roomID := domain.NormalizeRoomID(roomRaw)
	clientID := domain.ClientID(clientRaw)

	sink, ok := c.registry.Remove(roomID, clientID)
	if !ok {
		return
	}
	if sink != nil {
		sink.Close()
	}

	c.log.Info("Client left", "room", roomID, "client", clientID)
	// The subject is already removed; its id is still excluded from the
	// recipient snapshot.
	c.broadcast(ctx, roomID, clientID, event.PeerLeft{ClientID: string(clientID)})
}

// Disconnect is the transport-closure path. Teardown happens only when the
// given handle is still the session's current one: a serving loop that was
// superseded by a reattach exits without touching the live session, and the
// room never observes a peer-left for a client that is still there.
func (c *Coordinator) Disconnect(ctx context.Context, roomRaw, clientRaw string, sink contract.EventSink) {
	roomID := domain.NormalizeRoomID(roomRaw)
	clientID := domain.ClientID(clientRaw)

	if !c.registry.RemoveIfSink(roomID, clientID, sink) {
		c.log.Debug("Stale stream closed, session kept", "room", roomID, "client", clientID)
		return
	}
	sink.Close()

	c.log.Info("Client disconnected", "room", roomID, "client", clientID)
	c.broadcast(ctx, roomID, clientID, event.PeerLeft{ClientID: string(clientID)})
}

// Relay forwards an opaque payload to exactly one target session. The data
// is never parsed; it reaches the target verbatim under the sender's id.
func (c *Coordinator) Relay(ctx context.Context, roomRaw, fromRaw, targetRaw string, data json.RawMessage) error {
	roomID := domain.NormalizeRoomID(roomRaw)
	if roomID == "" || fromRaw == "" || targetRaw == "" || len(data) == 0 {
		return errors.ErrInvalidRequest
	}

	sink, err := c.registry.TargetSink(roomID, domain.ClientID(targetRaw))
	if err != nil {
		return err
	}

	if err := sink.Consume(ctx, event.Signal{From: fromRaw, Data: data}); err != nil {
		// A closed handle means the target is mid-teardown; its serving loop
		// owns the cleanup. For the sender this is the same retryable
		// condition as a not-yet-attached stream.
		return errors.ErrRecipientUnavailable
	}
	return nil
}

// Stats exposes registry gauges for telemetry and health reporting.
func (c *Coordinator) Stats() (rooms int, sessions int) {
	return c.registry.Stats()
}

// broadcast delivers one event to all attached sessions but the excluded
// one. The recipient snapshot is taken under the room lock; the sends happen
// outside it and never block, so a slow stream cannot stall the others.
func (c *Coordinator) broadcast(ctx context.Context, roomID domain.RoomID, exclude domain.ClientID, e event.Event) {
	for _, sink := range c.registry.Recipients(roomID, exclude) {
		if err := sink.Consume(ctx, e); err != nil {
			// Dead streams reap themselves through their serving loop.
			c.log.Debug("Fanout skipped dead stream", "room", roomID, "kind", e.Kind())
		}
	}
}
