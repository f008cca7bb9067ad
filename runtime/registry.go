// Package runtime handles room state, session lifecycle, and event
// propagation. It orchestrates the relay without containing wire or
// transport logic.
package runtime

import (
	"log/slog"
	"sync"

	"rendezvous/contract"
	"rendezvous/domain"
	"rendezvous/errors"
)

// session is one client's membership record in a room. The sink stays nil
// between Join and stream attachment; a later attach replaces it, and only
// the holder of the current sink may tear the session down.
type session struct {
	id   domain.ClientID
	name string
	sink contract.EventSink
}

type roomState struct {
	mu       sync.Mutex
	sessions map[domain.ClientID]*session
}

// Registry is the process-wide map of room id to room state.
//
// Locking discipline: the registry RWMutex guards the room map, each room's
// mutex guards its session table, lock order is always registry before room.
// Neither lock is ever held across a stream write; fan-out snapshots
// recipients under the room lock and delivers outside it.
type Registry struct {
	mu    sync.RWMutex
	log   *slog.Logger
	rooms map[domain.RoomID]*roomState
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		rooms: make(map[domain.RoomID]*roomState),
	}
}

// Insert adds a session with no stream attached, creating the room on first
// join. It returns the peer snapshot taken before the insertion, so a joiner
// is never listed among its own peers. Two concurrent inserts with the same
// unseen room id observe a single room object.
func (r *Registry) Insert(roomID domain.RoomID, clientID domain.ClientID, name string) ([]domain.Peer, error) {
	// The registry write lock is held across the whole insertion so a
	// concurrent Remove cannot delete the room between its creation and the
	// session landing in its table.
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = &roomState{sessions: make(map[domain.ClientID]*session)}
		r.rooms[roomID] = room
		r.log.Debug("Room created", "room", roomID)
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if _, exists := room.sessions[clientID]; exists {
		// Defensive: the id generator makes this unreachable in practice.
		return nil, errors.ErrDuplicateClient
	}

	peers := make([]domain.Peer, 0, len(room.sessions))
	for _, s := range room.sessions {
		peers = append(peers, domain.Peer{ClientID: s.id, Name: s.name})
	}

	room.sessions[clientID] = &session{id: clientID, name: name}
	return peers, nil
}

// AttachStream binds the live delivery handle to a previously joined session.
// A session that already holds a sink has it closed and replaced: the old
// transport is presumed dead and its serving loop will run the normal
// teardown no-op once it notices.
func (r *Registry) AttachStream(roomID domain.RoomID, clientID domain.ClientID, sink contract.EventSink) error {
	// Holding the read lock across the attach keeps a concurrent Remove from
	// deleting the room mid-operation and leaving the sink on a ghost session.
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return errors.ErrRoomNotFound
	}

	room.mu.Lock()
	s, ok := room.sessions[clientID]
	if !ok {
		room.mu.Unlock()
		return errors.ErrNotRegistered
	}
	previous := s.sink
	s.sink = sink
	room.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	return nil
}

// Remove deletes the session and, in the same critical section, the room
// itself when its table empties: an empty room must never stay observable,
// and a room a session was just inserted into must never be deleted.
// Idempotent: removing an already removed session reports ok=false.
func (r *Registry) Remove(roomID domain.RoomID, clientID domain.ClientID) (contract.EventSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	s, ok := room.sessions[clientID]
	if !ok {
		return nil, false
	}
	delete(room.sessions, clientID)

	if len(room.sessions) == 0 {
		delete(r.rooms, roomID)
		r.log.Debug("Room emptied and deleted", "room", roomID)
	}
	return s.sink, true
}

// RemoveIfSink is the transport-closure variant of Remove: the session goes
// only when its current sink is still the caller's own. A serving loop whose
// handle was replaced by a newer attach gets ok=false and must leave the
// live session alone.
func (r *Registry) RemoveIfSink(roomID domain.RoomID, clientID domain.ClientID, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	s, ok := room.sessions[clientID]
	if !ok || s.sink != sink {
		return false
	}
	delete(room.sessions, clientID)

	if len(room.sessions) == 0 {
		delete(r.rooms, roomID)
		r.log.Debug("Room emptied and deleted", "room", roomID)
	}
	return true
}

// Recipients snapshots the attached sinks of a room, excluding one client.
// Sessions that never attached a stream are skipped: there is no queueing
// or redelivery for them.
func (r *Registry) Recipients(roomID domain.RoomID, exclude domain.ClientID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	var sinks []contract.EventSink
	for id, s := range room.sessions {
		if id == exclude || s.sink == nil {
			continue
		}
		sinks = append(sinks, s.sink)
	}
	return sinks
}

// TargetSink resolves the attached sink of one session. A missing room and a
// missing session both read as not-found; a session without a live stream is
// the transient ErrRecipientUnavailable condition.
func (r *Registry) TargetSink(roomID domain.RoomID, clientID domain.ClientID) (contract.EventSink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, errors.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	s, ok := room.sessions[clientID]
	if !ok {
		return nil, errors.ErrNotRegistered
	}
	if s.sink == nil {
		return nil, errors.ErrRecipientUnavailable
	}
	return s.sink, nil
}

// Stats reports current room and session gauges for telemetry.
func (r *Registry) Stats() (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := 0
	for _, room := range r.rooms {
		room.mu.Lock()
		sessions += len(room.sessions)
		room.mu.Unlock()
	}
	return len(r.rooms), sessions
}
