//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"rendezvous/domain"
	"rendezvous/domain/event"
)

// EventSink is the delivery end of one session's push-stream.
// Consume must never block the caller: implementations buffer or drop.
// Close is idempotent and may race with Consume.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
	Close()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// IRegistry is the process-wide room and session table. All mutation of one
// room serializes through it.
type IRegistry interface {
	// Insert creates the room if needed, adds a session with no stream
	// attached, and returns the peer snapshot taken before the insertion.
	Insert(roomID domain.RoomID, clientID domain.ClientID, name string) ([]domain.Peer, error)
	// AttachStream binds the live delivery handle to an existing session.
	AttachStream(roomID domain.RoomID, clientID domain.ClientID, sink EventSink) error
	// Remove deletes the session and the room itself when it empties.
	// Idempotent: ok is false when the session was already gone. The removed
	// sink (possibly nil) is returned so the caller can close it.
	Remove(roomID domain.RoomID, clientID domain.ClientID) (sink EventSink, ok bool)
	// RemoveIfSink removes the session only when its current delivery handle
	// is the given one, so a serving loop whose handle was superseded by a
	// newer stream cannot tear down the live session on its way out.
	RemoveIfSink(roomID domain.RoomID, clientID domain.ClientID, sink EventSink) bool
	// Recipients returns the attached sinks of a room, excluding one client.
	Recipients(roomID domain.RoomID, exclude domain.ClientID) []EventSink
	// TargetSink resolves the attached sink of a single session.
	TargetSink(roomID domain.RoomID, clientID domain.ClientID) (EventSink, error)
	// Stats reports current room and session gauges.
	Stats() (rooms int, sessions int)
}
