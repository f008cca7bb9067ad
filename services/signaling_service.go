package services

import (
	"context"
	"encoding/json"

	"rendezvous/contract"
	"rendezvous/runtime"
)

type ISignalingService interface {
	Join(room, name string) (runtime.JoinResult, error)
	AnnouncePeerJoined(ctx context.Context, res runtime.JoinResult)
	Attach(room, clientID string, sink contract.EventSink) error
	Relay(ctx context.Context, room, from, target string, data json.RawMessage) error
	Leave(ctx context.Context, room, clientID string)
	Disconnect(ctx context.Context, room, clientID string, sink contract.EventSink)
	Stats() (rooms int, sessions int)
}

// SignalingService is the boundary facade handlers talk to. It keeps the
// transport layer unaware of the coordinator's concrete wiring.
type SignalingService struct {
	coordinator *runtime.Coordinator
}

func NewSignalingService(c *runtime.Coordinator) *SignalingService {
	return &SignalingService{coordinator: c}
}

func (s *SignalingService) Join(room, name string) (runtime.JoinResult, error) {
	return s.coordinator.Join(room, name)
}

func (s *SignalingService) AnnouncePeerJoined(ctx context.Context, res runtime.JoinResult) {
	s.coordinator.AnnouncePeerJoined(ctx, res)
}

func (s *SignalingService) Attach(room, clientID string, sink contract.EventSink) error {
	return s.coordinator.Attach(room, clientID, sink)
}

func (s *SignalingService) Relay(ctx context.Context, room, from, target string, data json.RawMessage) error {
	return s.coordinator.Relay(ctx, room, from, target, data)
}

func (s *SignalingService) Leave(ctx context.Context, room, clientID string) {
	s.coordinator.Leave(ctx, room, clientID)
}

func (s *SignalingService) Disconnect(ctx context.Context, room, clientID string, sink contract.EventSink) {
	s.coordinator.Disconnect(ctx, room, clientID, sink)
}

func (s *SignalingService) Stats() (int, int) {
	return s.coordinator.Stats()
}
