package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"rendezvous/domain"
	"rendezvous/errors"
)

var validate = validator.New()

type joinRequest struct {
	Room string `json:"room" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type peerResponse struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

type joinResponse struct {
	ClientID string         `json:"clientId"`
	Room     string         `json:"room"`
	Peers    []peerResponse `json:"peers"`
}

type signalRequest struct {
	Room   string          `json:"room" validate:"required"`
	From   string          `json:"from" validate:"required"`
	Target string          `json:"target" validate:"required"`
	Data   json.RawMessage `json:"data" validate:"required"`
}

type leaveRequest struct {
	Room     string `json:"room" validate:"required"`
	ClientID string `json:"clientId" validate:"required"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeValid parses the body and checks the DTO's validate tags. A
// malformed body is a client error, never a handler crash.
func decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.ErrInvalidRequest
	}
	if err := validate.Struct(dst); err != nil {
		return errors.ErrInvalidRequest
	}
	return nil
}

// handleJoin registers a session and returns the peer snapshot. The
// peer-joined announcement goes out only after the response body has been
// written: a joiner must never race its own join notification, and peers
// must never learn of a join the API has not confirmed yet.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "room and name are required")
		return
	}

	res, err := s.service.Join(req.Room, req.Name)
	if err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, joinResponse{
		ClientID: string(res.ClientID),
		Room:     string(res.Room),
		Peers: lo.Map(res.Peers, func(p domain.Peer, _ int) peerResponse {
			return peerResponse{ClientID: string(p.ClientID), Name: p.Name}
		}),
	})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	s.service.AnnouncePeerJoined(r.Context(), res)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "room, from, target and data are required")
		return
	}

	if err := s.service.Relay(r.Context(), req.Room, req.From, req.Target, req.Data); err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLeave always answers 204 for a well-formed request: tearing down an
// already absent session is an idempotent no-op, not an error.
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "room and clientId are required")
		return
	}

	s.service.Leave(r.Context(), req.Room, req.ClientID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	rooms, sessions := s.service.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"rooms":    rooms,
		"sessions": sessions,
	})
}
