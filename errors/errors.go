package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidRequest       = fmt.Errorf("invalid request")
	ErrRoomNotFound         = fmt.Errorf("room not found")
	ErrNotRegistered        = fmt.Errorf("client not registered in room")
	ErrRecipientUnavailable = fmt.Errorf("recipient has no live stream")
	ErrDuplicateClient      = fmt.Errorf("client already registered in room")
	ErrStreamClosed         = fmt.Errorf("stream closed")
	ErrWorkerPanic          = fmt.Errorf("worker panic")
)

// MapToHTTPStatus translates the error taxonomy to the status codes of the
// HTTP boundary. Every error is handled here; none is allowed to surface as
// a handler crash.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrNotRegistered):
		return http.StatusNotFound
	// Transient by contract: the target exists but its push-stream is not
	// attached yet (or anymore). Callers retry with backoff.
	case errors.Is(err, ErrRecipientUnavailable):
		return http.StatusConflict
	case errors.Is(err, ErrDuplicateClient):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
