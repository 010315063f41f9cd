package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/service/admission"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/rest"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func (c controller) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// permissionsInput is the wire form of a permissions update. Every flag must be
// present so that a partial object cannot clear the ones it left out.
type permissionsInput struct {
	CanPlay        *bool `json:"canPlay" validate:"required"`
	CanSeek        *bool `json:"canSeek" validate:"required"`
	CanChangeSpeed *bool `json:"canChangeSpeed" validate:"required"`
}

func (p *permissionsInput) toDomain() (domain.Permissions, error) {
	if p == nil || p.CanPlay == nil || p.CanSeek == nil || p.CanChangeSpeed == nil {
		return domain.Permissions{}, fmt.Errorf("%w: permissions must set canPlay, canSeek and canChangeSpeed", room.ErrValidation)
	}

	return domain.Permissions{
		CanPlay:        *p.CanPlay,
		CanSeek:        *p.CanSeek,
		CanChangeSpeed: *p.CanChangeSpeed,
	}, nil
}

func (c controller) writeToConn(ctx context.Context, conn *websocket.Conn, output *Output) error {
	if err := c.sender.WriteJSON(conn, output); err != nil {
		c.logger.WarnContext(ctx, "failed to write to conn", "type", output.Type, "error", err)
		return err
	}

	return nil
}

// broadcast writes output to every conn. Failed writes are only logged: the
// recipient's read loop notices the broken connection and cleans it up.
func (c controller) broadcast(ctx context.Context, conns []*websocket.Conn, output *Output) {
	for _, conn := range conns {
		c.writeToConn(ctx, conn, output)
	}
}

func (c controller) errorMessage(err error) string {
	switch {
	case errors.Is(err, admission.ErrAdmissionDenied):
		return "rate limit exceeded"
	case errors.Is(err, room.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, room.ErrValidation):
		return "invalid request"
	case errors.Is(err, room.ErrPermissionDenied):
		return "permission denied"
	case errors.Is(err, room.ErrAlreadyJoined):
		return "already joined a room"
	case errors.Is(err, room.ErrNotJoined):
		return "not joined to a room"
	case errors.Is(err, wsrouter.ErrInvalidMessage), errors.Is(err, wsrouter.ErrInvalidPayload):
		return "invalid message"
	case errors.Is(err, wsrouter.ErrUnknownMessageType):
		return "unknown message type"
	}

	return "internal error"
}

func (c controller) writeHTTPError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, room.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, room.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, room.ErrPermissionDenied):
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
	} else {
		c.logger.DebugContext(r.Context(), "request rejected", "error", err)
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": c.errorMessage(err)})
}
