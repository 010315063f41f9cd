package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
)

type UpdateVideoStateParams struct {
	Conn         *websocket.Conn
	RoomId       string
	EventType    domain.EventType
	Position     float64
	PlaybackRate *float64
}

type UpdateVideoStateResponse struct {
	VideoState domain.VideoState
	// Conns is the whole broadcast group, sender included.
	Conns []*websocket.Conn
}

// UpdateVideoState applies a player event from the participant bound to conn.
// A rate is only honoured on seek events and only counts as a speed change when
// it differs from the stored rate; a speed change needs its own permission on top
// of the seek one. Returns ErrPermissionDenied without touching the room when
// the actor is not allowed.
func (s service) UpdateVideoState(ctx context.Context, params *UpdateVideoStateParams) (UpdateVideoStateResponse, error) {
	session, err := s.getSession(params.Conn)
	if err != nil {
		return UpdateVideoStateResponse{}, err
	}

	if err := s.checkSessionRoom(session, params.RoomId); err != nil {
		return UpdateVideoStateResponse{}, err
	}

	action, ok := domain.ActionForEvent(params.EventType)
	if !ok {
		return UpdateVideoStateResponse{}, fmt.Errorf("%w: unknown event type %q", ErrValidation, params.EventType)
	}

	current, err := s.roomRepo.GetRoom(ctx, session.RoomId)
	if err != nil {
		return UpdateVideoStateResponse{}, fmt.Errorf("failed to get room: %w", s.repoError(err))
	}

	if !domain.Authorize(session.UserId, &current, action) {
		return UpdateVideoStateResponse{}, fmt.Errorf("%s: %w", action, ErrPermissionDenied)
	}

	rate := params.PlaybackRate
	if params.EventType != domain.EventSeek || (rate != nil && *rate == current.VideoState.PlaybackRate) {
		rate = nil
	}

	if rate != nil && !domain.Authorize(session.UserId, &current, domain.ActionChangeSpeed) {
		return UpdateVideoStateResponse{}, fmt.Errorf("%s: %w", domain.ActionChangeSpeed, ErrPermissionDenied)
	}

	state, err := s.roomRepo.UpdateVideoState(ctx, &room.UpdateVideoStateParams{
		RoomId:       session.RoomId,
		EventType:    params.EventType,
		Position:     params.Position,
		PlaybackRate: rate,
	})
	if err != nil {
		return UpdateVideoStateResponse{}, fmt.Errorf("failed to update video state: %w", s.repoError(err))
	}

	return UpdateVideoStateResponse{
		VideoState: state,
		Conns:      s.connRepo.GetConnsByRoomId(session.RoomId),
	}, nil
}
