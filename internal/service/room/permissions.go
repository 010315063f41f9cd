package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
)

type UpdatePermissionsParams struct {
	SenderId    string
	RoomId      string
	Permissions domain.Permissions
}

type UpdatePermissionsResponse struct {
	Room  domain.Room
	Conns []*websocket.Conn
}

func (s service) UpdatePermissions(ctx context.Context, params *UpdatePermissionsParams) (UpdatePermissionsResponse, error) {
	current, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		return UpdatePermissionsResponse{}, fmt.Errorf("failed to get room: %w", s.repoError(err))
	}

	if !domain.Authorize(params.SenderId, &current, domain.ActionUpdatePermissions) {
		return UpdatePermissionsResponse{}, ErrPermissionDenied
	}

	updated, err := s.roomRepo.UpdatePermissions(ctx, &room.UpdatePermissionsParams{
		RoomId:      params.RoomId,
		Permissions: params.Permissions,
	})
	if err != nil {
		return UpdatePermissionsResponse{}, fmt.Errorf("failed to update permissions: %w", s.repoError(err))
	}

	s.logger.InfoContext(ctx, "permissions updated", "room_id", params.RoomId, "permissions", params.Permissions)
	return UpdatePermissionsResponse{
		Room:  updated,
		Conns: s.connRepo.GetConnsByRoomId(params.RoomId),
	}, nil
}
