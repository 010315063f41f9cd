package room

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
)

type CreateRoomParams struct {
	Name      string
	StreamUrl string
	OwnerId   string
	OwnerName string
}

func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (domain.Room, error) {
	created, err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
		RoomId:    uuid.NewString(),
		Name:      params.Name,
		StreamUrl: params.StreamUrl,
		OwnerId:   params.OwnerId,
		OwnerName: params.OwnerName,
	})
	if err != nil {
		return domain.Room{}, fmt.Errorf("failed to create room: %w", s.repoError(err))
	}

	s.logger.InfoContext(ctx, "room created", "room_id", created.Id, "owner_id", created.OwnerId)
	return created, nil
}

func (s service) GetRoom(ctx context.Context, roomId string) (domain.Room, error) {
	got, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		return domain.Room{}, fmt.Errorf("failed to get room: %w", s.repoError(err))
	}

	return got, nil
}

type DeleteRoomParams struct {
	RoomId   string
	SenderId string
}

type DeleteRoomResponse struct {
	Conns []*websocket.Conn
}

// DeleteRoom removes the room for its owner, detaches every connection still
// attached to it and returns them so the caller can close them.
func (s service) DeleteRoom(ctx context.Context, params *DeleteRoomParams) (DeleteRoomResponse, error) {
	got, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		return DeleteRoomResponse{}, fmt.Errorf("failed to get room: %w", s.repoError(err))
	}

	if !got.IsOwner(params.SenderId) {
		return DeleteRoomResponse{}, ErrPermissionDenied
	}

	deleted, err := s.roomRepo.DeleteRoom(ctx, params.RoomId)
	if err != nil {
		return DeleteRoomResponse{}, fmt.Errorf("failed to delete room: %w", s.repoError(err))
	}

	if !deleted {
		return DeleteRoomResponse{}, ErrRoomNotFound
	}

	conns := s.connRepo.GetConnsByRoomId(params.RoomId)
	for _, conn := range conns {
		s.connRepo.Remove(conn)
	}

	s.logger.InfoContext(ctx, "room deleted", "room_id", params.RoomId, "conns", len(conns))
	return DeleteRoomResponse{
		Conns: conns,
	}, nil
}
