package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/connection"
	"github.com/sharetube/syncroom/internal/repository/room"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrRoomNotFound     = errors.New("room not found")
	ErrValidation       = errors.New("validation error")
	ErrAlreadyJoined    = errors.New("connection already joined a room")
	ErrNotJoined        = errors.New("connection has not joined a room")
)

type iRoomRepo interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (domain.Room, error)
	GetRoom(context.Context, string) (domain.Room, error)
	AddParticipant(context.Context, *room.AddParticipantParams) (domain.Room, error)
	RemoveParticipant(context.Context, *room.RemoveParticipantParams) (domain.Room, error)
	UpdateVideoState(context.Context, *room.UpdateVideoStateParams) (domain.VideoState, error)
	UpdatePermissions(context.Context, *room.UpdatePermissionsParams) (domain.Room, error)
	DeleteRoom(context.Context, string) (bool, error)
}

type iConnRepo interface {
	Add(*websocket.Conn, connection.Session) error
	Remove(*websocket.Conn) (connection.Session, error)
	Get(*websocket.Conn) (connection.Session, error)
	GetConnsByRoomId(string) []*websocket.Conn
	CountUserConns(roomId, userId string) int
	Len() int
}

type service struct {
	roomRepo iRoomRepo
	connRepo iConnRepo
	logger   *slog.Logger
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, logger *slog.Logger) *service {
	return &service{
		roomRepo: roomRepo,
		connRepo: connRepo,
		logger:   logger,
	}
}
