package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/connection"
	"github.com/sharetube/syncroom/internal/service/admission"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/validator"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (domain.Room, error)
	GetRoom(context.Context, string) (domain.Room, error)
	DeleteRoom(context.Context, *room.DeleteRoomParams) (room.DeleteRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	DisconnectMember(context.Context, *websocket.Conn) (room.DisconnectMemberResponse, error)
	UpdateVideoState(context.Context, *room.UpdateVideoStateParams) (room.UpdateVideoStateResponse, error)
	UpdatePermissions(context.Context, *room.UpdatePermissionsParams) (room.UpdatePermissionsResponse, error)
	GetSession(*websocket.Conn) (connection.Session, error)
	SessionCount() int
}

type iSender interface {
	Add(*websocket.Conn)
	Remove(*websocket.Conn)
	WriteJSON(*websocket.Conn, any) error
	WriteClose(conn *websocket.Conn, code int, text string) error
}

type iAdmission interface {
	CheckAdmission(key string, category admission.Category) bool
}

type controller struct {
	roomService iRoomService
	sender      iSender
	admission   iAdmission
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	logger      *slog.Logger
}

func NewController(roomService iRoomService, sender iSender, admission iAdmission, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		sender:      sender,
		admission:   admission,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
