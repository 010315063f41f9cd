package controller

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

// client -> server
const (
	joinRoomType          = "join-room"
	leaveRoomType         = "leave-room"
	videoEventType        = "video-event"
	permissionsUpdateType = "permissions-update"
)

// server -> client
const (
	roomStateType         = "room-state"
	videoSyncType         = "video-sync"
	participantJoinedType = "participant-joined"
	participantLeftType   = "participant-left"
	errorType             = "error"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(
		c.wsRequestIdWSMw(),
		c.loggerWSMw(),
		c.metricWSMw(),
		c.admissionWSMw(),
		c.sessionWSMw(),
	)
	mux.OnError(c.onWSError)

	// membership
	wsrouter.Handle(mux, joinRoomType, c.handleJoinRoom)
	wsrouter.Handle(mux, leaveRoomType, c.handleLeaveRoom)

	// player
	wsrouter.Handle(mux, videoEventType, c.handleVideoEvent)

	// owner
	wsrouter.Handle(mux, permissionsUpdateType, c.handlePermissionsUpdate)

	return mux
}

// onWSError reports err to the connection that sent the message. Denied video
// events are dropped without a reply.
func (c controller) onWSError(ctx context.Context, conn *websocket.Conn, err error) {
	if errors.Is(err, room.ErrPermissionDenied) && wsrouter.GetMessageTypeFromCtx(ctx) == videoEventType {
		c.logger.DebugContext(ctx, "video event dropped", "error", err)
		return
	}

	if c.errorMessage(err) == "internal error" {
		c.logger.ErrorContext(ctx, "failed to handle message", "error", err)
	} else {
		c.logger.InfoContext(ctx, "message rejected", "error", err)
	}

	c.writeToConn(ctx, conn, &Output{
		Type:    errorType,
		Payload: errorPayload{Message: c.errorMessage(err)},
	})
}
