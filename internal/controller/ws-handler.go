package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/metric"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/ctxlogger"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	c.sender.Add(conn)
	defer c.sender.Remove(conn)

	metric.IncrementWSActiveConnections()
	defer metric.DecrementWSActiveConnections()

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("conn_id", c.generateTimeBasedId()))
	defer c.disconnect(context.WithoutCancel(ctx), conn)

	c.logger.InfoContext(ctx, "websocket connected", "remote_addr", conn.RemoteAddr().String())
	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, closeRoomDeleted) {
			c.logger.WarnContext(ctx, "websocket closed unexpectedly", "error", err)
			return
		}
		c.logger.InfoContext(ctx, "websocket closed", "reason", err)
	}
}

// disconnect runs the leave transition for a connection whose read loop ended.
func (c controller) disconnect(ctx context.Context, conn *websocket.Conn) {
	resp, err := c.roomService.DisconnectMember(ctx, conn)
	if err != nil {
		if !errors.Is(err, room.ErrNotJoined) {
			c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
		}
		metric.SetJoinedSessions(c.roomService.SessionCount())
		return
	}
	metric.SetJoinedSessions(c.roomService.SessionCount())

	if resp.Room == nil {
		return
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type:    roomStateType,
		Payload: resp.Room,
	})

	if resp.IsRemoved {
		c.broadcast(ctx, resp.Conns, &Output{
			Type:    participantLeftType,
			Payload: resp.LeftParticipant,
		})
	}
}

type JoinRoomInput struct {
	RoomId   string `json:"roomId"`
	UserId   string `json:"userId"`
	Username string `json:"username"`
}

func (c controller) handleJoinRoom(ctx context.Context, conn *websocket.Conn, input JoinRoomInput) error {
	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		Conn:     conn,
		RoomId:   input.RoomId,
		UserId:   input.UserId,
		Username: input.Username,
	})
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	metric.SetJoinedSessions(c.roomService.SessionCount())

	// The join already happened, so a failed write is only logged. Returning
	// it would make the router write an error frame to the same broken conn.
	c.writeToConn(ctx, conn, &Output{
		Type:    roomStateType,
		Payload: joinRoomResp.Room,
	})

	c.broadcast(ctx, joinRoomResp.Conns, &Output{
		Type:    participantJoinedType,
		Payload: joinRoomResp.JoinedParticipant,
	})

	return nil
}

type LeaveRoomInput struct {
	RoomId   string `json:"roomId"`
	UserId   string `json:"userId"`
	Username string `json:"username"`
}

func (c controller) handleLeaveRoom(ctx context.Context, conn *websocket.Conn, input LeaveRoomInput) error {
	leaveRoomResp, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		Conn:   conn,
		RoomId: input.RoomId,
	})
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}
	metric.SetJoinedSessions(c.roomService.SessionCount())

	c.broadcast(ctx, leaveRoomResp.Conns, &Output{
		Type:    roomStateType,
		Payload: leaveRoomResp.Room,
	})

	if leaveRoomResp.IsRemoved {
		c.broadcast(ctx, leaveRoomResp.Conns, &Output{
			Type:    participantLeftType,
			Payload: leaveRoomResp.LeftParticipant,
		})
	}

	return nil
}

type VideoEventInput struct {
	RoomId       string           `json:"roomId"`
	EventType    domain.EventType `json:"eventType"`
	Position     float64          `json:"position"`
	UserId       string           `json:"userId"`
	PlaybackRate *float64         `json:"playbackRate"`
}

func (c controller) handleVideoEvent(ctx context.Context, conn *websocket.Conn, input VideoEventInput) error {
	updateResp, err := c.roomService.UpdateVideoState(ctx, &room.UpdateVideoStateParams{
		Conn:         conn,
		RoomId:       input.RoomId,
		EventType:    input.EventType,
		Position:     input.Position,
		PlaybackRate: input.PlaybackRate,
	})
	if err != nil {
		return fmt.Errorf("failed to update video state: %w", err)
	}

	c.broadcast(ctx, updateResp.Conns, &Output{
		Type:    videoSyncType,
		Payload: updateResp.VideoState,
	})

	return nil
}

type PermissionsUpdateInput struct {
	RoomId      string            `json:"roomId"`
	Permissions *permissionsInput `json:"permissions"`
}

func (c controller) handlePermissionsUpdate(ctx context.Context, conn *websocket.Conn, input PermissionsUpdateInput) error {
	session, err := c.roomService.GetSession(conn)
	if err != nil {
		return err
	}

	if input.RoomId != "" && input.RoomId != session.RoomId {
		return fmt.Errorf("%w: connection is joined to another room", room.ErrValidation)
	}

	permissions, err := input.Permissions.toDomain()
	if err != nil {
		return err
	}

	updateResp, err := c.roomService.UpdatePermissions(ctx, &room.UpdatePermissionsParams{
		SenderId:    session.UserId,
		RoomId:      session.RoomId,
		Permissions: permissions,
	})
	if err != nil {
		return fmt.Errorf("failed to update permissions: %w", err)
	}

	c.broadcast(ctx, updateResp.Conns, &Output{
		Type:    roomStateType,
		Payload: updateResp.Room,
	})

	return nil
}
