package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/syncroom/internal/metric"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/rest"
)

// Close code sent to connections of a deleted room.
const closeRoomDeleted = 4004

type createRoomRequest struct {
	RoomName  string `json:"roomName" validate:"required,max=64"`
	StreamUrl string `json:"streamUrl" validate:"required,http_url,max=2048"`
	OwnerId   string `json:"ownerId" validate:"required,max=64"`
	OwnerName string `json:"ownerName" validate:"required,max=64"`
}

type createRoomResponse struct {
	RoomId string `json:"roomId"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.DebugContext(r.Context(), "invalid body", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	created, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		Name:      req.RoomName,
		StreamUrl: req.StreamUrl,
		OwnerId:   req.OwnerId,
		OwnerName: req.OwnerName,
	})
	if err != nil {
		c.writeHTTPError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, createRoomResponse{RoomId: created.Id})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	got, err := c.roomService.GetRoom(r.Context(), chi.URLParam(r, "room-id"))
	if err != nil {
		c.writeHTTPError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, got)
}

type updatePermissionsRequest struct {
	Permissions *permissionsInput `json:"permissions" validate:"required"`
	OwnerId     string            `json:"ownerId" validate:"required"`
}

func (c controller) updatePermissions(w http.ResponseWriter, r *http.Request) {
	var req updatePermissionsRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.DebugContext(r.Context(), "invalid body", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	permissions, err := req.Permissions.toDomain()
	if err != nil {
		c.writeHTTPError(w, r, err)
		return
	}

	resp, err := c.roomService.UpdatePermissions(r.Context(), &room.UpdatePermissionsParams{
		SenderId:    req.OwnerId,
		RoomId:      chi.URLParam(r, "room-id"),
		Permissions: permissions,
	})
	if err != nil {
		c.writeHTTPError(w, r, err)
		return
	}

	c.broadcast(r.Context(), resp.Conns, &Output{
		Type:    roomStateType,
		Payload: resp.Room,
	})

	rest.WriteJSON(w, http.StatusOK, resp.Room)
}

func (c controller) deleteRoom(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.DeleteRoom(r.Context(), &room.DeleteRoomParams{
		RoomId:   chi.URLParam(r, "room-id"),
		SenderId: r.URL.Query().Get("ownerId"),
	})
	if err != nil {
		c.writeHTTPError(w, r, err)
		return
	}

	for _, conn := range resp.Conns {
		c.sender.WriteClose(conn, closeRoomDeleted, "room deleted")
	}
	metric.SetJoinedSessions(c.roomService.SessionCount())

	w.WriteHeader(http.StatusNoContent)
}
