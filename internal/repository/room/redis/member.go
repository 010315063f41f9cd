package redis

import (
	"context"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
)

// AddParticipant appends the user to the participant list unless already present.
// The membership check and the insert run as one script.
func (r repo) AddParticipant(ctx context.Context, params *room.AddParticipantParams) (domain.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := params.Validate(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	res, err := addParticipantScript.Run(ctx, r.rc, r.getRoomKeys(params.RoomId),
		r.ttlSeconds(), params.UserId, params.Username,
	).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	if _, err := r.scriptResult(res); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	return r.GetRoom(ctx, params.RoomId)
}

// RemoveParticipant drops the user from the participant list. Removing a
// non-member or the owner leaves the room unchanged.
func (r repo) RemoveParticipant(ctx context.Context, params *room.RemoveParticipantParams) (domain.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := params.Validate(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	res, err := removeParticipantScript.Run(ctx, r.rc, r.getRoomKeys(params.RoomId),
		r.ttlSeconds(), params.UserId,
	).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	if _, err := r.scriptResult(res); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	return r.GetRoom(ctx, params.RoomId)
}
