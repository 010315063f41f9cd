package redis

import (
	"context"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
)

func (r repo) permissionsFields(p domain.Permissions) []any {
	return []any{
		"can_play", r.boolToField(p.CanPlay),
		"can_seek", r.boolToField(p.CanSeek),
		"can_change_speed", r.boolToField(p.CanChangeSpeed),
	}
}

func (r repo) permissionsFromMap(m map[string]string) domain.Permissions {
	return domain.Permissions{
		CanPlay:        r.fieldToBool(m["can_play"]),
		CanSeek:        r.fieldToBool(m["can_seek"]),
		CanChangeSpeed: r.fieldToBool(m["can_change_speed"]),
	}
}

func (r repo) UpdatePermissions(ctx context.Context, params *room.UpdatePermissionsParams) (domain.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := params.Validate(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	args := append([]any{r.ttlSeconds(), permissionsKeyIdx + 1}, r.permissionsFields(params.Permissions)...)
	res, err := setHashScript.Run(ctx, r.rc, r.getRoomKeys(params.RoomId), args...).Result()
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
