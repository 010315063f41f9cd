package redis

import (
	"context"
	"strconv"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
)

func (r repo) videoStateFields(state domain.VideoState) []any {
	return []any{
		"current_time", r.float64ToField(state.CurrentTime),
		"last_updated", state.LastUpdated,
		"is_playing", r.boolToField(state.IsPlaying),
		"playback_rate", r.float64ToField(state.PlaybackRate),
	}
}

func (r repo) videoStateFromMap(m map[string]string) domain.VideoState {
	return domain.VideoState{
		CurrentTime:  r.fieldToFloat64(m["current_time"]),
		LastUpdated:  r.fieldToInt64(m["last_updated"]),
		IsPlaying:    r.fieldToBool(m["is_playing"]),
		PlaybackRate: r.fieldToFloat64(m["playback_rate"]),
	}
}

// UpdateVideoState anchors a new video state for the event. Only the fields the
// event defines are written, so a seek keeps the stored playing flag and a
// missing rate keeps the stored rate.
func (r repo) UpdateVideoState(ctx context.Context, params *room.UpdateVideoStateParams) (domain.VideoState, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := params.Validate(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.VideoState{}, err
	}

	args := []any{
		r.ttlSeconds(),
		videoKeyIdx + 1,
		"current_time", r.float64ToField(params.Position),
		"last_updated", strconv.FormatInt(r.now().UnixMilli(), 10),
	}

	switch params.EventType {
	case domain.EventPlay:
		args = append(args, "is_playing", r.boolToField(true))
	case domain.EventPause:
		args = append(args, "is_playing", r.boolToField(false))
	}

	if params.PlaybackRate != nil {
		args = append(args, "playback_rate", r.float64ToField(*params.PlaybackRate))
	}

	res, err := setHashScript.Run(ctx, r.rc, r.getRoomKeys(params.RoomId), args...).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.VideoState{}, err
	}

	res, err = r.scriptResult(res)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.VideoState{}, err
	}

	fields, err := r.flatToMap(res)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.VideoState{}, err
	}

	return r.videoStateFromMap(fields), nil
}
