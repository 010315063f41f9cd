package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
)

type roomHash struct {
	Name      string `redis:"name"`
	OwnerId   string `redis:"owner_id"`
	OwnerName string `redis:"owner_name"`
	StreamUrl string `redis:"stream_url"`
	CreatedAt int64  `redis:"created_at"`
}

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) (domain.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := params.Validate(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	keys := r.getRoomKeys(params.RoomId)
	exists, err := r.rc.Exists(ctx, keys[roomKeyIdx]).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	if exists > 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomAlreadyExists)
		return domain.Room{}, room.ErrRoomAlreadyExists
	}

	now := r.now()
	videoState := domain.NewVideoState(now)
	created := domain.Room{
		Id:          params.RoomId,
		Name:        params.Name,
		OwnerId:     params.OwnerId,
		OwnerName:   params.OwnerName,
		StreamUrl:   params.StreamUrl,
		VideoState:  videoState,
		Permissions: domain.Permissions{},
		Participants: []domain.Participant{{
			Id:       params.OwnerId,
			Username: params.OwnerName,
		}},
		CreatedAt: now.UnixMilli(),
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, keys[roomKeyIdx], roomHash{
		Name:      created.Name,
		OwnerId:   created.OwnerId,
		OwnerName: created.OwnerName,
		StreamUrl: created.StreamUrl,
		CreatedAt: created.CreatedAt,
	})
	pipe.HSet(ctx, keys[videoKeyIdx], r.videoStateFields(videoState)...)
	pipe.HSet(ctx, keys[permissionsKeyIdx], r.permissionsFields(created.Permissions)...)
	pipe.ZAdd(ctx, keys[participantsKeyIdx], redis.Z{Score: 1, Member: params.OwnerId})
	pipe.HSet(ctx, keys[usernamesKeyIdx], params.OwnerId, params.OwnerName)
	for _, key := range keys {
		pipe.Expire(ctx, key, r.expireDuration)
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	return created, nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (domain.Room, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	if err := room.ValidateRoomId(roomId); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	keys := r.getRoomKeys(roomId)
	pipe := r.rc.Pipeline()
	roomCmd := pipe.HGetAll(ctx, keys[roomKeyIdx])
	videoCmd := pipe.HGetAll(ctx, keys[videoKeyIdx])
	permissionsCmd := pipe.HGetAll(ctx, keys[permissionsKeyIdx])
	participantsCmd := pipe.ZRange(ctx, keys[participantsKeyIdx], 0, -1)
	usernamesCmd := pipe.HGetAll(ctx, keys[usernamesKeyIdx])

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	if len(roomCmd.Val()) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return domain.Room{}, room.ErrRoomNotFound
	}

	var rh roomHash
	if err := roomCmd.Scan(&rh); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	usernames := usernamesCmd.Val()
	participantIds := participantsCmd.Val()
	participants := make([]domain.Participant, 0, len(participantIds))
	for _, id := range participantIds {
		participants = append(participants, domain.Participant{
			Id:       id,
			Username: usernames[id],
		})
	}

	return domain.Room{
		Id:           roomId,
		Name:         rh.Name,
		OwnerId:      rh.OwnerId,
		OwnerName:    rh.OwnerName,
		StreamUrl:    rh.StreamUrl,
		VideoState:   r.videoStateFromMap(videoCmd.Val()),
		Permissions:  r.permissionsFromMap(permissionsCmd.Val()),
		Participants: participants,
		CreatedAt:    rh.CreatedAt,
	}, nil
}

func (r repo) DeleteRoom(ctx context.Context, roomId string) (bool, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	if err := room.ValidateRoomId(roomId); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	keys := r.getRoomKeys(roomId)
	pipe := r.rc.TxPipeline()
	roomDel := pipe.Del(ctx, keys[roomKeyIdx])
	pipe.Del(ctx, keys[1:]...)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	return roomDel.Val() > 0, nil
}
