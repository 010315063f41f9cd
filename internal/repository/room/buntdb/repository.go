package buntdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
	"github.com/tidwall/buntdb"
)

// repo keeps every room as one JSON document. Each mutation is a read-modify-write
// inside a single buntdb write transaction, so it is atomic with respect to any
// other mutation of the same room.
type repo struct {
	db             *buntdb.DB
	logger         *slog.Logger
	expireDuration time.Duration
	now            func() time.Time
}

// NewRepo opens a buntdb database at path. Use ":memory:" for a process-local store.
func NewRepo(path string, logger *slog.Logger, expireDuration time.Duration) (*repo, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	return &repo{
		db:             db,
		logger:         logger,
		expireDuration: expireDuration,
		now:            time.Now,
	}, nil
}

func (r *repo) Close() error {
	return r.db.Close()
}

func (r *repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r *repo) setOptions() *buntdb.SetOptions {
	return &buntdb.SetOptions{Expires: true, TTL: r.expireDuration}
}

func (r *repo) get(tx *buntdb.Tx, roomId string) (domain.Room, error) {
	value, err := tx.Get(r.getRoomKey(roomId))
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return domain.Room{}, room.ErrRoomNotFound
		}
		return domain.Room{}, err
	}

	var doc domain.Room
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return domain.Room{}, fmt.Errorf("failed to decode room: %w", err)
	}

	return doc, nil
}

func (r *repo) set(tx *buntdb.Tx, doc *domain.Room) error {
	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode room: %w", err)
	}

	_, _, err = tx.Set(r.getRoomKey(doc.Id), string(value), r.setOptions())
	return err
}

// update loads the room, applies fn and stores the result, refreshing the TTL.
func (r *repo) update(roomId string, fn func(doc *domain.Room)) (domain.Room, error) {
	var doc domain.Room
	err := r.db.Update(func(tx *buntdb.Tx) error {
		var err error
		doc, err = r.get(tx, roomId)
		if err != nil {
			return err
		}

		fn(&doc)

		return r.set(tx, &doc)
	})

	return doc, err
}

func (r *repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) (domain.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := params.Validate(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	now := r.now()
	created := domain.Room{
		Id:          params.RoomId,
		Name:        params.Name,
		OwnerId:     params.OwnerId,
		OwnerName:   params.OwnerName,
		StreamUrl:   params.StreamUrl,
		VideoState:  domain.NewVideoState(now),
		Permissions: domain.Permissions{},
		Participants: []domain.Participant{{
			Id:       params.OwnerId,
			Username: params.OwnerName,
		}},
		CreatedAt: now.UnixMilli(),
	}

	err := r.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(r.getRoomKey(params.RoomId)); err == nil {
			return room.ErrRoomAlreadyExists
		} else if !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}

		return r.set(tx, &created)
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	return created, nil
}

func (r *repo) GetRoom(ctx context.Context, roomId string) (domain.Room, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	if err := room.ValidateRoomId(roomId); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	var doc domain.Room
	err := r.db.View(func(tx *buntdb.Tx) error {
		var err error
		doc, err = r.get(tx, roomId)
		return err
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	return doc, nil
}

func (r *repo) AddParticipant(ctx context.Context, params *room.AddParticipantParams) (domain.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := params.Validate(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	doc, err := r.update(params.RoomId, func(doc *domain.Room) {
		if doc.HasParticipant(params.UserId) {
			return
		}

		doc.Participants = append(doc.Participants, domain.Participant{
			Id:       params.UserId,
			Username: params.Username,
		})
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	return doc, nil
}

func (r *repo) RemoveParticipant(ctx context.Context, params *room.RemoveParticipantParams) (domain.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := params.Validate(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	doc, err := r.update(params.RoomId, func(doc *domain.Room) {
		if doc.IsOwner(params.UserId) {
			return
		}

		for i, p := range doc.Participants {
			if p.Id == params.UserId {
				doc.Participants = append(doc.Participants[:i], doc.Participants[i+1:]...)
				return
			}
		}
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	return doc, nil
}

func (r *repo) UpdateVideoState(ctx context.Context, params *room.UpdateVideoStateParams) (domain.VideoState, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := params.Validate(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.VideoState{}, err
	}

	doc, err := r.update(params.RoomId, func(doc *domain.Room) {
		doc.VideoState = doc.VideoState.Apply(params.EventType, params.Position, params.PlaybackRate, r.now())
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.VideoState{}, err
	}

	return doc.VideoState, nil
}

func (r *repo) UpdatePermissions(ctx context.Context, params *room.UpdatePermissionsParams) (domain.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := params.Validate(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	doc, err := r.update(params.RoomId, func(doc *domain.Room) {
		doc.Permissions = params.Permissions
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.Room{}, err
	}

	return doc, nil
}

func (r *repo) DeleteRoom(ctx context.Context, roomId string) (bool, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	if err := room.ValidateRoomId(roomId); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	deleted := false
	err := r.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(r.getRoomKey(roomId))
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		deleted = true
		return nil
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	return deleted, nil
}
