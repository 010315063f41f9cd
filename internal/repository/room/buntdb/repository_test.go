package buntdb

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *repo {
	t.Helper()
	r, err := NewRepo(":memory:", slog.Default(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	return r
}

func createTestRoom(t *testing.T, r *repo) domain.Room {
	t.Helper()
	created, err := r.CreateRoom(context.Background(), &room.CreateRoomParams{
		RoomId:    uuid.NewString(),
		Name:      "movie night",
		StreamUrl: "https://x/video.mp4",
		OwnerId:   "A",
		OwnerName: "alice",
	})
	require.NoError(t, err)

	return created
}

func TestCreateRoomTwice(t *testing.T) {
	r := newTestRepo(t)
	created := createTestRoom(t, r)

	_, err := r.CreateRoom(context.Background(), &room.CreateRoomParams{
		RoomId:    created.Id,
		Name:      "again",
		StreamUrl: "https://x/video.mp4",
		OwnerId:   "A",
		OwnerName: "alice",
	})
	assert.ErrorIs(t, err, room.ErrRoomAlreadyExists)
}

func TestParticipants(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	created := createTestRoom(t, r)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.AddParticipant(ctx, &room.AddParticipantParams{RoomId: created.Id, UserId: "B", Username: "bob"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := r.GetRoom(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, []domain.Participant{{Id: "A", Username: "alice"}, {Id: "B", Username: "bob"}}, got.Participants)

	got, err = r.RemoveParticipant(ctx, &room.RemoveParticipantParams{RoomId: created.Id, UserId: "B"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Participant{{Id: "A", Username: "alice"}}, got.Participants)

	unchanged, err := r.RemoveParticipant(ctx, &room.RemoveParticipantParams{RoomId: created.Id, UserId: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, got, unchanged)

	_, err = r.AddParticipant(ctx, &room.AddParticipantParams{RoomId: uuid.NewString(), UserId: "B", Username: "bob"})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestVideoStateAndPermissions(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	created := createTestRoom(t, r)

	now := time.UnixMilli(1_700_000_000_000)
	r.now = func() time.Time { return now }

	state, err := r.UpdateVideoState(ctx, &room.UpdateVideoStateParams{RoomId: created.Id, EventType: domain.EventPlay, Position: 10})
	require.NoError(t, err)
	assert.Equal(t, domain.VideoState{CurrentTime: 10, LastUpdated: now.UnixMilli(), IsPlaying: true, PlaybackRate: 1}, state)

	state, err = r.UpdateVideoState(ctx, &room.UpdateVideoStateParams{RoomId: created.Id, EventType: domain.EventPause, Position: 12})
	require.NoError(t, err)
	assert.False(t, state.IsPlaying)

	permissions := domain.Permissions{CanSeek: true}
	got, err := r.UpdatePermissions(ctx, &room.UpdatePermissionsParams{RoomId: created.Id, Permissions: permissions})
	require.NoError(t, err)
	assert.Equal(t, permissions, got.Permissions)
	assert.Equal(t, state, got.VideoState)
}

func TestVideoStateBounds(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	created := createTestRoom(t, r)

	zero := 0.0
	_, err := r.UpdateVideoState(ctx, &room.UpdateVideoStateParams{RoomId: created.Id, EventType: domain.EventSeek, Position: 5, PlaybackRate: &zero})
	assert.ErrorIs(t, err, room.ErrValidation)

	state, err := r.UpdateVideoState(ctx, &room.UpdateVideoStateParams{RoomId: created.Id, EventType: domain.EventSeek, Position: -0.5})
	require.NoError(t, err)
	assert.Equal(t, -0.5, state.CurrentTime)
	assert.Equal(t, domain.DefaultPlaybackRate, state.PlaybackRate)
}

func TestDeleteRoom(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	created := createTestRoom(t, r)

	deleted, err := r.DeleteRoom(ctx, created.Id)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = r.GetRoom(ctx, created.Id)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	deleted, err = r.DeleteRoom(ctx, created.Id)
	require.NoError(t, err)
	assert.False(t, deleted)
}
