package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/connection/inmemory"
	roomRedis "github.com/sharetube/syncroom/internal/repository/room/redis"
	wssender "github.com/sharetube/syncroom/internal/repository/ws-sender"
	"github.com/sharetube/syncroom/internal/service/admission"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T, limit float64, burst int) *httptest.Server {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	roomService := room.NewService(
		roomRedis.NewRepo(rc, slog.Default(), time.Hour),
		inmemory.NewRepo(slog.Default()),
		slog.Default(),
	)
	limiter, err := admission.NewLimiter(&admission.Config{Limit: limit, Burst: burst, Size: 128})
	require.NoError(t, err)

	c := NewController(roomService, wssender.NewRepo(time.Second), limiter, slog.Default())
	srv := httptest.NewServer(c.GetMux())
	t.Cleanup(srv.Close)

	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func createRoom(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/room", map[string]string{
		"roomName":  "movie night",
		"streamUrl": "https://x/video.mp4",
		"ownerId":   "A",
		"ownerName": "alice",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created createRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.RoomId)

	return created.RoomId
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, messageType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": messageType, "payload": payload}))
}

func read[T any](t *testing.T, conn *websocket.Conn, messageType string) T {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg inbound
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, messageType, msg.Type, "payload: %s", msg.Payload)

	var payload T
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))

	return payload
}

func TestWatchTogether(t *testing.T) {
	srv := newTestServer(t, 1000, 1000)
	roomId := createRoom(t, srv)

	alice := dial(t, srv)
	send(t, alice, joinRoomType, JoinRoomInput{RoomId: roomId, UserId: "A", Username: "alice"})
	state := read[domain.Room](t, alice, roomStateType)
	assert.Equal(t, []domain.Participant{{Id: "A", Username: "alice"}}, state.Participants)

	bob := dial(t, srv)
	send(t, bob, joinRoomType, JoinRoomInput{RoomId: roomId, UserId: "B", Username: "bob"})
	state = read[domain.Room](t, bob, roomStateType)
	assert.Equal(t, []domain.Participant{{Id: "A", Username: "alice"}, {Id: "B", Username: "bob"}}, state.Participants)
	assert.Equal(t, domain.Participant{Id: "B", Username: "bob"}, read[domain.Participant](t, alice, participantJoinedType))

	send(t, alice, videoEventType, VideoEventInput{RoomId: roomId, EventType: domain.EventPlay, Position: 10, UserId: "A"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		sync := read[domain.VideoState](t, conn, videoSyncType)
		assert.True(t, sync.IsPlaying)
		assert.Equal(t, 10.0, sync.CurrentTime)
		assert.Equal(t, 1.0, sync.PlaybackRate)
	}

	// bob has no canPlay: the pause is dropped and nobody hears about it
	send(t, bob, videoEventType, VideoEventInput{RoomId: roomId, EventType: domain.EventPause, Position: 12, UserId: "B"})
	send(t, alice, videoEventType, VideoEventInput{RoomId: roomId, EventType: domain.EventSeek, Position: 20, UserId: "A"})
	for _, conn := range []*websocket.Conn{bob, alice} {
		sync := read[domain.VideoState](t, conn, videoSyncType)
		assert.True(t, sync.IsPlaying, "denied pause must not apply")
		assert.Equal(t, 20.0, sync.CurrentTime)
	}

	send(t, bob, permissionsUpdateType, map[string]any{"roomId": roomId, "permissions": domain.Permissions{CanPlay: true}})
	assert.Equal(t, errorPayload{Message: "permission denied"}, read[errorPayload](t, bob, errorType))

	require.NoError(t, bob.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	bob.Close()

	state = read[domain.Room](t, alice, roomStateType)
	assert.Equal(t, []domain.Participant{{Id: "A", Username: "alice"}}, state.Participants)
	assert.Equal(t, domain.Participant{Id: "B", Username: "bob"}, read[domain.Participant](t, alice, participantLeftType))

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/room/"+roomId, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got domain.Room
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, []domain.Participant{{Id: "A", Username: "alice"}}, got.Participants)
	assert.True(t, got.VideoState.IsPlaying)
}

func TestJoinErrors(t *testing.T) {
	srv := newTestServer(t, 1000, 1000)
	roomId := createRoom(t, srv)
	conn := dial(t, srv)

	send(t, conn, joinRoomType, JoinRoomInput{RoomId: "3f1f0c59-6c3b-4a55-9c4a-1d4c7f8f9e01", UserId: "B", Username: "bob"})
	assert.Equal(t, "room not found", read[errorPayload](t, conn, errorType).Message)

	send(t, conn, "dance", nil)
	assert.Equal(t, "unknown message type", read[errorPayload](t, conn, errorType).Message)

	send(t, conn, leaveRoomType, LeaveRoomInput{RoomId: roomId})
	assert.Equal(t, "not joined to a room", read[errorPayload](t, conn, errorType).Message)

	send(t, conn, joinRoomType, JoinRoomInput{RoomId: roomId, UserId: "B", Username: "bob"})
	read[domain.Room](t, conn, roomStateType)

	send(t, conn, joinRoomType, JoinRoomInput{RoomId: roomId, UserId: "B", Username: "bob"})
	assert.Equal(t, "already joined a room", read[errorPayload](t, conn, errorType).Message)
}

func TestLeaveRoom(t *testing.T) {
	srv := newTestServer(t, 1000, 1000)
	roomId := createRoom(t, srv)

	alice := dial(t, srv)
	send(t, alice, joinRoomType, JoinRoomInput{RoomId: roomId, UserId: "A", Username: "alice"})
	read[domain.Room](t, alice, roomStateType)

	bob := dial(t, srv)
	send(t, bob, joinRoomType, JoinRoomInput{RoomId: roomId, UserId: "B", Username: "bob"})
	read[domain.Room](t, bob, roomStateType)
	read[domain.Participant](t, alice, participantJoinedType)

	send(t, bob, leaveRoomType, LeaveRoomInput{RoomId: roomId, UserId: "B", Username: "bob"})
	state := read[domain.Room](t, alice, roomStateType)
	assert.False(t, state.HasParticipant("B"))
	assert.Equal(t, domain.Participant{Id: "B", Username: "bob"}, read[domain.Participant](t, alice, participantLeftType))

	// bob is detached: alice's events no longer reach him
	send(t, alice, videoEventType, VideoEventInput{EventType: domain.EventPlay, Position: 1})
	read[domain.VideoState](t, alice, videoSyncType)
	send(t, bob, videoEventType, VideoEventInput{EventType: domain.EventPlay, Position: 1})
	assert.Equal(t, "not joined to a room", read[errorPayload](t, bob, errorType).Message)
}

func TestPermissionsRest(t *testing.T) {
	srv := newTestServer(t, 1000, 1000)
	roomId := createRoom(t, srv)

	bob := dial(t, srv)
	send(t, bob, joinRoomType, JoinRoomInput{RoomId: roomId, UserId: "B", Username: "bob"})
	read[domain.Room](t, bob, roomStateType)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/room/"+roomId+"/permissions", map[string]any{
		"permissions": domain.Permissions{CanPlay: true},
		"ownerId":     "B",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/room/"+roomId+"/permissions", map[string]any{
		"permissions": domain.Permissions{CanPlay: true},
		"ownerId":     "A",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := read[domain.Room](t, bob, roomStateType)
	assert.Equal(t, domain.Permissions{CanPlay: true}, state.Permissions)

	send(t, bob, videoEventType, VideoEventInput{EventType: domain.EventPlay, Position: 3})
	assert.True(t, read[domain.VideoState](t, bob, videoSyncType).IsPlaying)
}

func getPermissions(t *testing.T, srv *httptest.Server, roomId string) domain.Permissions {
	t.Helper()
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/room/"+roomId, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.Room
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	return got.Permissions
}

func TestPartialPermissions(t *testing.T) {
	srv := newTestServer(t, 1000, 1000)
	roomId := createRoom(t, srv)

	all := domain.Permissions{CanPlay: true, CanSeek: true, CanChangeSpeed: true}
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/room/"+roomId+"/permissions", map[string]any{
		"permissions": all,
		"ownerId":     "A",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	alice := dial(t, srv)
	send(t, alice, joinRoomType, JoinRoomInput{RoomId: roomId, UserId: "A", Username: "alice"})
	read[domain.Room](t, alice, roomStateType)

	for _, payload := range []map[string]any{
		{"roomId": roomId, "permissions": map[string]bool{"canPlay": false}},
		{"roomId": roomId, "permissions": map[string]bool{}},
		{"roomId": roomId},
	} {
		send(t, alice, permissionsUpdateType, payload)
		assert.Equal(t, "invalid request", read[errorPayload](t, alice, errorType).Message, "payload %v", payload)
	}
	assert.Equal(t, all, getPermissions(t, srv, roomId))

	for _, body := range []map[string]any{
		{"ownerId": "A", "permissions": map[string]bool{"canSeek": false, "canChangeSpeed": false}},
		{"ownerId": "A", "permissions": map[string]bool{}},
		{"ownerId": "A"},
	} {
		resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/room/"+roomId+"/permissions", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %v", body)
	}
	assert.Equal(t, all, getPermissions(t, srv, roomId))

	// explicit false flags are a complete update
	send(t, alice, permissionsUpdateType, map[string]any{"permissions": domain.Permissions{CanSeek: true}})
	assert.Equal(t, domain.Permissions{CanSeek: true}, read[domain.Room](t, alice, roomStateType).Permissions)
}

type failingSender struct {
	broken *websocket.Conn
	writes map[*websocket.Conn][]any
}

func (s *failingSender) Add(*websocket.Conn)    {}
func (s *failingSender) Remove(*websocket.Conn) {}

func (s *failingSender) WriteJSON(conn *websocket.Conn, v any) error {
	if conn == s.broken {
		return errors.New("broken pipe")
	}
	s.writes[conn] = append(s.writes[conn], v)

	return nil
}

func (s *failingSender) WriteClose(*websocket.Conn, int, string) error {
	return nil
}

func TestJoinRoomStateWriteFails(t *testing.T) {
	rc := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	t.Cleanup(func() { rc.Close() })

	roomService := room.NewService(
		roomRedis.NewRepo(rc, slog.Default(), time.Hour),
		inmemory.NewRepo(slog.Default()),
		slog.Default(),
	)
	limiter, err := admission.NewLimiter(&admission.Config{Limit: 1000, Burst: 1000, Size: 128})
	require.NoError(t, err)

	alice, bob := &websocket.Conn{}, &websocket.Conn{}
	sender := &failingSender{broken: bob, writes: make(map[*websocket.Conn][]any)}
	c := NewController(roomService, sender, limiter, slog.Default())

	ctx := context.Background()
	created, err := roomService.CreateRoom(ctx, &room.CreateRoomParams{
		Name:      "movie night",
		StreamUrl: "https://x/video.mp4",
		OwnerId:   "A",
		OwnerName: "alice",
	})
	require.NoError(t, err)

	require.NoError(t, c.handleJoinRoom(ctx, alice, JoinRoomInput{RoomId: created.Id, UserId: "A", Username: "alice"}))
	require.NoError(t, c.handleJoinRoom(ctx, bob, JoinRoomInput{RoomId: created.Id, UserId: "B", Username: "bob"}))

	assert.Empty(t, sender.writes[bob])
	require.Len(t, sender.writes[alice], 2)
	joined := sender.writes[alice][1].(*Output)
	assert.Equal(t, participantJoinedType, joined.Type)

	session, err := roomService.GetSession(bob)
	require.NoError(t, err)
	assert.Equal(t, "B", session.UserId)
}

func TestRoomRest(t *testing.T) {
	srv := newTestServer(t, 1000, 1000)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/room", map[string]string{
		"roomName":  "movie night",
		"streamUrl": "ftp://x",
		"ownerId":   "A",
		"ownerName": "alice",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/room", map[string]string{
		"roomName":  "movie night",
		"streamUrl": "https://x/video.mp4",
		"ownerId":   "A; DROP",
		"ownerName": "alice",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "registry validation")

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/room/3f1f0c59-6c3b-4a55-9c4a-1d4c7f8f9e01", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	roomId := createRoom(t, srv)
	bob := dial(t, srv)
	send(t, bob, joinRoomType, JoinRoomInput{RoomId: roomId, UserId: "B", Username: "bob"})
	read[domain.Room](t, bob, roomStateType)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/room/"+roomId+"?ownerId=B", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/room/"+roomId+"?ownerId=A", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := bob.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, closeRoomDeleted), "got %v", err)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/room/"+roomId, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdmission(t *testing.T) {
	srv := newTestServer(t, 0.001, 3)
	roomId := createRoom(t, srv)

	alice := dial(t, srv)
	send(t, alice, joinRoomType, JoinRoomInput{RoomId: roomId, UserId: "A", Username: "alice"})
	read[domain.Room](t, alice, roomStateType)

	for i := 0; i < 3; i++ {
		send(t, alice, videoEventType, VideoEventInput{EventType: domain.EventPlay, Position: float64(i)})
		read[domain.VideoState](t, alice, videoSyncType)
	}
	send(t, alice, videoEventType, VideoEventInput{EventType: domain.EventPlay, Position: 3})
	assert.Equal(t, "rate limit exceeded", read[errorPayload](t, alice, errorType).Message)

	// createRoom and the upgrade used two of the three http tokens
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/room/"+roomId, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/room/"+roomId, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
