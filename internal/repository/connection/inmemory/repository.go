package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/repository/connection"
	"golang.org/x/exp/maps"
)

// repo is the per-process session registry: which room and user every joined
// connection belongs to, and the broadcast group of every room.
type repo struct {
	sessions map[*websocket.Conn]connection.Session
	groups   map[string]map[*websocket.Conn]struct{}
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		sessions: make(map[*websocket.Conn]connection.Session),
		groups:   make(map[string]map[*websocket.Conn]struct{}),
		logger:   logger,
	}
}

func (r *repo) Add(conn *websocket.Conn, session connection.Session) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "room_id", session.RoomId, "user_id", session.UserId)
	if _, ok := r.sessions[conn]; ok {
		r.logger.Debug(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.sessions[conn] = session
	group, ok := r.groups[session.RoomId]
	if !ok {
		group = make(map[*websocket.Conn]struct{})
		r.groups[session.RoomId] = group
	}
	group[conn] = struct{}{}

	return nil
}

func (r *repo) Remove(conn *websocket.Conn) (connection.Session, error) {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[conn]
	if !ok {
		r.logger.Debug(funcName, "error", connection.ErrNotFound)
		return connection.Session{}, connection.ErrNotFound
	}

	delete(r.sessions, conn)
	if group, ok := r.groups[session.RoomId]; ok {
		delete(group, conn)
		if len(group) == 0 {
			delete(r.groups, session.RoomId)
		}
	}

	r.logger.Debug(funcName, "room_id", session.RoomId, "user_id", session.UserId)
	return session, nil
}

func (r *repo) Get(conn *websocket.Conn) (connection.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[conn]
	if !ok {
		return connection.Session{}, connection.ErrNotFound
	}

	return session, nil
}

// GetConnsByRoomId returns the broadcast group of the room, in no particular order.
func (r *repo) GetConnsByRoomId(roomId string) []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Keys(r.groups[roomId])
}

// CountUserConns returns how many connections the user has joined to the room.
func (r *repo) CountUserConns(roomId, userId string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for conn := range r.groups[roomId] {
		if r.sessions[conn].UserId == userId {
			count++
		}
	}

	return count
}

func (r *repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
