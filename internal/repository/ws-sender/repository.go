package wssender

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrNotFound = errors.New("not found")

// Repo serializes writes per connection. gorilla/websocket supports a single
// concurrent writer, while broadcasts for one room can come from any connection's
// goroutine.
type Repo struct {
	locks        map[*websocket.Conn]*sync.Mutex
	mu           sync.RWMutex
	writeTimeout time.Duration
}

func NewRepo(writeTimeout time.Duration) *Repo {
	return &Repo{
		locks:        make(map[*websocket.Conn]*sync.Mutex),
		writeTimeout: writeTimeout,
	}
}

func (r *Repo) Add(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.locks[conn]; !ok {
		r.locks[conn] = &sync.Mutex{}
	}
}

func (r *Repo) Remove(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.locks, conn)
}

func (r *Repo) WriteJSON(conn *websocket.Conn, v any) error {
	r.mu.RLock()
	lock, ok := r.locks[conn]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	if r.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(r.writeTimeout)); err != nil {
			return err
		}
	}

	return conn.WriteJSON(v)
}

func (r *Repo) WriteClose(conn *websocket.Conn, code int, text string) error {
	r.mu.RLock()
	lock, ok := r.locks[conn]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	return conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}
