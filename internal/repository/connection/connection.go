package connection

import "errors"

var (
	ErrNotFound      = errors.New("connection not found")
	ErrAlreadyExists = errors.New("connection already exists")
)

// Session is what a joined connection is attached to.
type Session struct {
	RoomId   string
	UserId   string
	Username string
}
