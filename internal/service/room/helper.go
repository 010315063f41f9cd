package room

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/repository/connection"
	"github.com/sharetube/syncroom/internal/repository/room"
)

// repoError translates registry errors into the service error set, keeping the
// original error in the chain.
func (s service) repoError(err error) error {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return fmt.Errorf("%w: %w", ErrRoomNotFound, err)
	case errors.Is(err, room.ErrValidation):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return err
}

func (s service) getSession(conn *websocket.Conn) (connection.Session, error) {
	session, err := s.connRepo.Get(conn)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return connection.Session{}, ErrNotJoined
		}
		return connection.Session{}, err
	}

	return session, nil
}

// checkSessionRoom rejects messages addressed to a room other than the joined one.
// An empty room id means the joined room.
func (s service) checkSessionRoom(session connection.Session, roomId string) error {
	if roomId != "" && roomId != session.RoomId {
		return fmt.Errorf("%w: connection is joined to another room", ErrValidation)
	}

	return nil
}

func (s service) getConnsExcept(roomId string, except *websocket.Conn) []*websocket.Conn {
	all := s.connRepo.GetConnsByRoomId(roomId)
	conns := make([]*websocket.Conn, 0, len(all))
	for _, conn := range all {
		if conn != except {
			conns = append(conns, conn)
		}
	}

	return conns
}
