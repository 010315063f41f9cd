package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/connection"
	"github.com/sharetube/syncroom/internal/repository/room"
)

func (s service) findParticipant(r *domain.Room, userId string) domain.Participant {
	for _, p := range r.Participants {
		if p.Id == userId {
			return p
		}
	}

	return domain.Participant{Id: userId}
}

type JoinRoomParams struct {
	Conn     *websocket.Conn
	RoomId   string
	UserId   string
	Username string
}

type JoinRoomResponse struct {
	Room              domain.Room
	JoinedParticipant domain.Participant
	// Conns are the other members of the broadcast group.
	Conns []*websocket.Conn
}

// JoinRoom adds the user to the room and attaches conn to the room's broadcast
// group. Nothing is attached when the registry call fails.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	if _, err := s.connRepo.Get(params.Conn); err == nil {
		return JoinRoomResponse{}, ErrAlreadyJoined
	}

	if _, err := s.roomRepo.GetRoom(ctx, params.RoomId); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get room: %w", s.repoError(err))
	}

	joined, err := s.roomRepo.AddParticipant(ctx, &room.AddParticipantParams{
		RoomId:   params.RoomId,
		UserId:   params.UserId,
		Username: params.Username,
	})
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to add participant: %w", s.repoError(err))
	}

	participant := s.findParticipant(&joined, params.UserId)
	if err := s.connRepo.Add(params.Conn, connection.Session{
		RoomId:   params.RoomId,
		UserId:   participant.Id,
		Username: participant.Username,
	}); err != nil {
		if errors.Is(err, connection.ErrAlreadyExists) {
			return JoinRoomResponse{}, ErrAlreadyJoined
		}
		return JoinRoomResponse{}, fmt.Errorf("failed to add connection: %w", err)
	}

	s.logger.InfoContext(ctx, "member joined", "room_id", params.RoomId, "user_id", participant.Id)
	return JoinRoomResponse{
		Room:              joined,
		JoinedParticipant: participant,
		Conns:             s.getConnsExcept(params.RoomId, params.Conn),
	}, nil
}

type LeaveRoomParams struct {
	Conn   *websocket.Conn
	RoomId string
}

type LeaveRoomResponse struct {
	Room            domain.Room
	LeftParticipant domain.Participant
	// IsRemoved is false when the participant was kept, e.g. the owner.
	IsRemoved bool
	// Conns are the remaining members of the broadcast group.
	Conns []*websocket.Conn
}

// LeaveRoom removes the participant bound to conn and detaches conn from the
// broadcast group. The group is left untouched when the registry call fails.
func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	session, err := s.getSession(params.Conn)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	if err := s.checkSessionRoom(session, params.RoomId); err != nil {
		return LeaveRoomResponse{}, err
	}

	left, err := s.roomRepo.RemoveParticipant(ctx, &room.RemoveParticipantParams{
		RoomId: session.RoomId,
		UserId: session.UserId,
	})
	if err != nil {
		return LeaveRoomResponse{}, fmt.Errorf("failed to remove participant: %w", s.repoError(err))
	}

	if _, err := s.connRepo.Remove(params.Conn); err != nil {
		return LeaveRoomResponse{}, fmt.Errorf("failed to remove connection: %w", err)
	}

	s.logger.InfoContext(ctx, "member left", "room_id", session.RoomId, "user_id", session.UserId)
	return LeaveRoomResponse{
		Room:            left,
		LeftParticipant: domain.Participant{Id: session.UserId, Username: session.Username},
		IsRemoved:       !left.HasParticipant(session.UserId),
		Conns:           s.connRepo.GetConnsByRoomId(session.RoomId),
	}, nil
}

type DisconnectMemberResponse struct {
	Room            *domain.Room
	LeftParticipant domain.Participant
	IsRemoved       bool
	Conns           []*websocket.Conn
}

// DisconnectMember cleans up after a connection that went away without leaving.
// The connection is detached unconditionally; the participant is removed only when
// it was the user's last connection to the room. Room is nil when the participant
// was kept because another connection of the same user is still attached.
func (s service) DisconnectMember(ctx context.Context, conn *websocket.Conn) (DisconnectMemberResponse, error) {
	session, err := s.connRepo.Remove(conn)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return DisconnectMemberResponse{}, ErrNotJoined
		}
		return DisconnectMemberResponse{}, fmt.Errorf("failed to remove connection: %w", err)
	}

	left := domain.Participant{Id: session.UserId, Username: session.Username}
	conns := s.connRepo.GetConnsByRoomId(session.RoomId)

	if s.connRepo.CountUserConns(session.RoomId, session.UserId) > 0 {
		s.logger.DebugContext(ctx, "member still connected", "room_id", session.RoomId, "user_id", session.UserId)
		return DisconnectMemberResponse{LeftParticipant: left, Conns: conns}, nil
	}

	updated, err := s.roomRepo.RemoveParticipant(ctx, &room.RemoveParticipantParams{
		RoomId: session.RoomId,
		UserId: session.UserId,
	})
	if err != nil {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to remove participant: %w", s.repoError(err))
	}

	s.logger.InfoContext(ctx, "member disconnected", "room_id", session.RoomId, "user_id", session.UserId)
	return DisconnectMemberResponse{
		Room:            &updated,
		LeftParticipant: left,
		IsRemoved:       !updated.HasParticipant(session.UserId),
		Conns:           conns,
	}, nil
}

// GetSession returns the room and user conn is joined as.
func (s service) GetSession(conn *websocket.Conn) (connection.Session, error) {
	return s.getSession(conn)
}

// SessionCount returns the number of connections joined to any room.
func (s service) SessionCount() int {
	return s.connRepo.Len()
}
