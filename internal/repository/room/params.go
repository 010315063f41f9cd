package room

import "github.com/sharetube/syncroom/internal/domain"

type CreateRoomParams struct {
	RoomId    string
	Name      string
	StreamUrl string
	OwnerId   string
	OwnerName string
}

type AddParticipantParams struct {
	RoomId   string
	UserId   string
	Username string
}

type RemoveParticipantParams struct {
	RoomId string
	UserId string
}

type UpdateVideoStateParams struct {
	RoomId       string
	EventType    domain.EventType
	Position     float64
	PlaybackRate *float64
}

type UpdatePermissionsParams struct {
	RoomId      string
	Permissions domain.Permissions
}
