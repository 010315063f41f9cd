package domain

type Action string

const (
	ActionPlay              Action = "play"
	ActionPause             Action = "pause"
	ActionSeek              Action = "seek"
	ActionChangeSpeed       Action = "changeSpeed"
	ActionUpdatePermissions Action = "updatePermissions"
)

// ActionForEvent maps a player event to the action it must be authorized for.
func ActionForEvent(e EventType) (Action, bool) {
	switch e {
	case EventPlay:
		return ActionPlay, true
	case EventPause:
		return ActionPause, true
	case EventSeek:
		return ActionSeek, true
	}

	return "", false
}

// Authorize reports whether actorId may perform action in room. The owner is
// allowed everything; other participants are gated by the room permissions and
// can never change them.
func Authorize(actorId string, room *Room, action Action) bool {
	if room.IsOwner(actorId) {
		return true
	}

	switch action {
	case ActionPlay, ActionPause:
		return room.Permissions.CanPlay
	case ActionSeek:
		return room.Permissions.CanSeek
	case ActionChangeSpeed:
		return room.Permissions.CanChangeSpeed
	}

	return false
}
