package domain

type Permissions struct {
	CanPlay        bool `json:"canPlay"`
	CanSeek        bool `json:"canSeek"`
	CanChangeSpeed bool `json:"canChangeSpeed"`
}

type Participant struct {
	Id       string `json:"id"`
	Username string `json:"username"`
}

type Room struct {
	Id           string        `json:"id"`
	Name         string        `json:"name"`
	OwnerId      string        `json:"ownerId"`
	OwnerName    string        `json:"ownerName"`
	StreamUrl    string        `json:"streamUrl"`
	VideoState   VideoState    `json:"videoState"`
	Permissions  Permissions   `json:"permissions"`
	Participants []Participant `json:"participants"`
	CreatedAt    int64         `json:"createdAt"`
}

func (r Room) IsOwner(userId string) bool {
	return r.OwnerId != "" && r.OwnerId == userId
}

func (r Room) HasParticipant(userId string) bool {
	for _, p := range r.Participants {
		if p.Id == userId {
			return true
		}
	}

	return false
}
