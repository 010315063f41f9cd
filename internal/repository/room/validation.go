package room

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/pkg/htmltext"
)

const (
	maxNameLength      = 64
	maxStreamUrlLength = 2048
)

var RoomIdRule = []validation.Rule{
	validation.Required,
	is.UUID,
}

var UserIdRule = []validation.Rule{
	validation.Required,
	validation.Match(regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)),
}

var NameRule = []validation.Rule{
	validation.Required,
	validation.RuneLength(1, maxNameLength),
}

var StreamUrlRule = []validation.Rule{
	validation.Required,
	validation.Length(1, maxStreamUrlLength),
	validation.Match(regexp.MustCompile(`^(?i)https?://`)),
	is.RequestURL,
}

// PositionRule only rejects non-finite values. Negative positions are stored as
// sent.
var PositionRule = []validation.Rule{
	validation.By(finite),
}

var PlaybackRateRule = []validation.Rule{
	validation.By(finite),
	validation.By(rateInRange),
}

var EventTypeRule = []validation.Rule{
	validation.Required,
	validation.By(func(value any) error {
		if e, ok := value.(domain.EventType); !ok || !e.Valid() {
			return errors.New("must be one of play, pause, seek")
		}
		return nil
	}),
}

func finite(value any) error {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case *float64:
		if v == nil {
			return nil
		}
		f = *v
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("must be a finite number")
	}

	return nil
}

// rateInRange checks the rate bounds without treating 0 as an absent value, which
// ozzo's Min and Max rules do.
func rateInRange(value any) error {
	rate, ok := value.(*float64)
	if !ok || rate == nil {
		return nil
	}

	if *rate < domain.MinPlaybackRate || *rate > domain.MaxPlaybackRate {
		return fmt.Errorf("must be between %v and %v", domain.MinPlaybackRate, domain.MaxPlaybackRate)
	}

	return nil
}

// cleanText strips markup and surrounding whitespace from user supplied text.
func cleanText(s string) string {
	return strings.TrimSpace(htmltext.StripTags(s))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func ValidateRoomId(roomId string) error {
	return validationError(validation.Validate(roomId, RoomIdRule...))
}

func (p *CreateRoomParams) Validate() error {
	p.Name = cleanText(p.Name)
	p.OwnerName = cleanText(p.OwnerName)
	p.StreamUrl = strings.TrimSpace(p.StreamUrl)

	return validationError(validation.ValidateStruct(p,
		validation.Field(&p.RoomId, RoomIdRule...),
		validation.Field(&p.Name, NameRule...),
		validation.Field(&p.StreamUrl, StreamUrlRule...),
		validation.Field(&p.OwnerId, UserIdRule...),
		validation.Field(&p.OwnerName, NameRule...),
	))
}

func (p *AddParticipantParams) Validate() error {
	p.Username = cleanText(p.Username)

	return validationError(validation.ValidateStruct(p,
		validation.Field(&p.RoomId, RoomIdRule...),
		validation.Field(&p.UserId, UserIdRule...),
		validation.Field(&p.Username, NameRule...),
	))
}

func (p *RemoveParticipantParams) Validate() error {
	return validationError(validation.ValidateStruct(p,
		validation.Field(&p.RoomId, RoomIdRule...),
		validation.Field(&p.UserId, UserIdRule...),
	))
}

func (p *UpdateVideoStateParams) Validate() error {
	return validationError(validation.ValidateStruct(p,
		validation.Field(&p.RoomId, RoomIdRule...),
		validation.Field(&p.EventType, EventTypeRule...),
		validation.Field(&p.Position, PositionRule...),
		validation.Field(&p.PlaybackRate, PlaybackRateRule...),
	))
}

func (p *UpdatePermissionsParams) Validate() error {
	return validationError(validation.ValidateStruct(p,
		validation.Field(&p.RoomId, RoomIdRule...),
	))
}
