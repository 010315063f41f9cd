package domain

import "time"

const (
	DefaultPlaybackRate = 1.0
	MinPlaybackRate     = 0.25
	MaxPlaybackRate     = 4.0
)

type EventType string

const (
	EventPlay  EventType = "play"
	EventPause EventType = "pause"
	EventSeek  EventType = "seek"
)

func (e EventType) Valid() bool {
	switch e {
	case EventPlay, EventPause, EventSeek:
		return true
	}

	return false
}

// VideoState is the anchor left by the last discrete player event. It is not a
// live position: use CurrentPosition to read where playback is now.
type VideoState struct {
	CurrentTime  float64 `json:"currentTime"`
	LastUpdated  int64   `json:"lastUpdated"`
	IsPlaying    bool    `json:"isPlaying"`
	PlaybackRate float64 `json:"playbackRate"`
}

func NewVideoState(now time.Time) VideoState {
	return VideoState{
		CurrentTime:  0,
		LastUpdated:  now.UnixMilli(),
		IsPlaying:    false,
		PlaybackRate: DefaultPlaybackRate,
	}
}

// CurrentPosition extrapolates the playback position at now from the anchor.
func CurrentPosition(state VideoState, now time.Time) float64 {
	if !state.IsPlaying {
		return state.CurrentTime
	}

	elapsed := float64(now.UnixMilli()-state.LastUpdated) / 1000
	return state.CurrentTime + elapsed*state.PlaybackRate
}

// Apply returns the state produced by an event of type e at position, anchored at
// now. A nil rate keeps the current playback rate.
func (s VideoState) Apply(e EventType, position float64, rate *float64, now time.Time) VideoState {
	next := s
	next.CurrentTime = position
	next.LastUpdated = now.UnixMilli()

	switch e {
	case EventPlay:
		next.IsPlaying = true
	case EventPause:
		next.IsPlaying = false
	}

	if rate != nil {
		next.PlaybackRate = *rate
	}

	return next
}
