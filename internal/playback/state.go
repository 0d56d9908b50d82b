// Package playback holds the room-level playback state machine.
//
// Transitions are pure: State.Apply returns the next state for a host command and
// State.Accept decides whether a broadcast received by a guest supersedes the state it holds.
package playback

import (
	"errors"
	"time"
)

var (
	ErrStaleEvent    = errors.New("stale event")
	ErrNoMedia       = errors.New("no media selected")
	ErrUnknownAction = errors.New("unknown action")
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

type Action string

const (
	ActionPlay             Action = "play"
	ActionPause            Action = "pause"
	ActionSeek             Action = "seek"
	ActionChangeMovie      Action = "change_movie"
	ActionChangeEpisode    Action = "change_ep"
	ActionRequestSync      Action = "request_sync"
	ActionSyncCurrentState Action = "sync_current_state"
)

// HostOnly reports whether only the room host may send a.
func (a Action) HostOnly() bool {
	return a != ActionRequestSync
}

type Media struct {
	MovieId   string `json:"movieId"`
	EpisodeId string `json:"episodeId"`
}

func (m *Media) Equal(o *Media) bool {
	if m == nil || o == nil {
		return m == o
	}

	return *m == *o
}

// State is the authoritative playback projection of a room.
// Epoch counts media changes; Seq counts updates within an epoch and restarts at zero on media change.
type State struct {
	Media     *Media
	Status    Status
	Position  float64
	UpdatedAt time.Time
	Epoch     int
	Seq       int
}

func Initial() State {
	return State{Status: StatusIdle}
}

// Command is a host-originated playback operation.
type Command struct {
	Action    Action
	Position  float64
	Media     *Media
	IsPlaying bool
}

// Newer reports whether s supersedes prev in (Epoch, Seq) order.
func (s State) Newer(prev State) bool {
	if s.Epoch != prev.Epoch {
		return s.Epoch > prev.Epoch
	}

	return s.Seq > prev.Seq
}

// Accept returns ev if it supersedes s, ErrStaleEvent otherwise.
func (s State) Accept(ev State) (State, error) {
	if !ev.Newer(s) {
		return s, ErrStaleEvent
	}

	return ev, nil
}

// Project returns the expected position at now, clamped to [0, duration] when duration is known.
func (s State) Project(now time.Time, duration float64) float64 {
	pos := s.Position
	if s.Status == StatusPlaying {
		pos += now.Sub(s.UpdatedAt).Seconds()
	}

	if pos < 0 {
		pos = 0
	}
	if duration > 0 && pos > duration {
		pos = duration
	}

	return pos
}

func (s State) IsPlaying() bool {
	return s.Status == StatusPlaying
}
