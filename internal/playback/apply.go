package playback

import "time"

func (s State) loaded() bool {
	return s.Media != nil && s.Status != StatusIdle
}

func (s State) next(status Status, position float64, at time.Time) State {
	n := s
	n.Status = status
	n.Position = position
	n.UpdatedAt = at
	n.Seq = s.Seq + 1
	return n
}

func (s State) withMedia(media *Media, status Status, position float64, at time.Time) State {
	m := *media
	return State{
		Media:     &m,
		Status:    status,
		Position:  position,
		UpdatedAt: at,
		Epoch:     s.Epoch + 1,
		Seq:       0,
	}
}

// Apply returns the state following cmd issued by the host at time at.
// changed is false when cmd leaves the state as it is; such commands are not broadcast.
func (s State) Apply(cmd Command, at time.Time) (State, bool, error) {
	if cmd.Position < 0 {
		cmd.Position = 0
	}

	switch cmd.Action {
	case ActionChangeMovie, ActionChangeEpisode:
		if cmd.Media == nil || cmd.Media.MovieId == "" {
			return s, false, ErrNoMedia
		}
		if s.Media.Equal(cmd.Media) && s.Status == StatusLoading {
			return s, false, nil
		}

		return s.withMedia(cmd.Media, StatusLoading, 0, at), true, nil

	case ActionPlay:
		if !s.loaded() {
			return s, false, ErrNoMedia
		}
		if s.Status == StatusPlaying && s.Position == cmd.Position {
			return s, false, nil
		}

		return s.next(StatusPlaying, cmd.Position, at), true, nil

	case ActionPause:
		if !s.loaded() {
			return s, false, ErrNoMedia
		}
		if s.Status == StatusPaused && s.Position == cmd.Position {
			return s, false, nil
		}

		return s.next(StatusPaused, cmd.Position, at), true, nil

	case ActionSeek:
		if !s.loaded() {
			return s, false, ErrNoMedia
		}
		if s.Position == cmd.Position && s.Status != StatusPlaying {
			return s, false, nil
		}

		return s.next(s.Status, cmd.Position, at), true, nil

	case ActionSyncCurrentState:
		status := StatusPaused
		if cmd.IsPlaying {
			status = StatusPlaying
		}

		if cmd.Media != nil && cmd.Media.MovieId != "" && !s.Media.Equal(cmd.Media) {
			return s.withMedia(cmd.Media, status, cmd.Position, at), true, nil
		}
		if !s.loaded() {
			return s, false, ErrNoMedia
		}

		return s.next(status, cmd.Position, at), true, nil

	default:
		return s, false, ErrUnknownAction
	}
}
