package room

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sharetube/syncroom/internal/playback"
	"github.com/sharetube/syncroom/internal/repository/catalog"
)

type UpdatePlayerParams struct {
	RoomId    string
	SenderId  string
	Action    playback.Action
	Position  float64
	Slug      string
	Episode   string
	IsPlaying bool
}

func (p UpdatePlayerParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RoomId, roomIdRule...),
		validation.Field(&p.SenderId, memberIdRule...),
		validation.Field(&p.Action, actionRule...),
		validation.Field(&p.Position, positionRule...),
		validation.Field(&p.Slug, validation.When(
			p.Action == playback.ActionChangeMovie || p.Action == playback.ActionChangeEpisode,
			validation.Required,
		)),
	)
}

type UpdatePlayerResponse struct {
	State playback.State
	Movie *catalog.Movie
	// Changed is false for commands that left the state as it was; only the sender is notified then.
	Changed bool
	Conns   []Conn
}

// UpdatePlayer applies a host playback command and returns the connections to notify.
func (s *service) UpdatePlayer(ctx context.Context, params *UpdatePlayerParams) (UpdatePlayerResponse, error) {
	if err := params.Validate(); err != nil {
		return UpdatePlayerResponse{}, invalid(err)
	}

	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	if _, err := s.checkIfMemberHost(ctx, params.RoomId, params.SenderId); err != nil {
		return UpdatePlayerResponse{}, err
	}

	state, err := s.getState(ctx, params.RoomId)
	if err != nil {
		return UpdatePlayerResponse{}, err
	}

	cmd := playback.Command{
		Action:    params.Action,
		Position:  params.Position,
		IsPlaying: params.IsPlaying,
	}
	if params.Slug != "" {
		cmd.Media, err = s.resolveMedia(ctx, params.Slug, params.Episode)
		if err != nil {
			return UpdatePlayerResponse{}, err
		}
	}

	next, changed, err := state.Apply(cmd, s.timestamp())
	if err != nil {
		return UpdatePlayerResponse{}, fmt.Errorf("failed to apply %s: %w", params.Action, err)
	}

	resp := UpdatePlayerResponse{
		State:   next,
		Movie:   s.lookupMovie(ctx, next.Media),
		Changed: changed,
	}

	if !changed {
		if conn := s.getConn(params.RoomId, params.SenderId); conn != nil {
			resp.Conns = []Conn{conn}
		}
		return resp, nil
	}

	if err := s.setState(ctx, params.RoomId, next); err != nil {
		return UpdatePlayerResponse{}, err
	}

	resp.Conns, err = s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return UpdatePlayerResponse{}, err
	}

	return resp, nil
}

func (s *service) resolveMedia(ctx context.Context, slug, episode string) (*playback.Media, error) {
	movie, err := s.catalog.Movie(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}

	ep, err := movie.Episode(episode)
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}

	return &playback.Media{MovieId: movie.Slug, EpisodeId: ep.Slug}, nil
}

type RequestSyncParams struct {
	RoomId   string
	SenderId string
}

type RequestSyncResponse struct {
	// HostConn is set when the request must be relayed to the host.
	HostConn Conn
	// Otherwise the cached state is answered to SenderConn.
	SenderConn Conn
	State      playback.State
	Movie      *catalog.Movie
}

func (s *service) RequestSync(ctx context.Context, params *RequestSyncParams) (RequestSyncResponse, error) {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	r, err := s.getRoom(ctx, params.RoomId)
	if err != nil {
		return RequestSyncResponse{}, err
	}

	if _, err := s.getMember(ctx, params.RoomId, params.SenderId); err != nil {
		return RequestSyncResponse{}, err
	}

	if r.HostId != "" && r.HostId != params.SenderId {
		if conn := s.getConn(params.RoomId, r.HostId); conn != nil {
			return RequestSyncResponse{HostConn: conn}, nil
		}
	}

	state, err := s.getState(ctx, params.RoomId)
	if err != nil {
		return RequestSyncResponse{}, err
	}

	return RequestSyncResponse{
		SenderConn: s.getConn(params.RoomId, params.SenderId),
		State:      state,
		Movie:      s.lookupMovie(ctx, state.Media),
	}, nil
}
