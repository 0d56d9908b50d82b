package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharetube/syncroom/internal/playback"
	"github.com/sharetube/syncroom/internal/repository/catalog"
	"github.com/sharetube/syncroom/internal/repository/room"
)

// timestamp is the current time at the millisecond precision the repositories store.
func (s *service) timestamp() time.Time {
	return time.UnixMilli(s.now().UnixMilli()).UTC()
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidParams, err)
}

func (s *service) getRoom(ctx context.Context, roomId string) (room.Room, error) {
	r, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return room.Room{}, ErrRoomNotFound
		}
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	return r, nil
}

func (s *service) getMember(ctx context.Context, roomId, memberId string) (room.Member, error) {
	m, err := s.roomRepo.GetMember(ctx, roomId, memberId)
	if err != nil {
		if errors.Is(err, room.ErrMemberNotFound) {
			return room.Member{}, ErrNotMember
		}
		return room.Member{}, fmt.Errorf("failed to get member: %w", err)
	}

	return m, nil
}

// checkIfMemberHost returns the room if memberId is a member and its current host.
func (s *service) checkIfMemberHost(ctx context.Context, roomId, memberId string) (room.Room, error) {
	r, err := s.getRoom(ctx, roomId)
	if err != nil {
		return room.Room{}, err
	}

	if _, err := s.getMember(ctx, roomId, memberId); err != nil {
		return room.Room{}, err
	}

	if r.HostId != memberId {
		return room.Room{}, ErrPermissionDenied
	}

	return r, nil
}

func (s *service) getMembers(ctx context.Context, roomId, hostId string) ([]Member, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	members := make([]Member, 0, len(memberIds))
	for _, memberId := range memberIds {
		m, err := s.roomRepo.GetMember(ctx, roomId, memberId)
		if err != nil {
			if errors.Is(err, room.ErrMemberNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get member: %w", err)
		}

		members = append(members, toMember(memberId, m, hostId))
	}

	return members, nil
}

func (s *service) getConnsByRoomId(ctx context.Context, roomId string) ([]Conn, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	conns := make([]Conn, 0, len(memberIds))
	for _, memberId := range memberIds {
		conn, err := s.connRepo.GetConn(roomId, memberId)
		if err != nil {
			continue
		}

		conns = append(conns, conn)
	}

	return conns, nil
}

func (s *service) getConn(roomId, memberId string) Conn {
	conn, err := s.connRepo.GetConn(roomId, memberId)
	if err != nil {
		return nil
	}

	return conn
}

func (s *service) getState(ctx context.Context, roomId string) (playback.State, error) {
	p, err := s.roomRepo.GetPlayer(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrPlayerNotFound) {
			return playback.Initial(), nil
		}
		return playback.State{}, fmt.Errorf("failed to get player: %w", err)
	}

	return toState(p), nil
}

func (s *service) setState(ctx context.Context, roomId string, state playback.State) error {
	if err := s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
		RoomId: roomId,
		Player: toPlayer(state),
	}); err != nil {
		return fmt.Errorf("failed to set player: %w", err)
	}

	return nil
}

// lookupMovie returns nil when no media is selected or the catalog no longer knows the movie.
func (s *service) lookupMovie(ctx context.Context, media *playback.Media) *catalog.Movie {
	if media == nil {
		return nil
	}

	m, err := s.catalog.Movie(ctx, media.MovieId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to look up movie", "movie_id", media.MovieId, "error", err)
		return nil
	}

	return &m
}

func (s *service) getMessages(ctx context.Context, roomId string) ([]Message, error) {
	messages, err := s.roomRepo.GetMessages(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	res := make([]Message, 0, len(messages))
	for _, m := range messages {
		res = append(res, toMessage(roomId, m))
	}

	return res, nil
}

func toMember(id string, m room.Member, hostId string) Member {
	return Member{
		Id:        id,
		Name:      m.Name,
		AvatarUrl: m.AvatarUrl,
		IsHost:    id == hostId,
		Status:    m.Status,
		JoinedAt:  time.UnixMilli(m.JoinedAt).UTC(),
	}
}

func toRoom(id string, r room.Room) Room {
	return Room{
		Id:         id,
		Name:       r.Name,
		Visibility: r.Visibility,
		HostId:     r.HostId,
		CreatedAt:  time.UnixMilli(r.CreatedAt).UTC(),
	}
}

func toMessage(roomId string, m room.Message) Message {
	return Message{
		Id:     m.Id,
		RoomId: roomId,
		Author: Author{
			Id:        m.AuthorId,
			Name:      m.AuthorName,
			AvatarUrl: m.AuthorAvatar,
			IsHost:    m.AuthorIsHost,
		},
		Text:      m.Text,
		CreatedAt: time.UnixMilli(m.CreatedAt).UTC(),
		Deleted:   m.Deleted,
	}
}

func toState(p room.Player) playback.State {
	s := playback.State{
		Status:   playback.Status(p.Status),
		Position: p.Position,
		Epoch:    p.Epoch,
		Seq:      p.Seq,
	}
	if s.Status == "" {
		s.Status = playback.StatusIdle
	}
	if p.UpdatedAt != 0 {
		s.UpdatedAt = time.UnixMilli(p.UpdatedAt).UTC()
	}
	if p.MovieId != "" {
		s.Media = &playback.Media{MovieId: p.MovieId, EpisodeId: p.EpisodeId}
	}

	return s
}

func toPlayer(s playback.State) room.Player {
	p := room.Player{
		Status:   string(s.Status),
		Position: s.Position,
		Epoch:    s.Epoch,
		Seq:      s.Seq,
	}
	if !s.UpdatedAt.IsZero() {
		p.UpdatedAt = s.UpdatedAt.UnixMilli()
	}
	if s.Media != nil {
		p.MovieId = s.Media.MovieId
		p.EpisodeId = s.Media.EpisodeId
	}

	return p
}
