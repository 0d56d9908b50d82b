package room

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sharetube/syncroom/internal/repository/connection"
	"github.com/sharetube/syncroom/internal/repository/room"
)

type JoinRoomParams struct {
	RoomId    string
	MemberId  string
	Name      string
	AvatarUrl string
	Conn      Conn
	// Welcome, if set, is called with the room lock held so its writes to Conn precede
	// any broadcast that follows the join.
	Welcome func(JoinRoomResponse) error
}

func (p JoinRoomParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RoomId, roomIdRule...),
		validation.Field(&p.MemberId, memberIdRule...),
		validation.Field(&p.Name, memberNameRule...),
		validation.Field(&p.AvatarUrl, avatarUrlRule...),
	)
}

type JoinRoomResponse struct {
	Snapshot
	JoinedMember Member
	// Reconnected is set when the member was already in the room.
	Reconnected bool
	// Replaced is the connection the member used before, if it is still open.
	Replaced Conn
	Conns    []Conn
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	if err := params.Validate(); err != nil {
		return JoinRoomResponse{}, invalid(err)
	}

	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	r, err := s.getRoom(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	memberIds, err := s.roomRepo.GetMemberIds(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get member ids: %w", err)
	}

	member, err := s.roomRepo.GetMember(ctx, params.RoomId, params.MemberId)
	reconnected := err == nil
	switch {
	case reconnected:
		s.cancelGraceTimer(params.RoomId, params.MemberId)
		if err := s.roomRepo.UpdateMemberStatus(ctx, &room.UpdateMemberStatusParams{
			RoomId:   params.RoomId,
			MemberId: params.MemberId,
			Status:   room.StatusConnected,
		}); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to update member status: %w", err)
		}
		member.Status = room.StatusConnected
	case errors.Is(err, room.ErrMemberNotFound):
		if s.cfg.MembersLimit > 0 && len(memberIds) >= s.cfg.MembersLimit {
			return JoinRoomResponse{}, ErrMembersLimitReached
		}

		member = room.Member{
			Name:      params.Name,
			AvatarUrl: params.AvatarUrl,
			Status:    room.StatusConnected,
			JoinedAt:  s.timestamp().UnixMilli(),
		}
		if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
			RoomId:    params.RoomId,
			MemberId:  params.MemberId,
			Name:      member.Name,
			AvatarUrl: member.AvatarUrl,
			Status:    member.Status,
			JoinedAt:  member.JoinedAt,
		}); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to set member: %w", err)
		}
		memberIds = append(memberIds, params.MemberId)
	default:
		return JoinRoomResponse{}, fmt.Errorf("failed to get member: %w", err)
	}

	// The creator keeps the host role until they join or the room's empty TTL lapses.
	if r.HostId == "" {
		if err := s.roomRepo.SetRoomHost(ctx, params.RoomId, params.MemberId); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to set room host: %w", err)
		}
		r.HostId = params.MemberId
	}

	if contains(memberIds, r.HostId) {
		s.cancelRoomExpiry(params.RoomId)
	}
	replaced := s.connRepo.Add(ctx, params.RoomId, params.MemberId, params.Conn)

	snapshot, err := s.snapshot(ctx, params.RoomId, r)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "member joined",
		"room_id", params.RoomId,
		"member_id", params.MemberId,
		"is_host", r.HostId == params.MemberId,
		"reconnected", reconnected,
	)

	resp := JoinRoomResponse{
		Snapshot:     snapshot,
		JoinedMember: toMember(params.MemberId, member, r.HostId),
		Reconnected:  reconnected,
		Replaced:     replaced,
		Conns:        conns,
	}
	if params.Welcome != nil {
		if err := params.Welcome(resp); err != nil {
			return resp, err
		}
	}

	return resp, nil
}

func (s *service) snapshot(ctx context.Context, roomId string, r room.Room) (Snapshot, error) {
	state, err := s.getState(ctx, roomId)
	if err != nil {
		return Snapshot{}, err
	}

	members, err := s.getMembers(ctx, roomId, r.HostId)
	if err != nil {
		return Snapshot{}, err
	}

	messages, err := s.getMessages(ctx, roomId)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Room:     toRoom(roomId, r),
		State:    state,
		Movie:    s.lookupMovie(ctx, state.Media),
		Members:  members,
		Messages: messages,
	}, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}

	return false
}

type LeaveRoomParams struct {
	RoomId   string
	MemberId string
}

type LeaveRoomResponse struct {
	RoomId string
	// Left is the connection the member used, if it was still bound.
	Left Conn
	// Destroyed is set when the member was the last one.
	Destroyed bool
	// Failover is set when the host left; NewHostId is empty if nobody could be promoted.
	Failover    bool
	NewHostId   string
	NewHostConn Conn
	Members     []Member
	Conns       []Conn
}

// LeaveRoom removes the member. Leaving a room one is not a member of is a no-op.
func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	return s.removeMember(ctx, params.RoomId, params.MemberId)
}

type DisconnectMemberParams struct {
	RoomId   string
	MemberId string
	Conn     Conn
}

type DisconnectMemberResponse struct {
	Members []Member
	Conns   []Conn
}

// DisconnectMember marks the member disconnected and starts its grace period. Once the period
// elapses without a rejoin the member is removed as if it had left. A connection that has already
// been replaced by a newer one is ignored.
func (s *service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (DisconnectMemberResponse, error) {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	if !s.connRepo.Remove(ctx, params.RoomId, params.MemberId, params.Conn) {
		return DisconnectMemberResponse{}, nil
	}

	r, err := s.getRoom(ctx, params.RoomId)
	if err != nil {
		return DisconnectMemberResponse{}, err
	}

	if err := s.roomRepo.UpdateMemberStatus(ctx, &room.UpdateMemberStatusParams{
		RoomId:   params.RoomId,
		MemberId: params.MemberId,
		Status:   room.StatusDisconnected,
	}); err != nil {
		if errors.Is(err, room.ErrMemberNotFound) {
			return DisconnectMemberResponse{}, nil
		}
		return DisconnectMemberResponse{}, fmt.Errorf("failed to update member status: %w", err)
	}

	s.startGraceTimer(params.RoomId, params.MemberId)

	members, err := s.getMembers(ctx, params.RoomId, r.HostId)
	if err != nil {
		return DisconnectMemberResponse{}, err
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return DisconnectMemberResponse{}, err
	}

	return DisconnectMemberResponse{
		Members: members,
		Conns:   conns,
	}, nil
}

func (s *service) startGraceTimer(roomId, memberId string) {
	b := connection.Binding{RoomId: roomId, MemberId: memberId}
	schedule(s, s.graceTimers, b, s.cfg.GracePeriod, func(e *timer) {
		s.expireMember(b, e)
	})
}

func (s *service) cancelGraceTimer(roomId, memberId string) {
	cancel(s, s.graceTimers, connection.Binding{RoomId: roomId, MemberId: memberId})
}

func (s *service) expireMember(b connection.Binding, e *timer) {
	if !take(s, s.graceTimers, b, e) {
		return
	}

	ctx := context.Background()
	unlock := s.locks.Lock(b.RoomId)
	m, err := s.roomRepo.GetMember(ctx, b.RoomId, b.MemberId)
	if err != nil || m.Status != room.StatusDisconnected {
		unlock()
		return
	}

	resp, err := s.removeMember(ctx, b.RoomId, b.MemberId)
	unlock()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to remove expired member", "room_id", b.RoomId, "member_id", b.MemberId, "error", err)
		return
	}

	s.logger.InfoContext(ctx, "member grace period expired", "room_id", b.RoomId, "member_id", b.MemberId)
	if h := s.getHooks().MemberExpired; h != nil {
		h(ctx, resp)
	}
}

func (s *service) ListMembers(ctx context.Context, roomId string) ([]Member, error) {
	r, err := s.getRoom(ctx, roomId)
	if err != nil {
		return nil, err
	}

	return s.getMembers(ctx, roomId, r.HostId)
}

// GetMembership returns the room and member a connection is bound to.
func (s *service) GetMembership(conn Conn) (connection.Binding, error) {
	return s.connRepo.GetBinding(conn)
}

func (s *service) SubscribeLobby(conn Conn) {
	s.connRepo.SubscribeLobby(conn)
}

func (s *service) LobbyConns() []Conn {
	return s.connRepo.LobbyConns()
}

func (s *service) UnsubscribeLobby(conn Conn) {
	s.connRepo.UnsubscribeLobby(conn)
}
