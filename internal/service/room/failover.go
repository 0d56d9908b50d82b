package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/syncroom/internal/repository/room"
)

// removeMember removes the member from the room, destroying the room when it becomes empty
// and promoting a new host when the host left. Callers hold the room lock.
func (s *service) removeMember(ctx context.Context, roomId, memberId string) (LeaveRoomResponse, error) {
	resp := LeaveRoomResponse{RoomId: roomId}

	r, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return resp, nil
		}
		return LeaveRoomResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	s.cancelGraceTimer(roomId, memberId)
	if conn, err := s.connRepo.RemoveMember(ctx, roomId, memberId); err == nil {
		resp.Left = conn
	}

	if err := s.roomRepo.RemoveMember(ctx, roomId, memberId); err != nil {
		if errors.Is(err, room.ErrMemberNotFound) {
			return resp, nil
		}
		return LeaveRoomResponse{}, fmt.Errorf("failed to remove member: %w", err)
	}

	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return LeaveRoomResponse{}, fmt.Errorf("failed to get member ids: %w", err)
	}

	if len(memberIds) == 0 {
		if _, err := s.destroyRoom(ctx, roomId); err != nil {
			return LeaveRoomResponse{}, err
		}
		resp.Destroyed = true

		return resp, nil
	}

	if r.HostId == memberId {
		newHostId, err := s.promote(ctx, roomId, memberIds)
		if err != nil {
			return LeaveRoomResponse{}, err
		}
		r.HostId = newHostId
		resp.Failover = true
		resp.NewHostId = newHostId
		if newHostId != "" {
			resp.NewHostConn = s.getConn(roomId, newHostId)
		}
	}

	resp.Members, err = s.getMembers(ctx, roomId, r.HostId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	resp.Conns, err = s.getConnsByRoomId(ctx, roomId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	return resp, nil
}

// releaseAbsentHost hands the host role of a room whose creator never joined to the earliest
// connected member. Callers hold the room lock.
func (s *service) releaseAbsentHost(ctx context.Context, roomId string, memberIds []string) (LeaveRoomResponse, error) {
	resp := LeaveRoomResponse{RoomId: roomId}

	r, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return resp, nil
		}
		return LeaveRoomResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	if r.HostId == "" || contains(memberIds, r.HostId) {
		return resp, nil
	}

	s.logger.InfoContext(ctx, "creator did not join", "room_id", roomId, "host_id", r.HostId)
	newHostId, err := s.promote(ctx, roomId, memberIds)
	if err != nil {
		return LeaveRoomResponse{}, err
	}
	resp.Failover = true
	resp.NewHostId = newHostId
	if newHostId != "" {
		resp.NewHostConn = s.getConn(roomId, newHostId)
	}

	resp.Members, err = s.getMembers(ctx, roomId, newHostId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	resp.Conns, err = s.getConnsByRoomId(ctx, roomId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	return resp, nil
}

// promote makes the connected member with the earliest join time the host. memberIds is in join order.
// If nobody is connected the room is left hostless and the next member to join becomes host.
func (s *service) promote(ctx context.Context, roomId string, memberIds []string) (string, error) {
	newHostId := ""
	for _, memberId := range memberIds {
		m, err := s.roomRepo.GetMember(ctx, roomId, memberId)
		if err != nil {
			if errors.Is(err, room.ErrMemberNotFound) {
				continue
			}
			return "", fmt.Errorf("failed to get member: %w", err)
		}

		if m.Status == room.StatusConnected {
			newHostId = memberId
			break
		}
	}

	if err := s.roomRepo.SetRoomHost(ctx, roomId, newHostId); err != nil {
		return "", fmt.Errorf("failed to set room host: %w", err)
	}

	if newHostId != "" {
		s.metrics.Failovers.Inc()
	}
	s.logger.InfoContext(ctx, "host failover", "room_id", roomId, "new_host_id", newHostId)

	return newHostId, nil
}
