package redis

import (
	"context"
	"fmt"

	"github.com/sharetube/syncroom/internal/repository/room"
)

func (r repo) getMemberKey(roomId, memberId string) string {
	return "room:" + roomId + ":member:" + memberId
}

func (r repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":memberlist"
}

// SetMember stores the member and appends it to the room's join-ordered member list.
func (r repo) SetMember(ctx context.Context, params *room.SetMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	member := room.Member{
		Name:      params.Name,
		AvatarUrl: params.AvatarUrl,
		Status:    params.Status,
		JoinedAt:  params.JoinedAt,
	}

	pipe.HSet(ctx, r.getMemberKey(params.RoomId, params.MemberId), r.structArgs(member)...)
	r.addWithIncrement(ctx, pipe, r.getMemberListKey(params.RoomId), params.MemberId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set member: %w", err)
	}

	return nil
}

func (r repo) GetMember(ctx context.Context, roomId, memberId string) (room.Member, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id":   roomId,
		"member_id": memberId,
	})
	var member room.Member
	if err := r.rc.HGetAll(ctx, r.getMemberKey(roomId, memberId)).Scan(&member); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Member{}, fmt.Errorf("failed to get member: %w", err)
	}

	if member.JoinedAt == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMemberNotFound)
		return room.Member{}, room.ErrMemberNotFound
	}

	return member, nil
}

func (r repo) GetMemberIds(ctx context.Context, roomId string) ([]string, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	memberIds, err := r.rc.ZRange(ctx, r.getMemberListKey(roomId), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	return memberIds, nil
}

func (r repo) UpdateMemberStatus(ctx context.Context, params *room.UpdateMemberStatusParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	key := r.getMemberKey(params.RoomId, params.MemberId)
	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if cmd.Val() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMemberNotFound)
		return room.ErrMemberNotFound
	}

	if err := r.rc.HSet(ctx, key, "status", params.Status).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to update member status: %w", err)
	}

	return nil
}

func (r repo) RemoveMember(ctx context.Context, roomId, memberId string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id":   roomId,
		"member_id": memberId,
	})
	pipe := r.rc.TxPipeline()
	del := pipe.Del(ctx, r.getMemberKey(roomId, memberId))
	pipe.ZRem(ctx, r.getMemberListKey(roomId), memberId)
	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to remove member: %w", err)
	}

	if del.Val() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMemberNotFound)
		return room.ErrMemberNotFound
	}

	return nil
}
