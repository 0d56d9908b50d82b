package redis

import (
	"context"
	"fmt"

	"github.com/sharetube/syncroom/internal/repository/room"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	rm := room.Room{
		Name:       params.Name,
		Visibility: params.Visibility,
		HostId:     params.HostId,
		CreatedAt:  params.CreatedAt,
	}
	args := append([]interface{}{params.RoomId}, r.structArgs(rm)...)

	created, err := r.rc.EvalSha(ctx, r.createRoomScript, []string{r.getRoomKey(params.RoomId), roomsKey}, args...).Int()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to create room: %w", err)
	}

	if created == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomAlreadyExists)
		return room.ErrRoomAlreadyExists
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	var rm room.Room
	if err := r.rc.HGetAll(ctx, r.getRoomKey(roomId)).Scan(&rm); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if rm.CreatedAt == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Room{}, room.ErrRoomNotFound
	}

	return rm, nil
}

func (r repo) GetRoomIds(ctx context.Context) ([]string, error) {
	r.logger.DebugContext(ctx, "called")
	roomIds, err := r.rc.SMembers(ctx, roomsKey).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to get room ids: %w", err)
	}

	return roomIds, nil
}

func (r repo) SetRoomHost(ctx context.Context, roomId, hostId string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
		"host_id": hostId,
	})
	key := r.getRoomKey(roomId)
	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if cmd.Val() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	}

	if err := r.rc.HSet(ctx, key, "host_id", hostId).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set room host: %w", err)
	}

	return nil
}

// GetSummary reads the room, its player and its member count in a single MULTI.
func (r repo) GetSummary(ctx context.Context, roomId string) (room.Summary, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	pipe := r.rc.TxPipeline()
	roomCmd := pipe.HGetAll(ctx, r.getRoomKey(roomId))
	playerCmd := pipe.HGetAll(ctx, r.getPlayerKey(roomId))
	countCmd := pipe.ZCard(ctx, r.getMemberListKey(roomId))
	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Summary{}, fmt.Errorf("failed to get summary: %w", err)
	}

	summary := room.Summary{
		Id:          roomId,
		MemberCount: int(countCmd.Val()),
	}
	if err := roomCmd.Scan(&summary.Room); err != nil {
		return room.Summary{}, fmt.Errorf("failed to scan room: %w", err)
	}
	if summary.Room.CreatedAt == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Summary{}, room.ErrRoomNotFound
	}
	if err := playerCmd.Scan(&summary.Player); err != nil {
		return room.Summary{}, fmt.Errorf("failed to scan player: %w", err)
	}

	return summary, nil
}

func (r repo) RemoveRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	memberIds, err := r.rc.ZRange(ctx, r.getMemberListKey(roomId), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to get member ids: %w", err)
	}

	messageIds, err := r.rc.ZRange(ctx, r.getChatKey(roomId), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to get message ids: %w", err)
	}

	keys := []string{
		r.getRoomKey(roomId),
		r.getMemberListKey(roomId),
		r.getPlayerKey(roomId),
		r.getChatKey(roomId),
	}
	for _, memberId := range memberIds {
		keys = append(keys, r.getMemberKey(roomId, memberId))
	}
	for _, messageId := range messageIds {
		keys = append(keys, r.getMessageKey(roomId, messageId))
	}

	pipe := r.rc.TxPipeline()
	del := pipe.Del(ctx, keys...)
	pipe.SRem(ctx, roomsKey, roomId)
	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to remove room: %w", err)
	}

	if del.Val() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	}

	return nil
}
