package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncroom/internal/repository/room"
)

func (r repo) getChatKey(roomId string) string {
	return "room:" + roomId + ":chat"
}

func (r repo) getMessageKeyPrefix(roomId string) string {
	return "room:" + roomId + ":message:"
}

func (r repo) getMessageKey(roomId, messageId string) string {
	return r.getMessageKeyPrefix(roomId) + messageId
}

// AddMessage appends a message unless one with the same id exists. It reports whether the message was added.
func (r repo) AddMessage(ctx context.Context, params *room.AddMessageParams) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	keys := []string{
		r.getChatKey(params.RoomId),
		r.getMessageKey(params.RoomId, params.Message.Id),
	}
	args := append(
		[]interface{}{params.Message.Id, params.Limit, r.getMessageKeyPrefix(params.RoomId)},
		r.structArgs(params.Message)...,
	)

	added, err := r.rc.EvalSha(ctx, r.addMessageScript, keys, args...).Int()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, fmt.Errorf("failed to add message: %w", err)
	}

	return added == 1, nil
}

func (r repo) GetMessage(ctx context.Context, roomId, messageId string) (room.Message, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id":    roomId,
		"message_id": messageId,
	})
	var message room.Message
	if err := r.rc.HGetAll(ctx, r.getMessageKey(roomId, messageId)).Scan(&message); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Message{}, fmt.Errorf("failed to get message: %w", err)
	}

	if message.Id == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMessageNotFound)
		return room.Message{}, room.ErrMessageNotFound
	}

	return message, nil
}

func (r repo) GetMessages(ctx context.Context, roomId string) ([]room.Message, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	messageIds, err := r.rc.ZRange(ctx, r.getChatKey(roomId), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to get message ids: %w", err)
	}

	pipe := r.rc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(messageIds))
	for _, messageId := range messageIds {
		cmds = append(cmds, pipe.HGetAll(ctx, r.getMessageKey(roomId, messageId)))
	}
	if len(cmds) > 0 {
		if err := r.executePipe(ctx, pipe); err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return nil, fmt.Errorf("failed to get messages: %w", err)
		}
	}

	messages := make([]room.Message, 0, len(cmds))
	for _, cmd := range cmds {
		var message room.Message
		if err := cmd.Scan(&message); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if message.Id == "" {
			continue
		}
		messages = append(messages, message)
	}

	return messages, nil
}

func (r repo) MarkMessageDeleted(ctx context.Context, roomId, messageId string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id":    roomId,
		"message_id": messageId,
	})
	key := r.getMessageKey(roomId, messageId)
	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if cmd.Val() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMessageNotFound)
		return room.ErrMessageNotFound
	}

	if err := r.rc.HSet(ctx, key, "deleted", true).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to mark message deleted: %w", err)
	}

	return nil
}
