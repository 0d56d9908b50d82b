package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sharetube/syncroom/internal/service/room"
)

func (c controller) writeToConn(ctx context.Context, conn room.Conn, output *Output) error {
	if conn == nil {
		return nil
	}

	c.logger.DebugContext(ctx, "writing to conn", "type", output.Type)
	if err := conn.Send(output); err != nil {
		return fmt.Errorf("failed to write %s: %w", output.Type, err)
	}

	return nil
}

// broadcast sends output to every conn. Receivers that fail are skipped, they are cleaned up by their own read loop.
func (c controller) broadcast(ctx context.Context, conns []room.Conn, output *Output) {
	if len(conns) == 0 {
		return
	}

	data, err := json.Marshal(output)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to marshal output", "type", output.Type, "error", err)
		return
	}

	c.metrics.Broadcasts.WithLabelValues(output.Type).Inc()
	c.logger.DebugContext(ctx, "broadcasting", "type", output.Type, "conns", len(conns))
	for _, conn := range conns {
		if err := conn.Send(json.RawMessage(data)); err != nil {
			c.logger.DebugContext(ctx, "failed to send", "type", output.Type, "error", err)
		}
	}
}

func (c controller) broadcastViewers(ctx context.Context, conns []room.Conn, members []room.Member) {
	c.broadcast(ctx, conns, &Output{
		Type: "update_viewers",
		Payload: map[string]any{
			"viewers": newViewersOutput(members),
		},
	})
}

// broadcastLeft notifies the rest of the room about a member that left or whose grace period expired.
func (c controller) broadcastLeft(ctx context.Context, resp *room.LeaveRoomResponse) {
	if resp.Destroyed {
		c.broadcastRoomList(ctx)
		return
	}

	if resp.Failover {
		for _, conn := range resp.Conns {
			c.broadcast(ctx, []room.Conn{conn}, &Output{
				Type: "role_update",
				Payload: map[string]any{
					"isHost": resp.NewHostConn != nil && conn == resp.NewHostConn,
				},
			})
		}
	}

	c.broadcastViewers(ctx, resp.Conns, resp.Members)
	c.broadcastRoomList(ctx)
}

func (c controller) listPublicRooms(ctx context.Context) ([]RoomOutput, error) {
	rooms := make([]RoomOutput, 0)
	for summary, err := range c.roomService.ListRooms(ctx, room.ListRoomsFilter{PublicOnly: true}) {
		if err != nil {
			return nil, fmt.Errorf("failed to list rooms: %w", err)
		}
		rooms = append(rooms, newRoomOutput(summary))
	}

	return rooms, nil
}

// broadcastRoomList pushes the public room list to connections browsing the lobby.
func (c controller) broadcastRoomList(ctx context.Context) {
	conns := c.roomService.LobbyConns()
	if len(conns) == 0 {
		return
	}

	rooms, err := c.listPublicRooms(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to list rooms", "error", err)
		return
	}

	c.broadcast(ctx, conns, &Output{
		Type: "update_room_list",
		Payload: map[string]any{
			"rooms": rooms,
		},
	})
}

func without(conns []room.Conn, conn room.Conn) []room.Conn {
	out := make([]room.Conn, 0, len(conns))
	for _, c := range conns {
		if c != conn {
			out = append(out, c)
		}
	}

	return out
}
