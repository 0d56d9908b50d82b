package controller

import (
	"context"
	"fmt"

	"github.com/sharetube/syncroom/internal/playback"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/wsconn"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

func (c controller) handleError(ctx context.Context, conn *wsconn.Conn, err error) {
	output := newErrorOutput(err)
	if output.Code == codeInternal {
		c.logger.ErrorContext(ctx, "failed to handle message", "error", err)
	} else {
		c.logger.InfoContext(ctx, "message rejected", "code", output.Code, "error", err)
	}

	outputType := "error"
	if wsrouter.GetMessageTypeFromCtx(ctx) == "join_room" {
		outputType = "error_join"
	}

	if err := c.writeToConn(ctx, conn, &Output{Type: outputType, Payload: output}); err != nil {
		c.logger.DebugContext(ctx, "failed to write error", "error", err)
	}
}

type CreateRoomInput struct {
	RoomName string `json:"roomName" validate:"required,max=64"`
	IsPublic bool   `json:"isPublic"`
	UserId   string `json:"userId" validate:"required,max=64"`
}

func (c controller) handleCreateRoom(ctx context.Context, conn *wsconn.Conn, input CreateRoomInput) error {
	visibility := room.VisibilityPrivate
	if input.IsPublic {
		visibility = room.VisibilityPublic
	}

	createRoomResp, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		Name:       input.RoomName,
		Visibility: visibility,
		CreatorId:  input.UserId,
	})
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	if err := c.writeToConn(ctx, conn, &Output{
		Type: "room_created",
		Payload: map[string]any{
			"roomId": createRoomResp.Room.Id,
		},
	}); err != nil {
		return err
	}

	if input.IsPublic {
		c.broadcastRoomList(ctx)
	}

	return nil
}

type EmptyInput struct{}

func (c controller) handleGetRooms(ctx context.Context, conn *wsconn.Conn, _ EmptyInput) error {
	c.roomService.SubscribeLobby(conn)

	rooms, err := c.listPublicRooms(ctx)
	if err != nil {
		return err
	}

	return c.writeToConn(ctx, conn, &Output{
		Type: "list_rooms",
		Payload: map[string]any{
			"rooms": rooms,
		},
	})
}

type UserInfoInput struct {
	Name   string `json:"name" validate:"required,max=32"`
	Avatar string `json:"avatar" validate:"omitempty,url"`
}

type JoinRoomInput struct {
	RoomId   string        `json:"roomId" validate:"required"`
	UserId   string        `json:"userId" validate:"required,max=64"`
	UserInfo UserInfoInput `json:"userInfo"`
}

func (c controller) handleJoinRoom(ctx context.Context, conn *wsconn.Conn, input JoinRoomInput) error {
	// A connection serves one membership at a time.
	if roomId, memberId, err := c.getMembershipFromCtx(ctx); err == nil && (roomId != input.RoomId || memberId != input.UserId) {
		if err := c.leave(ctx, roomId, memberId); err != nil {
			return err
		}
	}

	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		RoomId:    input.RoomId,
		MemberId:  input.UserId,
		Name:      input.UserInfo.Name,
		AvatarUrl: input.UserInfo.Avatar,
		Conn:      conn,
		Welcome: func(resp room.JoinRoomResponse) error {
			return c.writeToConn(ctx, conn, newJoinedOutput(&resp))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	c.roomService.UnsubscribeLobby(conn)

	if joinRoomResp.Replaced != nil {
		joinRoomResp.Replaced.Close(wsconn.CloseReplaced, "replaced by a new connection")
	}

	c.broadcastViewers(ctx, without(joinRoomResp.Conns, conn), joinRoomResp.Members)
	c.broadcastRoomList(ctx)

	return nil
}

type LeaveRoomInput struct {
	RoomId string `json:"roomId"`
}

func (c controller) handleLeaveRoom(ctx context.Context, _ *wsconn.Conn, _ LeaveRoomInput) error {
	roomId, memberId, err := c.getMembershipFromCtx(ctx)
	if err != nil {
		return err
	}

	return c.leave(ctx, roomId, memberId)
}

func (c controller) leave(ctx context.Context, roomId, memberId string) error {
	leaveRoomResp, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		RoomId:   roomId,
		MemberId: memberId,
	})
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	c.broadcastLeft(ctx, &leaveRoomResp)

	return nil
}

type EndRoomInput struct {
	RoomId string `json:"roomId"`
	UserId string `json:"userId"`
}

func (c controller) handleEndRoom(ctx context.Context, _ *wsconn.Conn, _ EndRoomInput) error {
	roomId, memberId, err := c.getMembershipFromCtx(ctx)
	if err != nil {
		return err
	}

	destroyRoomResp, err := c.roomService.DestroyRoom(ctx, &room.DestroyRoomParams{
		RoomId:   roomId,
		SenderId: memberId,
	})
	if err != nil {
		return fmt.Errorf("failed to end room: %w", err)
	}

	c.broadcast(ctx, destroyRoomResp.Conns, &Output{
		Type: "room_destroyed",
		Payload: map[string]any{
			"roomId": roomId,
			"reason": "ended by host",
		},
	})
	c.broadcastRoomList(ctx)

	return nil
}

type VideoActionInput struct {
	RoomId    string  `json:"roomId"`
	Action    string  `json:"action" validate:"required"`
	Time      float64 `json:"time" validate:"gte=0"`
	Slug      string  `json:"slug" validate:"max=128"`
	Episode   string  `json:"episode" validate:"max=128"`
	IsPlaying bool    `json:"isPlaying"`
}

func (c controller) handleVideoAction(ctx context.Context, _ *wsconn.Conn, input VideoActionInput) error {
	roomId, memberId, err := c.getMembershipFromCtx(ctx)
	if err != nil {
		return err
	}

	action := playback.Action(input.Action)
	if action == playback.ActionRequestSync {
		return c.requestSync(ctx, roomId, memberId)
	}

	updatePlayerResp, err := c.roomService.UpdatePlayer(ctx, &room.UpdatePlayerParams{
		RoomId:    roomId,
		SenderId:  memberId,
		Action:    action,
		Position:  input.Time,
		Slug:      input.Slug,
		Episode:   input.Episode,
		IsPlaying: input.IsPlaying,
	})
	if err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}

	c.broadcast(ctx, updatePlayerResp.Conns, &Output{
		Type:    "video_action",
		Payload: newVideoActionOutput(roomId, action, updatePlayerResp.State, updatePlayerResp.Movie),
	})

	if updatePlayerResp.Changed && (action == playback.ActionChangeMovie || action == playback.ActionChangeEpisode) {
		c.broadcastRoomList(ctx)
	}

	return nil
}

// requestSync relays a guest's sync request to the host, or answers it from the stored state when the host is away.
func (c controller) requestSync(ctx context.Context, roomId, memberId string) error {
	requestSyncResp, err := c.roomService.RequestSync(ctx, &room.RequestSyncParams{
		RoomId:   roomId,
		SenderId: memberId,
	})
	if err != nil {
		return fmt.Errorf("failed to request sync: %w", err)
	}

	if requestSyncResp.HostConn != nil {
		return c.writeToConn(ctx, requestSyncResp.HostConn, newRequestSyncOutput(roomId))
	}

	return c.writeToConn(ctx, requestSyncResp.SenderConn, &Output{
		Type:    "video_action",
		Payload: newVideoActionOutput(roomId, playback.ActionSyncCurrentState, requestSyncResp.State, requestSyncResp.Movie),
	})
}

func newRequestSyncOutput(roomId string) *Output {
	return &Output{
		Type: "video_action",
		Payload: map[string]any{
			"roomId": roomId,
			"action": playback.ActionRequestSync,
		},
	}
}

type SendMessageInput struct {
	Id     string `json:"id" validate:"required,uuid"`
	RoomId string `json:"roomId"`
	Text   string `json:"text" validate:"required,max=500"`
}

func (c controller) handleSendMessage(ctx context.Context, _ *wsconn.Conn, input SendMessageInput) error {
	roomId, memberId, err := c.getMembershipFromCtx(ctx)
	if err != nil {
		return err
	}

	sendMessageResp, err := c.roomService.SendMessage(ctx, &room.SendMessageParams{
		RoomId:    roomId,
		SenderId:  memberId,
		MessageId: input.Id,
		Text:      input.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.broadcast(ctx, sendMessageResp.Conns, &Output{
		Type:    "receive_message",
		Payload: newMessageOutput(sendMessageResp.Message),
	})

	return nil
}

type DeleteMessageInput struct {
	RoomId    string `json:"roomId"`
	MessageId string `json:"messageId" validate:"required"`
}

func (c controller) handleDeleteMessage(ctx context.Context, _ *wsconn.Conn, input DeleteMessageInput) error {
	roomId, memberId, err := c.getMembershipFromCtx(ctx)
	if err != nil {
		return err
	}

	deleteMessageResp, err := c.roomService.DeleteMessage(ctx, &room.DeleteMessageParams{
		RoomId:    roomId,
		SenderId:  memberId,
		MessageId: input.MessageId,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	c.broadcast(ctx, deleteMessageResp.Conns, &Output{
		Type: "message_deleted",
		Payload: map[string]any{
			"roomId":    roomId,
			"messageId": input.MessageId,
		},
	})

	return nil
}
