package room

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sharetube/syncroom/internal/repository/room"
)

type SendMessageParams struct {
	RoomId    string
	SenderId  string
	MessageId string
	Text      string
}

func (p SendMessageParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RoomId, roomIdRule...),
		validation.Field(&p.SenderId, memberIdRule...),
		validation.Field(&p.MessageId, messageIdRule...),
		validation.Field(&p.Text, messageTextRule...),
	)
}

type SendMessageResponse struct {
	Message Message
	// Duplicate is set when a message with the same id was already sent; only the sender is notified then.
	Duplicate bool
	Conns     []Conn
}

func (s *service) SendMessage(ctx context.Context, params *SendMessageParams) (SendMessageResponse, error) {
	if err := params.Validate(); err != nil {
		return SendMessageResponse{}, invalid(err)
	}

	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	r, err := s.getRoom(ctx, params.RoomId)
	if err != nil {
		return SendMessageResponse{}, err
	}

	member, err := s.getMember(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return SendMessageResponse{}, err
	}

	msg := room.Message{
		Id:           params.MessageId,
		AuthorId:     params.SenderId,
		AuthorName:   member.Name,
		AuthorAvatar: member.AvatarUrl,
		AuthorIsHost: r.HostId == params.SenderId,
		Text:         params.Text,
		CreatedAt:    s.timestamp().UnixMilli(),
	}

	added, err := s.roomRepo.AddMessage(ctx, &room.AddMessageParams{
		RoomId:  params.RoomId,
		Message: msg,
		Limit:   s.cfg.ChatHistoryLimit,
	})
	if err != nil {
		return SendMessageResponse{}, fmt.Errorf("failed to add message: %w", err)
	}

	if !added {
		existing, err := s.roomRepo.GetMessage(ctx, params.RoomId, params.MessageId)
		if err != nil {
			return SendMessageResponse{}, fmt.Errorf("failed to get message: %w", err)
		}

		resp := SendMessageResponse{Message: toMessage(params.RoomId, existing), Duplicate: true}
		if conn := s.getConn(params.RoomId, params.SenderId); conn != nil {
			resp.Conns = []Conn{conn}
		}

		return resp, nil
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return SendMessageResponse{}, err
	}

	return SendMessageResponse{
		Message: toMessage(params.RoomId, msg),
		Conns:   conns,
	}, nil
}

type DeleteMessageParams struct {
	RoomId    string
	SenderId  string
	MessageId string
}

type DeleteMessageResponse struct {
	Conns []Conn
}

// DeleteMessage soft-deletes a message. Only the host may delete messages.
func (s *service) DeleteMessage(ctx context.Context, params *DeleteMessageParams) (DeleteMessageResponse, error) {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	if _, err := s.checkIfMemberHost(ctx, params.RoomId, params.SenderId); err != nil {
		return DeleteMessageResponse{}, err
	}

	if err := s.roomRepo.MarkMessageDeleted(ctx, params.RoomId, params.MessageId); err != nil {
		if errors.Is(err, room.ErrMessageNotFound) {
			return DeleteMessageResponse{}, ErrMessageNotFound
		}
		return DeleteMessageResponse{}, fmt.Errorf("failed to delete message: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return DeleteMessageResponse{}, err
	}

	return DeleteMessageResponse{Conns: conns}, nil
}
