package room

import "context"

// Repository is implemented by the redis and inmemory packages.
type Repository interface {
	CreateRoom(ctx context.Context, params *CreateRoomParams) error
	GetRoom(ctx context.Context, roomId string) (Room, error)
	GetRoomIds(ctx context.Context) ([]string, error)
	SetRoomHost(ctx context.Context, roomId, hostId string) error
	GetSummary(ctx context.Context, roomId string) (Summary, error)
	RemoveRoom(ctx context.Context, roomId string) error

	SetMember(ctx context.Context, params *SetMemberParams) error
	GetMember(ctx context.Context, roomId, memberId string) (Member, error)
	GetMemberIds(ctx context.Context, roomId string) ([]string, error)
	UpdateMemberStatus(ctx context.Context, params *UpdateMemberStatusParams) error
	RemoveMember(ctx context.Context, roomId, memberId string) error

	SetPlayer(ctx context.Context, params *SetPlayerParams) error
	GetPlayer(ctx context.Context, roomId string) (Player, error)

	AddMessage(ctx context.Context, params *AddMessageParams) (bool, error)
	GetMessage(ctx context.Context, roomId, messageId string) (Message, error)
	GetMessages(ctx context.Context, roomId string) ([]Message, error)
	MarkMessageDeleted(ctx context.Context, roomId, messageId string) error
}
