// Package inmemory is a single-process room repository.
package inmemory

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/sharetube/syncroom/internal/repository/room"
)

type entry struct {
	room     room.Room
	player   *room.Player
	members  map[string]room.Member
	order    []string
	messages map[string]room.Message
	chat     []string
}

type repo struct {
	mu     sync.RWMutex
	rooms  map[string]*entry
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		rooms:  make(map[string]*entry),
		logger: logger,
	}
}

func (r *repo) get(roomId string) (*entry, error) {
	e, ok := r.rooms[roomId]
	if !ok {
		return nil, room.ErrRoomNotFound
	}

	return e, nil
}

func (r *repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[params.RoomId]; ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomAlreadyExists)
		return room.ErrRoomAlreadyExists
	}

	r.rooms[params.RoomId] = &entry{
		room: room.Room{
			Name:       params.Name,
			Visibility: params.Visibility,
			HostId:     params.HostId,
			CreatedAt:  params.CreatedAt,
		},
		members:  make(map[string]room.Member),
		messages: make(map[string]room.Message),
	}

	return nil
}

func (r *repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.get(roomId)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, err
	}

	return e.room, nil
}

func (r *repo) GetRoomIds(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}

	return ids, nil
}

func (r *repo) SetRoomHost(ctx context.Context, roomId, hostId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "host_id", hostId)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.get(roomId)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}
	e.room.HostId = hostId

	return nil
}

func (r *repo) GetSummary(ctx context.Context, roomId string) (room.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.get(roomId)
	if err != nil {
		return room.Summary{}, err
	}

	summary := room.Summary{
		Id:          roomId,
		Room:        e.room,
		MemberCount: len(e.order),
	}
	if e.player != nil {
		summary.Player = *e.player
	}

	return summary, nil
}

func (r *repo) RemoveRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.get(roomId); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}
	delete(r.rooms, roomId)

	return nil
}

func (r *repo) SetMember(ctx context.Context, params *room.SetMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.get(params.RoomId)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if _, ok := e.members[params.MemberId]; ok {
		e.order = slices.DeleteFunc(e.order, func(id string) bool { return id == params.MemberId })
	}
	e.members[params.MemberId] = room.Member{
		Name:      params.Name,
		AvatarUrl: params.AvatarUrl,
		Status:    params.Status,
		JoinedAt:  params.JoinedAt,
	}
	e.order = append(e.order, params.MemberId)

	return nil
}

func (r *repo) GetMember(ctx context.Context, roomId, memberId string) (room.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.get(roomId)
	if err != nil {
		return room.Member{}, room.ErrMemberNotFound
	}

	m, ok := e.members[memberId]
	if !ok {
		return room.Member{}, room.ErrMemberNotFound
	}

	return m, nil
}

func (r *repo) GetMemberIds(ctx context.Context, roomId string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rooms[roomId]
	if !ok {
		return []string{}, nil
	}

	return slices.Clone(e.order), nil
}

func (r *repo) UpdateMemberStatus(ctx context.Context, params *room.UpdateMemberStatusParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.get(params.RoomId)
	if err != nil {
		return room.ErrMemberNotFound
	}

	m, ok := e.members[params.MemberId]
	if !ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMemberNotFound)
		return room.ErrMemberNotFound
	}
	m.Status = params.Status
	e.members[params.MemberId] = m

	return nil
}

func (r *repo) RemoveMember(ctx context.Context, roomId, memberId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "member_id", memberId)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.get(roomId)
	if err != nil {
		return room.ErrMemberNotFound
	}

	if _, ok := e.members[memberId]; !ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMemberNotFound)
		return room.ErrMemberNotFound
	}
	delete(e.members, memberId)
	e.order = slices.DeleteFunc(e.order, func(id string) bool { return id == memberId })

	return nil
}

func (r *repo) SetPlayer(ctx context.Context, params *room.SetPlayerParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.get(params.RoomId)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}
	p := params.Player
	e.player = &p

	return nil
}

func (r *repo) GetPlayer(ctx context.Context, roomId string) (room.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rooms[roomId]
	if !ok || e.player == nil {
		return room.Player{}, room.ErrPlayerNotFound
	}

	return *e.player, nil
}

func (r *repo) AddMessage(ctx context.Context, params *room.AddMessageParams) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.get(params.RoomId)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	if _, ok := e.messages[params.Message.Id]; ok {
		return false, nil
	}

	e.messages[params.Message.Id] = params.Message
	e.chat = append(e.chat, params.Message.Id)
	if params.Limit > 0 && len(e.chat) > params.Limit {
		excess := len(e.chat) - params.Limit
		for _, id := range e.chat[:excess] {
			delete(e.messages, id)
		}
		e.chat = slices.Clone(e.chat[excess:])
	}

	return true, nil
}

func (r *repo) GetMessage(ctx context.Context, roomId, messageId string) (room.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rooms[roomId]
	if !ok {
		return room.Message{}, room.ErrMessageNotFound
	}

	m, ok := e.messages[messageId]
	if !ok {
		return room.Message{}, room.ErrMessageNotFound
	}

	return m, nil
}

func (r *repo) GetMessages(ctx context.Context, roomId string) ([]room.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rooms[roomId]
	if !ok {
		return []room.Message{}, nil
	}

	messages := make([]room.Message, 0, len(e.chat))
	for _, id := range e.chat {
		messages = append(messages, e.messages[id])
	}

	return messages, nil
}

func (r *repo) MarkMessageDeleted(ctx context.Context, roomId, messageId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "message_id", messageId)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[roomId]
	if !ok {
		return room.ErrMessageNotFound
	}

	m, ok := e.messages[messageId]
	if !ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMessageNotFound)
		return room.ErrMessageNotFound
	}
	m.Deleted = true
	e.messages[messageId] = m

	return nil
}
