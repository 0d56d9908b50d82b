package room

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sharetube/syncroom/internal/playback"
	"github.com/sharetube/syncroom/internal/repository/room"
)

type CreateRoomParams struct {
	Name       string
	Visibility string
	CreatorId  string
}

func (p CreateRoomParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, roomNameRule...),
		validation.Field(&p.Visibility, visibilityRule...),
		validation.Field(&p.CreatorId, memberIdRule...),
	)
}

type CreateRoomResponse struct {
	Room Room
}

// CreateRoom registers a room with the creator as host. The creator still has to join it.
func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	if err := params.Validate(); err != nil {
		return CreateRoomResponse{}, invalid(err)
	}

	createdAt := s.timestamp()
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		roomId := s.generator.GenerateRandomString(roomIdLength)

		err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
			RoomId:     roomId,
			Name:       params.Name,
			Visibility: params.Visibility,
			HostId:     params.CreatorId,
			CreatedAt:  createdAt.UnixMilli(),
		})
		if errors.Is(err, room.ErrRoomAlreadyExists) {
			s.logger.InfoContext(ctx, "room id collision", "room_id", roomId, "attempt", attempt)
			continue
		}
		if err != nil {
			return CreateRoomResponse{}, fmt.Errorf("failed to create room: %w", err)
		}

		if err := s.setState(ctx, roomId, playback.Initial()); err != nil {
			return CreateRoomResponse{}, err
		}

		s.scheduleRoomExpiry(roomId)
		s.metrics.Rooms.Inc()

		return CreateRoomResponse{
			Room: Room{
				Id:         roomId,
				Name:       params.Name,
				Visibility: params.Visibility,
				HostId:     params.CreatorId,
				CreatedAt:  createdAt,
			},
		}, nil
	}

	return CreateRoomResponse{}, fmt.Errorf("failed to create room: %w", room.ErrRoomAlreadyExists)
}

func (s *service) GetRoom(ctx context.Context, roomId string) (Room, error) {
	r, err := s.getRoom(ctx, roomId)
	if err != nil {
		return Room{}, err
	}

	return toRoom(roomId, r), nil
}

// ListRooms yields room summaries lazily. Every iteration re-reads the set of rooms,
// and every summary is read atomically.
func (s *service) ListRooms(ctx context.Context, filter ListRoomsFilter) iter.Seq2[RoomSummary, error] {
	return func(yield func(RoomSummary, error) bool) {
		roomIds, err := s.roomRepo.GetRoomIds(ctx)
		if err != nil {
			yield(RoomSummary{}, fmt.Errorf("failed to get room ids: %w", err))
			return
		}

		n := 0
		for _, roomId := range roomIds {
			if filter.Limit > 0 && n >= filter.Limit {
				return
			}

			summary, err := s.roomRepo.GetSummary(ctx, roomId)
			if errors.Is(err, room.ErrRoomNotFound) {
				continue
			}
			if err != nil {
				if !yield(RoomSummary{}, fmt.Errorf("failed to get summary: %w", err)) {
					return
				}
				continue
			}

			if filter.PublicOnly && summary.Room.Visibility != room.VisibilityPublic {
				continue
			}

			n++
			if !yield(toSummary(summary), nil) {
				return
			}
		}
	}
}

func toSummary(s room.Summary) RoomSummary {
	return RoomSummary{
		Id:          s.Id,
		Name:        s.Room.Name,
		Visibility:  s.Room.Visibility,
		MemberCount: s.MemberCount,
		Media:       toState(s.Player).Media,
		CreatedAt:   time.UnixMilli(s.Room.CreatedAt).UTC(),
	}
}

type DestroyRoomParams struct {
	RoomId   string
	SenderId string
}

type DestroyRoomResponse struct {
	Conns []Conn
}

func (s *service) DestroyRoom(ctx context.Context, params *DestroyRoomParams) (DestroyRoomResponse, error) {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	if _, err := s.checkIfMemberHost(ctx, params.RoomId, params.SenderId); err != nil {
		return DestroyRoomResponse{}, err
	}

	conns, err := s.destroyRoom(ctx, params.RoomId)
	if err != nil {
		return DestroyRoomResponse{}, err
	}

	return DestroyRoomResponse{Conns: conns}, nil
}

// destroyRoom unbinds every member connection, evicts the room and returns the unbound connections.
// Callers hold the room lock.
func (s *service) destroyRoom(ctx context.Context, roomId string) ([]Conn, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	conns := make([]Conn, 0, len(memberIds))
	for _, memberId := range memberIds {
		s.cancelGraceTimer(roomId, memberId)
		if conn, err := s.connRepo.RemoveMember(ctx, roomId, memberId); err == nil {
			conns = append(conns, conn)
		}
	}
	s.cancelRoomExpiry(roomId)

	if err := s.roomRepo.RemoveRoom(ctx, roomId); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return conns, nil
		}
		return nil, fmt.Errorf("failed to remove room: %w", err)
	}
	s.metrics.Rooms.Dec()
	s.logger.InfoContext(ctx, "room destroyed", "room_id", roomId)

	return conns, nil
}

func (s *service) scheduleRoomExpiry(roomId string) {
	if s.cfg.EmptyRoomTTL <= 0 {
		return
	}

	schedule(s, s.roomTimers, roomId, s.cfg.EmptyRoomTTL, func(e *timer) {
		s.expireRoom(roomId, e)
	})
}

func (s *service) cancelRoomExpiry(roomId string) {
	cancel(s, s.roomTimers, roomId)
}

func (s *service) expireRoom(roomId string, e *timer) {
	if !take(s, s.roomTimers, roomId, e) {
		return
	}

	ctx := context.Background()
	unlock := s.locks.Lock(roomId)
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		unlock()
		return
	}

	if len(memberIds) > 0 {
		resp, err := s.releaseAbsentHost(ctx, roomId, memberIds)
		unlock()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to release absent host", "room_id", roomId, "error", err)
			return
		}
		if h := s.getHooks().MemberExpired; resp.Failover && h != nil {
			h(ctx, resp)
		}
		return
	}

	_, err = s.destroyRoom(ctx, roomId)
	unlock()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to expire room", "room_id", roomId, "error", err)
		return
	}

	if h := s.getHooks().RoomExpired; h != nil {
		h(ctx, roomId)
	}
}
