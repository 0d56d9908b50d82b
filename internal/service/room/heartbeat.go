package room

import (
	"context"
	"fmt"

	"github.com/sharetube/syncroom/internal/playback"
)

type SyncTarget struct {
	RoomId   string
	HostConn Conn
}

// SyncTargets returns the host connections of rooms that are playing. They are periodically asked to
// re-emit their state so that long uninterrupted playback keeps being re-anchored.
func (s *service) SyncTargets(ctx context.Context) ([]SyncTarget, error) {
	roomIds, err := s.roomRepo.GetRoomIds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get room ids: %w", err)
	}

	targets := make([]SyncTarget, 0, len(roomIds))
	for _, roomId := range roomIds {
		summary, err := s.roomRepo.GetSummary(ctx, roomId)
		if err != nil {
			continue
		}

		if playback.Status(summary.Player.Status) != playback.StatusPlaying || summary.Room.HostId == "" {
			continue
		}

		if conn := s.getConn(roomId, summary.Room.HostId); conn != nil {
			targets = append(targets, SyncTarget{RoomId: roomId, HostConn: conn})
		}
	}

	return targets, nil
}
