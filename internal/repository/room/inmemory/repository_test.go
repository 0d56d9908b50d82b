package inmemory

import (
	"io"
	"log/slog"
	"testing"

	"github.com/sharetube/syncroom/internal/repository/room"
	"github.com/sharetube/syncroom/internal/repository/room/roomtest"
)

func TestRepo(t *testing.T) {
	roomtest.Run(t, func(t *testing.T) room.Repository {
		return NewRepo(slog.New(slog.NewTextHandler(io.Discard, nil)))
	})
}
