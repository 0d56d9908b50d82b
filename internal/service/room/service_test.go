package room

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/syncroom/internal/metrics"
	"github.com/sharetube/syncroom/internal/repository/catalog"
	connInmemory "github.com/sharetube/syncroom/internal/repository/connection/inmemory"
	roomInmemory "github.com/sharetube/syncroom/internal/repository/room/inmemory"
	roomRedis "github.com/sharetube/syncroom/internal/repository/room/redis"
)

type fakeConn struct {
	mu     sync.Mutex
	name   string
	sent   []any
	closed bool
}

func newFakeConn(name string) *fakeConn {
	return &fakeConn{name: name}
}

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
}

type fakeCatalog map[string]catalog.Movie

func (c fakeCatalog) Movie(_ context.Context, slug string) (catalog.Movie, error) {
	m, ok := c[slug]
	if !ok {
		return catalog.Movie{}, catalog.ErrMovieNotFound
	}

	return m, nil
}

var testCatalog = fakeCatalog{
	"dune": {
		Slug:  "dune",
		Title: "Dune",
		Episodes: []catalog.Episode{
			{Slug: "part-1", Name: "Part One"},
			{Slug: "part-2", Name: "Part Two"},
		},
	},
	"arrival": {Slug: "arrival", Title: "Arrival"},
}

type seqGenerator struct {
	mu  sync.Mutex
	ids []string
	i   int
}

func (g *seqGenerator) GenerateRandomString(int) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids[min(g.i, len(g.ids)-1)]
	g.i++

	return id
}

func testConfig() Config {
	return Config{
		MembersLimit:     4,
		GracePeriod:      time.Hour,
		ChatHistoryLimit: 50,
	}
}

func newTestService(t *testing.T, backend string, cfg Config, opts ...Option) *service {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var roomRepo iRoomRepo
	switch backend {
	case "inmemory":
		roomRepo = roomInmemory.NewRepo(logger)
	case "redis":
		mr := miniredis.RunT(t)
		rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rc.Close() })

		r, err := roomRedis.NewRepo(context.Background(), rc, logger)
		require.NoError(t, err)
		roomRepo = r
	default:
		t.Fatalf("unknown backend %q", backend)
	}

	s := NewService(roomRepo, connInmemory.NewRepo(logger), testCatalog, metrics.New(), logger, cfg, opts...)
	t.Cleanup(s.Close)

	return s
}

// forEachBackend runs fn against every room repository implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, backend string)) {
	for _, backend := range []string{"inmemory", "redis"} {
		t.Run(backend, func(t *testing.T) {
			fn(t, backend)
		})
	}
}

func createRoom(t *testing.T, s *service, creatorId string) string {
	t.Helper()

	resp, err := s.CreateRoom(context.Background(), &CreateRoomParams{
		Name:       "movie night",
		Visibility: "public",
		CreatorId:  creatorId,
	})
	require.NoError(t, err)

	return resp.Room.Id
}

func join(t *testing.T, s *service, roomId, memberId string) (JoinRoomResponse, *fakeConn) {
	t.Helper()

	conn := newFakeConn(memberId)
	resp, err := s.JoinRoom(context.Background(), &JoinRoomParams{
		RoomId:   roomId,
		MemberId: memberId,
		Name:     memberId,
		Conn:     conn,
	})
	require.NoError(t, err)

	return resp, conn
}

func disconnect(t *testing.T, s *service, roomId, memberId string, conn Conn) {
	t.Helper()

	_, err := s.DisconnectMember(context.Background(), &DisconnectMemberParams{
		RoomId:   roomId,
		MemberId: memberId,
		Conn:     conn,
	})
	require.NoError(t, err)
}

func hostOf(t *testing.T, s *service, roomId string) string {
	t.Helper()

	r, err := s.GetRoom(context.Background(), roomId)
	require.NoError(t, err)

	return r.HostId
}

func memberIds(members []Member) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.Id)
	}

	return ids
}

func hosts(members []Member) []string {
	var ids []string
	for _, m := range members {
		if m.IsHost {
			ids = append(ids, m.Id)
		}
	}

	return ids
}

func guestName(i int) string {
	return fmt.Sprintf("guest-%d", i)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, c.Write(&m))

	return m.GetCounter().GetValue()
}
