package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/syncroom/internal/app"
)

const (
	waitFor = 2 * time.Second
	poll    = 10 * time.Millisecond
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, grace time.Duration) string {
	t.Helper()

	a, err := app.New(context.Background(), &app.AppConfig{
		Host:             "127.0.0.1",
		Port:             8080,
		LogLevel:         "debug",
		MembersLimit:     9,
		Storage:          app.StorageMemory,
		GracePeriod:      grace,
		EmptyRoomTTL:     time.Minute,
		SendQueueSize:    64,
		DropPolicy:       "drop-oldest",
		ChatHistoryLimit: 100,
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	server := httptest.NewServer(a.Handler())
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
}

type participant struct {
	*Follower
	player *SimPlayer
	done   chan struct{}
	err    error
}

func testFollowerConfig(url, userId string) Config {
	return Config{
		ServerURL:    url,
		UserId:       userId,
		Name:         userId,
		TickInterval: 20 * time.Millisecond,
		SyncTimeout:  200 * time.Millisecond,
		SyncRetries:  1,
	}
}

func start(t *testing.T, cfg Config, opts ...SimPlayerOption) *participant {
	t.Helper()

	player := NewSimPlayer(0, opts...)
	f, err := Dial(context.Background(), cfg, player, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	p := &participant{Follower: f, player: player, done: make(chan struct{})}
	go func() {
		p.err = f.Run(ctx)
		close(p.done)
	}()
	t.Cleanup(func() {
		cancel()
		<-p.done
	})

	return p
}

func hasMedia(f *Follower) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.media != nil
}

// hostRoom creates a room as alice, joins it and starts dune at 100s.
func hostRoom(t *testing.T, url string) (*participant, string) {
	t.Helper()
	ctx := context.Background()

	alice := start(t, testFollowerConfig(url, "alice"))
	roomId, err := alice.CreateRoom(ctx, "movie night", true)
	require.NoError(t, err)
	require.NoError(t, alice.Join(ctx, roomId))
	require.True(t, alice.IsHost())

	require.NoError(t, alice.ChangeMovie(ctx, "dune", ""))
	require.NoError(t, alice.Seek(ctx, 100))
	require.NoError(t, alice.Play(ctx))
	require.Eventually(t, func() bool { return hasMedia(alice.Follower) }, waitFor, poll)

	return alice, roomId
}

func inSync(a, b *SimPlayer, delta float64) bool {
	return math.Abs(a.CurrentTime()-b.CurrentTime()) < delta
}

func TestFollower_FollowsHost(t *testing.T) {
	ctx := context.Background()
	url := newTestServer(t, time.Minute)
	alice, roomId := hostRoom(t, url)

	bob := start(t, testFollowerConfig(url, "bob"))
	require.NoError(t, bob.Join(ctx, roomId))
	assert.False(t, bob.IsHost())
	assert.Equal(t, roomId, bob.RoomId())

	require.Eventually(t, func() bool {
		return !bob.player.Paused() && inSync(alice.player, bob.player, 1)
	}, waitFor, poll)
	assert.Greater(t, bob.player.CurrentTime(), 99.0)

	require.NoError(t, alice.Pause(ctx))
	require.Eventually(t, func() bool {
		return bob.player.Paused() && bob.LastResult().Blocked
	}, waitFor, poll)
	assert.True(t, inSync(alice.player, bob.player, 0.5))

	resumed, err := bob.Resume()
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.True(t, bob.player.Paused())

	assert.ErrorIs(t, bob.Play(ctx), ErrNotHost)
	assert.Len(t, bob.Viewers(), 2)
}

func TestFollower_CorrectsDrift(t *testing.T) {
	ctx := context.Background()
	url := newTestServer(t, time.Minute)
	alice, roomId := hostRoom(t, url)

	cfg := testFollowerConfig(url, "bob")
	cfg.Drift.CorrectionThreshold = time.Second
	bob := start(t, cfg, WithRate(3))
	require.NoError(t, bob.Join(ctx, roomId))

	require.Eventually(t, func() bool { return !bob.player.Paused() }, waitFor, poll)

	// uncorrected, bob would be two seconds ahead after a second
	time.Sleep(time.Second)
	assert.True(t, inSync(alice.player, bob.player, 1.5))
}

func TestFollower_HostHeartbeat(t *testing.T) {
	ctx := context.Background()
	url := newTestServer(t, time.Minute)

	cfg := testFollowerConfig(url, "alice")
	cfg.HeartbeatInterval = 30 * time.Millisecond
	alice := start(t, cfg)
	roomId, err := alice.CreateRoom(ctx, "movie night", false)
	require.NoError(t, err)
	require.NoError(t, alice.Join(ctx, roomId))
	require.NoError(t, alice.ChangeMovie(ctx, "dune", "part-1"))

	bob := start(t, testFollowerConfig(url, "bob"))
	require.NoError(t, bob.Join(ctx, roomId))

	require.Eventually(t, func() bool { return bob.State().Seq >= 3 }, waitFor, poll)
	state := bob.State()
	require.NotNil(t, state.Media)
	assert.Equal(t, "dune", state.Media.MovieId)
	assert.Equal(t, "part-1", state.Media.EpisodeId)
}

func TestFollower_RequestSync(t *testing.T) {
	ctx := context.Background()
	url := newTestServer(t, time.Minute)
	_, roomId := hostRoom(t, url)

	bob := start(t, testFollowerConfig(url, "bob"))
	require.NoError(t, bob.Join(ctx, roomId))
	before := bob.State()

	require.NoError(t, bob.RequestSync(ctx))
	assert.True(t, bob.State().Newer(before))
}

func TestFollower_RequestSyncWaitingForHost(t *testing.T) {
	ctx := context.Background()
	url := newTestServer(t, time.Minute)

	// a host that never answers sync requests
	host, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer host.Close()
	require.NoError(t, host.SetReadDeadline(time.Now().Add(waitFor)))

	require.NoError(t, host.WriteJSON(outbound{Type: "create_room", Payload: createRoomInput{
		RoomName: "silent",
		UserId:   "alice",
	}}))
	var created struct {
		Payload roomCreated `json:"payload"`
	}
	require.NoError(t, host.ReadJSON(&created))

	require.NoError(t, host.WriteJSON(outbound{Type: "join_room", Payload: joinRoomInput{
		RoomId:   created.Payload.RoomId,
		UserId:   "alice",
		UserInfo: userInfoInput{Name: "Alice"},
	}}))
	var in inbound
	require.NoError(t, host.ReadJSON(&in))
	require.Equal(t, "joined_success", in.Type)

	cfg := testFollowerConfig(url, "bob")
	cfg.SyncTimeout = 50 * time.Millisecond
	bob := start(t, cfg)
	require.NoError(t, bob.Join(ctx, created.Payload.RoomId))

	assert.ErrorIs(t, bob.RequestSync(ctx), ErrWaitingForHost)
}

func TestFollower_Failover(t *testing.T) {
	ctx := context.Background()
	url := newTestServer(t, 50*time.Millisecond)
	alice, roomId := hostRoom(t, url)

	bob := start(t, testFollowerConfig(url, "bob"))
	require.NoError(t, bob.Join(ctx, roomId))
	require.Eventually(t, func() bool { return !bob.player.Paused() }, waitFor, poll)

	alice.Close()

	require.Eventually(t, bob.IsHost, waitFor, poll)
	require.Eventually(t, func() bool { return len(bob.Viewers()) == 1 }, waitFor, poll)
	assert.NoError(t, bob.Pause(ctx))

	// alice comes back as a guest and follows bob
	returned := start(t, testFollowerConfig(url, "alice"))
	require.NoError(t, returned.Join(ctx, roomId))
	assert.False(t, returned.IsHost())
	require.Eventually(t, func() bool {
		return returned.player.Paused() && inSync(bob.player, returned.player, 0.5)
	}, waitFor, poll)
}

func TestFollower_Chat(t *testing.T) {
	ctx := context.Background()
	url := newTestServer(t, time.Minute)
	alice, roomId := hostRoom(t, url)

	bob := start(t, testFollowerConfig(url, "bob"))
	require.NoError(t, bob.Join(ctx, roomId))

	id, err := bob.SendMessage(ctx, "hello")
	require.NoError(t, err)

	confirmed := func(f *Follower) bool {
		entries := f.Chat().Entries()
		return len(entries) == 1 && entries[0].Id == id && !entries[0].Tentative
	}
	require.Eventually(t, func() bool { return confirmed(bob.Follower) }, waitFor, poll)
	require.Eventually(t, func() bool { return confirmed(alice.Follower) }, waitFor, poll)
	assert.Equal(t, "bob", alice.Chat().Entries()[0].AuthorId)

	require.NoError(t, alice.DeleteMessage(ctx, id))
	require.Eventually(t, func() bool {
		return len(alice.Chat().Entries()) == 0 && len(bob.Chat().Entries()) == 0
	}, waitFor, poll)

	// deleted messages are not part of the history sent on join
	carol := start(t, testFollowerConfig(url, "carol"))
	require.NoError(t, carol.Join(ctx, roomId))
	assert.Empty(t, carol.Chat().Entries())
}

func TestFollower_JoinUnknownRoom(t *testing.T) {
	url := newTestServer(t, time.Minute)
	bob := start(t, testFollowerConfig(url, "bob"))

	err := bob.Join(context.Background(), "missing1")
	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, "room_not_found", serverErr.Code)
}

func TestFollower_EndRoom(t *testing.T) {
	ctx := context.Background()
	url := newTestServer(t, time.Minute)
	alice, roomId := hostRoom(t, url)

	bob := start(t, testFollowerConfig(url, "bob"))
	require.NoError(t, bob.Join(ctx, roomId))

	assert.ErrorIs(t, bob.EndRoom(ctx), ErrNotHost)
	require.NoError(t, alice.EndRoom(ctx))

	for _, p := range []*participant{alice, bob} {
		select {
		case <-p.done:
			assert.ErrorIs(t, p.err, ErrRoomDestroyed)
		case <-time.After(waitFor):
			t.Fatal("follower did not stop")
		}
		assert.Empty(t, p.RoomId())
	}
}
