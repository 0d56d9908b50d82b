package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/syncroom/internal/repository/room"
)

func TestJoinRoom(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		s := newTestService(t, backend, testConfig())
		ctx := context.Background()
		roomId := createRoom(t, s, "alice")

		alice, aliceConn := join(t, s, roomId, "alice")
		assert.True(t, alice.JoinedMember.IsHost)
		assert.False(t, alice.Reconnected)
		assert.Equal(t, []Conn{aliceConn}, alice.Conns)

		bob, bobConn := join(t, s, roomId, "bob")
		assert.False(t, bob.JoinedMember.IsHost)
		assert.Equal(t, []string{"alice", "bob"}, memberIds(bob.Members))
		assert.Equal(t, []string{"alice"}, hosts(bob.Members))
		assert.Equal(t, []Conn{aliceConn, bobConn}, bob.Conns)
		assert.Nil(t, bob.Movie)
		assert.Equal(t, "idle", string(bob.State.Status))

		_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "missing1", MemberId: "carol", Name: "carol"})
		assert.ErrorIs(t, err, ErrRoomNotFound)

		_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, MemberId: "carol"})
		assert.ErrorIs(t, err, ErrInvalidParams)
	})
}

func TestJoinRoom_CreatorKeepsHost(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		s := newTestService(t, backend, testConfig())
		roomId := createRoom(t, s, "alice")

		bob, _ := join(t, s, roomId, "bob")
		assert.False(t, bob.JoinedMember.IsHost)
		assert.Empty(t, hosts(bob.Members))

		alice, _ := join(t, s, roomId, "alice")
		assert.True(t, alice.JoinedMember.IsHost)
		assert.Equal(t, []string{"alice"}, hosts(alice.Members))
		assert.Equal(t, "alice", hostOf(t, s, roomId))
	})
}

func TestJoinRoom_AbsentCreatorReleasesHost(t *testing.T) {
	cfg := testConfig()
	cfg.EmptyRoomTTL = 20 * time.Millisecond
	s := newTestService(t, "inmemory", cfg)

	released := make(chan LeaveRoomResponse, 1)
	s.SetHooks(Hooks{MemberExpired: func(_ context.Context, resp LeaveRoomResponse) { released <- resp }})

	roomId := createRoom(t, s, "alice")
	_, bobConn := join(t, s, roomId, "bob")
	join(t, s, roomId, "carol")

	select {
	case resp := <-released:
		assert.True(t, resp.Failover)
		assert.Equal(t, "bob", resp.NewHostId)
		assert.Same(t, bobConn, resp.NewHostConn)
		assert.Equal(t, []string{"bob"}, hosts(resp.Members))
	case <-time.After(2 * time.Second):
		t.Fatal("host was not released")
	}

	assert.Equal(t, "bob", hostOf(t, s, roomId))

	alice, _ := join(t, s, roomId, "alice")
	assert.False(t, alice.JoinedMember.IsHost)
}

func TestJoinRoom_WelcomePrecedesLaterEvents(t *testing.T) {
	s := newTestService(t, "inmemory", testConfig())
	ctx := context.Background()
	roomId := createRoom(t, s, "alice")
	join(t, s, roomId, "alice")

	carolJoined := make(chan struct{})
	bobConn := newFakeConn("bob")
	_, err := s.JoinRoom(ctx, &JoinRoomParams{
		RoomId:   roomId,
		MemberId: "bob",
		Name:     "bob",
		Conn:     bobConn,
		Welcome: func(resp JoinRoomResponse) error {
			go func() {
				defer close(carolJoined)
				_, err := s.JoinRoom(ctx, &JoinRoomParams{
					RoomId:   roomId,
					MemberId: "carol",
					Name:     "carol",
					Conn:     newFakeConn("carol"),
				})
				assert.NoError(t, err)
			}()

			select {
			case <-carolJoined:
				t.Error("room changed before the welcome was sent")
			case <-time.After(50 * time.Millisecond):
			}

			assert.Equal(t, []string{"alice", "bob"}, memberIds(resp.Members))
			return bobConn.Send("welcome")
		},
	})
	require.NoError(t, err)

	<-carolJoined
	members, err := s.ListMembers(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, memberIds(members))
	assert.Equal(t, []any{"welcome"}, bobConn.sent)
}

func TestJoinRoom_MembersLimit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		cfg := testConfig()
		cfg.MembersLimit = 2
		s := newTestService(t, backend, cfg)
		roomId := createRoom(t, s, "alice")

		join(t, s, roomId, "alice")
		join(t, s, roomId, "bob")

		_, err := s.JoinRoom(context.Background(), &JoinRoomParams{
			RoomId:   roomId,
			MemberId: "carol",
			Name:     "carol",
			Conn:     newFakeConn("carol"),
		})
		assert.ErrorIs(t, err, ErrMembersLimitReached)

		// rejoining members do not count against the limit
		_, err = s.JoinRoom(context.Background(), &JoinRoomParams{
			RoomId:   roomId,
			MemberId: "bob",
			Name:     "bob",
			Conn:     newFakeConn("bob-2"),
		})
		assert.NoError(t, err)
	})
}

func TestJoinRoom_ConcurrentSingleHost(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		cfg := testConfig()
		cfg.MembersLimit = 0
		s := newTestService(t, backend, cfg)
		ctx := context.Background()
		roomId := createRoom(t, s, "guest-5")

		const n = 10
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.JoinRoom(ctx, &JoinRoomParams{
					RoomId:   roomId,
					MemberId: guestName(i),
					Name:     guestName(i),
					Conn:     newFakeConn(guestName(i)),
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		members, err := s.ListMembers(ctx, roomId)
		require.NoError(t, err)
		assert.Len(t, members, n)
		assert.Equal(t, []string{"guest-5"}, hosts(members), "the creator is the host whatever the join order")
	})
}

func TestLeaveRoom(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		s := newTestService(t, backend, testConfig())
		ctx := context.Background()
		roomId := createRoom(t, s, "alice")

		_, aliceConn := join(t, s, roomId, "alice")
		_, bobConn := join(t, s, roomId, "bob")

		resp, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, MemberId: "bob"})
		require.NoError(t, err)
		assert.Same(t, bobConn, resp.Left)
		assert.False(t, resp.Failover)
		assert.False(t, resp.Destroyed)
		assert.Equal(t, []string{"alice"}, memberIds(resp.Members))
		assert.Equal(t, []Conn{aliceConn}, resp.Conns)

		resp, err = s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, MemberId: "bob"})
		require.NoError(t, err)
		assert.Nil(t, resp.Left)
		assert.Empty(t, resp.Conns)

		resp, err = s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, MemberId: "alice"})
		require.NoError(t, err)
		assert.True(t, resp.Destroyed)

		_, err = s.GetRoom(ctx, roomId)
		assert.ErrorIs(t, err, ErrRoomNotFound)

		_, err = s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, MemberId: "alice"})
		assert.NoError(t, err)
	})
}

func TestReconnectWithinGrace(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		s := newTestService(t, backend, testConfig())
		ctx := context.Background()
		roomId := createRoom(t, s, "alice")

		_, aliceConn := join(t, s, roomId, "alice")
		_, bobConn := join(t, s, roomId, "bob")

		disconnect(t, s, roomId, "alice", aliceConn)

		members, err := s.ListMembers(ctx, roomId)
		require.NoError(t, err)
		assert.Equal(t, room.StatusDisconnected, members[0].Status)
		assert.Equal(t, "alice", hostOf(t, s, roomId), "host keeps its role during the grace period")

		resp, newConn := join(t, s, roomId, "alice")
		assert.True(t, resp.Reconnected)
		assert.True(t, resp.JoinedMember.IsHost)
		assert.Equal(t, room.StatusConnected, resp.JoinedMember.Status)
		assert.Equal(t, []Conn{newConn, bobConn}, resp.Conns)
		assert.Equal(t, []string{"alice", "bob"}, memberIds(resp.Members), "join order is kept")

		// disconnecting a connection that was already replaced is a no-op
		disconnect(t, s, roomId, "alice", aliceConn)
		members, err = s.ListMembers(ctx, roomId)
		require.NoError(t, err)
		assert.Equal(t, room.StatusConnected, members[0].Status)
	})
}

func TestJoinRoom_ReplacesLiveConnection(t *testing.T) {
	s := newTestService(t, "inmemory", testConfig())
	roomId := createRoom(t, s, "alice")

	_, first := join(t, s, roomId, "alice")
	resp, _ := join(t, s, roomId, "alice")
	assert.Same(t, first, resp.Replaced)
}

func TestGraceExpiry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		cfg := testConfig()
		cfg.GracePeriod = 20 * time.Millisecond
		s := newTestService(t, backend, cfg)
		ctx := context.Background()

		expired := make(chan LeaveRoomResponse, 1)
		s.SetHooks(Hooks{MemberExpired: func(_ context.Context, resp LeaveRoomResponse) { expired <- resp }})

		roomId := createRoom(t, s, "alice")
		join(t, s, roomId, "alice")
		_, bobConn := join(t, s, roomId, "bob")

		disconnect(t, s, roomId, "bob", bobConn)

		select {
		case resp := <-expired:
			assert.Equal(t, roomId, resp.RoomId)
			assert.Equal(t, []string{"alice"}, memberIds(resp.Members))
			assert.False(t, resp.Failover)
		case <-time.After(2 * time.Second):
			t.Fatal("member did not expire")
		}

		members, err := s.ListMembers(ctx, roomId)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, memberIds(members))
	})
}

func TestGraceCancelledByRejoin(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = 50 * time.Millisecond
	s := newTestService(t, "inmemory", cfg)
	ctx := context.Background()

	roomId := createRoom(t, s, "alice")
	join(t, s, roomId, "alice")
	_, bobConn := join(t, s, roomId, "bob")

	disconnect(t, s, roomId, "bob", bobConn)
	join(t, s, roomId, "bob")

	time.Sleep(150 * time.Millisecond)

	members, err := s.ListMembers(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, memberIds(members))
}
