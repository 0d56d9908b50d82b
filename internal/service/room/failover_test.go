package room

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Host H with guests G1 and G2 (joined in that order): H leaves, G1 becomes host;
// G1 leaves, G2 becomes host; the original host returns as a guest.
func TestFailover_PromotesEarliestConnectedGuest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		s := newTestService(t, backend, testConfig())
		ctx := context.Background()
		roomId := createRoom(t, s, "h")

		join(t, s, roomId, "h")
		_, g1Conn := join(t, s, roomId, "g1")
		_, g2Conn := join(t, s, roomId, "g2")

		resp, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, MemberId: "h"})
		require.NoError(t, err)
		assert.True(t, resp.Failover)
		assert.Equal(t, "g1", resp.NewHostId)
		assert.Equal(t, []string{"g1"}, hosts(resp.Members))
		assert.Equal(t, []Conn{g1Conn, g2Conn}, resp.Conns)
		assert.Equal(t, 1.0, failovers(t, s))

		returned, _ := join(t, s, roomId, "h")
		assert.False(t, returned.JoinedMember.IsHost)

		resp, err = s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, MemberId: "g1"})
		require.NoError(t, err)
		assert.Equal(t, "g2", resp.NewHostId)
		assert.Equal(t, []string{"g2"}, hosts(resp.Members))
	})
}

func TestFailover_SkipsDisconnectedGuests(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		s := newTestService(t, backend, testConfig())
		ctx := context.Background()
		roomId := createRoom(t, s, "h")

		join(t, s, roomId, "h")
		_, g1Conn := join(t, s, roomId, "g1")
		join(t, s, roomId, "g2")

		disconnect(t, s, roomId, "g1", g1Conn)

		resp, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, MemberId: "h"})
		require.NoError(t, err)
		assert.Equal(t, "g2", resp.NewHostId)
	})
}

func TestFailover_OnlyDisconnectedGuestsLeavesRoomHostless(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		s := newTestService(t, backend, testConfig())
		ctx := context.Background()
		roomId := createRoom(t, s, "h")

		join(t, s, roomId, "h")
		_, g1Conn := join(t, s, roomId, "g1")
		disconnect(t, s, roomId, "g1", g1Conn)

		resp, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, MemberId: "h"})
		require.NoError(t, err)
		assert.True(t, resp.Failover)
		assert.Empty(t, resp.NewHostId)
		assert.False(t, resp.Destroyed)
		assert.Empty(t, hostOf(t, s, roomId))
		assert.Equal(t, 0.0, failovers(t, s))

		// the next member to join takes over, even a returning guest
		g1, _ := join(t, s, roomId, "g1")
		assert.True(t, g1.JoinedMember.IsHost)
		assert.Equal(t, "g1", hostOf(t, s, roomId))
	})
}

func TestFailover_LastMemberDestroysRoom(t *testing.T) {
	s := newTestService(t, "inmemory", testConfig())
	ctx := context.Background()
	roomId := createRoom(t, s, "h")
	join(t, s, roomId, "h")

	resp, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, MemberId: "h"})
	require.NoError(t, err)
	assert.True(t, resp.Destroyed)
	assert.False(t, resp.Failover)
}

func failovers(t *testing.T, s *service) float64 {
	t.Helper()

	return counterValue(t, s.metrics.Failovers)
}
